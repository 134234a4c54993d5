package mqttsn

// DefaultQueueCapacity is the number of unacknowledged messages the client
// keeps in flight.
const DefaultQueueCapacity = 4

// QueueKey correlates a queued packet with its acknowledgment: by message id
// for REGISTER, PUBLISH, SUBSCRIBE and UNSUBSCRIBE, by message type for
// CONNECT, WILLTOPICUPD and WILLMSGUPD, which carry no id.
type QueueKey struct {
	MsgID   uint16
	MsgType MsgType
	byType  bool
}

// KeyByMsgID returns a key matching on the message id.
func KeyByMsgID(id uint16) QueueKey {
	return QueueKey{MsgID: id}
}

// KeyByMsgType returns a key matching on the message type.
func KeyByMsgType(t MsgType) QueueKey {
	return QueueKey{MsgType: t, byType: true}
}

// ByType reports whether the key matches on the message type.
func (k QueueKey) ByType() bool {
	return k.byType
}

func (k QueueKey) matches(p *QueuedPacket) bool {
	if k.byType {
		return p.Key.byType && p.Key.MsgType == k.MsgType
	}
	return !p.Key.byType && p.Key.MsgID == k.MsgID
}

// QueuedPacket is an outbound message awaiting acknowledgment.
type QueuedPacket struct {
	// Data is the exact wire form last sent, reused for retransmission.
	Data []byte
	// MsgType is the type of the queued request.
	MsgType MsgType
	Key     QueueKey
	// Retries is the number of retransmissions left.
	Retries uint8
	// Deadline is the timer value of the next retransmission.
	Deadline uint32
	// SentAt is the timer value of the first transmission.
	SentAt uint32
	// Topic is the topic of REGISTER, PUBLISH, SUBSCRIBE and UNSUBSCRIBE.
	Topic Topic
}

// PacketQueue is a small fixed-capacity list of in-flight packets kept in
// insertion order. It is not safe for concurrent use.
type PacketQueue struct {
	entries  []*QueuedPacket
	capacity int
}

// NewPacketQueue creates a queue holding at most capacity packets.
func NewPacketQueue(capacity int) *PacketQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &PacketQueue{
		entries:  make([]*QueuedPacket, 0, capacity),
		capacity: capacity,
	}
}

// Enqueue appends a packet. At most one packet may exist per key.
func (q *PacketQueue) Enqueue(p *QueuedPacket) error {
	if _, ok := q.Find(p.Key); ok {
		return ErrDuplicateKey
	}
	if len(q.entries) >= q.capacity {
		return ErrQueueFull
	}
	q.entries = append(q.entries, p)
	return nil
}

// Find returns the index of the packet matching key.
func (q *PacketQueue) Find(key QueueKey) (int, bool) {
	for i, p := range q.entries {
		if key.matches(p) {
			return i, true
		}
	}
	return -1, false
}

// Get returns the packet matching key, or nil.
func (q *PacketQueue) Get(key QueueKey) *QueuedPacket {
	if i, ok := q.Find(key); ok {
		return q.entries[i]
	}
	return nil
}

// Dequeue removes the packet matching key and releases its buffer.
// The remaining packets keep their relative order.
func (q *PacketQueue) Dequeue(key QueueKey) error {
	i, ok := q.Find(key)
	if !ok {
		return ErrQueueEntryNotFound
	}

	q.entries[i].Data = nil
	copy(q.entries[i:], q.entries[i+1:])
	q.entries[len(q.entries)-1] = nil
	q.entries = q.entries[:len(q.entries)-1]
	return nil
}

// Clear removes every packet.
func (q *PacketQueue) Clear() {
	for i := range q.entries {
		q.entries[i].Data = nil
		q.entries[i] = nil
	}
	q.entries = q.entries[:0]
}

// Len returns the number of queued packets.
func (q *PacketQueue) Len() int {
	return len(q.entries)
}

// Cap returns the queue capacity.
func (q *PacketQueue) Cap() int {
	return q.capacity
}

// Entries returns a snapshot of the queued packets in insertion order.
func (q *PacketQueue) Entries() []*QueuedPacket {
	out := make([]*QueuedPacket, len(q.entries))
	copy(out, q.entries)
	return out
}

// msgIDGenerator hands out message ids 1..65535, wrapping back to 1.
type msgIDGenerator struct {
	next uint16
}

// allocate returns the next id that no queued packet is using.
func (g *msgIDGenerator) allocate(q *PacketQueue) uint16 {
	for {
		g.next++
		if g.next == 0 {
			g.next = 1
		}
		if _, used := q.Find(KeyByMsgID(g.next)); !used {
			return g.next
		}
	}
}

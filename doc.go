// Package mqttsn provides an MQTT-SN v1.2 client for constrained networks.
//
// MQTT-SN carries MQTT sessions over unreliable datagram transports such as
// UDP on 6LoWPAN or Thread meshes. The client talks to a single gateway,
// retransmits unacknowledged requests and keeps the session alive with
// PINGREQ.
//
// # Features
//
//   - Gateway discovery with SEARCHGW and GWINFO
//   - CONNECT with will topic and message, DISCONNECT, sleep and wake-up
//   - REGISTER, PUBLISH at QoS 0 and 1, SUBSCRIBE, UNSUBSCRIBE
//   - WILLTOPICUPD and WILLMSGUPD
//   - Retransmission with a bounded in-flight queue
//   - Transport: UDP (IPv6 multicast aware) and QUIC datagrams
//
// # Messages
//
// Every MQTT-SN message has a struct (ConnectPacket, PublishPacket, and so
// on). Use ReadPacket and WritePacket to decode and encode datagrams:
//
//	pkt, err := mqttsn.ReadPacket(datagram)
//
//	n, err := mqttsn.WritePacket(w, &mqttsn.PingreqPacket{})
//
// # Client
//
// Client owns a transport and a timer, runs a read loop and delivers events
// to a handler in order:
//
//	client, err := mqttsn.NewClient(
//	    mqttsn.WithClientID("sensor-1"),
//	    mqttsn.WithKeepAlive(60),
//	    mqttsn.OnEvent(func(c *mqttsn.Client, ev mqttsn.Event) {
//	        switch e := ev.(type) {
//	        case mqttsn.GatewayFoundEvent:
//	            c.Connect(e.Remote, e.GatewayID)
//	        case mqttsn.ConnectedEvent:
//	            c.Register("sensors/temp")
//	        case mqttsn.RegisteredEvent:
//	            c.Publish(e.TopicID, []byte("21.5"), mqttsn.QoS1)
//	        case *mqttsn.TimeoutEvent:
//	            log.Printf("request failed: %v", e)
//	        }
//	    }),
//	)
//	defer client.Close()
//
//	client.SearchGateway(5 * time.Second)
//
// Requests that are not acknowledged after the retransmission budget, or
// that the gateway rejects for congestion, surface as *TimeoutEvent:
//
//	if errors.Is(ev, mqttsn.ErrRetransmissionTimeout) { ... }
//
// # Engine
//
// Engine is the protocol core without goroutines or locks. It is driven by
// three entry points: the operations (Connect, Publish, ...), Deliver for
// inbound datagrams and HandleTimeout for the single platform timer. Each
// call runs to completion and returns the events it produced. Supply a
// Platform and a PacketSender to embed it in another event loop.
//
// # Configuration
//
// Options can be loaded from a YAML or JSON file:
//
//	cfg, err := mqttsn.LoadConfig("client.yaml")
//	opts, err := cfg.Options()
//	client, err := mqttsn.NewClient(opts...)
//
// # Metrics
//
// Pass a Metrics implementation to count datagrams, retransmissions and
// timeouts:
//
//	metrics := mqttsn.NewMemoryMetrics()
//	client, err := mqttsn.NewClient(mqttsn.WithMetrics(metrics))
//
// # Logging
//
// Implement the Logger interface for structured logging, or wrap slog:
//
//	logger := mqttsn.NewSlogLogger(slog.Default(), mqttsn.LogLevelInfo)
//	client, err := mqttsn.NewClient(mqttsn.WithLogger(logger))
package mqttsn

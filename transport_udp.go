package mqttsn

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv6"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by UDPTransport.Send when the send limiter has no tokens left.
var ErrRateLimited = errors.New("send rate limit exceeded")

// UDPOptions configures a UDPTransport.
type UDPOptions struct {
	// Address is the local bind address. Defaults to "[::]:47193".
	Address string

	// HopLimit is the multicast hop limit used for SEARCHGW. Zero leaves the
	// socket default. It maps to the SEARCHGW radius.
	HopLimit int

	// Loopback delivers our own multicast datagrams back to the socket.
	Loopback bool

	// JoinBroadcastGroup joins BroadcastAddr so that ADVERTISE and relayed
	// GWINFO messages reach the client.
	JoinBroadcastGroup bool

	// Interface selects the multicast interface. Nil uses the system default.
	Interface *net.Interface

	// RateLimit caps outbound datagrams per second. Zero disables limiting.
	RateLimit rate.Limit
	// Burst is the limiter bucket size. Defaults to 1.
	Burst int
}

// UDPTransport sends and receives MQTT-SN datagrams over UDP. Multicast
// options apply to IPv6 sockets only; an IPv4 socket reaches gateways by
// unicast or through WithBroadcast.
type UDPTransport struct {
	conn *net.UDPConn
	// pconn is nil on IPv4 sockets.
	pconn   *ipv6.PacketConn
	limiter *rate.Limiter
	port    uint16

	closeOnce sync.Once
	closeErr  error
}

// ListenUDP binds a UDP socket and applies the multicast options.
func ListenUDP(opts UDPOptions) (*UDPTransport, error) {
	if opts.Address == "" {
		opts.Address = fmt.Sprintf("[::]:%d", DefaultPort)
	}

	addr, err := net.ResolveUDPAddr("udp", opts.Address)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", opts.Address, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", opts.Address, err)
	}

	local := conn.LocalAddr().(*net.UDPAddr)
	t := &UDPTransport{
		conn: conn,
		port: uint16(local.Port),
	}

	// ff03::1 is only reachable from an IPv6 socket.
	if local.IP.To4() == nil {
		t.pconn = ipv6.NewPacketConn(conn)
		if err := t.configureMulticast(opts); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(opts.RateLimit, burst)
	}

	return t, nil
}

func (t *UDPTransport) configureMulticast(opts UDPOptions) error {
	if opts.HopLimit > 0 {
		if err := t.pconn.SetMulticastHopLimit(opts.HopLimit); err != nil {
			return fmt.Errorf("set multicast hop limit: %w", err)
		}
	}
	if opts.Loopback {
		if err := t.pconn.SetMulticastLoopback(true); err != nil {
			return fmt.Errorf("set multicast loopback: %w", err)
		}
	}
	if opts.Interface != nil {
		if err := t.pconn.SetMulticastInterface(opts.Interface); err != nil {
			return fmt.Errorf("set multicast interface: %w", err)
		}
	}
	if opts.JoinBroadcastGroup {
		group := &net.UDPAddr{IP: net.IP(BroadcastAddr.AsSlice())}
		if err := t.pconn.JoinGroup(opts.Interface, group); err != nil {
			return fmt.Errorf("join %s: %w", BroadcastAddr, err)
		}
	}
	return nil
}

// Send writes one datagram. It fails fast when the rate limit is exceeded.
func (t *UDPTransport) Send(remote Remote, data []byte) error {
	if t.limiter != nil && !t.limiter.Allow() {
		return ErrRateLimited
	}

	if _, err := t.conn.WriteToUDPAddrPort(data, remote.AddrPort()); err != nil {
		return err
	}
	return nil
}

// ReadFrom blocks until a datagram arrives.
func (t *UDPTransport) ReadFrom(buf []byte) (int, Remote, error) {
	n, ap, err := t.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return 0, Remote{}, err
	}
	return n, RemoteFromAddrPort(ap), nil
}

// LocalPort returns the bound port.
func (t *UDPTransport) LocalPort() uint16 {
	return t.port
}

// LocalAddr returns the bound address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Close closes the socket. It is safe to call more than once.
func (t *UDPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

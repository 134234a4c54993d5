package mqttsn

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// DefaultPort is the MQTT-SN port used by both clients and gateways.
const DefaultPort = 47193

// ErrBroadcastUnsupported is returned by transports that cannot reach the broadcast remote.
var ErrBroadcastUnsupported = errors.New("transport does not support broadcast")

// Remote is a datagram endpoint: a 16-byte address plus a port.
// IPv4 addresses are stored in their IPv4-mapped IPv6 form.
type Remote struct {
	Addr [16]byte
	Port uint16
}

// BroadcastAddr is the realm-local all-nodes group used for SEARCHGW.
var BroadcastAddr = netip.MustParseAddr("ff03::1")

// BroadcastRemote returns the SEARCHGW destination on the given port.
func BroadcastRemote(port uint16) Remote {
	return RemoteFromAddrPort(netip.AddrPortFrom(BroadcastAddr, port))
}

// RemoteFromAddrPort converts a netip.AddrPort.
func RemoteFromAddrPort(ap netip.AddrPort) Remote {
	return Remote{Addr: ap.Addr().As16(), Port: ap.Port()}
}

// RemoteFromUDPAddr converts a *net.UDPAddr.
func RemoteFromUDPAddr(addr *net.UDPAddr) Remote {
	if addr == nil {
		return Remote{}
	}
	return RemoteFromAddrPort(addr.AddrPort())
}

// ParseRemote parses "host:port" where host is a literal IP address.
func ParseRemote(s string) (Remote, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Remote{}, fmt.Errorf("parse remote %q: %w", s, err)
	}
	return RemoteFromAddrPort(ap), nil
}

// ResolveRemote resolves "host:port", looking the host up when needed.
func ResolveRemote(s string) (Remote, error) {
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		return Remote{}, fmt.Errorf("resolve remote %q: %w", s, err)
	}
	return RemoteFromUDPAddr(addr), nil
}

// AddrPort returns the remote as a netip.AddrPort, unmapping IPv4 addresses.
func (r Remote) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom16(r.Addr).Unmap(), r.Port)
}

// UDPAddr returns the remote as a *net.UDPAddr.
func (r Remote) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(r.AddrPort())
}

// IsMulticast reports whether the remote is a multicast group.
func (r Remote) IsMulticast() bool {
	return r.AddrPort().Addr().IsMulticast()
}

// IsZero reports whether the remote is unset.
func (r Remote) IsZero() bool {
	return r == Remote{}
}

// String returns the remote in "[addr]:port" or "addr:port" form.
func (r Remote) String() string {
	return r.AddrPort().String()
}

// PacketSender hands datagrams to the network. Send must not block on the
// network; a datagram that cannot be sent right away is an error.
type PacketSender interface {
	Send(remote Remote, data []byte) error
}

// Transport is a datagram socket bound to a local port.
type Transport interface {
	PacketSender

	// ReadFrom blocks until a datagram arrives and copies it into buf.
	ReadFrom(buf []byte) (int, Remote, error)

	// LocalPort returns the bound local port.
	LocalPort() uint16

	// Close closes the transport and unblocks ReadFrom.
	Close() error
}

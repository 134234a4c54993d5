package mqttsn

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"github.com/quic-go/quic-go"
)

// QUICALPN is the ALPN protocol offered by QUICTransport.
const QUICALPN = "mqtt-sn"

// QUICTransport carries MQTT-SN messages in QUIC unreliable datagrams to a
// single gateway. The engine keeps its own retransmission discipline, so the
// transport stays lossy. SEARCHGW is not supported.
type QUICTransport struct {
	conn   *quic.Conn
	remote Remote
	port   uint16

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// DialQUIC connects to a gateway at address ("host:port"). A nil tlsConfig
// requires TLS 1.3 with system roots. Datagram support is always enabled.
func DialQUIC(ctx context.Context, address string, tlsConfig *tls.Config, quicConfig *quic.Config) (*QUICTransport, error) {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}
	if len(tlsConfig.NextProtos) == 0 {
		tlsConfig = tlsConfig.Clone()
		tlsConfig.NextProtos = []string{QUICALPN}
	}

	if quicConfig == nil {
		quicConfig = &quic.Config{}
	} else {
		quicConfig = quicConfig.Clone()
	}
	quicConfig.EnableDatagrams = true

	conn, err := quic.DialAddr(ctx, address, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", address, err)
	}

	return newQUICTransport(conn), nil
}

func newQUICTransport(conn *quic.Conn) *QUICTransport {
	ctx, cancel := context.WithCancel(context.Background())

	t := &QUICTransport{
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}
	if addr, ok := conn.RemoteAddr().(*net.UDPAddr); ok {
		t.remote = RemoteFromUDPAddr(addr)
	}
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		t.port = uint16(addr.Port)
	}
	return t
}

// Remote returns the gateway endpoint of the connection.
func (t *QUICTransport) Remote() Remote {
	return t.remote
}

// Send writes one datagram to the gateway. The remote must be the gateway;
// multicast destinations fail with ErrBroadcastUnsupported.
func (t *QUICTransport) Send(remote Remote, data []byte) error {
	if remote.IsMulticast() {
		return ErrBroadcastUnsupported
	}
	if remote != t.remote {
		return fmt.Errorf("%w: %s is not the connected gateway", ErrInvalidArgument, remote)
	}
	return t.conn.SendDatagram(data)
}

// ReadFrom blocks until a datagram arrives or the transport is closed.
func (t *QUICTransport) ReadFrom(buf []byte) (int, Remote, error) {
	data, err := t.conn.ReceiveDatagram(t.ctx)
	if err != nil {
		return 0, Remote{}, err
	}
	return copy(buf, data), t.remote, nil
}

// LocalPort returns the local UDP port of the connection.
func (t *QUICTransport) LocalPort() uint16 {
	return t.port
}

// Close closes the connection and unblocks ReadFrom.
func (t *QUICTransport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.closeErr = t.conn.CloseWithError(0, "")
	})
	return t.closeErr
}

package node

import (
	"encoding/binary"
	"log/slog"
	"net"
	"net/netip"
	"time"
)

// Keepalive wire format: 4-byte header ("RA", protocol version, message
// type) followed by up to eight peer endpoints, each a 16-byte IPv6
// address plus a little-endian port.
const (
	protocolVersion  = 4
	msgKeepalive     = 2
	keepalivePeers   = 8
	keepaliveTick    = 60 * time.Second
	keepaliveMsgSize = 4 + keepalivePeers*18
)

type network struct {
	conn  *net.UDPConn
	peers *Peers
	log   *slog.Logger
	done  chan struct{}
}

func newNetwork(port uint16, peers *Peers, log *slog.Logger) (*network, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, err
	}
	n := &network{conn: conn, peers: peers, log: log, done: make(chan struct{})}
	go n.receive()
	return n, nil
}

func (n *network) stop() {
	n.conn.Close()
	<-n.done
}

func (n *network) receive() {
	defer close(n.done)
	buf := make([]byte, 1024)
	for {
		size, sender, err := n.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}
		if size < 4 || buf[0] != 'R' || buf[1] != 'A' || buf[3] != msgKeepalive {
			continue
		}
		n.peers.Contacted(sender)
		for off := 4; off+18 <= size; off += 18 {
			addr, _ := netip.AddrFromSlice(buf[off : off+16])
			port := binary.LittleEndian.Uint16(buf[off+16 : off+18])
			n.peers.Contacted(netip.AddrPortFrom(addr, port))
		}
	}
}

// sendKeepalive gossips a sample of known peers to the endpoint.
func (n *network) sendKeepalive(endpoint netip.AddrPort) {
	msg := make([]byte, keepaliveMsgSize)
	msg[0], msg[1], msg[2], msg[3] = 'R', 'A', protocolVersion, msgKeepalive
	for i, peer := range n.peers.Sample(keepalivePeers) {
		off := 4 + i*18
		addr16 := peer.Addr().As16()
		copy(msg[off:off+16], addr16[:])
		binary.LittleEndian.PutUint16(msg[off+16:off+18], peer.Port())
	}
	if _, err := n.conn.WriteToUDPAddrPort(msg, endpoint); err != nil {
		n.log.Debug("keepalive send failed", "endpoint", endpoint.String(), "error", err)
	}
}

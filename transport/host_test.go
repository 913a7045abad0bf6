package transport

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/companyzero/voicerelay/internal/assert"
	"github.com/companyzero/voicerelay/internal/testutils"
	"github.com/pion/rtp"
)

// testEvent is a copy of an event that outlives the packet buffer.
type testEvent struct {
	typ  EventType
	peer *Peer
	data []byte
}

// newTestHost creates a host bound to a random loopback port. The host is
// closed at the end of the test.
func newTestHost(t testing.TB, name string, opts ...Option) *Host {
	t.Helper()
	opts = append([]Option{
		WithBindAddr("127.0.0.1:0"),
		WithLogger(testutils.TestLoggerSys(t, name)),
		WithHandshakeRetryInterval(20 * time.Millisecond),
	}, opts...)
	h, err := NewHost(opts...)
	assert.NilErr(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

// runTestHost services the host until it is closed. Every event other than
// EventNone is sent to the returned chan.
func runTestHost(t testing.TB, h *Host) chan testEvent {
	events := make(chan testEvent, 100)
	go func() {
		for {
			ev, err := h.Service(10 * time.Millisecond)
			if errors.Is(err, ErrHostClosed) {
				return
			}
			if err != nil {
				t.Errorf("unexpected service error: %v", err)
				return
			}
			if ev.Type == EventNone {
				continue
			}
			tev := testEvent{typ: ev.Type, peer: ev.Peer}
			if ev.Packet != nil {
				tev.data = bytes.Clone(ev.Packet.Data)
				ev.Packet.Release()
			}
			events <- tev
		}
	}()
	return events
}

func assertEvent(t testing.TB, events chan testEvent, typ EventType) testEvent {
	t.Helper()
	ev := assert.ChanWritten(t, events)
	if ev.typ != typ {
		t.Fatalf("unexpected event type: got %s, want %s", ev.typ, typ)
	}
	return ev
}

// TestHostConnectAndSend tests the basic handshake and message exchange
// between two hosts.
func TestHostConnectAndSend(t *testing.T) {
	t.Parallel()

	server := newTestHost(t, "SRVR")
	client := newTestHost(t, "CLNT")

	cp, err := client.Connect(server.LocalAddr())
	assert.NilErr(t, err)
	assert.BoolIs(t, cp.Connected(), false)
	assert.ErrorIs(t, cp.Send([]byte("too early")), ErrPeerNotConnected)

	serverEvents := runTestHost(t, server)
	clientEvents := runTestHost(t, client)

	sev := assertEvent(t, serverEvents, EventConnect)
	assertEvent(t, clientEvents, EventConnect)
	assert.BoolIs(t, cp.Connected(), true)
	assert.BoolIs(t, sev.peer.Connected(), true)
	assert.DeepEqual(t, sev.peer.Addr(), client.LocalAddr())

	// Client to server.
	msg := []byte("hello world")
	assert.NilErr(t, cp.Send(msg))
	ev := assertEvent(t, serverEvents, EventReceive)
	assert.DeepEqual(t, ev.data, msg)
	assert.DeepEqual(t, ev.peer, sev.peer)

	// Server to client.
	assert.NilErr(t, sev.peer.Send([]byte("reply")))
	ev = assertEvent(t, clientEvents, EventReceive)
	assert.DeepEqual(t, ev.data, []byte("reply"))

	// Messages larger than the mtu are fragmented and reassembled.
	large := make([]byte, 5000)
	rng := rand.NewChaCha8([32]byte{})
	rng.Read(large)
	before := client.Stats().PacketsOut
	assert.NilErr(t, cp.Send(large))
	ev = assertEvent(t, serverEvents, EventReceive)
	assert.DeepEqual(t, ev.data, large)
	assert.DeepEqual(t, client.Stats().PacketsOut-before, uint64(5))

	assert.ErrorIs(t, cp.Send(make([]byte, MaxMessageSize+1)), ErrPayloadTooLarge)

	// Closing the client disconnects it from the server.
	assert.NilErr(t, client.Close())
	ev = assertEvent(t, serverEvents, EventDisconnect)
	assert.DeepEqual(t, ev.peer, sev.peer)
	assert.DeepEqual(t, server.PeerCount(), 0)
	assert.ErrorIs(t, cp.Send(msg), ErrPeerDisconnected)
}

// TestHostMaxPeers asserts hosts ignore handshakes once the max number of
// peers is reached.
func TestHostMaxPeers(t *testing.T) {
	t.Parallel()

	server := newTestHost(t, "SRVR", WithMaxPeers(1))
	client1 := newTestHost(t, "CLN1")
	client2 := newTestHost(t, "CLN2")
	serverEvents := runTestHost(t, server)
	client1Events := runTestHost(t, client1)
	client2Events := runTestHost(t, client2)

	_, err := client1.Connect(server.LocalAddr())
	assert.NilErr(t, err)
	assertEvent(t, serverEvents, EventConnect)
	assertEvent(t, client1Events, EventConnect)

	p2, err := client2.Connect(server.LocalAddr())
	assert.NilErr(t, err)
	assert.ChanNotWritten(t, client2Events, 200*time.Millisecond)
	assert.ChanNotWritten(t, serverEvents, 10*time.Millisecond)
	assert.BoolIs(t, p2.Connected(), false)

	// The client itself only allows a single peer.
	_, err = client2.Connect(netip.MustParseAddrPort("127.0.0.1:9"))
	assert.ErrorIs(t, err, ErrMaxPeers)
}

// TestHostServiceTimeout asserts Service returns after the timeout when
// nothing happens and fails after the host is closed.
func TestHostServiceTimeout(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, "HOST")
	start := time.Now()
	ev, err := h.Service(10 * time.Millisecond)
	assert.NilErr(t, err)
	assert.DeepEqual(t, ev.Type, EventNone)
	if d := time.Since(start); d > time.Second {
		t.Fatalf("service took too long: %s", d)
	}

	// Closing from another goroutine unblocks Service.
	errChan := make(chan error, 1)
	go func() {
		for {
			_, err := h.Service(time.Second)
			if err != nil {
				errChan <- err
				return
			}
		}
	}()
	time.Sleep(20 * time.Millisecond)
	assert.NilErr(t, h.Close())
	assert.ErrorIs(t, assert.ChanWritten(t, errChan), ErrHostClosed)

	_, err = h.Service(0)
	assert.ErrorIs(t, err, ErrHostClosed)
	_, err = h.Connect(netip.MustParseAddrPort("127.0.0.1:9"))
	assert.ErrorIs(t, err, ErrHostClosed)
}

// TestHostPeerTimeout asserts silent peers are disconnected.
func TestHostPeerTimeout(t *testing.T) {
	t.Parallel()

	server := newTestHost(t, "SRVR", WithPeerTimeout(100*time.Millisecond))
	client := newTestHost(t, "CLNT")
	serverEvents := runTestHost(t, server)
	clientEvents := runTestHost(t, client)

	_, err := client.Connect(server.LocalAddr())
	assert.NilErr(t, err)
	assertEvent(t, serverEvents, EventConnect)
	assertEvent(t, clientEvents, EventConnect)

	// The client does not send anything, so the server eventually drops it.
	assertEvent(t, serverEvents, EventDisconnect)
	assert.DeepEqual(t, server.PeerCount(), 0)
}

// TestHostPeerVanishes asserts a peer that disappears without saying
// goodbye frees its slot, so that a new peer may connect.
func TestHostPeerVanishes(t *testing.T) {
	t.Parallel()

	server := newTestHost(t, "SRVR", WithMaxPeers(1), WithPeerTimeout(200*time.Millisecond))
	client1 := newTestHost(t, "CLN1")
	client2 := newTestHost(t, "CLN2")
	serverEvents := runTestHost(t, server)
	client1Events := runTestHost(t, client1)
	client2Events := runTestHost(t, client2)

	_, err := client1.Connect(server.LocalAddr())
	assert.NilErr(t, err)
	sev := assertEvent(t, serverEvents, EventConnect)
	assertEvent(t, client1Events, EventConnect)

	// Close the socket without sending a bye.
	assert.NilErr(t, client1.conn.Close())

	p2, err := client2.Connect(server.LocalAddr())
	assert.NilErr(t, err)
	ev := assertEvent(t, serverEvents, EventDisconnect)
	assert.DeepEqual(t, ev.peer, sev.peer)
	ev = assertEvent(t, serverEvents, EventConnect)
	assert.DeepEqual(t, ev.peer.Addr(), client2.LocalAddr())
	assertEvent(t, client2Events, EventConnect)
	assert.BoolIs(t, p2.Connected(), true)
}

// TestHostPingKeepsPeers asserts idle peers ping each other so that neither
// end times out while both are alive.
func TestHostPingKeepsPeers(t *testing.T) {
	t.Parallel()

	server := newTestHost(t, "SRVR", WithPeerTimeout(100*time.Millisecond))
	client := newTestHost(t, "CLNT", WithPeerTimeout(100*time.Millisecond))
	serverEvents := runTestHost(t, server)
	clientEvents := runTestHost(t, client)

	cp, err := client.Connect(server.LocalAddr())
	assert.NilErr(t, err)
	assertEvent(t, serverEvents, EventConnect)
	assertEvent(t, clientEvents, EventConnect)

	// Nothing is sent by the application for several timeout periods.
	assert.ChanNotWritten(t, serverEvents, 500*time.Millisecond)
	assert.ChanNotWritten(t, clientEvents, 10*time.Millisecond)
	assert.BoolIs(t, cp.Connected(), true)
	assert.DeepEqual(t, server.PeerCount(), 1)
}

// rawPeer is a UDP socket that speaks the wire protocol by hand.
type rawPeer struct {
	t    testing.TB
	conn *net.UDPConn
	to   netip.AddrPort
	seq  uint16
	buf  []byte
}

func newRawPeer(t testing.TB, to netip.AddrPort) *rawPeer {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(netip.MustParseAddrPort("127.0.0.1:0")))
	assert.NilErr(t, err)
	t.Cleanup(func() { conn.Close() })
	return &rawPeer{t: t, conn: conn, to: to, buf: make([]byte, 2048)}
}

func (rp *rawPeer) write(b []byte) {
	rp.t.Helper()
	_, err := rp.conn.WriteToUDPAddrPort(b, rp.to)
	assert.NilErr(rp.t, err)
}

func (rp *rawPeer) writePacket(pt uint8, seq uint16, payload []byte) {
	rp.t.Helper()
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         true,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      uint32(seq),
			SSRC:           0x12345678,
		},
		Payload: payload,
	}
	b, err := pkt.Marshal()
	assert.NilErr(rp.t, err)
	rp.write(b)
}

func (rp *rawPeer) read() *rtp.Packet {
	rp.t.Helper()
	rp.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, _, err := rp.conn.ReadFromUDPAddrPort(rp.buf)
	assert.NilErr(rp.t, err)
	pkt := new(rtp.Packet)
	assert.NilErr(rp.t, pkt.Unmarshal(bytes.Clone(rp.buf[:n])))
	return pkt
}

// TestHostWireProtocol drives a host with hand-crafted datagrams.
func TestHostWireProtocol(t *testing.T) {
	t.Parallel()

	server := newTestHost(t, "SRVR")
	serverEvents := runTestHost(t, server)
	rp := newRawPeer(t, server.LocalAddr())

	// Data from unknown peers is ignored.
	rp.writePacket(ptData, 1, []byte("ignored"))
	assert.ChanNotWritten(t, serverEvents, 50*time.Millisecond)

	// Handshake.
	rp.writePacket(ptControl, 2, []byte{byte(ctrlHello)})
	assertEvent(t, serverEvents, EventConnect)
	ack := rp.read()
	assert.DeepEqual(t, ack.PayloadType, uint8(ptControl))
	assert.DeepEqual(t, ack.Payload, []byte{byte(ctrlHelloAck)})

	// Duplicated datagrams are only delivered once.
	rp.writePacket(ptData, 10, []byte("audio"))
	rp.writePacket(ptData, 10, []byte("audio"))
	rp.writePacket(ptData, 11, []byte("more"))
	ev := assertEvent(t, serverEvents, EventReceive)
	assert.DeepEqual(t, ev.data, []byte("audio"))
	ev = assertEvent(t, serverEvents, EventReceive)
	assert.DeepEqual(t, ev.data, []byte("more"))
	assert.DeepEqual(t, server.Stats().Duplicates, uint64(1))

	// Garbage is counted and discarded.
	invalidBefore := server.Stats().Invalid
	rp.write([]byte{0xff, 0x01, 0x02})
	rp.writePacket(42, 12, []byte("unknown payload type"))
	assert.ChanNotWritten(t, serverEvents, 50*time.Millisecond)
	assert.Eventually(t, func() bool {
		return server.Stats().Invalid == invalidBefore+2
	})

	// The server can send data back.
	ev.peer.Send([]byte("back"))
	pkt := rp.read()
	assert.DeepEqual(t, pkt.PayloadType, uint8(ptData))
	assert.DeepEqual(t, pkt.Payload, []byte("back"))
	assert.BoolIs(t, pkt.Marker, true)

	// Bye.
	rp.writePacket(ptControl, 13, []byte{byte(ctrlBye)})
	assertEvent(t, serverEvents, EventDisconnect)
}

package transport

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/slog"
	"github.com/pion/rtp"
	"github.com/puzpuzpuz/xsync/v3"
)

// config determines a host config.
type config struct {
	bindAddr      string
	maxPeers      int
	mtu           int
	helloInterval time.Duration
	peerTimeout   time.Duration
	log           slog.Logger
}

func defaultConfig() config {
	return config{
		bindAddr:      ":0",
		maxPeers:      1,
		mtu:           1200,
		helloInterval: 250 * time.Millisecond,
		log:           slog.Disabled,
	}
}

// Option is a functional host config option.
type Option func(c *config)

// WithBindAddr sets the local address to bind to. Defaults to a random port
// on all interfaces.
func WithBindAddr(addr string) Option {
	return func(c *config) {
		c.bindAddr = addr
	}
}

// WithMaxPeers sets the max number of simultaneous peers. Handshakes from
// new peers are ignored once this is reached. Defaults to 1.
func WithMaxPeers(n int) Option {
	return func(c *config) {
		c.maxPeers = n
	}
}

// WithMTU sets the max size of datagrams sent by the host. Larger messages
// are fragmented.
func WithMTU(mtu int) Option {
	return func(c *config) {
		c.mtu = mtu
	}
}

// WithHandshakeRetryInterval sets the interval between hello messages sent
// to a peer that has not yet answered.
func WithHandshakeRetryInterval(d time.Duration) Option {
	return func(c *config) {
		c.helloInterval = d
	}
}

// WithPeerTimeout sets the duration after which a peer that has not sent
// anything is considered disconnected. While the timeout is enabled, pings
// are sent to idle peers so that they do not time out this host. Zero (the
// default) disables peer timeouts.
func WithPeerTimeout(d time.Duration) Option {
	return func(c *config) {
		c.peerTimeout = d
	}
}

// WithLogger sets the logger to use in the host.
func WithLogger(log slog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// Host is a datagram endpoint that exchanges messages with a small number of
// peers. Messages are framed as RTP packets.
//
// Events (new peers, received messages, disconnections) are only generated
// by calling Service, which must be done from a single goroutine. Peers may
// be sent messages from any goroutine.
type Host struct {
	cfg   config
	log   slog.Logger
	conn  *net.UDPConn
	ssrc  uint32
	peers *xsync.MapOf[netip.AddrPort, *Peer]
	stats stats

	// pending events. Only accessed from Service.
	pending    []Event
	pendingIdx int

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewHost binds a new host.
func NewHost(opts ...Option) (*Host, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.mtu < minMTU || cfg.mtu > MaxMessageSize {
		return nil, fmt.Errorf("mtu %d is outside the allowed range [%d,%d]",
			cfg.mtu, minMTU, MaxMessageSize)
	}
	if cfg.maxPeers < 1 {
		return nil, errors.New("max peers must be positive")
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.bindAddr)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve bind address %q: %w",
			cfg.bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to bind to %s: %w", addr, err)
	}

	h := &Host{
		cfg:   cfg,
		log:   cfg.log,
		conn:  conn,
		ssrc:  rand.Uint32(),
		peers: xsync.NewMapOf[netip.AddrPort, *Peer](),
	}
	h.log.Debugf("Bound host to %s (ssrc %08x)", conn.LocalAddr(), h.ssrc)
	return h, nil
}

// LocalAddr returns the address the host is bound to.
func (h *Host) LocalAddr() netip.AddrPort {
	return h.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Stats returns the current statistics of the host.
func (h *Host) Stats() Stats {
	return h.stats.snapshot()
}

// PeerCount returns the number of known peers (connected or connecting).
func (h *Host) PeerCount() int {
	return h.peers.Size()
}

// normalizeAddr unmaps IPv4-mapped IPv6 addresses so that the same remote
// endpoint always maps to the same peer.
func normalizeAddr(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}

// Connect starts connecting to the host at the given address. The returned
// peer may only be sent messages after an EventConnect for it is returned by
// Service.
func (h *Host) Connect(addr netip.AddrPort) (*Peer, error) {
	if h.closed.Load() {
		return nil, ErrHostClosed
	}
	if !addr.IsValid() {
		return nil, fmt.Errorf("invalid address %s", addr)
	}
	addr = normalizeAddr(addr)

	if p, ok := h.peers.Load(addr); ok {
		return p, nil
	}
	if h.peers.Size() >= h.cfg.maxPeers {
		return nil, ErrMaxPeers
	}

	p, loaded := h.peers.LoadOrStore(addr, newPeer(h, addr, peerConnecting))
	if loaded {
		return p, nil
	}

	h.log.Debugf("Connecting to %s", addr)
	p.lastHello.Store(time.Now().UnixNano())
	if err := p.sendControl(ctrlHello); err != nil {
		h.log.Debugf("Unable to send hello to %s: %v", addr, err)
	}
	return p, nil
}

// Service waits up to timeout for the next event. Returns an event of type
// EventNone if nothing happened within the timeout. Returns ErrHostClosed
// once the host is closed.
//
// Service also drives the connection handshake and the peer timeouts, so it
// must be called periodically.
func (h *Host) Service(timeout time.Duration) (Event, error) {
	if h.closed.Load() {
		return Event{}, ErrHostClosed
	}

	h.servicePeers(time.Now())
	if ev, ok := h.nextEvent(); ok {
		return ev, nil
	}

	deadline := time.Now().Add(timeout)
	if err := h.conn.SetReadDeadline(deadline); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return Event{}, ErrHostClosed
		}
		return Event{}, err
	}

	for {
		buf := bufPool.Get().(*[]byte)
		n, from, err := h.conn.ReadFromUDPAddrPort(*buf)
		if err != nil {
			bufPool.Put(buf)
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return Event{Type: EventNone}, nil
			}
			if errors.Is(err, net.ErrClosed) {
				return Event{}, ErrHostClosed
			}
			return Event{}, err
		}

		h.handleDatagram(buf, n, normalizeAddr(from))
		if ev, ok := h.nextEvent(); ok {
			return ev, nil
		}
	}
}

// Close closes the host. Connected peers are notified.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.peers.Range(func(addr netip.AddrPort, p *Peer) bool {
			if p.Connected() {
				if err := p.sendControl(ctrlBye); err != nil {
					h.log.Debugf("Unable to send bye to %s: %v", addr, err)
				}
			}
			p.state.Store(int32(peerDisconnected))
			return true
		})
		h.closeErr = h.conn.Close()
	})
	return h.closeErr
}

func (h *Host) pushEvent(ev Event) {
	h.pending = append(h.pending, ev)
}

func (h *Host) nextEvent() (Event, bool) {
	if h.pendingIdx >= len(h.pending) {
		return Event{}, false
	}
	ev := h.pending[h.pendingIdx]
	h.pending[h.pendingIdx] = Event{}
	h.pendingIdx++
	if h.pendingIdx == len(h.pending) {
		h.pending = h.pending[:0]
		h.pendingIdx = 0
	}
	return ev, true
}

// writePacket marshals pkt into buf and sends it to addr.
func (h *Host) writePacket(pkt *rtp.Packet, buf []byte, addr netip.AddrPort) error {
	n, err := pkt.MarshalTo(buf)
	if err != nil {
		return err
	}
	if _, err := h.conn.WriteToUDPAddrPort(buf[:n], addr); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrHostClosed
		}
		return err
	}
	h.stats.pktsOut.Add(1)
	h.stats.bytesOut.Add(uint64(n))
	return nil
}

// servicePeers resends pending handshakes and times out silent peers.
func (h *Host) servicePeers(now time.Time) {
	h.peers.Range(func(addr netip.AddrPort, p *Peer) bool {
		switch peerState(p.state.Load()) {
		case peerConnecting:
			last := time.Unix(0, p.lastHello.Load())
			if now.Sub(last) < h.cfg.helloInterval {
				break
			}
			p.lastHello.Store(now.UnixNano())
			h.log.Tracef("Resending hello to %s", addr)
			if err := p.sendControl(ctrlHello); err != nil {
				h.log.Debugf("Unable to send hello to %s: %v", addr, err)
			}

		case peerConnected:
			if h.cfg.peerTimeout <= 0 {
				break
			}
			if now.Sub(p.lastRecv) > h.cfg.peerTimeout {
				h.log.Infof("Peer %s timed out", addr)
				h.disconnect(p)
				break
			}
			lastSend := time.Unix(0, p.lastSend.Load())
			if now.Sub(lastSend) >= h.cfg.peerTimeout/4 {
				if err := p.sendControl(ctrlPing); err != nil {
					h.log.Debugf("Unable to ping %s: %v", addr, err)
				}
			}
		}
		return true
	})
}

// markConnected completes the handshake with a peer.
func (h *Host) markConnected(p *Peer, ssrc uint32) {
	if !p.state.CompareAndSwap(int32(peerConnecting), int32(peerConnected)) {
		return
	}
	p.resetRecv(ssrc)
	h.log.Infof("Connected to peer %s", p.addr)
	h.pushEvent(Event{Type: EventConnect, Peer: p})
}

func (h *Host) disconnect(p *Peer) {
	p.state.Store(int32(peerDisconnected))
	p.asm.reset()
	h.peers.Delete(p.addr)
	h.pushEvent(Event{Type: EventDisconnect, Peer: p})
}

func (h *Host) handleDatagram(buf *[]byte, n int, from netip.AddrPort) {
	h.stats.pktsIn.Add(1)
	h.stats.bytesIn.Add(uint64(n))

	var pkt rtp.Packet
	if err := pkt.Unmarshal((*buf)[:n]); err != nil || pkt.Version != 2 {
		h.log.Tracef("Invalid datagram from %s", from)
		h.stats.invalid.Add(1)
		bufPool.Put(buf)
		return
	}

	switch pkt.PayloadType {
	case ptControl:
		h.handleControl(&pkt, from)
		bufPool.Put(buf)
	case ptData:
		h.handleData(&pkt, buf, from)
	default:
		h.stats.invalid.Add(1)
		bufPool.Put(buf)
	}
}

func (h *Host) handleControl(pkt *rtp.Packet, from netip.AddrPort) {
	if len(pkt.Payload) != 1 {
		h.stats.invalid.Add(1)
		return
	}
	kind := controlKind(pkt.Payload[0])
	p, known := h.peers.Load(from)
	h.log.Tracef("Received %s from %s", kind, from)

	switch kind {
	case ctrlHello:
		if !known {
			if h.peers.Size() >= h.cfg.maxPeers {
				h.log.Debugf("Ignoring hello from %s: max peers reached", from)
				return
			}
			p = newPeer(h, from, peerConnected)
			p.remoteSSRC = pkt.SSRC
			h.peers.Store(from, p)
			h.log.Infof("Accepted peer %s", from)
			h.pushEvent(Event{Type: EventConnect, Peer: p})
		} else if peerState(p.state.Load()) == peerConnecting {
			// Both ends connecting to each other.
			h.markConnected(p, pkt.SSRC)
		} else if p.remoteSSRC != pkt.SSRC {
			h.log.Debugf("Peer %s restarted", from)
			p.resetRecv(pkt.SSRC)
		}

		// Always ack, as previous acks may have been lost.
		p.lastRecv = time.Now()
		if err := p.sendControl(ctrlHelloAck); err != nil {
			h.log.Debugf("Unable to ack hello from %s: %v", from, err)
		}

	case ctrlHelloAck:
		if !known {
			h.stats.invalid.Add(1)
			return
		}
		p.lastRecv = time.Now()
		h.markConnected(p, pkt.SSRC)

	case ctrlPing:
		if !known {
			h.stats.invalid.Add(1)
			return
		}
		p.lastRecv = time.Now()
		h.markConnected(p, pkt.SSRC)

	case ctrlBye:
		if !known {
			return
		}
		h.log.Infof("Peer %s disconnected", from)
		h.disconnect(p)

	default:
		h.stats.invalid.Add(1)
	}
}

func (h *Host) handleData(pkt *rtp.Packet, buf *[]byte, from netip.AddrPort) {
	p, ok := h.peers.Load(from)
	if !ok || peerState(p.state.Load()) == peerDisconnected {
		h.stats.invalid.Add(1)
		bufPool.Put(buf)
		return
	}

	// Data from a peer we're still connecting to means our hello was
	// accepted and the ack was lost.
	h.markConnected(p, pkt.SSRC)
	if pkt.SSRC != p.remoteSSRC {
		h.log.Debugf("Peer %s changed stream source", from)
		p.resetRecv(pkt.SSRC)
	}
	p.lastRecv = time.Now()

	if !p.seqs.MayAccept(pkt.SequenceNumber) {
		h.stats.duplicates.Add(1)
		bufPool.Put(buf)
		return
	}

	idx, count, err := fragInfo(&pkt.Header)
	if err != nil {
		h.stats.invalid.Add(1)
		bufPool.Put(buf)
		return
	}

	if count == 1 {
		h.stats.msgsIn.Add(1)
		h.pushEvent(Event{
			Type:   EventReceive,
			Peer:   p,
			Packet: &Packet{Data: pkt.Payload, buf: buf},
		})
		return
	}

	msg, dropped, err := p.asm.add(pkt.Timestamp, idx, count, buf, pkt.Payload)
	if dropped {
		h.stats.incomplete.Add(1)
	}
	if err != nil {
		h.stats.invalid.Add(1)
		return
	}
	if msg != nil {
		h.stats.msgsIn.Add(1)
		h.pushEvent(Event{Type: EventReceive, Peer: p, Packet: msg})
	}
}

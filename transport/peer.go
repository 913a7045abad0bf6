package transport

import (
	"math/rand/v2"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/companyzero/voicerelay/transport/internal/seqtracker"
	"github.com/pion/rtp"
)

type peerState int32

const (
	peerConnecting peerState = iota
	peerConnected
	peerDisconnected
)

func (s peerState) String() string {
	switch s {
	case peerConnecting:
		return "connecting"
	case peerConnected:
		return "connected"
	case peerDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Peer is a remote endpoint of a host.
type Peer struct {
	host  *Host
	addr  netip.AddrPort
	state atomic.Int32

	// Send side. Guarded by sendMtx since messages may be sent from any
	// goroutine.
	sendMtx sync.Mutex
	seq     uint16
	ts      uint32
	sendBuf []byte

	// Receive side. Only accessed from Host.Service.
	seqs       seqtracker.Tracker
	asm        assembler
	remoteSSRC uint32
	lastRecv   time.Time

	// lastHello is the unix nano time of the last hello sent.
	lastHello atomic.Int64

	// lastSend is the unix nano time of the last packet sent.
	lastSend atomic.Int64
}

func newPeer(h *Host, addr netip.AddrPort, state peerState) *Peer {
	p := &Peer{
		host:     h,
		addr:     addr,
		seq:      uint16(rand.Uint32()),
		ts:       rand.Uint32(),
		sendBuf:  make([]byte, h.cfg.mtu),
		lastRecv: time.Now(),
	}
	p.state.Store(int32(state))
	p.lastSend.Store(time.Now().UnixNano())
	return p
}

// Addr is the remote address of the peer.
func (p *Peer) Addr() netip.AddrPort {
	return p.addr
}

// Connected returns true if the connection handshake with the peer
// completed and the peer has not disconnected.
func (p *Peer) Connected() bool {
	return peerState(p.state.Load()) == peerConnected
}

func (p *Peer) String() string {
	return p.addr.String()
}

// Send sends a message to the peer. Delivery is unreliable: the message may
// be lost, duplicated or reordered (duplicates are discarded by the remote
// host). Messages larger than what fits in a single datagram are
// fragmented. Send does not wait for the remote host.
func (p *Peer) Send(data []byte) error {
	if len(data) > MaxMessageSize {
		return ErrPayloadTooLarge
	}
	switch peerState(p.state.Load()) {
	case peerConnecting:
		return ErrPeerNotConnected
	case peerDisconnected:
		return ErrPeerDisconnected
	}

	h := p.host
	fragSize := h.cfg.mtu - rtpHeaderSize - fragExtSize
	count := (len(data) + fragSize - 1) / fragSize
	if count == 0 {
		count = 1
	}

	p.sendMtx.Lock()
	defer p.sendMtx.Unlock()

	p.ts++
	for i := 0; i < count; i++ {
		end := min((i+1)*fragSize, len(data))
		pkt := rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == count-1,
				PayloadType:    ptData,
				SequenceNumber: p.seq,
				Timestamp:      p.ts,
				SSRC:           h.ssrc,
			},
			Payload: data[i*fragSize : end],
		}
		if count > 1 {
			err := pkt.Header.SetExtension(fragExtID, []byte{byte(i), byte(count)})
			if err != nil {
				return err
			}
		}
		p.seq++

		if err := h.writePacket(&pkt, p.sendBuf, p.addr); err != nil {
			return err
		}
	}
	p.lastSend.Store(time.Now().UnixNano())
	h.stats.msgsOut.Add(1)
	return nil
}

// sendControl sends a control packet to the peer.
func (p *Peer) sendControl(kind controlKind) error {
	p.sendMtx.Lock()
	defer p.sendMtx.Unlock()

	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         true,
			PayloadType:    ptControl,
			SequenceNumber: p.seq,
			Timestamp:      p.ts,
			SSRC:           p.host.ssrc,
		},
		Payload: []byte{byte(kind)},
	}
	p.seq++
	p.lastSend.Store(time.Now().UnixNano())
	return p.host.writePacket(&pkt, p.sendBuf, p.addr)
}

// resetRecv clears the receive state after the remote end restarted.
func (p *Peer) resetRecv(ssrc uint32) {
	p.seqs.Reset()
	p.asm.reset()
	p.remoteSSRC = ssrc
}

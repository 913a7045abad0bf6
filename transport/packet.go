package transport

import (
	"sync"

	"github.com/pion/rtp"
)

const (
	// ptData is the RTP payload type of application messages.
	ptData = 111

	// ptControl is the RTP payload type of connection control packets.
	ptControl = 127

	// fragExtID is the id of the RTP header extension that carries the
	// fragment index and count of fragmented messages.
	fragExtID = 1

	// rtpHeaderSize is the size of the fixed RTP header.
	rtpHeaderSize = 12

	// fragExtSize is the size of the one-byte header extension block
	// carrying fragmentation info (padded to 32 bits).
	fragExtSize = 8

	// MaxMessageSize is the largest message that may be sent through a
	// peer.
	MaxMessageSize = 16384

	minMTU = 256
)

type controlKind byte

const (
	ctrlHello    controlKind = 1
	ctrlHelloAck controlKind = 2
	ctrlBye      controlKind = 3
	ctrlPing     controlKind = 4
)

func (k controlKind) String() string {
	switch k {
	case ctrlHello:
		return "hello"
	case ctrlHelloAck:
		return "helloack"
	case ctrlBye:
		return "bye"
	case ctrlPing:
		return "ping"
	default:
		return "unknown"
	}
}

// bufPool holds buffers used both for reading datagrams and for assembling
// fragmented messages.
var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, MaxMessageSize)
		return &b
	},
}

// Packet is a message received from a peer.
type Packet struct {
	// Data is the message payload. It is only valid until Release is
	// called.
	Data []byte

	buf *[]byte
}

// Release returns the packet's buffer to the host. The packet must not be
// used afterwards.
func (pkt *Packet) Release() {
	if pkt == nil || pkt.buf == nil {
		return
	}
	bufPool.Put(pkt.buf)
	pkt.buf = nil
	pkt.Data = nil
}

// fragInfo decodes the fragmentation extension of a data packet. Packets
// without the extension are complete messages.
func fragInfo(h *rtp.Header) (idx, count int, err error) {
	ext := h.GetExtension(fragExtID)
	if ext == nil {
		return 0, 1, nil
	}
	if len(ext) != 2 {
		return 0, 0, errInvalidPacket
	}
	idx, count = int(ext[0]), int(ext[1])
	if count < 1 || idx >= count {
		return 0, 0, errInvalidPacket
	}
	if h.Marker != (idx == count-1) {
		return 0, 0, errInvalidPacket
	}
	return idx, count, nil
}

// fragment is a received fragment of a message. data aliases buf.
type fragment struct {
	buf  *[]byte
	data []byte
}

// assembler rebuilds fragmented messages. Only the most recent message (by
// timestamp) is tracked: fragments of older messages are discarded.
type assembler struct {
	ts    uint32
	count int
	got   int
	frags []fragment
}

func (a *assembler) reset() {
	for i := range a.frags {
		if a.frags[i].buf != nil {
			bufPool.Put(a.frags[i].buf)
		}
		a.frags[i] = fragment{}
	}
	a.frags = a.frags[:0]
	a.count, a.got = 0, 0
}

// add adds a fragment. Ownership of buf passes to the assembler. Returns the
// full message once every fragment was received, and whether an incomplete
// message was dropped to make room for this one.
func (a *assembler) add(ts uint32, idx, count int, buf *[]byte, data []byte) (msg *Packet, dropped bool, err error) {
	if a.count > 0 && ts != a.ts {
		if int32(ts-a.ts) < 0 {
			// Fragment of an older message.
			bufPool.Put(buf)
			return nil, false, nil
		}
		a.reset()
		dropped = true
	}

	if a.count == 0 {
		a.ts, a.count = ts, count
		for i := 0; i < count; i++ {
			a.frags = append(a.frags, fragment{})
		}
	} else if count != a.count {
		bufPool.Put(buf)
		return nil, dropped, errInvalidPacket
	}

	if a.frags[idx].buf != nil {
		// Duplicate fragment.
		bufPool.Put(buf)
		return nil, dropped, nil
	}
	a.frags[idx] = fragment{buf: buf, data: data}
	a.got++
	if a.got < a.count {
		return nil, dropped, nil
	}

	// Complete.
	out := bufPool.Get().(*[]byte)
	var n int
	for i := range a.frags {
		if n+len(a.frags[i].data) > len(*out) {
			bufPool.Put(out)
			a.reset()
			return nil, dropped, errInvalidPacket
		}
		n += copy((*out)[n:], a.frags[i].data)
	}
	a.reset()
	return &Packet{Data: (*out)[:n], buf: out}, dropped, nil
}

package voicechat

import (
	"errors"

	"github.com/companyzero/voicerelay/transport"
)

// captureFrame is called by the capture device with every captured frame.
// The frame is encoded and sent to the remote peer, if there is one. Nothing
// captured before a peer exists is buffered.
func (s *Session) captureFrame(samples []float32) {
	s.stats.framesCaptured.Add(1)

	n, err := s.enc.Encode(samples, s.encodeBuf)
	if err != nil {
		s.stats.encodeErrs.Add(1)
		if addDebugTrace {
			s.log.Tracef("Unable to encode frame: %v", err)
		}
		return
	}
	if n <= 0 {
		return
	}

	p := s.peer.Load()
	if p == nil {
		s.stats.noPeerDrops.Add(1)
		return
	}

	err = p.Send(s.encodeBuf[:n])
	switch {
	case err == nil:
		s.stats.framesSent.Add(1)
	case errors.Is(err, transport.ErrPeerNotConnected),
		errors.Is(err, transport.ErrPeerDisconnected):
		s.stats.noPeerDrops.Add(1)
	default:
		s.stats.sendErrs.Add(1)
		if addDebugTrace {
			s.log.Tracef("Unable to send frame to %s: %v", p, err)
		}
	}
}

package voicechat

import (
	"context"
	"errors"
	"time"

	"github.com/companyzero/voicerelay/internal/audio"
	"github.com/companyzero/voicerelay/transport"
)

// receiveLoop services the network host until ctx is canceled. Received
// audio is decoded into the playback queue.
func (s *Session) receiveLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		ev, err := s.host.Service(pollTimeout)
		if errors.Is(err, transport.ErrHostClosed) {
			s.log.Debugf("Network host closed")
			return nil
		}
		if err != nil {
			s.log.Warnf("Network error: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(pollTimeout):
			}
			continue
		}

		switch ev.Type {
		case transport.EventConnect:
			s.handleConnect(ev.Peer)
		case transport.EventReceive:
			s.handleReceive(ev.Packet)
		case transport.EventDisconnect:
			s.handleDisconnect(ev.Peer)
		}
	}
	return ctx.Err()
}

func (s *Session) handleConnect(p *transport.Peer) {
	if s.role == RoleClient {
		s.log.Infof("Connected to server %s", p)
		return
	}

	if s.peer.CompareAndSwap(nil, p) {
		s.log.Infof("Peer %s connected", p)
		return
	}
	s.log.Infof("Peer %s connected but audio is only sent to %s", p,
		s.peer.Load())
}

// handleDisconnect frees the server's send target, so that the next client
// to connect takes its place.
func (s *Session) handleDisconnect(p *transport.Peer) {
	if s.role == RoleServer && s.peer.CompareAndSwap(p, nil) {
		s.log.Infof("Peer %s disconnected, waiting for a new client", p)
		return
	}
	s.log.Infof("Peer %s disconnected", p)
}

// handleReceive decodes a received packet into the playback queue. Packets
// that fail to decode are dropped.
func (s *Session) handleReceive(pkt *transport.Packet) {
	defer pkt.Release()

	frame := s.getFrame()
	n, err := s.dec.Decode(pkt.Data, frame)
	if err != nil || n <= 0 {
		s.stats.decodeErrs.Add(1)
		if addDebugTrace {
			s.log.Tracef("Dropping undecodable payload of %d bytes: %v",
				len(pkt.Data), err)
		}
		s.putFrame(frame)
		return
	}
	if n < audio.FrameSize {
		clear(frame[n*audio.Channels:])
	}

	s.stats.framesRecv.Add(1)
	if dropped := s.queue.Push(frame); dropped != nil {
		s.stats.overflows.Add(1)
		s.putFrame(dropped)
		if addDebugTrace {
			s.log.Tracef("Playback queue full, dropped oldest frame")
		}
	}
}

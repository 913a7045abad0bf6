package voicechat

import "github.com/companyzero/voicerelay/internal/audio"

// playbackFrame is called by the playback device every time it needs a new
// frame. The next decoded frame is scaled by the current gain. Silence is
// played when no frame is available.
func (s *Session) playbackFrame(out []float32) {
	frame, ok := s.queue.Pop()
	if !ok {
		clear(out)
		s.stats.underruns.Add(1)
		return
	}

	audio.Apply(s.volume.Gain(), frame, out)
	s.putFrame(frame)
	s.stats.framesPlayed.Add(1)
}

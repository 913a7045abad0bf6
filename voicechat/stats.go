package voicechat

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/companyzero/voicerelay/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats are the cumulative statistics of a session.
type Stats struct {
	FramesCaptured uint64
	FramesSent     uint64
	FramesReceived uint64
	FramesPlayed   uint64

	// Underruns is the number of playback frames filled with silence
	// because no decoded frame was available.
	Underruns uint64

	// Overflows is the number of decoded frames dropped because the
	// playback queue was full.
	Overflows uint64

	// NoPeerDrops is the number of captured frames dropped because there
	// was no connected peer to send them to.
	NoPeerDrops uint64

	EncodeErrors uint64
	DecodeErrors uint64
	SendErrors   uint64

	Transport transport.Stats
}

// stats holds session statistics. Counters are updated from the audio
// callbacks, so they are plain atomics exported to prometheus as functions.
type stats struct {
	reg *prometheus.Registry

	framesCaptured atomic.Uint64
	framesSent     atomic.Uint64
	framesRecv     atomic.Uint64
	framesPlayed   atomic.Uint64
	underruns      atomic.Uint64
	overflows      atomic.Uint64
	noPeerDrops    atomic.Uint64
	encodeErrs     atomic.Uint64
	decodeErrs     atomic.Uint64
	sendErrs       atomic.Uint64
}

func newStats(s *Session) *stats {
	st := &stats{reg: prometheus.NewRegistry()}
	reg := st.reg
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	counter := func(name, help string, v *atomic.Uint64) {
		f.NewCounterFunc(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, func() float64 { return float64(v.Load()) })
	}
	counter("voice_frames_captured", "Total number of captured frames", &st.framesCaptured)
	counter("voice_frames_sent", "Total number of frames sent to the peer", &st.framesSent)
	counter("voice_frames_received", "Total number of frames received and decoded", &st.framesRecv)
	counter("voice_frames_played", "Total number of received frames played back", &st.framesPlayed)
	counter("voice_playback_underruns", "Count of playback frames filled with silence", &st.underruns)
	counter("voice_playback_overflows", "Count of decoded frames dropped due to a full playback queue", &st.overflows)
	counter("voice_nopeer_drops", "Count of captured frames dropped due to no connected peer", &st.noPeerDrops)
	counter("voice_encode_errors", "Count of frames that failed to encode", &st.encodeErrs)
	counter("voice_decode_errors", "Count of received payloads that failed to decode", &st.decodeErrs)
	counter("voice_send_errors", "Count of frames that failed to be sent", &st.sendErrs)

	hostCounter := func(name, help string, get func(ts transport.Stats) uint64) {
		f.NewCounterFunc(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, func() float64 { return float64(get(s.host.Stats())) })
	}
	hostCounter("voice_net_bytes_read", "Total bytes read", func(ts transport.Stats) uint64 { return ts.BytesIn })
	hostCounter("voice_net_bytes_written", "Total bytes written", func(ts transport.Stats) uint64 { return ts.BytesOut })
	hostCounter("voice_net_packets_read", "Total number of packets read", func(ts transport.Stats) uint64 { return ts.PacketsIn })
	hostCounter("voice_net_packets_written", "Total number of packets written", func(ts transport.Stats) uint64 { return ts.PacketsOut })
	hostCounter("voice_net_invalid_packets", "Count of malformed or unexpected packets", func(ts transport.Stats) uint64 { return ts.Invalid })
	hostCounter("voice_net_duplicate_packets", "Count of duplicated or stale packets", func(ts transport.Stats) uint64 { return ts.Duplicates })
	hostCounter("voice_net_incomplete_messages", "Count of fragmented messages dropped before completion", func(ts transport.Stats) uint64 { return ts.Incomplete })

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "voice_playback_queue_len",
		Help: "Number of decoded frames waiting for playback",
	}, func() float64 { return float64(s.queue.Len()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "voice_playback_gain",
		Help: "Current playback gain",
	}, s.volume.Gain)

	return st
}

// Stats returns the current statistics of the session.
func (s *Session) Stats() Stats {
	st := s.stats
	return Stats{
		FramesCaptured: st.framesCaptured.Load(),
		FramesSent:     st.framesSent.Load(),
		FramesReceived: st.framesRecv.Load(),
		FramesPlayed:   st.framesPlayed.Load(),
		Underruns:      st.underruns.Load(),
		Overflows:      st.overflows.Load(),
		NoPeerDrops:    st.noPeerDrops.Load(),
		EncodeErrors:   st.encodeErrs.Load(),
		DecodeErrors:   st.decodeErrs.Load(),
		SendErrors:     st.sendErrs.Load(),
		Transport:      s.host.Stats(),
	}
}

// runReportStatsLoop runs a loop to report basic stats.
func (s *Session) runReportStatsLoop(ctx context.Context, reportInterval time.Duration) error {
	if reportInterval <= 0 {
		s.log.Debugf("Logging of stats is disabled")
		return nil
	}

	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	var tickTime, lastTick time.Time
	tickTime = time.Now()

	s.log.Debugf("Running report stats loop with interval %s", reportInterval)

	last := s.Stats()
	for {
		lastTick = tickTime

		select {
		case <-ctx.Done():
			return ctx.Err()
		case tickTime = <-ticker.C:
		}

		cur := s.Stats()
		bytesIn := cur.Transport.BytesIn - last.Transport.BytesIn
		bytesOut := cur.Transport.BytesOut - last.Transport.BytesOut
		sent := cur.FramesSent - last.FramesSent
		played := cur.FramesPlayed - last.FramesPlayed
		underruns := cur.Underruns - last.Underruns
		overflows := cur.Overflows - last.Overflows
		last = cur

		if bytesIn|bytesOut|sent|played == 0 {
			// Skip if there are no stats.
			continue
		}

		dt := tickTime.Sub(lastTick)
		if dt == 0 {
			continue // Should not happen.
		}
		dts := float64(dt.Milliseconds()) / 1000

		s.log.Infof("Stats for the last %s - "+
			"IN: %8s (%7sB/sec) OUT: %8s (%7sB/sec) ; "+
			"frames sent %s played %s, underruns %s overflows %s, queue %d",
			dt.Round(time.Millisecond),
			hbytes(bytesIn), hrate(float64(bytesIn)/dts),
			hbytes(bytesOut), hrate(float64(bytesOut)/dts),
			hcount(sent), hcount(played), hcount(underruns),
			hcount(overflows), s.queue.Len(),
		)
	}
}

// runPrometheusListener runs the Prometheus metrics endpoint in the given
// address. Failing to listen does not interrupt the session.
func (s *Session) runPrometheusListener(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	promHandler := promhttp.InstrumentMetricHandler(
		s.stats.reg, promhttp.HandlerFor(s.stats.reg, promhttp.HandlerOpts{}),
	)
	mux.Handle("/metrics", promHandler)
	hs := http.Server{
		Addr:        addr,
		BaseContext: func(net.Listener) context.Context { return ctx },
		Handler:     mux,
	}
	s.log.Infof("Exposing prometheus metrics on %s", addr)
	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hs.Shutdown(ctx)
	}()
	err := hs.ListenAndServe()
	if err != nil && ctx.Err() == nil {
		s.log.Errorf("Prometheus listener failed: %v", err)
	}
	return nil
}

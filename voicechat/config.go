package voicechat

import (
	"net/netip"
	"time"

	"github.com/companyzero/voicerelay/internal/audio"
	"github.com/companyzero/voicerelay/transport"
	"github.com/decred/slog"
)

// pollTimeout is the max amount of time the receive loop blocks waiting for
// network events before checking whether it should stop.
const pollTimeout = 10 * time.Millisecond

// defaultPeerTimeout is the time after which a silent peer is considered
// gone.
const defaultPeerTimeout = 5 * time.Second

// config determines a session config.
type config struct {
	log            slog.Logger
	listenAddr     string
	remoteAddr     netip.AddrPort
	codec          string
	bitrate        int
	queueFrames    int
	captureDevice  audio.DeviceID
	playbackDevice audio.DeviceID
	distance       float64
	attenuation    audio.Attenuation
	newAudioCtx    func() (audio.Context, error)
	hostOpts       []transport.Option
	peerTimeout    time.Duration

	promAddr            string
	statsReportInterval time.Duration
}

func defaultConfig() config {
	return config{
		log:         slog.Disabled,
		listenAddr:  ":0",
		codec:       audio.CodecOpus,
		bitrate:     audio.EncodeBitRate,
		queueFrames: audio.DefaultQueueFrames,
		attenuation: audio.DefaultAttenuation,
		newAudioCtx: audio.NewContext,
		peerTimeout: defaultPeerTimeout,
	}
}

// Option is a functional session config option.
type Option func(c *config)

// WithLogger sets the logger to use in the session.
func WithLogger(log slog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithListenAddr sets the local address to bind to. Servers should bind to a
// well known port. Clients default to a random port.
func WithListenAddr(addr string) Option {
	return func(c *config) {
		c.listenAddr = addr
	}
}

// WithRemoteAddr sets the address of the server a client connects to.
func WithRemoteAddr(addr netip.AddrPort) Option {
	return func(c *config) {
		c.remoteAddr = addr
	}
}

// WithCodec sets the name of the audio codec. Both ends must use the same
// codec.
func WithCodec(name string) Option {
	return func(c *config) {
		c.codec = name
	}
}

// WithBitrate sets the target encoding bitrate.
func WithBitrate(bitrate int) Option {
	return func(c *config) {
		c.bitrate = bitrate
	}
}

// WithQueueFrames sets the max number of decoded frames waiting for
// playback.
func WithQueueFrames(n int) Option {
	return func(c *config) {
		c.queueFrames = n
	}
}

// WithCaptureDevice sets the capture device. Defaults to the system default.
func WithCaptureDevice(id audio.DeviceID) Option {
	return func(c *config) {
		c.captureDevice = id
	}
}

// WithPlaybackDevice sets the playback device. Defaults to the system
// default.
func WithPlaybackDevice(id audio.DeviceID) Option {
	return func(c *config) {
		c.playbackDevice = id
	}
}

// WithDistance sets the initial distance to the remote speaker.
func WithDistance(distance float64) Option {
	return func(c *config) {
		c.distance = distance
	}
}

// WithAttenuation sets the distance to gain model.
func WithAttenuation(a audio.Attenuation) Option {
	return func(c *config) {
		c.attenuation = a
	}
}

// WithAudioContext sets the function used to create the audio context when
// the session starts.
func WithAudioContext(newCtx func() (audio.Context, error)) Option {
	return func(c *config) {
		c.newAudioCtx = newCtx
	}
}

// WithTransportOptions adds options to the underlying transport host.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *config) {
		c.hostOpts = append(c.hostOpts, opts...)
	}
}

// WithPeerTimeout sets the time after which a remote peer that sent nothing
// is disconnected. A server only accepts a new client once the previous one
// is gone. Zero disables the timeout.
func WithPeerTimeout(d time.Duration) Option {
	return func(c *config) {
		c.peerTimeout = d
	}
}

// WithPrometheusListenAddr sets the address to offer Prometheus metrics
// endpoint collection.
func WithPrometheusListenAddr(addr string) Option {
	return func(c *config) {
		c.promAddr = addr
	}
}

// WithReportStatsInterval sets the interval between stats log lines. Zero
// disables stats logging.
func WithReportStatsInterval(interval time.Duration) Option {
	return func(c *config) {
		c.statsReportInterval = interval
	}
}

package voicechat

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/companyzero/voicerelay/internal/audio"
	"github.com/companyzero/voicerelay/transport"
	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"
)

// Role is the role of an endpoint in a voice session.
type Role int

const (
	// RoleServer endpoints wait for a client to connect. The first client
	// that connects becomes the target of captured audio.
	RoleServer Role = iota

	// RoleClient endpoints connect to a server.
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session relays audio between the local audio devices and a single remote
// peer.
//
// Three independent contexts run while the session is running: the capture
// device callback (which encodes and sends), the network receive loop (which
// decodes into the playback queue) and the playback device callback (which
// drains the playback queue).
type Session struct {
	cfg  config
	log  slog.Logger
	role Role

	host   *transport.Host
	enc    audio.Encoder
	dec    audio.Decoder
	queue  *audio.PlaybackQueue
	volume *audio.Volume
	stats  *stats

	// peer is the send target. Clients set it on creation. Servers set it
	// once, when the first peer connects.
	peer atomic.Pointer[transport.Peer]

	// encodeBuf is only accessed from the capture callback.
	encodeBuf []byte

	// frames holds unused frame buffers.
	frames sync.Pool

	mtx   sync.Mutex
	state State
	run   *runState
}

// New creates a new session. Clients start connecting to the server
// immediately, but audio only flows after Start is called.
func New(role Role, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if role == RoleClient && !cfg.remoteAddr.IsValid() {
		return nil, errNoRemoteAddr
	}

	enc, dec, err := audio.NewCodec(cfg.codec, cfg.bitrate)
	if err != nil {
		return nil, err
	}

	hostOpts := append([]transport.Option{
		transport.WithBindAddr(cfg.listenAddr),
		transport.WithMaxPeers(1),
		transport.WithLogger(cfg.log),
		transport.WithPeerTimeout(cfg.peerTimeout),
	}, cfg.hostOpts...)
	host, err := transport.NewHost(hostOpts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		log:       cfg.log,
		role:      role,
		host:      host,
		enc:       enc,
		dec:       dec,
		queue:     audio.NewPlaybackQueue(cfg.queueFrames),
		volume:    audio.NewVolume(cfg.attenuation),
		encodeBuf: make([]byte, audio.MaxPayloadSize),
		frames: sync.Pool{
			New: func() any {
				return make([]float32, audio.FrameSize*audio.Channels)
			},
		},
	}
	s.volume.SetDistance(cfg.distance)
	s.stats = newStats(s)

	if role == RoleClient {
		peer, err := host.Connect(cfg.remoteAddr)
		if err != nil {
			host.Close()
			return nil, fmt.Errorf("unable to connect to %s: %w",
				cfg.remoteAddr, err)
		}
		s.peer.Store(peer)
		s.log.Infof("Connecting to %s", cfg.remoteAddr)
	} else {
		s.log.Infof("Listening on %s", host.LocalAddr())
	}

	return s, nil
}

// runState holds the resources acquired while the session is running.
type runState struct {
	cancel context.CancelFunc
	g      *errgroup.Group

	actx            audio.Context
	capture         audio.Stream
	playback        audio.Stream
	captureStarted  bool
	playbackStarted bool
}

// release releases every acquired resource, in order: the network goroutines
// are stopped, then the devices, then the audio context.
func (rs *runState) release(log slog.Logger) error {
	if rs.cancel != nil {
		rs.cancel()
		err := rs.g.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("Session goroutine failed: %v", err)
		}
	}

	if rs.captureStarted {
		if err := rs.capture.Stop(); err != nil {
			log.Warnf("Unable to stop capture device: %v", err)
		}
	}
	if rs.playbackStarted {
		if err := rs.playback.Stop(); err != nil {
			log.Warnf("Unable to stop playback device: %v", err)
		}
	}
	if rs.capture != nil {
		rs.capture.Uninit()
	}
	if rs.playback != nil {
		rs.playback.Uninit()
	}
	if rs.actx != nil {
		if err := rs.actx.Free(); err != nil {
			return fmt.Errorf("unable to free audio context: %w", err)
		}
	}
	return nil
}

// Start opens the audio devices and starts relaying audio.
func (s *Session) Start() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	switch s.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrSessionStopped
	}

	rs := &runState{}
	fail := func(err error) error {
		if relErr := rs.release(s.log); relErr != nil {
			s.log.Warnf("Unable to release resources after failed start: %v", relErr)
		}
		return err
	}

	var err error
	rs.actx, err = s.cfg.newAudioCtx()
	if err != nil {
		return fmt.Errorf("unable to initialize audio context: %w", err)
	}
	rs.capture, err = rs.actx.InitCapture(s.cfg.captureDevice, s.captureFrame)
	if err != nil {
		return fail(fmt.Errorf("unable to initialize capture device: %w", err))
	}
	rs.playback, err = rs.actx.InitPlayback(s.cfg.playbackDevice, s.playbackFrame)
	if err != nil {
		return fail(fmt.Errorf("unable to initialize playback device: %w", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	rs.cancel, rs.g = cancel, g
	g.Go(func() error { return s.receiveLoop(gctx) })
	g.Go(func() error { return s.runReportStatsLoop(gctx, s.cfg.statsReportInterval) })
	if s.cfg.promAddr != "" {
		g.Go(func() error { return s.runPrometheusListener(gctx, s.cfg.promAddr) })
	}

	if err := rs.capture.Start(); err != nil {
		return fail(fmt.Errorf("unable to start capture device: %w", err))
	}
	rs.captureStarted = true
	if err := rs.playback.Start(); err != nil {
		return fail(fmt.Errorf("unable to start playback device: %w", err))
	}
	rs.playbackStarted = true

	s.run = rs
	s.state = StateRunning
	s.log.Infof("Started %s session using %s audio", s.role, rs.actx.Name())
	return nil
}

// Stop stops relaying audio and releases the audio devices. Stopped
// sessions cannot be restarted. It is safe to call Stop multiple times.
func (s *Session) Stop() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.state == StateStopped {
		return nil
	}

	var err error
	if s.run != nil {
		err = s.run.release(s.log)
		s.run = nil
	}
	s.state = StateStopped
	s.log.Debugf("Session stopped")
	return err
}

// Close stops the session and closes the network host. Connected peers are
// notified.
func (s *Session) Close() error {
	err := s.Stop()
	if closeErr := s.host.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Role returns the role of the session.
func (s *Session) Role() Role {
	return s.role
}

// State returns the current state of the session.
func (s *Session) State() State {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state
}

// SetDistance sets the distance to the remote speaker, which determines the
// playback gain. Returns the new gain.
func (s *Session) SetDistance(distance float64) float64 {
	return s.volume.SetDistance(distance)
}

// SetGain sets the playback gain directly.
func (s *Session) SetGain(gain float64) {
	s.volume.SetGain(gain)
}

// Gain returns the current playback gain.
func (s *Session) Gain() float64 {
	return s.volume.Gain()
}

// Connected returns true if the session has a connected remote peer.
func (s *Session) Connected() bool {
	p := s.peer.Load()
	return p != nil && p.Connected()
}

// RemoteAddr returns the address of the remote peer, if there is one.
func (s *Session) RemoteAddr() (netip.AddrPort, bool) {
	p := s.peer.Load()
	if p == nil {
		return netip.AddrPort{}, false
	}
	return p.Addr(), true
}

// LocalAddr returns the local network address of the session.
func (s *Session) LocalAddr() netip.AddrPort {
	return s.host.LocalAddr()
}

// QueueLen returns the number of decoded frames waiting for playback.
func (s *Session) QueueLen() int {
	return s.queue.Len()
}

func (s *Session) getFrame() []float32 {
	return s.frames.Get().([]float32)
}

func (s *Session) putFrame(frame []float32) {
	s.frames.Put(frame)
}

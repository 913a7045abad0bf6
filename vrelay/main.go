package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/companyzero/voicerelay/internal/audio"
	"github.com/companyzero/voicerelay/internal/netutils"
	"github.com/companyzero/voicerelay/internal/version"
	"github.com/companyzero/voicerelay/transport"
	"github.com/companyzero/voicerelay/voicechat"
	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
	"golang.org/x/sync/errgroup"
)

func initLogBackend(s *settings) (*logBackend, error) {
	bknd := &logBackend{stdOut: os.Stdout}
	if s.LogFile == "" {
		return bknd, nil
	}

	logDir := filepath.Dir(s.LogFile)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logRotator, err := rotator.New(s.LogFile, 1024, false, maxLogFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w", err)
	}
	bknd.logRotator = logRotator
	return bknd, nil
}

// selectDevices returns the ids of the configured capture and playback
// devices. Devices are only listed when a non-default one was requested.
func selectDevices(s *settings, log slog.Logger) (capID, playID audio.DeviceID, err error) {
	if s.CaptureDevice == "" && s.PlaybackDevice == "" {
		return "", "", nil
	}
	devices, err := audio.ListAudioDevices(log)
	if err != nil {
		return "", "", err
	}
	if capID, err = devices.Lookup(audio.DeviceTypeCapture, s.CaptureDevice); err != nil {
		return "", "", err
	}
	if playID, err = devices.Lookup(audio.DeviceTypePlayback, s.PlaybackDevice); err != nil {
		return "", "", err
	}
	return capID, playID, nil
}

func realMain() error {
	s, err := obtainSettings(os.Args[1:], os.Stderr)
	if err != nil {
		return err
	}

	bknd, err := initLogBackend(s)
	if err != nil {
		return err
	}
	defer bknd.Close()

	logLevel, ok := slog.LevelFromString(s.DebugLevel)
	if !ok {
		return fmt.Errorf("invalid debuglevel %q", s.DebugLevel)
	}
	logBknd := slog.NewBackend(bknd)
	newLogger := func(subsys string) slog.Logger {
		l := logBknd.Logger(subsys)
		l.SetLevel(logLevel)
		return l
	}
	log := newLogger("VRLY")

	if s.ListDevices {
		devices, err := audio.ListAudioDevices(newLogger("AUDI"))
		if err != nil {
			return err
		}
		printDevices(&devices)
		return nil
	}

	log.Infof("Starting vrelay %s as %s", version.String(), s.Role)

	capID, playID, err := selectDevices(s, newLogger("AUDI"))
	if err != nil {
		return err
	}

	opts := []voicechat.Option{
		voicechat.WithLogger(newLogger("SESS")),
		voicechat.WithCodec(s.Codec),
		voicechat.WithQueueFrames(s.QueueFrames),
		voicechat.WithCaptureDevice(capID),
		voicechat.WithPlaybackDevice(playID),
		voicechat.WithDistance(s.Distance),
		voicechat.WithPeerTimeout(s.PeerTimeout),
		voicechat.WithReportStatsInterval(s.StatsInterval),
		voicechat.WithPrometheusListenAddr(s.ListenPrometheus),
		voicechat.WithTransportOptions(
			transport.WithMTU(s.MTU),
			transport.WithLogger(newLogger("NETW")),
		),
	}
	switch s.Role {
	case voicechat.RoleServer:
		opts = append(opts, voicechat.WithListenAddr(":"+strconv.Itoa(int(s.ListenPort))))
		addrs, err := netutils.LocalIPv4Addrs()
		if err != nil {
			log.Warnf("Unable to list local addresses: %v", err)
		}
		for _, addr := range addrs {
			log.Infof("Clients may connect to %s %d", addr, s.ListenPort)
		}
	case voicechat.RoleClient:
		opts = append(opts, voicechat.WithRemoteAddr(s.RemoteAddr))
	}

	sess, err := voicechat.New(s.Role, opts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Start(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if !s.NoInput {
		ctl, err := initUserInputCtl(sess, s.Distance, log)
		if err != nil {
			return err
		}
		log.Infof("Press '+' to move closer, '-' to move away, Enter to quit")
		g.Go(func() error { return ctl.run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	if errors.Is(err, errUserQuit) {
		err = nil
	}
	log.Infof("Shutting down")
	return err
}

func main() {
	err := realMain()
	if errors.Is(err, errShowVersion) || errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

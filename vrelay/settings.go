package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/companyzero/voicerelay/internal/audio"
	"github.com/companyzero/voicerelay/internal/netutils"
	"github.com/companyzero/voicerelay/internal/version"
	"github.com/companyzero/voicerelay/voicechat"
	"github.com/mitchellh/go-homedir"
	"github.com/vaughan0/go-ini"
	strduration "github.com/xhit/go-str2duration/v2"
)

const usage = `Usage: vrelay [flags] server <port>
       vrelay [flags] client <ip> <port>

Flags:
`

type settings struct {
	Role       voicechat.Role
	ListenPort uint16         // server only
	RemoteAddr netip.AddrPort // client only

	// audio section
	Codec          string
	CaptureDevice  string // index or hex id, empty for the default
	PlaybackDevice string
	QueueFrames    int
	Distance       float64
	ListDevices    bool

	// net section
	MTU              int
	PeerTimeout      time.Duration
	ListenPrometheus string

	// log section
	LogFile       string // log filename
	DebugLevel    string // debug level config string
	StatsInterval time.Duration

	NoInput bool
}

// errShowVersion is returned when only the version should be displayed.
var errShowVersion = errors.New("show version")

func obtainSettings(args []string, stderr io.Writer) (*settings, error) {
	// setup default paths
	var rootDir string
	if home, err := homedir.Dir(); err == nil {
		rootDir = filepath.Join(home, ".vrelay")
	}

	fs := flag.NewFlagSet("vrelay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	filename := fs.String("cfg", filepath.Join(rootDir, "vrelay.conf"), "config file")
	versionFlag := fs.Bool("version", false, "show version")
	fs.Bool("lsdev", false, "list audio devices and quit")
	fs.String("debuglevel", "info", "log level (trace, debug, info, warn, error, critical, off)")
	fs.String("logfile", "", "log file path")
	fs.String("codec", audio.CodecOpus, "audio codec (opus or pcm16)")
	fs.String("capdev", "", "capture device index or id (see -lsdev). Empty for the system default")
	fs.String("playdev", "", "playback device index or id (see -lsdev). Empty for the system default")
	fs.Int("queueframes", audio.DefaultQueueFrames, "max number of frames waiting for playback")
	fs.Float64("distance", 0, "initial distance to the remote speaker [0,1]")
	fs.Int("mtu", 1200, "max datagram size")
	fs.String("peertimeout", "5s", "time after which a silent peer is disconnected (0 disables)")
	fs.String("listenprometheus", "", "address to offer prometheus metrics")
	fs.Bool("noinput", false, "do not read operator commands from stdin")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *versionFlag {
		fmt.Fprintf(stderr, "vrelay %s (%s)\n", version.String(), runtime.Version())
		return nil, errShowVersion
	}

	// Default settings.
	s := &settings{
		Codec:         audio.CodecOpus,
		QueueFrames:   audio.DefaultQueueFrames,
		MTU:           1200,
		PeerTimeout:   5 * time.Second,
		DebugLevel:    "info",
		StatsInterval: time.Minute,
	}
	if rootDir != "" {
		s.LogFile = filepath.Join(rootDir, "logs", "vrelay.log")
	}

	// The config file is optional unless explicitly set.
	var cfgSet bool
	fs.Visit(func(f *flag.Flag) { cfgSet = cfgSet || f.Name == "cfg" })
	cfgFile, err := homedir.Expand(*filename)
	if err != nil {
		return nil, err
	}
	cfg, err := ini.LoadFile(cfgFile)
	switch {
	case errors.Is(err, os.ErrNotExist) && !cfgSet:
		cfg = ini.File{}
	case err != nil:
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := s.loadConfig(cfg); err != nil {
		return nil, err
	}

	// Flags override the config file.
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		if err := s.setOption(f.Name, f.Value.String()); err != nil && flagErr == nil {
			flagErr = err
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	if s.ListDevices {
		return s, nil
	}
	if err := s.parseRole(fs.Args()); err != nil {
		fs.Usage()
		return nil, err
	}
	return s, nil
}

// loadConfig fills the settings from the config file.
func (s *settings) loadConfig(cfg ini.File) error {
	keys := []struct {
		section, key, opt string
	}{
		{"log", "logfile", "logfile"},
		{"log", "debuglevel", "debuglevel"},
		{"log", "statsinterval", "statsinterval"},
		{"audio", "codec", "codec"},
		{"audio", "capturedevice", "capdev"},
		{"audio", "playbackdevice", "playdev"},
		{"audio", "queueframes", "queueframes"},
		{"audio", "distance", "distance"},
		{"net", "mtu", "mtu"},
		{"net", "peertimeout", "peertimeout"},
		{"net", "listenprometheus", "listenprometheus"},
	}
	for _, k := range keys {
		v, ok := cfg.Get(k.section, k.key)
		if !ok {
			continue
		}
		if err := s.setOption(k.opt, v); err != nil {
			return fmt.Errorf("config [%s] %s: %w", k.section, k.key, err)
		}
	}
	return nil
}

// setOption sets a single option, named as its command line flag.
func (s *settings) setOption(name, value string) error {
	var err error
	switch name {
	case "lsdev":
		s.ListDevices, err = strconv.ParseBool(value)
	case "noinput":
		s.NoInput, err = strconv.ParseBool(value)
	case "debuglevel":
		s.DebugLevel = value
	case "logfile":
		s.LogFile, err = homedir.Expand(value)
	case "statsinterval":
		if value == "" {
			// Disabled.
			s.StatsInterval = 0
		} else {
			s.StatsInterval, err = strduration.ParseDuration(value)
		}
	case "codec":
		s.Codec = value
	case "capdev":
		s.CaptureDevice = value
	case "playdev":
		s.PlaybackDevice = value
	case "queueframes":
		s.QueueFrames, err = strconv.Atoi(value)
	case "distance":
		s.Distance, err = strconv.ParseFloat(value, 64)
	case "mtu":
		s.MTU, err = strconv.Atoi(value)
	case "peertimeout":
		s.PeerTimeout, err = strduration.ParseDuration(value)
	case "listenprometheus":
		s.ListenPrometheus = value
	}
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", value, name, err)
	}
	return nil
}

// parseRole parses the positional arguments.
func (s *settings) parseRole(args []string) error {
	if len(args) == 0 {
		return errors.New("missing role")
	}

	var err error
	switch args[0] {
	case "server":
		if len(args) != 2 {
			return errors.New("server needs a port")
		}
		s.Role = voicechat.RoleServer
		s.ListenPort, err = netutils.ParsePort(args[1])
	case "client":
		if len(args) != 3 {
			return errors.New("client needs an ip and a port")
		}
		s.Role = voicechat.RoleClient
		s.RemoteAddr, err = netutils.ResolveAddrPort(args[1], args[2])
	default:
		return fmt.Errorf("unknown role %q", args[0])
	}
	return err
}

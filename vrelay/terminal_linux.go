//go:build linux

package main

import (
	"os"

	"github.com/decred/slog"
	"golang.org/x/sys/unix"
)

// initUserInputCtl switches the terminal to raw mode so that commands are
// processed as soon as a key is pressed. When stdin is not a terminal,
// commands are processed one line at a time.
func initUserInputCtl(sess distanceSetter, distance float64, log slog.Logger) (*userInputCtl, error) {
	ctl := &userInputCtl{in: os.Stdin, sess: sess, distance: distance, log: log}
	oldTermios, err := makeRaw(os.Stdin)
	if err != nil {
		log.Debugf("Not using raw terminal mode: %v", err)
		ctl.lineMode = true
		return ctl, nil
	}
	ctl.restore = func() { restoreTerminal(os.Stdin, oldTermios) }
	return ctl, nil
}

func makeRaw(f *os.File) (*unix.Termios, error) {
	termios, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		return nil, err
	}

	oldTermios := *termios

	// Turn off ICANON (canonical mode) and ECHO
	termios.Lflag &^= unix.ICANON | unix.ECHO

	// Return from read as soon as a single byte is available.
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, termios); err != nil {
		return nil, err
	}

	return &oldTermios, nil
}

func restoreTerminal(f *os.File, termios *unix.Termios) error {
	return unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, termios)
}

package main

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/companyzero/voicerelay/internal/audio"
	"github.com/decred/slog"
)

// distanceStep is how much each key press moves the remote speaker.
const distanceStep = 0.1

// errUserQuit is returned when the operator asks to quit.
var errUserQuit = errors.New("user quit")

type distanceSetter interface {
	SetDistance(distance float64) float64
}

// userInputCtl processes operator commands. '+' moves the remote speaker
// closer, '-' moves it away and 'q' or Enter quits.
type userInputCtl struct {
	in       io.Reader
	sess     distanceSetter
	log      slog.Logger
	distance float64
	restore  func()

	// lineMode is set when input is line buffered. In that case a newline
	// only quits when the line had no other commands.
	lineMode   bool
	lineHasCmd bool
}

// processInput processes a single input byte. Returns true if the operator
// asked to quit.
func (ctl *userInputCtl) processInput(c byte) bool {
	switch c {
	case '+':
		ctl.setDistance(ctl.distance - distanceStep)
		ctl.lineHasCmd = true
	case '-':
		ctl.setDistance(ctl.distance + distanceStep)
		ctl.lineHasCmd = true
	case '\n', '\r':
		if ctl.lineMode && ctl.lineHasCmd {
			ctl.lineHasCmd = false
			return false
		}
		return true
	case 'q', 'Q':
		return true
	}
	return false
}

func (ctl *userInputCtl) setDistance(d float64) {
	d = max(0, min(audio.MaxDistance, d))
	ctl.distance = d
	gain := ctl.sess.SetDistance(d)
	ctl.log.Infof("Distance %.1f, gain %.2f", d, gain)
}

// readInput reads from the input until it fails or ctx is done. Every chunk
// read is sent to inputChan as its own slice.
func (ctl *userInputCtl) readInput(ctx context.Context, inputChan chan<- []byte, errChan chan<- error) {
	b := make([]byte, 64)
	for {
		n, err := ctl.in.Read(b)
		if n > 0 {
			select {
			case inputChan <- bytes.Clone(b[:n]):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errChan <- err
			return
		}
	}
}

// run reads operator input until ctx is done, the operator quits or the
// input is closed.
func (ctl *userInputCtl) run(ctx context.Context) error {
	if ctl.restore != nil {
		defer ctl.restore()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inputChan := make(chan []byte)
	errChan := make(chan error, 1)
	go ctl.readInput(ctx, inputChan, errChan)

	for {
		select {
		case in := <-inputChan:
			for _, c := range in {
				if ctl.processInput(c) {
					return errUserQuit
				}
			}

		case err := <-errChan:
			if errors.Is(err, io.EOF) {
				return errUserQuit
			}
			return err

		case <-ctx.Done():
			return nil
		}
	}
}

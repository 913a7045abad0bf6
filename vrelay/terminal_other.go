//go:build !linux

package main

import (
	"os"

	"github.com/decred/slog"
)

// initUserInputCtl processes commands one line at a time.
func initUserInputCtl(sess distanceSetter, distance float64, log slog.Logger) (*userInputCtl, error) {
	return &userInputCtl{
		in:       os.Stdin,
		sess:     sess,
		distance: distance,
		log:      log,
		lineMode: true,
	}, nil
}

package main

import (
	"fmt"

	"github.com/companyzero/voicerelay/internal/audio"
)

// printDevices prints info about audio devices.
func printDevices(devices *audio.Devices) {
	pf := func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}

	printDevice := func(i int, dev *audio.Device) {
		defaultStr := ""
		if dev.IsDefault {
			defaultStr = "(default) "
		}
		pf("  Device %d %s%s", i, defaultStr, dev.Name)
		pf("  ID: %s", dev.ID)
		pf("")
	}

	if len(devices.Capture) == 0 {
		pf("No audio capture devices found")
	} else {
		pf("Audio capture devices")
		pf("")
		for i := range devices.Capture {
			printDevice(i, &devices.Capture[i])
		}
	}

	if len(devices.Playback) == 0 {
		pf("No audio playback devices found")
	} else {
		pf("Audio playback devices")
		pf("")
		for i := range devices.Playback {
			printDevice(i, &devices.Playback[i])
		}
	}
}

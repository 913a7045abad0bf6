package audio

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// SampleRate is the sample rate used both for capture and playback.
	SampleRate = 48000

	// Channels is the number of audio channels. Only mono audio is
	// relayed.
	Channels = 1

	// PeriodSizeMS is the duration of a single frame of audio, in
	// milliseconds.
	PeriodSizeMS = 20

	// FrameSize is the number of samples (per channel) in a single frame.
	FrameSize = SampleRate / 1000 * PeriodSizeMS

	// EncodeBitRate is the target bitrate of the encoder.
	EncodeBitRate = 64000

	// MaxPayloadSize is the max size of a single encoded frame.
	MaxPayloadSize = 4000

	// DefaultQueueFrames is the default number of decoded frames kept
	// waiting for playback (200ms).
	DefaultQueueFrames = 10
)

// rawFormatSampleSize is the size of each sample exchanged with the audio
// driver. Must match rawFormat.
const rawFormatSampleSize = 2

// DeviceID is the opaque, driver specific id of an audio device. The empty
// id refers to the system default device.
type DeviceID string

// String returns the hex encoding of the id.
func (id DeviceID) String() string {
	return hex.EncodeToString([]byte(id))
}

// DeviceType is the kind of an audio device. Values match the ones used by
// the miniaudio library.
type DeviceType int

const (
	DeviceTypePlayback DeviceType = 1
	DeviceTypeCapture  DeviceType = 2
)

func (typ DeviceType) String() string {
	switch typ {
	case DeviceTypePlayback:
		return "playback"
	case DeviceTypeCapture:
		return "capture"
	default:
		return "unknown"
	}
}

type Device struct {
	ID        DeviceID `json:"id"`
	Name      string   `json:"name"`
	IsDefault bool     `json:"is_default"`
}

type Devices struct {
	Playback []Device `json:"playback"`
	Capture  []Device `json:"capture"`
}

func (devs *Devices) ofType(typ DeviceType) ([]Device, error) {
	switch typ {
	case DeviceTypePlayback:
		return devs.Playback, nil
	case DeviceTypeCapture:
		return devs.Capture, nil
	default:
		return nil, errors.New("unknown device type")
	}
}

// Select returns the id of the device of the given type at index i. A
// negative index selects the system default device.
func (devs *Devices) Select(typ DeviceType, i int) (DeviceID, error) {
	if i < 0 {
		return "", nil
	}
	list, err := devs.ofType(typ)
	if err != nil {
		return "", err
	}
	if i >= len(list) {
		return "", ErrDeviceNotFound{Type: typ, Index: i, Count: len(list)}
	}
	return list[i].ID, nil
}

// Find returns the device of the given type with the given id.
func (devs *Devices) Find(typ DeviceType, id DeviceID) (Device, bool) {
	list, _ := devs.ofType(typ)
	for _, dev := range list {
		if dev.ID == id {
			return dev, true
		}
	}
	return Device{}, false
}

// Lookup resolves a device selected by the user, either by its index in the
// device list or by its hex encoded id. An empty selection or a negative
// index selects the system default device.
func (devs *Devices) Lookup(typ DeviceType, sel string) (DeviceID, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return "", nil
	}
	if i, err := strconv.Atoi(sel); err == nil {
		return devs.Select(typ, i)
	}

	b, err := hex.DecodeString(sel)
	if err != nil {
		return "", fmt.Errorf("%q is neither a device index nor a device id", sel)
	}
	id := DeviceID(b)
	if _, ok := devs.Find(typ, id); !ok {
		return "", ErrDeviceNotFound{Type: typ, ID: id}
	}
	return id, nil
}

//go:build cgo && !noaudio

package audio

import (
	"bytes"
	"fmt"

	"github.com/decred/slog"
	"github.com/gen2brain/malgo"
	"golang.org/x/exp/slices"
)

// rawFormat is the sample format exchanged with the driver.
var rawFormat = malgo.FormatS16

// malgoID converts a device id to the fixed size id used by malgo.
func (id DeviceID) malgoID() (res malgo.DeviceID) {
	copy(res[:], id)
	return res
}

func init() {
	newContext = newMalgoContext
}

// enumerate returns the devices of the given type. Backends that report the
// same device more than once only get it listed once.
func enumerate(mctx *malgo.AllocatedContext, typ malgo.DeviceType, log slog.Logger) ([]Device, error) {
	infos, err := mctx.Devices(typ)
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate %s devices: %w",
			DeviceType(typ), err)
	}

	var res []Device
	for i := range infos {
		info, err := mctx.DeviceInfo(typ, infos[i].ID, malgo.Shared)
		if err != nil {
			log.Warnf("Skipping %s device %q: %v", DeviceType(typ),
				infos[i].Name(), err)
			continue
		}
		// Trailing zeros are padding and are restored by malgoID.
		dev := Device{
			ID:        DeviceID(bytes.TrimRight(info.ID[:], "\x00")),
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		}
		if slices.ContainsFunc(res, func(d Device) bool { return d.ID == dev.ID }) {
			continue
		}
		res = append(res, dev)
	}
	return res, nil
}

// ListAudioDevices lists the playback and capture devices of the default
// audio backend.
func ListAudioDevices(log slog.Logger) (devs Devices, err error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return devs, fmt.Errorf("unable to init audio backend: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	if devs.Playback, err = enumerate(mctx, malgo.Playback, log); err != nil {
		return Devices{}, err
	}
	if devs.Capture, err = enumerate(mctx, malgo.Capture, log); err != nil {
		return Devices{}, err
	}
	return devs, nil
}

// malgoContext is an implementation of Context which offloads the work to
// the malgo library.
type malgoContext struct {
	malgoCtx *malgo.AllocatedContext
}

// emptyDeviceID is an empty malgo device id.
var emptyDeviceID malgo.DeviceID

func newMalgoContext() (Context, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}

	return &malgoContext{malgoCtx: malgoCtx}, nil
}

func (mc *malgoContext) Name() string {
	return "malgo"
}

func (mc *malgoContext) Free() error {
	if err := mc.malgoCtx.Uninit(); err != nil {
		return err
	}
	mc.malgoCtx.Free()
	return nil
}

func (mc *malgoContext) deviceConfig(typ malgo.DeviceType, id DeviceID) (malgo.DeviceConfig, error) {
	sampleSizeInBytes := malgo.SampleSizeInBytes(rawFormat)
	if sampleSizeInBytes != rawFormatSampleSize {
		return malgo.DeviceConfig{}, fmt.Errorf("malgo raw format has wrong "+
			"sample size (got %d, want %d)", sampleSizeInBytes,
			rawFormatSampleSize)
	}

	cfg := malgo.DefaultDeviceConfig(typ)
	cfg.SampleRate = SampleRate
	cfg.PeriodSizeInMilliseconds = PeriodSizeMS
	cfg.Alsa.NoMMap = 1

	sub := &cfg.Capture
	if typ == malgo.Playback {
		sub = &cfg.Playback
	}
	sub.Format = rawFormat
	sub.Channels = Channels
	if malgoID := id.malgoID(); malgoID != emptyDeviceID {
		sub.DeviceID = malgoID.Pointer()
	}
	return cfg, nil
}

// InitCapture is part of the Context interface.
func (mc *malgoContext) InitCapture(id DeviceID, cb CaptureFunc) (Stream, error) {
	cfg, err := mc.deviceConfig(malgo.Capture, id)
	if err != nil {
		return nil, err
	}

	framer := newCaptureFramer(cb)
	var scratch []float32
	onData := func(_, in []byte, framecount uint32) {
		n := int(framecount) * Channels
		if cap(scratch) < n {
			scratch = make([]float32, n)
		}
		scratch = scratch[:n]
		n = bytesToF32Slice(in, scratch)
		framer.write(scratch[:n])
	}

	device, err := malgo.InitDevice(mc.malgoCtx.Context, cfg, malgo.DeviceCallbacks{
		Data: onData,
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// InitPlayback is part of the Context interface.
func (mc *malgoContext) InitPlayback(id DeviceID, cb PlaybackFunc) (Stream, error) {
	cfg, err := mc.deviceConfig(malgo.Playback, id)
	if err != nil {
		return nil, err
	}

	framer := newPlaybackFramer(cb)
	var scratch []float32
	onData := func(out, _ []byte, framecount uint32) {
		n := int(framecount) * Channels
		if cap(scratch) < n {
			scratch = make([]float32, n)
		}
		scratch = scratch[:n]
		framer.read(scratch)
		f32SliceToBytes(scratch, out)
	}

	device, err := malgo.InitDevice(mc.malgoCtx.Context, cfg, malgo.DeviceCallbacks{
		Data: onData,
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

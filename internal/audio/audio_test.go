package audio

import (
	"errors"
	"testing"

	"github.com/companyzero/voicerelay/internal/assert"
)

// TestDevicesSelect tests selecting devices by index.
func TestDevicesSelect(t *testing.T) {
	t.Parallel()

	devs := Devices{
		Playback: []Device{{ID: "p0", Name: "speakers", IsDefault: true}},
		Capture:  []Device{{ID: "c0", Name: "mic"}, {ID: "c1", Name: "headset"}},
	}

	id, err := devs.Select(DeviceTypeCapture, -1)
	assert.NilErr(t, err)
	assert.DeepEqual(t, id, DeviceID(""))

	id, err = devs.Select(DeviceTypeCapture, 1)
	assert.NilErr(t, err)
	assert.DeepEqual(t, id, DeviceID("c1"))

	id, err = devs.Select(DeviceTypePlayback, 0)
	assert.NilErr(t, err)
	assert.DeepEqual(t, id, DeviceID("p0"))

	_, err = devs.Select(DeviceTypePlayback, 1)
	var notFound ErrDeviceNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.DeepEqual(t, notFound, ErrDeviceNotFound{Type: DeviceTypePlayback, Index: 1, Count: 1})
}

// TestDevicesLookup tests resolving devices selected by index or by id.
func TestDevicesLookup(t *testing.T) {
	t.Parallel()

	devs := Devices{
		Playback: []Device{{ID: "\x01\x02", Name: "speakers"}},
		Capture:  []Device{{ID: "\xaa", Name: "mic"}, {ID: "\xbb\xcc", Name: "headset"}},
	}
	assert.DeepEqual(t, DeviceID("\xbb\xcc").String(), "bbcc")

	dev, ok := devs.Find(DeviceTypeCapture, "\xbb\xcc")
	assert.BoolIs(t, ok, true)
	assert.DeepEqual(t, dev.Name, "headset")
	_, ok = devs.Find(DeviceTypePlayback, "\xbb\xcc")
	assert.BoolIs(t, ok, false)

	tests := []struct {
		name    string
		typ     DeviceType
		sel     string
		want    DeviceID
		wantErr bool
	}{
		{name: "default", typ: DeviceTypeCapture, sel: "", want: ""},
		{name: "negative index", typ: DeviceTypeCapture, sel: "-1", want: ""},
		{name: "index", typ: DeviceTypeCapture, sel: "1", want: "\xbb\xcc"},
		{name: "hex id", typ: DeviceTypePlayback, sel: "0102", want: "\x01\x02"},
		{name: "hex id of other type", typ: DeviceTypePlayback, sel: "bbcc", wantErr: true},
		{name: "index out of range", typ: DeviceTypePlayback, sel: "3", wantErr: true},
		{name: "garbage", typ: DeviceTypeCapture, sel: "mic", wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := devs.Lookup(tc.typ, tc.sel)
			if tc.wantErr {
				assert.NonNilErr(t, err)
				return
			}
			assert.NilErr(t, err)
			assert.DeepEqual(t, got, tc.want)
		})
	}

	var notFound ErrDeviceNotFound
	_, err := devs.Lookup(DeviceTypeCapture, "ffff")
	if !errors.As(err, &notFound) {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.DeepEqual(t, notFound.ID, DeviceID("\xff\xff"))
}

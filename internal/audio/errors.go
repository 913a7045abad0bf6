package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload is returned by decoders when the payload cannot
	// be decoded into a frame.
	ErrInvalidPayload = errors.New("invalid audio payload")

	// ErrUnknownCodec is returned when asking for a codec that does not
	// exist.
	ErrUnknownCodec = errors.New("unknown codec")

	errFrameSize = errors.New("frame does not have the correct number of samples")
)

// ErrDeviceNotFound is returned when selecting a device by index or id
// fails.
type ErrDeviceNotFound struct {
	Type  DeviceType
	Index int
	ID    DeviceID
	Count int
}

func (err ErrDeviceNotFound) Error() string {
	if err.ID != "" {
		return fmt.Sprintf("%s device with id %s not found", err.Type, err.ID)
	}
	return fmt.Sprintf("%s device %d not found (%d devices)", err.Type,
		err.Index, err.Count)
}

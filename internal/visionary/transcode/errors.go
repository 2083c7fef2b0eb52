package transcode

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/visionary.report/internal/visionary/frame"
)

var (
	// ErrPrereqMismatch is returned when frame data violates a channel's
	// sizing precondition, e.g. point count != intensity sample count.
	ErrPrereqMismatch = errors.New("precondition mismatch")

	// ErrUpstream is returned when the point source fails or returns
	// malformed data.
	ErrUpstream = errors.New("point source failure")
)

// checkDimensions rejects frame sizes that cannot be described by the
// 32-bit Height, Width and step fields of the output records.
func checkDimensions(f *frame.SensorFrame) error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrPrereqMismatch)
	}
	if f.Height < 0 || f.Width < 0 {
		return fmt.Errorf("%w: negative frame size %dx%d", ErrPrereqMismatch, f.Width, f.Height)
	}
	if uint64(f.Width) > math.MaxUint32/PointStep || uint64(f.Height) > math.MaxUint32 {
		return fmt.Errorf("%w: frame size %dx%d out of range", ErrPrereqMismatch, f.Width, f.Height)
	}
	return nil
}

package format

import (
	"errors"
	"fmt"
	"math"
	"time"

	"tradedesk/internal/pkg/convert"
)

var (
	ErrMissingTimestamp = errors.New("timestamp missing")
	ErrNotNumeric       = errors.New("timestamp not numeric")
	ErrOutOfRange       = errors.New("timestamp out of range")
)

// Epoch milliseconds accepted: years 0001..9999.
const (
	minEpochMillis = -62135596800000
	maxEpochMillis = 253402300799999
)

// ParseTimestamp converts epoch milliseconds (UTC) into an instant. Strings are
// rejected even when numeric: the backend sends epoch values as JSON numbers.
func ParseTimestamp(v any) (time.Time, error) {
	if v == nil {
		return time.Time{}, ErrMissingTimestamp
	}
	ms, ok := convert.Number(v)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
	if ms < minEpochMillis || ms > maxEpochMillis {
		return time.Time{}, fmt.Errorf("%w: %.0f", ErrOutOfRange, ms)
	}
	whole := math.Floor(ms)
	nanos := int64(math.Round((ms - whole) * 1e6))
	return time.UnixMilli(int64(whole)).Add(time.Duration(nanos)).UTC(), nil
}

// Timestamp renders v in the formatter's zone, or InvalidTime.
func (f *Formatter) Timestamp(v any) string {
	t, err := ParseTimestamp(v)
	if err != nil {
		return InvalidTime
	}
	return t.In(f.loc).Format(f.layout)
}

// TimestampDetail is Timestamp with the failure reason appended.
func (f *Formatter) TimestampDetail(v any) string {
	t, err := ParseTimestamp(v)
	if err != nil {
		return fmt.Sprintf("%s (%v)", InvalidTime, err)
	}
	return t.In(f.loc).Format(f.layout)
}

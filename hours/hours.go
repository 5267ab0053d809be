package hours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	timeLayout = "15:04:05"
	dateLayout = "02.01.2006"
)

var location *time.Location = time.Local

func SetLocation(timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %v", timezone, err)
	}
	location = loc
	return nil
}

func Location() *time.Location {
	return location
}

// Now returns the current time in the configured location.
func Now() time.Time {
	return time.Now().In(location)
}

type ConfigError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ParseHour parses an hour of day (0-23).
func ParseHour(key, value string) (int, error) {
	h, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &ConfigError{Key: key, Value: value, Err: err}
	}
	if h < 0 || h > 23 {
		return 0, &ConfigError{Key: key, Value: value, Err: fmt.Errorf("hour out of range 0-23")}
	}
	return h, nil
}

// QueryWindow is the range requested from the price API, in epoch millis.
type QueryWindow struct {
	Start int64
	End   int64
}

// NewQueryWindow spans from local midnight today to one millisecond before
// local midnight the day after tomorrow.
func NewQueryWindow(now time.Time) QueryWindow {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := time.Date(y, m, d+2, 0, 0, 0, 0, now.Location())
	return QueryWindow{
		Start: start.UnixMilli(),
		End:   end.UnixMilli() - 1,
	}
}

func (w QueryWindow) String() string {
	return fmt.Sprintf("%s - %s",
		time.UnixMilli(w.Start).In(location).Format(time.RFC3339),
		time.UnixMilli(w.End).In(location).Format(time.RFC3339))
}

// ThresholdWindow is the overnight loading window. End is always on the day
// after Start, no matter how the hours compare.
type ThresholdWindow struct {
	Start time.Time
	End   time.Time
}

func NewThresholdWindow(now time.Time, startHour, endHour int) ThresholdWindow {
	y, m, d := now.Date()
	return ThresholdWindow{
		Start: time.Date(y, m, d, startHour, 0, 0, 0, now.Location()),
		End:   time.Date(y, m, d+1, endHour, 0, 0, 0, now.Location()),
	}
}

// Contains reports whether the interval lies inside the window. The end is exclusive.
func (w ThresholdWindow) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && end.Before(w.End)
}

func (w ThresholdWindow) ContainsMillis(startMs, endMs int64) bool {
	return w.Contains(time.UnixMilli(startMs), time.UnixMilli(endMs))
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(location)
}

func FormatTime(t time.Time) string {
	return t.In(location).Format(timeLayout)
}

func FormatDate(t time.Time) string {
	return t.In(location).Format(dateLayout)
}

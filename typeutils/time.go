package typeutils

import (
	"fmt"
	"strings"
	"time"
)

// Time wraps time.Time with unmarshalling tolerant of the gateway's mix of
// timestamp layouts.
type Time struct {
	time.Time
}

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON overrides the default unmarshalling for Time
func (ct *Time) UnmarshalJSON(b []byte) error {
	str := strings.Trim(string(b), "\"")
	if str == "" || str == "null" {
		*ct = Time{}
		return nil
	}
	parsed, err := ParseTimestamp(str)
	if err != nil {
		return err
	}

	*ct = Time{parsed}
	return nil
}

func (ct Time) MarshalJSON() ([]byte, error) {
	if ct.IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%q", ct.Format(time.RFC3339))), nil
}

// Compare compares the time instant ct with u. If ct is before u, it returns -1;
// if ct is after u, it returns +1; if they're the same, it returns 0.
func (ct Time) Compare(u Time) int {
	if ct.Before(u.Time) {
		return -1
	}
	if ct.After(u.Time) {
		return 1
	}
	return 0
}

func ParseTimestamp(str string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", str)
}

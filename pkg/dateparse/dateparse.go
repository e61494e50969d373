// Package dateparse normalizes heterogeneous appointment date strings into a
// canonical instant at minute precision. Parsing is deliberately separate from
// working-hours and conflict validation so each failure mode carries its own
// user-actionable message.
package dateparse

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Formats is the ordered list of accepted layouts. Candidates are tried in
// order and the first successful parse wins, so ambiguous inputs resolve to
// the earliest-listed interpretation. Reordering this list is a behavior
// change, not a cleanup.
var Formats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02 15:04",
}

// ErrMalformed reports input that matches none of the accepted formats.
var ErrMalformed = errors.New("date matches none of the accepted formats")

// PastDateError reports a parsed instant strictly earlier than the reference
// time. Now is carried so callers can tell the client the current date.
type PastDateError struct {
	Parsed time.Time
	Now    time.Time
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("date %s is in the past (current date %s)",
		e.Parsed.Format("2006-01-02 15:04"),
		e.Now.Format("2006-01-02 15:04"))
}

// Normalize parses raw into a canonical instant truncated to the minute.
// A trailing zone marker is stripped before matching; the clinic operates in
// a single implicit local zone. Past-dated instants are rejected relative to
// now, compared at minute granularity.
func Normalize(raw string, now time.Time) (time.Time, error) {
	candidate := strings.TrimSpace(raw)
	candidate = strings.TrimSuffix(candidate, "Z")

	for _, layout := range Formats {
		parsed, err := time.ParseInLocation(layout, candidate, time.Local)
		if err != nil {
			continue
		}

		parsed = parsed.Truncate(time.Minute)
		if parsed.Before(now.Truncate(time.Minute)) {
			return time.Time{}, &PastDateError{Parsed: parsed, Now: now}
		}
		return parsed, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
}

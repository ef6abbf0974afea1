package booking

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Buffer is the minimum idle time required between two hourly bookings of
// the same listing. Adjacent windows (one ending exactly when the next
// starts) are therefore always rejected.
const Buffer = time.Hour

var (
	ErrInvalidWindow   = errors.New("invalid time window")
	ErrBelowMinimum    = errors.New("booking shorter than the listing minimum")
	ErrWindowConflict  = errors.New("time window conflicts with an existing booking")
	ErrWindowInBuffer  = errors.New("time window too close to an existing booking")
	ErrFullDayConflict = errors.New("date is covered by a full-day booking")
)

// Window is a half-open [Start, End) interval within one calendar day,
// expressed in minutes from midnight.
type Window struct {
	Start int
	End   int
}

// FullDay covers a whole calendar day; daily bookings spanning a date are
// treated as this window when checking hourly proposals.
var FullDay = Window{Start: 0, End: 24 * 60}

// ParseWindow builds a Window from "15:04"-formatted start and end times.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start %q", ErrInvalidWindow, start)
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end %q", ErrInvalidWindow, end)
	}
	if s >= e {
		return Window{}, fmt.Errorf("%w: start must be before end", ErrInvalidWindow)
	}
	return Window{Start: s, End: e}, nil
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// String renders the window back in "15:04-15:04" form.
func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// Minutes returns the window length in minutes.
func (w Window) Minutes() int {
	return w.End - w.Start
}

// Overlaps reports whether two half-open windows intersect.
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && other.Start < w.End
}

// withinBuffer reports whether other sits closer than the mandatory buffer
// on either side of w, without overlapping it.
func (w Window) withinBuffer(other Window, buffer time.Duration) bool {
	gap := int(buffer.Minutes())
	if other.End <= w.Start {
		return w.Start-other.End < gap
	}
	if other.Start >= w.End {
		return other.Start-w.End < gap
	}
	return false
}

// FreeWindows computes the bookable gaps in a day given the occupied
// windows. Each occupied window is widened by the buffer on both sides, the
// widened set is merged, and only complement segments of at least
// minimumMinutes survive. A FullDay entry yields no free time at all.
func FreeWindows(existing []Window, minimumMinutes int) []Window {
	gap := int(Buffer.Minutes())

	blocked := make([]Window, 0, len(existing))
	for _, w := range existing {
		if w == FullDay {
			return nil
		}
		blocked = append(blocked, Window{
			Start: max(0, w.Start-gap),
			End:   min(FullDay.End, w.End+gap),
		})
	}
	sort.Slice(blocked, func(i, j int) bool { return blocked[i].Start < blocked[j].Start })

	var free []Window
	cursor := 0
	for _, w := range blocked {
		if w.Start > cursor && w.Start-cursor >= minimumMinutes {
			free = append(free, Window{Start: cursor, End: w.Start})
		}
		if w.End > cursor {
			cursor = w.End
		}
	}
	if FullDay.End-cursor >= minimumMinutes {
		free = append(free, Window{Start: cursor, End: FullDay.End})
	}
	return free
}

// CheckProposal validates a proposed hourly window against all non-cancelled
// windows already booked on the same listing and day. minimumMinutes is the
// per-listing floor (pricing.minimumHours * 60); proposals below it are
// rejected before any conflict is considered. A FullDay entry in existing
// marks a daily booking covering the date.
func CheckProposal(proposed Window, existing []Window, minimumMinutes int) error {
	if proposed.Minutes() < minimumMinutes {
		return fmt.Errorf("%w: %d min < %d min", ErrBelowMinimum, proposed.Minutes(), minimumMinutes)
	}
	for _, w := range existing {
		if w == FullDay {
			return ErrFullDayConflict
		}
		if proposed.Overlaps(w) {
			return fmt.Errorf("%w: %s", ErrWindowConflict, w)
		}
		if proposed.withinBuffer(w, Buffer) {
			return fmt.Errorf("%w: %s", ErrWindowInBuffer, w)
		}
	}
	return nil
}

package booking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWindow(t *testing.T, start, end string) Window {
	t.Helper()
	w, err := ParseWindow(start, end)
	require.NoError(t, err)
	return w
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("10:00", "11:30")
	require.NoError(t, err)
	assert.Equal(t, 600, w.Start)
	assert.Equal(t, 690, w.End)
	assert.Equal(t, 90, w.Minutes())

	_, err = ParseWindow("11:00", "10:00")
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = ParseWindow("25:00", "26:00")
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = ParseWindow("10am", "11am")
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestCheckProposalBuffer(t *testing.T) {
	existing := []Window{mustWindow(t, "10:00", "11:00")}

	tests := []struct {
		name    string
		start   string
		end     string
		wantErr error
	}{
		{"overlapping", "10:30", "11:30", ErrWindowConflict},
		{"adjacent after", "11:00", "12:00", ErrWindowInBuffer},
		{"within buffer after", "11:30", "12:30", ErrWindowInBuffer},
		{"exactly one hour after", "12:00", "13:00", nil},
		{"adjacent before", "09:00", "10:00", ErrWindowInBuffer},
		{"within buffer before", "08:30", "09:30", ErrWindowInBuffer},
		{"exactly one hour before", "08:00", "09:00", nil},
		{"identical", "10:00", "11:00", ErrWindowConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckProposal(mustWindow(t, tt.start, tt.end), existing, 60)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckProposalMinimumDuration(t *testing.T) {
	// 2h minimum: a 90-minute proposal fails before conflicts are looked at,
	// even though it would also collide with the existing booking.
	existing := []Window{mustWindow(t, "10:00", "11:00")}
	err := CheckProposal(mustWindow(t, "10:00", "11:30"), existing, 120)
	assert.ErrorIs(t, err, ErrBelowMinimum)
	assert.False(t, errors.Is(err, ErrWindowConflict))

	err = CheckProposal(mustWindow(t, "13:00", "15:00"), existing, 120)
	assert.NoError(t, err)
}

func TestCheckProposalFullDay(t *testing.T) {
	existing := []Window{FullDay}
	err := CheckProposal(mustWindow(t, "10:00", "12:00"), existing, 60)
	assert.ErrorIs(t, err, ErrFullDayConflict)
}

func TestCheckProposalNoExisting(t *testing.T) {
	assert.NoError(t, CheckProposal(mustWindow(t, "00:00", "01:00"), nil, 60))
}

func TestFreeWindowsEmptyDay(t *testing.T) {
	free := FreeWindows(nil, 60)
	require.Len(t, free, 1)
	assert.Equal(t, FullDay, free[0])
}

func TestFreeWindowsAroundBooking(t *testing.T) {
	// 10:00-12:00 booked, one hour buffer on each side: free until 09:00
	// and from 13:00.
	occupied := []Window{mustWindow(t, "10:00", "12:00")}
	free := FreeWindows(occupied, 60)

	require.Len(t, free, 2)
	assert.Equal(t, Window{Start: 0, End: 9 * 60}, free[0])
	assert.Equal(t, Window{Start: 13 * 60, End: 24 * 60}, free[1])
}

func TestFreeWindowsDropsShortGaps(t *testing.T) {
	// The gap between the widened blocks is 90 minutes; a 2h minimum
	// filters it out.
	occupied := []Window{
		mustWindow(t, "08:00", "10:00"),
		mustWindow(t, "12:30", "14:00"),
	}
	free := FreeWindows(occupied, 120)

	require.Len(t, free, 2)
	assert.Equal(t, Window{Start: 0, End: 7 * 60}, free[0])
	assert.Equal(t, Window{Start: 15 * 60, End: 24 * 60}, free[1])
}

func TestFreeWindowsFullDayBlocked(t *testing.T) {
	assert.Empty(t, FreeWindows([]Window{FullDay}, 60))
	assert.Empty(t, FreeWindows([]Window{mustWindow(t, "10:00", "11:00"), FullDay}, 60))
}

func TestFreeWindowsUnsortedInput(t *testing.T) {
	occupied := []Window{
		mustWindow(t, "18:00", "19:00"),
		mustWindow(t, "06:00", "07:00"),
	}
	free := FreeWindows(occupied, 60)

	require.Len(t, free, 3)
	assert.Equal(t, Window{Start: 0, End: 5 * 60}, free[0])
	assert.Equal(t, Window{Start: 8 * 60, End: 17 * 60}, free[1])
	assert.Equal(t, Window{Start: 20 * 60, End: 24 * 60}, free[2])
}

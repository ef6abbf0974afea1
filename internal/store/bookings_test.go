package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(v string) time.Time {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		panic(err)
	}
	return t
}

func TestValidateBookingRequest(t *testing.T) {
	tests := []struct {
		name    string
		model   CapacityModel
		booking Booking
		wantErr bool
	}{
		{
			name:    "seat on date buckets",
			model:   CapacityDateBucketed,
			booking: Booking{Type: BookingSeat, Quantity: 2, StartDate: day("2026-09-01"), EndDate: day("2026-09-01")},
		},
		{
			name:    "daily on date buckets",
			model:   CapacityDateBucketed,
			booking: Booking{Type: BookingDaily, Quantity: 1, StartDate: day("2026-09-01"), EndDate: day("2026-09-05")},
		},
		{
			name:    "hourly on time range",
			model:   CapacityTimeRange,
			booking: Booking{Type: BookingHourly, Quantity: 1, StartDate: day("2026-09-01"), EndDate: day("2026-09-01")},
		},
		{
			name:    "hourly on flat stock product",
			model:   CapacityFlatStock,
			booking: Booking{Type: BookingHourly, Quantity: 1, StartDate: day("2026-09-01"), EndDate: day("2026-09-01")},
			wantErr: true,
		},
		{
			name:    "hourly on date buckets",
			model:   CapacityDateBucketed,
			booking: Booking{Type: BookingHourly, Quantity: 1, StartDate: day("2026-09-01"), EndDate: day("2026-09-01")},
			wantErr: true,
		},
		{
			name:    "seat on time range",
			model:   CapacityTimeRange,
			booking: Booking{Type: BookingSeat, Quantity: 1, StartDate: day("2026-09-01"), EndDate: day("2026-09-01")},
			wantErr: true,
		},
		{
			name:    "daily on flat stock",
			model:   CapacityFlatStock,
			booking: Booking{Type: BookingDaily, Quantity: 1, StartDate: day("2026-09-01"), EndDate: day("2026-09-02")},
			wantErr: true,
		},
		{
			name:    "hourly with quantity above one",
			model:   CapacityTimeRange,
			booking: Booking{Type: BookingHourly, Quantity: 2, StartDate: day("2026-09-01"), EndDate: day("2026-09-01")},
			wantErr: true,
		},
		{
			name:    "daily end before start",
			model:   CapacityDateBucketed,
			booking: Booking{Type: BookingDaily, Quantity: 1, StartDate: day("2026-09-05"), EndDate: day("2026-09-01")},
			wantErr: true,
		},
		{
			name:    "daily range beyond a year",
			model:   CapacityDateBucketed,
			booking: Booking{Type: BookingDaily, Quantity: 1, StartDate: day("2026-01-01"), EndDate: day("2028-01-01")},
			wantErr: true,
		},
		{
			name:    "unknown type",
			model:   CapacityDateBucketed,
			booking: Booking{Type: BookingType("weekly"), Quantity: 1, StartDate: day("2026-09-01"), EndDate: day("2026-09-01")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Listing{CapacityModel: tt.model}
			err := validateBookingRequest(l, &tt.booking)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDaysBetweenInclusive(t *testing.T) {
	days := daysBetween(day("2026-09-01"), day("2026-09-03"))
	assert.Len(t, days, 3)
	assert.Equal(t, day("2026-09-01").UTC(), days[0])
	assert.Equal(t, day("2026-09-03").UTC(), days[2])

	single := daysBetween(day("2026-09-01"), day("2026-09-01"))
	assert.Len(t, single, 1)
}

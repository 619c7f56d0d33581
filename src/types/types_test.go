package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatusValid(t *testing.T) {
	assert.True(t, BOOKING_PENDING.Valid())
	assert.True(t, BOOKING_REFUNDED.Valid())
	assert.False(t, BookingStatus("archived").Valid())
	assert.False(t, BookingStatus("").Valid())
}

func TestBookingTransitions(t *testing.T) {
	assert.True(t, BOOKING_PENDING.CanTransitionTo(BOOKING_CONFIRMED))
	assert.True(t, BOOKING_PENDING.CanTransitionTo(BOOKING_CANCELED))
	assert.True(t, BOOKING_CONFIRMED.CanTransitionTo(BOOKING_COMPLETED))
	assert.True(t, BOOKING_CONFIRMED.CanTransitionTo(BOOKING_REFUNDED))
	assert.True(t, BOOKING_CANCELED.CanTransitionTo(BOOKING_REFUNDED))

	assert.False(t, BOOKING_PENDING.CanTransitionTo(BOOKING_COMPLETED))
	assert.False(t, BOOKING_COMPLETED.CanTransitionTo(BOOKING_CANCELED))
	assert.False(t, BOOKING_REFUNDED.CanTransitionTo(BOOKING_PENDING))
	assert.False(t, BOOKING_CANCELED.CanTransitionTo(BOOKING_CONFIRMED))
}

func TestReleasesSeats(t *testing.T) {
	assert.True(t, BOOKING_PENDING.ReleasesSeats(BOOKING_CANCELED))
	assert.True(t, BOOKING_CONFIRMED.ReleasesSeats(BOOKING_CANCELED))
	// Repeated cancels must not release twice.
	assert.False(t, BOOKING_CANCELED.ReleasesSeats(BOOKING_CANCELED))
	assert.False(t, BOOKING_PENDING.ReleasesSeats(BOOKING_CONFIRMED))
	assert.False(t, BOOKING_CANCELED.ReleasesSeats(BOOKING_REFUNDED))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 35)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, int64(35), p.Total)
	assert.Equal(t, 4, p.TotalPages)

	p = NewPagination(0, 0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 0, p.TotalPages)

	p = NewPagination(1, 20, 20)
	assert.Equal(t, 1, p.TotalPages)
}

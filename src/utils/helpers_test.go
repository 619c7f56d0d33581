package utils

import (
	"net/http"
	"testing"
	"time"
	"yrp/src/db"
	"yrp/src/models"
	"yrp/src/types"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	db.NewDB(gormDB)
	return mock
}

func TestComputeTotalsNoCoupon(t *testing.T) {
	gross, discount, net := ComputeTotals(150, 3, nil)
	assert.Equal(t, 450.0, gross)
	assert.Equal(t, 0.0, discount)
	assert.Equal(t, 450.0, net)
}

func TestComputeTotalsPercentCoupon(t *testing.T) {
	percent := 10.0
	coupon := &models.Coupon{Code: "EARLYBIRD", PercentOff: &percent}
	gross, discount, net := ComputeTotals(200, 2, coupon)
	assert.Equal(t, 400.0, gross)
	assert.Equal(t, 40.0, discount)
	assert.Equal(t, 360.0, net)
}

func TestComputeTotalsAmountCouponClamped(t *testing.T) {
	amount := 500.0
	coupon := &models.Coupon{Code: "BIGSAVE", AmountOff: &amount}
	gross, discount, net := ComputeTotals(100, 1, coupon)
	assert.Equal(t, 100.0, gross)
	assert.Equal(t, 100.0, discount)
	assert.Equal(t, 0.0, net)
}

func TestComputeRatingAggregate(t *testing.T) {
	avg, total := ComputeRatingAggregate(nil)
	assert.Equal(t, 0.0, avg)
	assert.Equal(t, uint(0), total)

	avg, total = ComputeRatingAggregate([]int64{5, 4, 3})
	assert.Equal(t, 4.0, avg)
	assert.Equal(t, uint(3), total)

	avg, total = ComputeRatingAggregate([]int64{5, 4})
	assert.Equal(t, 4.5, avg)
	assert.Equal(t, uint(2), total)
}

func TestCouponUsable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	c := models.Coupon{Active: true}
	assert.True(t, c.Usable(now))

	c = models.Coupon{Active: false}
	assert.False(t, c.Usable(now))

	c = models.Coupon{Active: true, ExpiresAt: &past}
	assert.False(t, c.Usable(now))

	c = models.Coupon{Active: true, ExpiresAt: &future}
	assert.True(t, c.Usable(now))
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrorStatus(ErrRetreatNotFound))
	assert.Equal(t, http.StatusNotFound, ErrorStatus(ErrBookingNotFound))
	assert.Equal(t, http.StatusForbidden, ErrorStatus(ErrNotOwner))
	assert.Equal(t, http.StatusConflict, ErrorStatus(ErrSoldOut))
	assert.Equal(t, http.StatusConflict, ErrorStatus(ErrDeadlinePassed))
	assert.Equal(t, http.StatusConflict, ErrorStatus(ErrCancelCompleted))
	assert.Equal(t, http.StatusBadRequest, ErrorStatus(ErrDuplicateReview))
	assert.Equal(t, http.StatusBadRequest, ErrorStatus(ErrCouponInvalid))
}

func confirmedBookingRow(paymentIntentId string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reference", "retreat_id", "user_id", "participants",
		"net_amount", "currency", "status", "payment_intent_id",
	}).AddRow(1, "a1b2c3d4-ref", 1, 7, 2, 1800.0, "usd", "confirmed", paymentIntentId)
}

func TestConfirmBookingRepeatIsNoOp(t *testing.T) {
	mock := newMockDB(t)

	// An already confirmed booking commits without an update, so the
	// confirmation mail cannot go out a second time.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(confirmedBookingRow("pi_123"))
	mock.ExpectCommit()

	booking, err := ConfirmBooking(1, "pi_123")
	assert.Nil(t, err)
	assert.Equal(t, types.BOOKING_CONFIRMED, booking.Status)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestConfirmBookingIntentMismatch(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(confirmedBookingRow("pi_other"))
	mock.ExpectRollback()

	_, err := ConfirmBooking(1, "pi_123")
	assert.ErrorIs(t, err, ErrPaymentMismatch)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGenerateJWT(t *testing.T) {
	token, err := GenerateJWT("yogi@example.com", 42, types.ROLE_MEMBER)
	assert.Nil(t, err)
	assert.NotEmpty(t, token)

	claims := &types.Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	assert.Nil(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "yogi@example.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, types.ROLE_MEMBER, claims.Role)
}

package utils

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"time"
	"yrp/src/config"
	"yrp/src/db"
	"yrp/src/lib"
	"yrp/src/models"
	"yrp/src/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRetreatNotFound     = errors.New("retreat not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrReviewNotFound      = errors.New("review not found")
	ErrRetreatNotBookable  = errors.New("retreat is not open for booking")
	ErrSoldOut             = errors.New("not enough seats left on this retreat")
	ErrDeadlinePassed      = errors.New("booking deadline has passed")
	ErrCouponInvalid       = errors.New("coupon code is not valid")
	ErrNotOwner            = errors.New("not allowed to act on this resource")
	ErrUnknownStatus       = errors.New("unrecognized booking status")
	ErrInvalidTransition   = errors.New("status transition is not allowed")
	ErrCancelCompleted     = errors.New("cannot cancel completed booking")
	ErrDuplicateReview     = errors.New("a review for this retreat already exists")
	ErrRetreatHasBookings  = errors.New("retreat still has active bookings")
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
	ErrPaymentMismatch     = errors.New("payment intent does not belong to this booking")
)

// ErrorStatus maps domain errors onto HTTP status codes so every handler
// reports the taxonomy the same way.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrRetreatNotFound),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrReviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, ErrSoldOut),
		errors.Is(err, ErrDeadlinePassed),
		errors.Is(err, ErrRetreatNotBookable),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrCancelCompleted),
		errors.Is(err, ErrRetreatHasBookings),
		errors.Is(err, ErrPaymentNotSucceeded):
		return http.StatusConflict
	case errors.Is(err, ErrCouponInvalid),
		errors.Is(err, ErrUnknownStatus),
		errors.Is(err, ErrDuplicateReview),
		errors.Is(err, ErrPaymentMismatch):
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

func GenerateJWT(email string, userId uint, role string) (string, error) {
	expirationTime := time.Now().Add(24 * time.Hour)
	claims := &types.Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userId),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// ComputeTotals derives the booking's monetary columns. The discount is
// clamped to the gross amount so net can never go negative.
func ComputeTotals(pricePerPerson float64, participants uint, coupon *models.Coupon) (gross, discount, net float64) {
	gross = pricePerPerson * float64(participants)
	if coupon != nil {
		if coupon.PercentOff != nil {
			discount = gross * (*coupon.PercentOff / 100)
		} else if coupon.AmountOff != nil {
			discount = *coupon.AmountOff
		}
	}
	discount = math.Min(discount, gross)
	net = gross - discount
	return gross, discount, net
}

// ComputeRatingAggregate is the full-scan mean/count over the overall
// ratings currently present for a retreat.
func ComputeRatingAggregate(ratings []int64) (average float64, total uint) {
	if len(ratings) == 0 {
		return 0, 0
	}
	var sum int64
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings)), uint(len(ratings))
}

func bookingDeadline(retreat *models.Retreat) time.Time {
	if retreat.BookingDeadline != nil {
		return *retreat.BookingDeadline
	}
	return retreat.StartDate
}

// CreateNewBooking reserves seats and persists the booking in one
// transaction. The retreat row is locked and the counter increment is a
// conditional update, so two racing requests can never oversell.
func CreateNewBooking(userId uint, params *types.CreateBookingRequestBody) (*models.Booking, error) {
	booking := models.Booking{
		Reference:    uuid.NewString(),
		RetreatID:    params.RetreatID,
		UserID:       userId,
		Participants: params.Participants,
		Status:       types.BOOKING_PENDING,
	}
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var retreat models.Retreat
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Retreat{ID: params.RetreatID}).
			First(&retreat).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRetreatNotFound
			}
			return err
		}
		if retreat.Status != types.RETREAT_PUBLISHED {
			return ErrRetreatNotBookable
		}
		if time.Now().After(bookingDeadline(&retreat)) {
			return ErrDeadlinePassed
		}
		if params.Participants > retreat.SeatsLeft() {
			return ErrSoldOut
		}

		var coupon *models.Coupon
		if params.CouponCode != nil && *params.CouponCode != "" {
			var c models.Coupon
			if err := tx.
				Where(&models.Coupon{Code: *params.CouponCode}).
				First(&c).
				Error; err != nil {
				return ErrCouponInvalid
			}
			if !c.Usable(time.Now()) {
				return ErrCouponInvalid
			}
			coupon = &c
			booking.CouponCode = &c.Code
		}

		gross, discount, net := ComputeTotals(retreat.PricePerPerson, params.Participants, coupon)
		booking.GrossAmount = gross
		booking.DiscountAmount = discount
		booking.NetAmount = net
		booking.Currency = retreat.Currency

		// The guard repeats the capacity check inside the UPDATE itself so
		// the mutation is atomic even without the row lock above.
		res := tx.
			Model(&models.Retreat{}).
			Where("id = ? AND current_participants + ? <= max_participants", retreat.ID, params.Participants).
			Update("current_participants", gorm.Expr("current_participants + ?", params.Participants))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSoldOut
		}

		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingStatus applies one transition from the central table.
// Cancelling an already cancelled booking is an idempotent no-op; the seat
// release happens exactly once, on the first move into cancelled.
// Pass userId 0 to skip the ownership check (webhooks, sweeps).
func UpdateBookingStatus(bookingId uint, userId uint, next types.BookingStatus) (*models.Booking, error) {
	if !next.Valid() {
		return nil, ErrUnknownStatus
	}
	var booking models.Booking
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Booking{ID: bookingId}).
			First(&booking).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if userId != 0 && booking.UserID != userId {
			return ErrNotOwner
		}
		prior := booking.Status
		if prior == types.BOOKING_CANCELED && next == types.BOOKING_CANCELED {
			return nil
		}
		if !prior.CanTransitionTo(next) {
			if prior == types.BOOKING_COMPLETED && next == types.BOOKING_CANCELED {
				return ErrCancelCompleted
			}
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prior, next)
		}
		if prior.ReleasesSeats(next) {
			res := tx.
				Model(&models.Retreat{}).
				Where("id = ? AND current_participants >= ?", booking.RetreatID, booking.Participants).
				Update("current_participants", gorm.Expr("current_participants - ?", booking.Participants))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("inventory underflow for retreat %d", booking.RetreatID)
			}
		}
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: bookingId}).
			Update("status", next).
			Error; err != nil {
			return err
		}
		booking.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// ConfirmBooking finalizes a pending booking once its payment intent has
// reached terminal success. Re-confirming with the same intent is a no-op so
// the client confirm endpoint and the webhook cannot race each other into an
// error.
func ConfirmBooking(bookingId uint, paymentIntentId string) (*models.Booking, error) {
	var booking models.Booking
	var transitioned bool
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&models.Booking{ID: bookingId}).
			First(&booking).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		if booking.PaymentIntentId != nil && *booking.PaymentIntentId != paymentIntentId {
			return ErrPaymentMismatch
		}
		if booking.Status == types.BOOKING_CONFIRMED {
			return nil
		}
		if !booking.Status.CanTransitionTo(types.BOOKING_CONFIRMED) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, types.BOOKING_CONFIRMED)
		}
		if err := tx.
			Model(&models.Booking{}).
			Where(&models.Booking{ID: bookingId}).
			Updates(&models.Booking{Status: types.BOOKING_CONFIRMED, PaymentIntentId: &paymentIntentId}).
			Error; err != nil {
			return err
		}
		booking.Status = types.BOOKING_CONFIRMED
		booking.PaymentIntentId = &paymentIntentId
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	// The mail goes out once, on the transition itself. A repeated confirm
	// (client endpoint racing the webhook) stays silent.
	if transitioned {
		go SendBookingConfirmationEmail(booking.ID)
	}
	return &booking, nil
}

func SendBookingConfirmationEmail(bookingId uint) {
	db := db.GetDb()
	var booking models.Booking
	if err := db.
		Where(&models.Booking{ID: bookingId}).
		Preload("Retreat").
		Preload("User").
		First(&booking).
		Error; err != nil {
		log.Printf("Could not load booking %d for confirmation mail: %s\n", bookingId, err.Error())
		return
	}
	if booking.User == nil || booking.Retreat == nil {
		return
	}
	input := &lib.SendMailInput{
		From:     os.Getenv("MAIL_FROM"),
		FromName: os.Getenv("MAIL_FROM_NAME"),
		To:       booking.User.Email,
		Subject:  fmt.Sprintf("Your booking for %s is confirmed", booking.Retreat.Title),
		Body: fmt.Sprintf(
			"Namaste %s,\n\nYour booking %s for %s (%s - %s) is confirmed for %d participant(s).\nTotal paid: %.2f %s\n\nSee you on the mat!",
			booking.User.Name,
			booking.Reference,
			booking.Retreat.Title,
			booking.Retreat.StartDate.Format("Jan 2, 2006"),
			booking.Retreat.EndDate.Format("Jan 2, 2006"),
			booking.Participants,
			booking.NetAmount,
			booking.Currency,
		),
	}
	if err := lib.SendMail(input); err != nil {
		log.Printf("Error sending confirmation mail for booking %d: %s\n", bookingId, err.Error())
	}
}

// RecomputeRetreatRating overwrites the retreat's cached aggregate with the
// mean/count over all present reviews. Runs inside the review's own
// transaction so the cache can never drift from the rows.
func RecomputeRetreatRating(tx *gorm.DB, retreatId uint) error {
	var ratings []int64
	if err := tx.
		Model(&models.Review{}).
		Where(&models.Review{RetreatID: retreatId}).
		Pluck("rating", &ratings).
		Error; err != nil {
		return err
	}
	average, total := ComputeRatingAggregate(ratings)
	return tx.
		Model(&models.Retreat{}).
		Where(&models.Retreat{ID: retreatId}).
		Select("average_rating", "total_reviews").
		Updates(map[string]any{"average_rating": average, "total_reviews": total}).
		Error
}

// CompletedBookingFor returns the id of the user's completed booking on the
// retreat, if any. Drives the review verified flag.
func CompletedBookingFor(tx *gorm.DB, userId, retreatId uint) *uint {
	var booking models.Booking
	if err := tx.
		Where(&models.Booking{UserID: userId, RetreatID: retreatId, Status: types.BOOKING_COMPLETED}).
		Select("id").
		First(&booking).
		Error; err != nil {
		return nil
	}
	return &booking.ID
}

func MakeSlug(title string) string {
	return slug.Make(title)
}

// UniqueSlug appends a short suffix when the base slug is already taken.
func UniqueSlug(tx *gorm.DB, model any, title string) string {
	base := slug.Make(title)
	var count int64
	tx.Model(model).Where("slug = ?", base).Count(&count)
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

// ExpirePendingBookings cancels pending bookings whose payment window has
// lapsed and releases their seats. Runs on a schedule from boot.
func ExpirePendingBookings() {
	cutoff := time.Now().Add(-config.PaymentWindow())
	db := db.GetDb()
	var ids []uint
	if err := db.
		Model(&models.Booking{}).
		Where("status = ? AND created_at < ?", types.BOOKING_PENDING, cutoff).
		Pluck("id", &ids).
		Error; err != nil {
		log.Printf("Error listing expired bookings: %s\n", err.Error())
		return
	}
	for _, id := range ids {
		if _, err := UpdateBookingStatus(id, 0, types.BOOKING_CANCELED); err != nil {
			log.Printf("Error expiring booking %d: %s\n", id, err.Error())
			continue
		}
		log.Printf("Expired pending booking %d\n", id)
	}
}

// CompleteFinishedRetreats marks ended retreats completed and completes
// their confirmed bookings.
func CompleteFinishedRetreats() {
	now := time.Now()
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.
			Model(&models.Retreat{}).
			Where("status = ? AND end_date < ?", types.RETREAT_PUBLISHED, now).
			Pluck("id", &ids).
			Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.
			Model(&models.Retreat{}).
			Where("id IN (?)", ids).
			Update("status", types.RETREAT_COMPLETED).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where("retreat_id IN (?) AND status = ?", ids, types.BOOKING_CONFIRMED).
			Update("status", types.BOOKING_COMPLETED).
			Error; err != nil {
			return err
		}
		log.Printf("Completed %d finished retreats\n", len(ids))
		return nil
	})
	if err != nil {
		log.Printf("Error completing finished retreats: %s\n", err.Error())
	}
}

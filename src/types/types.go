package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBArray []any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONBArray) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Env string

const (
	Local      Env = "local"
	Test       Env = "test"
	Production Env = "production"
)

const (
	ROLE_MEMBER = "member"
	ROLE_HOST   = "host"
	ROLE_ADMIN  = "admin"
)

type RetreatStatus string

const (
	RETREAT_DRAFT     RetreatStatus = "draft"
	RETREAT_PUBLISHED RetreatStatus = "published"
	RETREAT_COMPLETED RetreatStatus = "completed"
	RETREAT_CANCELED  RetreatStatus = "cancelled"
	RETREAT_ARCHIVED  RetreatStatus = "archived"
)

type BookingStatus string

const (
	BOOKING_PENDING   BookingStatus = "pending"
	BOOKING_CONFIRMED BookingStatus = "confirmed"
	BOOKING_CANCELED  BookingStatus = "cancelled"
	BOOKING_COMPLETED BookingStatus = "completed"
	BOOKING_REFUNDED  BookingStatus = "refunded"
)

// bookingTransitions is the single source of truth for legal booking
// lifecycle moves. completed and refunded are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BOOKING_PENDING:   {BOOKING_CONFIRMED, BOOKING_CANCELED},
	BOOKING_CONFIRMED: {BOOKING_CANCELED, BOOKING_COMPLETED, BOOKING_REFUNDED},
	BOOKING_CANCELED:  {BOOKING_REFUNDED},
	BOOKING_COMPLETED: {},
	BOOKING_REFUNDED:  {},
}

func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReleasesSeats reports whether moving from s to next must hand the booking's
// participant count back to the retreat's inventory counter. Only the first
// transition into cancelled releases seats.
func (s BookingStatus) ReleasesSeats(next BookingStatus) bool {
	return next == BOOKING_CANCELED && s != BOOKING_CANCELED
}

type CategoryKind string

const (
	CATEGORY_RETREAT CategoryKind = "retreat"
	CATEGORY_BLOG    CategoryKind = "blog"
)

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type SlugRequestParams struct {
	Slug string `uri:"slug" binding:"required"`
}

type ListQueryParams struct {
	Page     int    `form:"page,default=1" binding:"omitempty,min=1"`
	Limit    int    `form:"limit,default=20" binding:"omitempty,min=1,max=100"`
	Sort     string `form:"sort"`
	Dir      string `form:"dir" binding:"omitempty,oneof=asc desc"`
	Status   string `form:"status"`
	Category uint   `form:"category"`
	Search   string `form:"search"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

type CreateRetreatRequestBody struct {
	Title           string  `json:"title" binding:"required"`
	About           string  `json:"about,omitempty"`
	Location        string  `json:"location" binding:"required"`
	Style           string  `json:"style,omitempty"`
	CategoryID      *uint   `json:"category,omitempty"`
	PricePerPerson  float64 `json:"price_per_person" binding:"required,gt=0"`
	Currency        string  `json:"currency,omitempty"`
	MaxParticipants uint    `json:"max_participants" binding:"required,min=1"`
	StartDate       string  `json:"start_date" binding:"required,futuredate" time_format:"2006-01-02 15:04:05 -07:00"`
	EndDate         string  `json:"end_date" binding:"required,futuredate,gtdate=StartDate" time_format:"2006-01-02 15:04:05 -07:00"`
	BookingDeadline *string `json:"booking_deadline,omitempty" binding:"omitempty,futuredate" time_format:"2006-01-02 15:04:05 -07:00"`
	Publish         bool    `json:"publish,omitempty"`
}

type UpdateRetreatRequestBody struct {
	Title           *string  `json:"title,omitempty"`
	About           *string  `json:"about,omitempty"`
	Location        *string  `json:"location,omitempty"`
	Style           *string  `json:"style,omitempty"`
	CategoryID      *uint    `json:"category,omitempty"`
	PricePerPerson  *float64 `json:"price_per_person,omitempty" binding:"omitempty,gt=0"`
	MaxParticipants *uint    `json:"max_participants,omitempty" binding:"omitempty,min=1"`
	BookingDeadline *string  `json:"booking_deadline,omitempty" binding:"omitempty,futuredate" time_format:"2006-01-02 15:04:05 -07:00"`
}

type CreateBookingRequestBody struct {
	RetreatID    uint    `json:"retreat" binding:"required"`
	Participants uint    `json:"participants" binding:"required,min=1"`
	CouponCode   *string `json:"coupon_code,omitempty"`
}

type UpdateBookingStatusRequestBody struct {
	NewStatus BookingStatus `json:"new_status" binding:"required"`
}

type ConfirmBookingRequestBody struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

type CreateReviewRequestBody struct {
	RetreatID     uint    `json:"retreat" binding:"required"`
	Rating        uint8   `json:"rating" binding:"required,min=1,max=5"`
	Location      *uint8  `json:"location_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Accommodation *uint8  `json:"accommodation_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Food          *uint8  `json:"food_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Instructor    *uint8  `json:"instructor_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Value         *uint8  `json:"value_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Atmosphere    *uint8  `json:"atmosphere_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Comment       *string `json:"comment,omitempty"`
}

type UpdateReviewRequestBody struct {
	Rating        *uint8  `json:"rating,omitempty" binding:"omitempty,min=1,max=5"`
	Location      *uint8  `json:"location_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Accommodation *uint8  `json:"accommodation_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Food          *uint8  `json:"food_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Instructor    *uint8  `json:"instructor_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Value         *uint8  `json:"value_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Atmosphere    *uint8  `json:"atmosphere_rating,omitempty" binding:"omitempty,min=1,max=5"`
	Comment       *string `json:"comment,omitempty"`
}

type CreateBlogPostRequestBody struct {
	Title      string  `json:"title" binding:"required"`
	Excerpt    *string `json:"excerpt,omitempty"`
	Body       string  `json:"body" binding:"required"`
	CategoryID *uint   `json:"category,omitempty"`
	Publish    bool    `json:"publish,omitempty"`
}

type UpdateBlogPostRequestBody struct {
	Title      *string `json:"title,omitempty"`
	Excerpt    *string `json:"excerpt,omitempty"`
	Body       *string `json:"body,omitempty"`
	CategoryID *uint   `json:"category,omitempty"`
	Publish    *bool   `json:"publish,omitempty"`
}

type GoogleLoginRequestBody struct {
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

type CreateCategoryRequestBody struct {
	Name string       `json:"name" binding:"required"`
	Kind CategoryKind `json:"kind" binding:"required,oneof=retreat blog"`
}

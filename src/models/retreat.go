package models

import (
	"time"
	"yrp/src/types"
)

type Retreat struct {
	ID                  uint                `gorm:"primarykey" json:"id"`
	Title               string              `json:"title,omitempty"`
	Slug                string              `gorm:"uniqueIndex" json:"slug,omitempty"`
	About               *string             `json:"about,omitempty"`
	Location            string              `json:"location,omitempty"`
	Style               string              `json:"style,omitempty"`
	CategoryID          *uint               `json:"category_id,omitempty"`
	PricePerPerson      float64             `json:"price_per_person"`
	Currency            string              `gorm:"default:'usd'" json:"currency,omitempty"`
	MaxParticipants     uint                `json:"max_participants"`
	CurrentParticipants uint                `gorm:"default:0" json:"current_participants"`
	StartDate           time.Time           `json:"start_date,omitempty"`
	EndDate             time.Time           `json:"end_date,omitempty"`
	BookingDeadline     *time.Time          `json:"booking_deadline,omitempty"`
	Status              types.RetreatStatus `gorm:"default:'draft'" json:"status,omitempty"`
	HostID              uint                `json:"host_id,omitempty"`
	Photos              types.JSONBArray    `gorm:"type:jsonb" json:"photos,omitempty"`
	AverageRating       float64             `gorm:"default:0" json:"average_rating"`
	TotalReviews        uint                `gorm:"default:0" json:"total_reviews"`

	Host     User      `gorm:"foreignKey:host_id" json:"-"`
	Category *Category `gorm:"foreignKey:category_id" json:"category,omitempty"`
	Bookings []Booking `gorm:"foreignKey:retreat_id" json:"bookings,omitempty"`
	Reviews  []Review  `gorm:"foreignKey:retreat_id" json:"reviews,omitempty"`

	types.Timestamps
}

// SeatsLeft is derived, never stored.
func (r *Retreat) SeatsLeft() uint {
	if r.CurrentParticipants >= r.MaxParticipants {
		return 0
	}
	return r.MaxParticipants - r.CurrentParticipants
}

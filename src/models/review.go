package models

import "yrp/src/types"

type Review struct {
	ID        uint  `gorm:"primarykey" json:"id"`
	RetreatID uint  `gorm:"index:idx_reviews_retreat_user,unique" json:"retreat_id,omitempty"`
	UserID    uint  `gorm:"index:idx_reviews_retreat_user,unique" json:"user_id,omitempty"`
	BookingID *uint `json:"booking_id,omitempty"`

	Rating        uint8  `json:"rating"`
	Location      *uint8 `json:"location_rating,omitempty"`
	Accommodation *uint8 `json:"accommodation_rating,omitempty"`
	Food          *uint8 `json:"food_rating,omitempty"`
	Instructor    *uint8 `json:"instructor_rating,omitempty"`
	Value         *uint8 `json:"value_rating,omitempty"`
	Atmosphere    *uint8 `json:"atmosphere_rating,omitempty"`

	Comment  *string `json:"comment,omitempty"`
	Verified bool    `gorm:"default:false" json:"verified"`

	Retreat *Retreat `gorm:"foreignKey:retreat_id" json:"-"`
	User    *User    `gorm:"foreignKey:user_id" json:"user,omitempty"`
	Booking *Booking `gorm:"foreignKey:booking_id" json:"-"`

	types.Timestamps
}

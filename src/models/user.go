package models

import (
	"time"
	"yrp/src/types"
)

type User struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Name        string     `json:"name,omitempty"`
	Email       string     `gorm:"uniqueIndex" json:"email,omitempty"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
	Provider    string     `gorm:"default:'google'" json:"-"`
	ProviderUID string     `json:"-"`
	Role        string     `gorm:"default:'member'" json:"role,omitempty"`
	LastActive  *time.Time `json:"last_active,omitempty"`

	Bookings []Booking  `gorm:"foreignKey:user_id" json:"bookings,omitempty"`
	Reviews  []Review   `gorm:"foreignKey:user_id" json:"reviews,omitempty"`
	Posts    []BlogPost `gorm:"foreignKey:author_id" json:"posts,omitempty"`

	types.Timestamps
}

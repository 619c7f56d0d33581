package models

import "yrp/src/types"

type Booking struct {
	ID              uint                `gorm:"primarykey" json:"id"`
	Reference       string              `gorm:"uniqueIndex" json:"reference,omitempty"`
	RetreatID       uint                `json:"retreat_id,omitempty"`
	UserID          uint                `json:"user_id,omitempty"`
	Participants    uint                `json:"participants,omitempty"`
	GrossAmount     float64             `json:"gross_amount"`
	DiscountAmount  float64             `json:"discount_amount"`
	NetAmount       float64             `json:"net_amount"`
	Currency        string              `gorm:"default:'usd'" json:"currency,omitempty"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
	Status          types.BookingStatus `gorm:"default:'pending'" json:"status,omitempty"`
	PaymentIntentId *string             `json:"-"`

	Retreat *Retreat `gorm:"foreignKey:retreat_id" json:"retreat,omitempty"`
	User    *User    `gorm:"foreignKey:user_id" json:"user,omitempty"`

	types.Timestamps
}

package models

import (
	"time"
	"yrp/src/types"
)

type Coupon struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	Code       string     `gorm:"uniqueIndex" json:"code,omitempty"`
	PercentOff *float64   `json:"percent_off,omitempty"`
	AmountOff  *float64   `json:"amount_off,omitempty"`
	Currency   string     `gorm:"default:'usd'" json:"currency,omitempty"`
	Active     bool       `gorm:"default:true" json:"active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`

	types.Timestamps
}

func (c *Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}

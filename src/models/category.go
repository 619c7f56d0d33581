package models

import "yrp/src/types"

type Category struct {
	ID   uint               `gorm:"primarykey" json:"id"`
	Name string             `json:"name,omitempty"`
	Slug string             `gorm:"uniqueIndex" json:"slug,omitempty"`
	Kind types.CategoryKind `gorm:"default:'retreat'" json:"kind,omitempty"`

	types.Timestamps
}

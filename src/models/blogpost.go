package models

import (
	"time"
	"yrp/src/types"
)

type BlogPost struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Title       string     `json:"title,omitempty"`
	Slug        string     `gorm:"uniqueIndex" json:"slug,omitempty"`
	Excerpt     *string    `json:"excerpt,omitempty"`
	Body        string     `json:"body,omitempty"`
	CategoryID  *uint      `json:"category_id,omitempty"`
	AuthorID    uint       `json:"author_id,omitempty"`
	Published   bool       `gorm:"default:false" json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	Author   User      `gorm:"foreignKey:author_id" json:"author,omitempty"`
	Category *Category `gorm:"foreignKey:category_id" json:"category,omitempty"`

	types.Timestamps
}

package scopes

import (
	"fmt"
	"strings"
	"yrp/src/types"

	"gorm.io/gorm"
)

func WithID(id uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func Paginate(page, limit int) func(db *gorm.DB) *gorm.DB {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(offset).Limit(limit)
	}
}

// Sorted whitelists sortable columns so query params never reach the SQL
// string unchecked.
func Sorted(field, dir string, allowed ...string) func(db *gorm.DB) *gorm.DB {
	column := ""
	for _, a := range allowed {
		if a == field {
			column = a
			break
		}
	}
	if column == "" {
		column = "created_at"
	}
	if dir != "asc" {
		dir = "desc"
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(fmt.Sprintf("%s %s", column, dir))
	}
}

func WithStatus(status string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == "" {
			return db
		}
		return db.Where("status = ?", status)
	}
}

func WithCategory(id uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if id == 0 {
			return db
		}
		return db.Where("category_id = ?", id)
	}
}

func Search(term string, columns ...string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" || len(columns) == 0 {
			return db
		}
		conds := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))
		for _, c := range columns {
			conds = append(conds, fmt.Sprintf("%s ILIKE ?", c))
			args = append(args, "%"+term+"%")
		}
		return db.Where(strings.Join(conds, " OR "), args...)
	}
}

// Listed applies the whole list-query surface in one go.
func Listed(q *types.ListQueryParams, sortable []string, searchable []string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Scopes(
				WithStatus(q.Status),
				WithCategory(q.Category),
				Search(q.Search, searchable...),
				Sorted(q.Sort, q.Dir, sortable...),
				Paginate(q.Page, q.Limit),
			)
	}
}

package repository

import (
	"time"

	"gorm.io/gorm"
)

type QueryOption func(*gorm.DB) *gorm.DB

// WithStatuses 按状态过滤, 为空时不过滤
func WithStatuses(statuses ...string) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 0 {
			return db
		}
		return db.Where("status IN ?", statuses)
	}
}

// Cursor 按 (updated_at, id) 翻页的位置
type Cursor struct {
	UpdatedAt time.Time
	ID        string
}

// IsZero 零值表示从头开始
func (c Cursor) IsZero() bool {
	return c.UpdatedAt.IsZero() && c.ID == ""
}

// After 只返回排在游标之后的记录, 需配合 updated_at, id 升序
func After(c Cursor) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if c.IsZero() {
			return db
		}
		return db.Where("(updated_at > ? OR (updated_at = ? AND id > ?))", c.UpdatedAt, c.UpdatedAt, c.ID)
	}
}

func applyOptions(db *gorm.DB, opts []QueryOption) *gorm.DB {
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

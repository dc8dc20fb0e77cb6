package model

import (
	"time"
)

// Timestamps 由仓储层显式维护的时间字段, 日志与状态变更共用同一时间戳
type Timestamps struct {
	CreatedAt time.Time `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index;autoUpdateTime:false" json:"updated_at"`
}

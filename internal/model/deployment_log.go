package model

import (
	"time"

	"gorm.io/datatypes"
)

const DeploymentLogTableName = "deployment_logs"

// DeploymentLog 部署日志, 只追加
type DeploymentLog struct {
	ID           int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	DeploymentID string            `gorm:"size:36;not null;index:idx_deployment_logs_dep_time,priority:1" json:"deployment_id"`
	Level        string            `gorm:"size:16;not null" json:"level"` // info/warning/error
	Message      string            `gorm:"type:text;not null" json:"message"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;autoCreateTime:false;index:idx_deployment_logs_dep_time,priority:2" json:"created_at"`
}

// TableName 指定表名
func (DeploymentLog) TableName() string {
	return DeploymentLogTableName
}

// NewLog 构造日志条目, 时间由仓储层统一填写
func NewLog(deploymentID, level, message string, metadata map[string]interface{}) *DeploymentLog {
	entry := &DeploymentLog{
		DeploymentID: deploymentID,
		Level:        level,
		Message:      message,
	}
	if len(metadata) > 0 {
		entry.Metadata = datatypes.JSONMap(metadata)
	}
	return entry
}

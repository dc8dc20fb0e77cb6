package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/altnbk/saas-landing-page/pkg/constants"
)

const DeploymentTableName = "deployments"

// Deployment 落地页部署记录
type Deployment struct {
	ID    string `gorm:"primaryKey;size:36" json:"id"`
	Owner string `gorm:"size:64;not null;index" json:"owner"` // 发起人

	// 创建时采集, 之后不可变
	OrganizationName string `gorm:"size:100;not null" json:"organization_name" validate:"required,max=100"`
	SignerName       string `gorm:"size:100;not null" json:"signer_name" validate:"required,max=100"`
	SignerEmail      string `gorm:"size:255;not null" json:"signer_email" validate:"required,email,max=255"`

	Status string `gorm:"size:20;not null;default:queued;index" json:"status"`

	// 代码仓库
	SourceRepoName string `gorm:"size:100" json:"source_repo_name"` // 领取 creating_repo 时写入
	SourceRepoURL  string `gorm:"size:255" json:"source_repo_url"`

	// 托管平台
	HostingProjectRef   string `gorm:"size:100" json:"hosting_project_ref"`
	HostingURL          string `gorm:"size:255" json:"hosting_url"`
	HostingDeploymentID string `gorm:"size:100" json:"hosting_deployment_id"`

	ErrorMessage *string `gorm:"type:text" json:"error_message"`

	Timestamps
}

// TableName 指定表名
func (Deployment) TableName() string {
	return DeploymentTableName
}

// BeforeCreate 分配 ID 并填充默认状态
func (d *Deployment) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = constants.DeploymentStatusQueued
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = tx.NowFunc()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	return nil
}

// IsTerminal 是否处于终态
func (d *Deployment) IsTerminal() bool {
	return constants.IsTerminalStatus(d.Status)
}

// HasHostingProject 是否已创建托管项目
func (d *Deployment) HasHostingProject() bool {
	return d.HostingProjectRef != ""
}

// Age 距离上次更新的时长
func (d *Deployment) Age(now time.Time) time.Duration {
	return now.Sub(d.UpdatedAt)
}

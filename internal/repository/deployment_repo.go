package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/internal/pkg/logger"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

// Mutation 在事务内对重新加载的记录做修改
type Mutation func(dep *model.Deployment)

// 允许 Update 写回的字段, 其余字段创建后不可变
var mutableColumns = []string{
	"status",
	"source_repo_name",
	"source_repo_url",
	"hosting_project_ref",
	"hosting_url",
	"hosting_deployment_id",
	"error_message",
	"updated_at",
}

// DeploymentRepository 部署记录数据访问层
type DeploymentRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDeploymentRepository 创建部署Repository
func NewDeploymentRepository(db *gorm.DB) *DeploymentRepository {
	return &DeploymentRepository{
		db:  db,
		now: time.Now,
	}
}

// Create 创建部署记录(仅用于受理请求)
func (r *DeploymentRepository) Create(ctx context.Context, dep *model.Deployment) error {
	now := r.now()
	dep.CreatedAt = now
	dep.UpdatedAt = now
	if dep.Status == "" {
		dep.Status = constants.DeploymentStatusQueued
	}
	if err := r.db.WithContext(ctx).Create(dep).Error; err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "创建部署记录失败", err)
	}
	return nil
}

// FindByID 根据ID获取部署记录
func (r *DeploymentRepository) FindByID(ctx context.Context, id string) (*model.Deployment, error) {
	var dep model.Deployment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dep).Error; err != nil {
		return nil, translate(err)
	}
	return &dep, nil
}

// Update 条件更新部署记录
//
// 事务内重新加载记录, 终态记录拒绝修改; expectedStatus 非空时要求当前状态一致.
// 附带的日志先于状态写入, 且与 updated_at 共用同一时间戳.
// 最终以 WHERE id = ? AND status = <old> 落库, 影响行数为0视为并发冲突.
func (r *DeploymentRepository) Update(ctx context.Context, id, expectedStatus string, mutate Mutation, logs ...*model.DeploymentLog) (*model.Deployment, error) {
	var updated *model.Deployment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dep model.Deployment
		if err := tx.Where("id = ?", id).First(&dep).Error; err != nil {
			return translate(err)
		}

		if dep.IsTerminal() {
			return pkgErrors.ErrTerminalRecord
		}
		if expectedStatus != "" && dep.Status != expectedStatus {
			return pkgErrors.ErrStatusConflict
		}

		oldStatus := dep.Status
		if mutate != nil {
			mutate(&dep)
		}
		if dep.Status != oldStatus && !constants.CanAdvance(oldStatus, dep.Status) {
			logger.Warn("拒绝非单调状态变更",
				zap.String("deployment_id", id),
				zap.String("from", oldStatus),
				zap.String("to", dep.Status))
			return pkgErrors.ErrStatusConflict
		}

		now := r.now()
		for _, entry := range logs {
			if entry == nil {
				continue
			}
			entry.DeploymentID = id
			entry.CreatedAt = now
			if err := tx.Create(entry).Error; err != nil {
				return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "写入部署日志失败", err)
			}
		}

		dep.UpdatedAt = now
		result := tx.Model(&dep).
			Where("status = ?", oldStatus).
			Select(mutableColumns).
			Updates(&dep)
		if result.Error != nil {
			return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "更新部署记录失败", result.Error)
		}
		if result.RowsAffected == 0 {
			return pkgErrors.ErrStatusConflict
		}

		updated = &dep
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AppendLog 追加部署日志
func (r *DeploymentRepository) AppendLog(ctx context.Context, entry *model.DeploymentLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "写入部署日志失败", err)
	}
	return nil
}

// ListLogs 按时间顺序获取部署日志
func (r *DeploymentRepository) ListLogs(ctx context.Context, deploymentID string) ([]*model.DeploymentLog, error) {
	var logs []*model.DeploymentLog
	err := r.db.WithContext(ctx).
		Where("deployment_id = ?", deploymentID).
		Order("created_at ASC").
		Order("id ASC"). // 同一时间戳按写入顺序
		Find(&logs).Error
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询部署日志失败", err)
	}
	return logs, nil
}

// ListByStatus 按状态获取部署记录, 按 updated_at, id 升序, 可配合 After 翻页
func (r *DeploymentRepository) ListByStatus(ctx context.Context, statuses []string, limit int, opts ...QueryOption) ([]*model.Deployment, error) {
	var deps []*model.Deployment
	query := applyOptions(r.db.WithContext(ctx), append([]QueryOption{WithStatuses(statuses...)}, opts...)).
		Order("updated_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&deps).Error; err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询部署记录失败", err)
	}
	return deps, nil
}

// ListStale 获取在指定状态下停留超过 before 的记录
func (r *DeploymentRepository) ListStale(ctx context.Context, statuses []string, before time.Time, limit int) ([]*model.Deployment, error) {
	var deps []*model.Deployment
	query := applyOptions(r.db.WithContext(ctx), []QueryOption{WithStatuses(statuses...)}).
		Where("updated_at < ?", before).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&deps).Error; err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询停滞部署失败", err)
	}
	return deps, nil
}

// ListByOwner 分页查询发起人的部署记录
func (r *DeploymentRepository) ListByOwner(ctx context.Context, owner string, page, pageSize int, opts ...QueryOption) ([]*model.Deployment, int64, error) {
	var deps []*model.Deployment
	var total int64

	base := func() *gorm.DB {
		return applyOptions(r.db.WithContext(ctx).Model(&model.Deployment{}).Where("owner = ?", owner), opts)
	}

	// 统计总数
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "统计部署记录失败", err)
	}

	// 分页查询
	offset := (page - 1) * pageSize
	err := base().
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&deps).Error
	if err != nil {
		return nil, 0, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询部署记录失败", err)
	}
	return deps, total, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgErrors.ErrRecordNotFound
	}
	return pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询部署记录失败", err)
}

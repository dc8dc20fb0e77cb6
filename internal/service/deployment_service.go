package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/core/deployment"
	"github.com/altnbk/saas-landing-page/internal/dto"
	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/internal/pkg/auth"
	"github.com/altnbk/saas-landing-page/internal/repository"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
	"github.com/altnbk/saas-landing-page/pkg/utils"
)

// Caller 当前请求的调用方
type Caller struct {
	UID   string
	Roles []string
}

// Can 调用方是否拥有权限
func (c Caller) Can(perm auth.Permission) bool {
	return auth.Allow(c.Roles, perm)
}

// DeploymentStore 部署记录读写
type DeploymentStore interface {
	Create(ctx context.Context, dep *model.Deployment) error
	FindByID(ctx context.Context, id string) (*model.Deployment, error)
	ListLogs(ctx context.Context, deploymentID string) ([]*model.DeploymentLog, error)
	ListByOwner(ctx context.Context, owner string, page, pageSize int, opts ...repository.QueryOption) ([]*model.Deployment, int64, error)
}

// Orchestrator 部署编排
type Orchestrator interface {
	Run(ctx context.Context, id string) (*deployment.Result, error)
	CheckStatus(ctx context.Context, id string) (*deployment.Result, error)
	Cleanup(ctx context.Context, id string) error
}

type DeploymentService interface {
	Create(ctx context.Context, caller Caller, req *dto.CreateDeploymentRequest) (*dto.DeploymentResponse, error)
	Get(ctx context.Context, caller Caller, id string) (*dto.DeploymentDetailResponse, error)
	List(ctx context.Context, caller Caller, query *dto.ListDeploymentsQuery) (*dto.PageResponse, error)
	Run(ctx context.Context, caller Caller, id string) (*dto.DeploymentResultResponse, error)
	CheckStatus(ctx context.Context, caller Caller, id string) (*dto.DeploymentResultResponse, error)
	Cleanup(ctx context.Context, caller Caller, id string) error
}

type deploymentService struct {
	store  DeploymentStore
	orch   Orchestrator
	logger *zap.Logger
}

func NewDeploymentService(store DeploymentStore, orch Orchestrator, logger *zap.Logger) DeploymentService {
	return &deploymentService{
		store:  store,
		orch:   orch,
		logger: logger,
	}
}

// Create 受理部署请求, 记录以 queued 状态落库, 需再调用 Run 触发
func (s *deploymentService) Create(ctx context.Context, caller Caller, req *dto.CreateDeploymentRequest) (*dto.DeploymentResponse, error) {
	if !caller.Can(auth.PermDeploymentCreate) {
		return nil, pkgErrors.ErrForbidden
	}

	dep := &model.Deployment{
		Owner:            caller.UID,
		OrganizationName: strings.TrimSpace(req.OrganizationName),
		SignerName:       strings.TrimSpace(req.SignerName),
		SignerEmail:      strings.TrimSpace(req.SignerEmail),
	}
	if err := utils.ValidateStruct(dep); err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeValidationError, "数据验证失败", err)
	}

	if err := s.store.Create(ctx, dep); err != nil {
		return nil, err
	}

	s.logger.Info("受理部署请求",
		zap.String("deployment_id", dep.ID),
		zap.String("owner", dep.Owner),
		zap.String("organization", dep.OrganizationName))
	return dto.ToDeploymentResponse(dep), nil
}

func (s *deploymentService) Get(ctx context.Context, caller Caller, id string) (*dto.DeploymentDetailResponse, error) {
	dep, err := s.authorize(ctx, caller, id, auth.PermDeploymentView)
	if err != nil {
		return nil, err
	}

	logs, err := s.store.ListLogs(ctx, dep.ID)
	if err != nil {
		return nil, err
	}
	return dto.ToDeploymentDetailResponse(dep, logs), nil
}

func (s *deploymentService) List(ctx context.Context, caller Caller, query *dto.ListDeploymentsQuery) (*dto.PageResponse, error) {
	if !caller.Can(auth.PermDeploymentView) {
		return nil, pkgErrors.ErrForbidden
	}

	var opts []repository.QueryOption
	if query.Status != "" {
		opts = append(opts, repository.WithStatuses(query.Status))
	}

	deps, total, err := s.store.ListByOwner(ctx, caller.UID, query.GetPage(), query.GetPageSize(), opts...)
	if err != nil {
		return nil, err
	}
	return dto.NewPageResponse(dto.ToDeploymentResponses(deps), total, query.GetPage(), query.GetPageSize()), nil
}

// Run 触发部署
//
// 编排失败时记录已落库, 返回结果的同时返回错误, 由调用方决定如何展示.
func (s *deploymentService) Run(ctx context.Context, caller Caller, id string) (*dto.DeploymentResultResponse, error) {
	if _, err := s.authorize(ctx, caller, id, auth.PermDeploymentRun); err != nil {
		return nil, err
	}

	res, err := s.orch.Run(ctx, id)
	if res == nil {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("部署执行失败", zap.String("deployment_id", id), zap.String("status", res.Status), zap.Error(err))
	}
	return dto.ToDeploymentResultResponse(res), err
}

func (s *deploymentService) CheckStatus(ctx context.Context, caller Caller, id string) (*dto.DeploymentResultResponse, error) {
	if _, err := s.authorize(ctx, caller, id, auth.PermDeploymentView); err != nil {
		return nil, err
	}

	res, err := s.orch.CheckStatus(ctx, id)
	if res == nil {
		return nil, err
	}
	return dto.ToDeploymentResultResponse(res), err
}

// Cleanup 删除外部资源, 仅管理员
func (s *deploymentService) Cleanup(ctx context.Context, caller Caller, id string) error {
	if !caller.Can(auth.PermDeploymentCleanup) {
		return pkgErrors.ErrForbidden
	}
	if err := s.orch.Cleanup(ctx, id); err != nil {
		return err
	}
	s.logger.Info("已清理部署外部资源", zap.String("deployment_id", id), zap.String("operator", caller.UID))
	return nil
}

// authorize 查询部署并校验归属, 非本人且无 view:all 权限时按不存在处理
func (s *deploymentService) authorize(ctx context.Context, caller Caller, id string, perm auth.Permission) (*model.Deployment, error) {
	if !caller.Can(perm) {
		return nil, pkgErrors.ErrForbidden
	}

	dep, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dep.Owner != caller.UID && !caller.Can(auth.PermDeploymentViewAll) {
		return nil, pkgErrors.ErrRecordNotFound
	}
	return dep, nil
}

package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/altnbk/saas-landing-page/internal/core/deployment"
	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/internal/repository"
	"github.com/altnbk/saas-landing-page/pkg/constants"
)

// DeploymentLister 查询待复查的部署
type DeploymentLister interface {
	ListByStatus(ctx context.Context, statuses []string, limit int, opts ...repository.QueryOption) ([]*model.Deployment, error)
}

// StatusChecker 单次复查构建状态
type StatusChecker interface {
	CheckStatus(ctx context.Context, id string) (*deployment.Result, error)
}

// DeploymentScanner 周期性复查 deploying 状态的部署
type DeploymentScanner struct {
	lister      DeploymentLister
	checker     StatusChecker
	logger      *zap.Logger
	batchSize   int
	concurrency int

	mu       sync.Mutex
	inflight map[string]struct{}
	cursor   repository.Cursor // 下一批的起点, 每轮向后推进, 到末尾后回到开头
}

// NewDeploymentScanner 创建扫描器
func NewDeploymentScanner(lister DeploymentLister, checker StatusChecker, batchSize, concurrency int, logger *zap.Logger) *DeploymentScanner {
	if concurrency <= 0 {
		concurrency = 1
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &DeploymentScanner{
		lister:      lister,
		checker:     checker,
		logger:      logger,
		batchSize:   batchSize,
		concurrency: concurrency,
		inflight:    make(map[string]struct{}),
	}
}

// ScanDeployments 扫描一轮, 返回本轮实际复查的记录数
//
// 每轮从上一轮结束的位置取下一批, 保证所有 deploying 记录轮流得到复查;
// 上一轮仍在复查的记录会被跳过.
func (s *DeploymentScanner) ScanDeployments(ctx context.Context) int {
	deps, err := s.nextBatch(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[DeploymentScanner] 查询部署失败: %v", err))
		return 0
	}

	ids := lo.Map(deps, func(d *model.Deployment, _ int) string { return d.ID })
	s.logger.Debug(fmt.Sprintf("[DeploymentScanner] 待复查的Deployment %v个: %v", len(ids), ids))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	checked := 0

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if !s.acquire(id) {
			continue
		}
		checked++

		id := id
		g.Go(func() error {
			defer s.release(id)
			s.check(ctx, id)
			return nil
		})
	}

	_ = g.Wait()
	return checked
}

// nextBatch 按游标取下一批, 取空时从头再取一次
func (s *DeploymentScanner) nextBatch(ctx context.Context) ([]*model.Deployment, error) {
	statuses := []string{constants.DeploymentStatusDeploying}

	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()

	deps, err := s.lister.ListByStatus(ctx, statuses, s.batchSize, repository.After(cursor))
	if err != nil {
		return nil, err
	}
	if len(deps) == 0 && !cursor.IsZero() {
		deps, err = s.lister.ListByStatus(ctx, statuses, s.batchSize)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(deps) < s.batchSize {
		s.cursor = repository.Cursor{}
	} else {
		last := deps[len(deps)-1]
		s.cursor = repository.Cursor{UpdatedAt: last.UpdatedAt, ID: last.ID}
	}
	return deps, nil
}

func (s *DeploymentScanner) check(ctx context.Context, id string) {
	start := time.Now()
	res, err := s.checker.CheckStatus(ctx, id)
	if err != nil {
		s.logger.Warn("[DeploymentScanner] 复查失败", zap.String("deployment_id", id), zap.Error(err))
		return
	}
	if res.Status != constants.DeploymentStatusDeploying {
		s.logger.Info("[DeploymentScanner] 部署已结束",
			zap.String("deployment_id", id),
			zap.String("status", res.Status),
			zap.Duration("cost", time.Since(start)))
	}
}

func (s *DeploymentScanner) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *DeploymentScanner) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/adapter/hosting"
	"github.com/altnbk/saas-landing-page/internal/adapter/notification"
	"github.com/altnbk/saas-landing-page/internal/adapter/source"
	"github.com/altnbk/saas-landing-page/internal/core/naming"
	"github.com/altnbk/saas-landing-page/internal/core/site"
	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/internal/pkg/metrics"
	"github.com/altnbk/saas-landing-page/internal/repository"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

// Ledger 部署记录存储
type Ledger interface {
	FindByID(ctx context.Context, id string) (*model.Deployment, error)
	Update(ctx context.Context, id, expectedStatus string, mutate repository.Mutation, logs ...*model.DeploymentLog) (*model.Deployment, error)
	AppendLog(ctx context.Context, entry *model.DeploymentLog) error
	ListStale(ctx context.Context, statuses []string, before time.Time, limit int) ([]*model.Deployment, error)
}

// Options 编排参数
type Options struct {
	StepTimeout     time.Duration // 单次外部调用超时
	PollMaxAttempts int
	PollInterval    time.Duration
	AppURL          string // 通知中的控制台地址
	ReapBatchSize   int
}

func (o *Options) normalize() {
	if o.StepTimeout <= 0 {
		o.StepTimeout = 60 * time.Second
	}
	if o.PollMaxAttempts <= 0 {
		o.PollMaxAttempts = 3
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.ReapBatchSize <= 0 {
		o.ReapBatchSize = 100
	}
}

// Deps 外部依赖
type Deps struct {
	Ledger   Ledger
	Source   source.Provisioner
	Hosting  hosting.Provisioner
	Notifier notification.Notifier
	Namer    *naming.Namer
	Renderer *site.Renderer
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// StateMachine 落地页部署编排
//
// 每个非终态注册一个 Handler, Run 从 queued 领取后依次驱动, 直到终态或构建仍在进行.
type StateMachine struct {
	ledger   Ledger
	source   source.Provisioner
	hosting  hosting.Provisioner
	notifier notification.Notifier
	namer    *naming.Namer
	renderer *site.Renderer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     Options

	handlers map[string]Handler
	now      func() time.Time
}

// NewStateMachine 创建部署状态机
func NewStateMachine(deps Deps, opts Options) *StateMachine {
	opts.normalize()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewLogNotifier(deps.Logger)
	}
	if deps.Namer == nil {
		deps.Namer = naming.New(naming.DefaultPrefix, naming.DefaultMaxSlugLength)
	}

	sm := &StateMachine{
		ledger:   deps.Ledger,
		source:   deps.Source,
		hosting:  deps.Hosting,
		notifier: deps.Notifier,
		namer:    deps.Namer,
		renderer: deps.Renderer,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		opts:     opts,
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
	sm.registerHandlers()
	return sm
}

// Result 一次 Run / CheckStatus 的结果
type Result struct {
	DeploymentID string  `json:"deployment_id"`
	Status       string  `json:"status"`
	InProgress   bool    `json:"in_progress"` // 构建仍在进行, 稍后通过 CheckStatus 复查
	Noop         bool    `json:"noop"`        // 记录已被其他调用处理, 本次未做任何操作
	HostingURL   string  `json:"hosting_url,omitempty"`
	RepoURL      string  `json:"repo_url,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

func resultOf(dep *model.Deployment) *Result {
	return &Result{
		DeploymentID: dep.ID,
		Status:       dep.Status,
		InProgress:   dep.Status == constants.DeploymentStatusDeploying,
		HostingURL:   dep.HostingURL,
		RepoURL:      dep.SourceRepoURL,
		ErrorMessage: dep.ErrorMessage,
	}
}

// Run 执行完整部署流程, 幂等
//
// 只有 queued 状态会被处理; 其他状态直接返回当前结果且没有任何副作用.
// 两个并发调用中只有一个能通过条件更新领取记录.
func (sm *StateMachine) Run(ctx context.Context, id string) (*Result, error) {
	dep, err := sm.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dep.Status != constants.DeploymentStatusQueued {
		res := resultOf(dep)
		res.Noop = true
		return res, nil
	}

	dep, err = sm.claim(ctx, dep)
	if err != nil {
		if isLostRace(err) {
			return sm.noop(ctx, id)
		}
		return nil, err
	}

	return sm.drive(ctx, dep)
}

// claim queued -> creating_repo, 同时确定仓库名
func (sm *StateMachine) claim(ctx context.Context, dep *model.Deployment) (*model.Deployment, error) {
	repoName := sm.namer.Derive(dep.OrganizationName)

	claimed, err := sm.ledger.Update(ctx, dep.ID, constants.DeploymentStatusQueued, func(d *model.Deployment) {
		d.Status = constants.DeploymentStatusCreatingRepo
		d.SourceRepoName = repoName
	}, model.NewLog(dep.ID, constants.LogLevelInfo, "Starting GitHub repository creation", map[string]interface{}{
		"repo_name": repoName,
	}))
	if err != nil {
		return nil, err
	}

	sm.metrics.Transition(constants.DeploymentStatusQueued, constants.DeploymentStatusCreatingRepo)
	sm.logger.Info("[Deployment SM] 领取部署",
		zap.String("deployment_id", dep.ID),
		zap.String("repo_name", repoName))
	return claimed, nil
}

// drive 依次执行各状态的 handler
func (sm *StateMachine) drive(ctx context.Context, dep *model.Deployment) (*Result, error) {
	for !dep.IsTerminal() {
		handler, ok := sm.handlers[dep.Status]
		if !ok {
			sm.logger.Warn("未知 Deployment 状态", zap.String("deployment_id", dep.ID), zap.String("status", dep.Status))
			return resultOf(dep), fmt.Errorf("未知的部署状态: %s", dep.Status)
		}

		next, err := handler.Handle(ctx, dep)
		if err != nil {
			if next != nil {
				return resultOf(next), err
			}
			return resultOf(dep), err
		}
		if next.Status == dep.Status {
			// 构建仍在进行
			return resultOf(next), nil
		}
		dep = next
	}
	return resultOf(dep), nil
}

// CheckStatus 单次只读复查构建状态, 从不调用创建类接口
func (sm *StateMachine) CheckStatus(ctx context.Context, id string) (*Result, error) {
	dep, err := sm.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dep.IsTerminal() || dep.Status != constants.DeploymentStatusDeploying || !dep.HasHostingProject() {
		return resultOf(dep), nil
	}

	next, err := sm.observeOnce(ctx, dep)
	if err != nil {
		return resultOf(next), err
	}
	return resultOf(next), nil
}

func (sm *StateMachine) noop(ctx context.Context, id string) (*Result, error) {
	current, err := sm.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res := resultOf(current)
	res.Noop = true
	return res, nil
}

// isLostRace 条件更新失败: 记录已被其他调用推进或已终态
func isLostRace(err error) bool {
	return errors.Is(err, pkgErrors.ErrStatusConflict) || errors.Is(err, pkgErrors.ErrTerminalRecord)
}

func setErrorMessage(dep *model.Deployment, msg string) {
	if msg == "" {
		dep.ErrorMessage = nil
		return
	}
	if dep.ErrorMessage == nil {
		dep.ErrorMessage = new(string)
	}
	*dep.ErrorMessage = msg
}

package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/adapter/notification"
	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

// Outcome 步骤成功后的落库内容
type Outcome struct {
	Apply   func(d *model.Deployment)
	Message string
	Meta    map[string]interface{}
}

// Step 一次带外部副作用的状态推进
type Step struct {
	Name       string
	From       string
	To         string
	Intent     string // 调用前写入的日志, 为空表示意图已在领取时记录
	FailPrefix string // 失败时 error_message 的前缀
	Action     func(ctx context.Context, dep *model.Deployment) (*Outcome, error)
}

// execute 执行步骤
//
// 调用前写意图日志; 成功时状态与日志在同一事务中落库;
// 失败时写错误日志, 设置 error_message 并进入 failed, 不回滚已创建的外部资源.
func (sm *StateMachine) execute(ctx context.Context, dep *model.Deployment, step Step) (*model.Deployment, error) {
	log := sm.logger.With(zap.String("deployment_id", dep.ID), zap.String("step", step.Name))

	if step.Intent != "" {
		if err := sm.ledger.AppendLog(ctx, model.NewLog(dep.ID, constants.LogLevelInfo, step.Intent, nil)); err != nil {
			return dep, err
		}
	}

	stepCtx, cancel := context.WithTimeout(ctx, sm.opts.StepTimeout)
	start := time.Now()
	outcome, err := step.Action(stepCtx, dep)
	cancel()
	sm.metrics.ObserveStep(step.Name, err, time.Since(start))

	if err != nil {
		log.Error("步骤执行失败", zap.Error(err), zap.Stringer("kind", pkgErrors.KindOf(err)))
		next, ferr := sm.fail(ctx, dep, step.From, step.FailPrefix+errorText(err), map[string]interface{}{
			"step":      step.Name,
			"kind":      pkgErrors.KindOf(err).String(),
			"retryable": pkgErrors.IsRetryable(err),
		})
		if ferr != nil {
			log.Error("记录失败状态失败", zap.Error(ferr))
		}
		return next, fmt.Errorf("%s: %w", step.Name, err)
	}

	next, err := sm.ledger.Update(ctx, dep.ID, step.From, func(d *model.Deployment) {
		if outcome.Apply != nil {
			outcome.Apply(d)
		}
		d.Status = step.To
	}, model.NewLog(dep.ID, constants.LogLevelInfo, outcome.Message, outcome.Meta))
	if err != nil {
		if isLostRace(err) {
			return sm.orphaned(ctx, dep, step, outcome, err)
		}
		log.Error("步骤结果落库失败", zap.Error(err))
		return dep, err
	}

	sm.metrics.Transition(step.From, step.To)
	log.Info(fmt.Sprintf("[Deployment SM] 状态变更成功: %v -> %v", step.From, step.To))
	return next, nil
}

// orphaned 外部调用已成功, 但记录已被其他调用关闭(例如被回收)
//
// 状态不再改变, 只追加一条警告日志保留已创建资源的信息.
func (sm *StateMachine) orphaned(ctx context.Context, dep *model.Deployment, step Step, outcome *Outcome, cause error) (*model.Deployment, error) {
	meta := map[string]interface{}{"step": step.Name}
	for k, v := range outcome.Meta {
		meta[k] = v
	}
	entry := model.NewLog(dep.ID, constants.LogLevelWarning,
		fmt.Sprintf("%s completed after the deployment was closed: %s", step.Name, outcome.Message), meta)
	if lerr := sm.ledger.AppendLog(ctx, entry); lerr != nil {
		sm.logger.Error("写入孤立资源日志失败", zap.String("deployment_id", dep.ID), zap.Error(lerr))
	}
	sm.logger.Warn("步骤完成时记录已被关闭, 外部资源保留",
		zap.String("deployment_id", dep.ID),
		zap.String("step", step.Name),
		zap.Any("meta", outcome.Meta))

	if current, ferr := sm.ledger.FindByID(ctx, dep.ID); ferr == nil {
		dep = current
	}
	return dep, fmt.Errorf("%s: %w", step.Name, cause)
}

// fail 写错误日志并进入 failed, 随后发送失败通知
//
// 条件更新冲突说明记录已被其他调用推进, 此时返回最新记录且不再通知.
func (sm *StateMachine) fail(ctx context.Context, dep *model.Deployment, from, message string, meta map[string]interface{}) (*model.Deployment, error) {
	next, err := sm.ledger.Update(ctx, dep.ID, from, func(d *model.Deployment) {
		d.Status = constants.DeploymentStatusFailed
		setErrorMessage(d, message)
	}, model.NewLog(dep.ID, constants.LogLevelError, message, meta))
	if err != nil {
		if isLostRace(err) {
			if current, ferr := sm.ledger.FindByID(ctx, dep.ID); ferr == nil {
				return current, nil
			}
		}
		return dep, err
	}

	sm.metrics.Transition(from, constants.DeploymentStatusFailed)
	sm.notify(ctx, next, notification.KindFailed)
	return next, nil
}

// notify 发送通知, 失败只记录警告, 不影响部署结果
func (sm *StateMachine) notify(ctx context.Context, dep *model.Deployment, kind notification.Kind) {
	msg := &notification.Message{
		Kind:             kind,
		Recipient:        dep.SignerEmail,
		OrganizationName: dep.OrganizationName,
		DeploymentID:     dep.ID,
		HostingURL:       dep.HostingURL,
		RepoURL:          dep.SourceRepoURL,
		DashboardURL:     notification.DashboardLink(sm.opts.AppURL, dep.ID),
		Timestamp:        sm.now(),
	}
	if dep.ErrorMessage != nil {
		msg.Error = *dep.ErrorMessage
	}

	notifyCtx, cancel := context.WithTimeout(ctx, sm.opts.StepTimeout)
	defer cancel()

	if err := sm.notifier.Notify(notifyCtx, msg); err != nil {
		sm.metrics.NotifyFailed(string(kind))
		sm.logger.Warn("发送通知失败",
			zap.String("deployment_id", dep.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		entry := model.NewLog(dep.ID, constants.LogLevelWarning,
			fmt.Sprintf("Failed to send %s notification: %v", kind, err), nil)
		if lerr := sm.ledger.AppendLog(ctx, entry); lerr != nil {
			sm.logger.Warn("写入通知失败日志失败", zap.String("deployment_id", dep.ID), zap.Error(lerr))
		}
	}
}

// errorText 优先使用平台返回的原始信息
func errorText(err error) string {
	var pe *pkgErrors.ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}

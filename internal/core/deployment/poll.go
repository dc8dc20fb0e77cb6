package deployment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/adapter/hosting"
	"github.com/altnbk/saas-landing-page/internal/adapter/notification"
	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

const deployFailedMessage = "Cloudflare deployment failed"

type verdict int

const (
	verdictPending verdict = iota
	verdictSuccess
	verdictFailure
)

// observation 一次构建状态观测
type observation struct {
	verdict verdict
	status  *hosting.BuildStatus
	err     error // 观测本身出错; 可重试的错误按进行中处理
}

// poll 有界轮询: 最多 PollMaxAttempts 次, 间隔 PollInterval
//
// 等待期间不持有任何锁; 次数耗尽不是错误, 记录保持 deploying 等待后续复查.
func (sm *StateMachine) poll(ctx context.Context, dep *model.Deployment) (*model.Deployment, error) {
	log := sm.logger.With(zap.String("deployment_id", dep.ID))

	for attempt := 1; attempt <= sm.opts.PollMaxAttempts; attempt++ {
		next, done, err := sm.observeAndSettle(ctx, dep)
		if done || err != nil {
			return next, err
		}
		dep = next

		if attempt == sm.opts.PollMaxAttempts {
			break
		}

		timer := time.NewTimer(sm.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("轮询被取消, 保持 deploying", zap.Int("attempt", attempt))
			return dep, ctx.Err()
		case <-timer.C:
		}
	}

	log.Info("构建仍在进行, 等待后续复查", zap.Int("attempts", sm.opts.PollMaxAttempts))
	entry := model.NewLog(dep.ID, constants.LogLevelInfo,
		fmt.Sprintf("Build still in progress after %d checks", sm.opts.PollMaxAttempts), nil)
	if err := sm.ledger.AppendLog(ctx, entry); err != nil {
		log.Warn("写入轮询进度日志失败", zap.Error(err))
	}
	return dep, nil
}

// observeOnce CheckStatus 使用的单次观测
func (sm *StateMachine) observeOnce(ctx context.Context, dep *model.Deployment) (*model.Deployment, error) {
	next, _, err := sm.observeAndSettle(ctx, dep)
	return next, err
}

// observeAndSettle 观测一次, 终态时落库; done 表示记录已离开 deploying
func (sm *StateMachine) observeAndSettle(ctx context.Context, dep *model.Deployment) (*model.Deployment, bool, error) {
	obs, dep := sm.observe(ctx, dep)

	switch obs.verdict {
	case verdictSuccess:
		next, err := sm.complete(ctx, dep, obs.status)
		return next, err == nil && next.Status != constants.DeploymentStatusDeploying, err
	case verdictFailure:
		message := deployFailedMessage
		meta := map[string]interface{}{"step": "poll"}
		if obs.status != nil {
			meta["stage"] = obs.status.Stage
			meta["stage_status"] = obs.status.Status
		}
		if obs.err != nil {
			message = "Cloudflare status check failed: " + errorText(obs.err)
			meta["kind"] = pkgErrors.KindOf(obs.err).String()
		}
		next, err := sm.fail(ctx, dep, constants.DeploymentStatusDeploying, message, meta)
		if err != nil {
			return next, false, err
		}
		return next, next.Status != constants.DeploymentStatusDeploying, nil
	}
	return dep, false, nil
}

// observe 只读查询构建状态
//
// 部署ID未知时先查询最近一次部署并补记ID.
func (sm *StateMachine) observe(ctx context.Context, dep *model.Deployment) (observation, *model.Deployment) {
	callCtx, cancel := context.WithTimeout(ctx, sm.opts.StepTimeout)
	defer cancel()

	var status *hosting.BuildStatus
	var err error

	if dep.HostingDeploymentID == "" {
		var latest *hosting.DeploymentInfo
		latest, err = sm.hosting.LatestDeployment(callCtx, dep.HostingProjectRef)
		if err == nil && latest == nil {
			sm.metrics.PollObserved("in_progress")
			return observation{verdict: verdictPending}, dep
		}
		if err == nil {
			status = &latest.Stage
			if updated, uerr := sm.ledger.Update(ctx, dep.ID, constants.DeploymentStatusDeploying, func(d *model.Deployment) {
				d.HostingDeploymentID = latest.ID
			}); uerr == nil {
				dep = updated
			} else {
				sm.logger.Warn("补记部署ID失败", zap.String("deployment_id", dep.ID), zap.Error(uerr))
			}
		}
	} else {
		status, err = sm.hosting.GetDeploymentStatus(callCtx, dep.HostingProjectRef, dep.HostingDeploymentID)
	}

	if err != nil {
		if pkgErrors.IsRetryable(err) {
			sm.metrics.PollObserved("error")
			sm.logger.Warn("查询构建状态失败, 稍后重试",
				zap.String("deployment_id", dep.ID),
				zap.Stringer("kind", pkgErrors.KindOf(err)),
				zap.Error(err))
			return observation{verdict: verdictPending, err: err}, dep
		}
		sm.metrics.PollObserved("failure")
		return observation{verdict: verdictFailure, err: err}, dep
	}

	switch {
	case status.Succeeded():
		sm.metrics.PollObserved("success")
		return observation{verdict: verdictSuccess, status: status}, dep
	case status.Failed():
		sm.metrics.PollObserved("failure")
		return observation{verdict: verdictFailure, status: status}, dep
	}
	sm.metrics.PollObserved("in_progress")
	return observation{verdict: verdictPending, status: status}, dep
}

// complete deploying -> live, 发送成功通知
func (sm *StateMachine) complete(ctx context.Context, dep *model.Deployment, status *hosting.BuildStatus) (*model.Deployment, error) {
	meta := map[string]interface{}{"pages_url": dep.HostingURL}
	if status != nil && status.URL != "" {
		meta["deployment_url"] = status.URL
	}

	next, err := sm.ledger.Update(ctx, dep.ID, constants.DeploymentStatusDeploying, func(d *model.Deployment) {
		d.Status = constants.DeploymentStatusLive
		if d.HostingURL == "" && status != nil {
			d.HostingURL = status.URL
		}
	}, model.NewLog(dep.ID, constants.LogLevelInfo, "Deployment completed successfully!", meta))
	if err != nil {
		if isLostRace(err) {
			if current, ferr := sm.ledger.FindByID(ctx, dep.ID); ferr == nil {
				return current, nil
			}
		}
		return dep, err
	}

	sm.metrics.Transition(constants.DeploymentStatusDeploying, constants.DeploymentStatusLive)
	sm.logger.Info("[Deployment SM] 部署上线", zap.String("deployment_id", dep.ID), zap.String("url", next.HostingURL))
	sm.notify(ctx, next, notification.KindSuccess)
	return next, nil
}

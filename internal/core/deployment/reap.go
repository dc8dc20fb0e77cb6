package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

const stepInterruptedMessage = "step interrupted"

// 可能因进程中断而停留的状态
var interruptibleStatuses = []string{
	constants.DeploymentStatusCreatingRepo,
	constants.DeploymentStatusCreatingPages,
}

// Reap 将长时间停留在创建步骤中的记录标记为失败
//
// 外部调用是否已生效无法确定, 因此只记录仓库是否存在供人工核对, 不做任何补偿.
func (sm *StateMachine) Reap(ctx context.Context, staleAfter time.Duration) (int, error) {
	before := sm.now().Add(-staleAfter)
	stale, err := sm.ledger.ListStale(ctx, interruptibleStatuses, before, sm.opts.ReapBatchSize)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, dep := range stale {
		meta := map[string]interface{}{
			"step":        dep.Status,
			"stale_for":   sm.now().Sub(dep.UpdatedAt).Round(time.Second).String(),
			"repo_name":   dep.SourceRepoName,
			"repo_exists": sm.repoExists(ctx, dep),
		}

		next, err := sm.fail(ctx, dep, dep.Status, stepInterruptedMessage, meta)
		if err != nil {
			sm.logger.Error("回收中断部署失败", zap.String("deployment_id", dep.ID), zap.Error(err))
			continue
		}
		if next.Status == constants.DeploymentStatusFailed && next.ErrorMessage != nil && *next.ErrorMessage == stepInterruptedMessage {
			reaped++
			sm.logger.Warn("[Deployment SM] 回收中断部署",
				zap.String("deployment_id", dep.ID),
				zap.String("step", dep.Status),
				zap.Any("repo_exists", meta["repo_exists"]))
		}
	}
	return reaped, nil
}

// repoExists 返回 true/false, 无法确定时返回 "unknown"
func (sm *StateMachine) repoExists(ctx context.Context, dep *model.Deployment) interface{} {
	if dep.SourceRepoName == "" {
		return false
	}
	callCtx, cancel := context.WithTimeout(ctx, sm.opts.StepTimeout)
	defer cancel()

	exists, err := sm.source.Exists(callCtx, dep.SourceRepoName)
	if err != nil {
		sm.logger.Warn("查询仓库是否存在失败", zap.String("deployment_id", dep.ID), zap.Error(err))
		return "unknown"
	}
	return exists
}

// Cleanup 删除终态部署的托管项目与代码仓库, 不修改部署状态
func (sm *StateMachine) Cleanup(ctx context.Context, id string) error {
	dep, err := sm.ledger.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !dep.IsTerminal() {
		return pkgErrors.ErrDeploymentActive
	}

	var errs []error
	if dep.HostingProjectRef != "" {
		errs = append(errs, sm.cleanupStep(ctx, dep, "Hosting project", dep.HostingProjectRef, func(ctx context.Context) error {
			return sm.hosting.DeleteProject(ctx, dep.HostingProjectRef)
		}))
	}
	if dep.SourceRepoName != "" {
		errs = append(errs, sm.cleanupStep(ctx, dep, "Source repository", dep.SourceRepoName, func(ctx context.Context) error {
			return sm.source.Delete(ctx, dep.SourceRepoName)
		}))
	}
	return errors.Join(errs...)
}

func (sm *StateMachine) cleanupStep(ctx context.Context, dep *model.Deployment, what, name string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, sm.opts.StepTimeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		sm.logger.Warn("清理外部资源失败", zap.String("deployment_id", dep.ID), zap.String("resource", name), zap.Error(err))
		_ = sm.ledger.AppendLog(ctx, model.NewLog(dep.ID, constants.LogLevelWarning,
			fmt.Sprintf("%s cleanup failed: %s", what, errorText(err)), map[string]interface{}{"resource": name}))
		return fmt.Errorf("%s %s: %w", what, name, err)
	}

	return sm.ledger.AppendLog(ctx, model.NewLog(dep.ID, constants.LogLevelInfo,
		fmt.Sprintf("%s deleted: %s", what, name), map[string]interface{}{"resource": name}))
}

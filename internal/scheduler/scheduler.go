package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/pkg/config"
)

// Reaper 回收中断的部署步骤
type Reaper interface {
	Reap(ctx context.Context, staleAfter time.Duration)
}

// Scheduler 调度器
type Scheduler struct {
	cron          *cron.Cron
	logger        *zap.Logger
	reaper        Reaper
	cronSchedules map[string]cron.EntryID // 存储任务ID，便于管理
}

// NewScheduler 创建调度器
func NewScheduler(reaper Reaper, logger *zap.Logger) *Scheduler {
	// 创建 cron 实例（带秒级支持）, 上一轮未结束时跳过
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &Scheduler{
		cron:          c,
		logger:        logger,
		reaper:        reaper,
		cronSchedules: make(map[string]cron.EntryID),
	}
}

// Start 启动调度器
func (s *Scheduler) Start(cfg *config.CoreConfig) error {
	log := s.logger.Sugar()

	log.Info("启动定时任务调度器...")

	// cron 表达式格式: 秒 分 时 日 月 周
	cronExpr := cfg.ReapCron
	if cronExpr == "" {
		cronExpr = "0 */10 * * * *"
		log.Warnf("未配置core.reap_cron，使用默认值: %s", cronExpr)
	}
	staleAfter := config.Duration(cfg.StaleAfter, 30*time.Minute)

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		log.Debug("执行定时任务: 回收中断部署")
		s.reaper.Reap(context.Background(), staleAfter)
	})
	if err != nil {
		log.Errorf("注册回收任务: %v 失败: %v", cronExpr, err)
		return err
	}

	s.cronSchedules["reap"] = entryID
	log.Infof("中断部署回收任务已注册: %s entry_id=%d stale_after=%s", cronExpr, entryID, staleAfter)

	// 启动 cron
	s.cron.Start()
	log.Info("定时任务调度器启动成功")

	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.logger.Info("正在停止定时任务调度器...")

	// 停止 cron（等待正在执行的任务完成）
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info("定时任务调度器已停止")
}

// TriggerReap 手动触发回收（用于测试或手动触发）
func (s *Scheduler) TriggerReap(staleAfter time.Duration) {
	s.logger.Info("手动触发中断部署回收")
	s.reaper.Reap(context.Background(), staleAfter)
}

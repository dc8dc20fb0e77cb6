package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/core/deployment"
)

// CoreEngine 部署核心引擎, 负责后台复查 deploying 状态
type CoreEngine struct {
	sm      *deployment.StateMachine
	scanner *DeploymentScanner
	logger  *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewCoreEngine 创建核心引擎
func NewCoreEngine(sm *deployment.StateMachine, lister DeploymentLister, batchSize, concurrency int, logger *zap.Logger) *CoreEngine {
	return &CoreEngine{
		sm:      sm,
		scanner: NewDeploymentScanner(lister, sm, batchSize, concurrency, logger),
		logger:  logger,
	}
}

// StateMachine 返回部署状态机
func (e *CoreEngine) StateMachine() *deployment.StateMachine {
	return e.sm
}

// Start 启动核心引擎
func (e *CoreEngine) Start(scanInterval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.logger.Warn("核心引擎已在运行中")
		return
	}

	e.running = true
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	e.logger.Info("CoreEngine starting...", zap.Duration("scan_interval", scanInterval))

	// 启动定时扫描
	go e.runScanner(scanInterval)
}

// Stop 停止核心引擎, 等待当前一轮复查结束
func (e *CoreEngine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	done := e.done
	e.mu.Unlock()

	e.logger.Info("正在停止核心引擎...")
	<-done
	e.logger.Info("核心引擎已停止")
}

// runScanner 运行扫描器
func (e *CoreEngine) runScanner(interval time.Duration) {
	defer close(e.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-e.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.scanner.ScanDeployments(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Reap 回收中断的部署步骤, 由定时任务调用
func (e *CoreEngine) Reap(ctx context.Context, staleAfter time.Duration) {
	n, err := e.sm.Reap(ctx, staleAfter)
	if err != nil {
		e.logger.Error("回收中断部署失败", zap.Error(err))
		return
	}
	if n > 0 {
		e.logger.Info("已回收中断部署", zap.Int("count", n))
	}
}

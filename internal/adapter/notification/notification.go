package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/pkg/config"
)

// Kind 通知类型
type Kind string

const (
	KindStarted Kind = "started" // 开始部署
	KindSuccess Kind = "success" // 部署成功
	KindFailed  Kind = "failed"  // 部署失败
)

// Message 通知消息
type Message struct {
	Kind             Kind      `json:"kind"`
	Recipient        string    `json:"recipient"`
	OrganizationName string    `json:"organization_name"`
	DeploymentID     string    `json:"deployment_id"`
	HostingURL       string    `json:"hosting_url,omitempty"`
	RepoURL          string    `json:"repo_url,omitempty"`
	Error            string    `json:"error,omitempty"`
	DashboardURL     string    `json:"dashboard_url,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Title 通知标题
func (m *Message) Title() string {
	switch m.Kind {
	case KindStarted:
		return "Deployment Started"
	case KindSuccess:
		return "Deployment Successful"
	case KindFailed:
		return "Deployment Failed"
	}
	return "Deployment Update"
}

// Subject 邮件主题
func (m *Message) Subject() string {
	return fmt.Sprintf("%s: %s", m.Title(), m.OrganizationName)
}

// DashboardLink 控制台详情链接
func DashboardLink(appURL, deploymentID string) string {
	if appURL == "" {
		return ""
	}
	return strings.TrimRight(appURL, "/") + "/dashboard/deployments/" + deploymentID
}

// Notifier 通知器接口
type Notifier interface {
	// Notify 发送通知
	Notify(ctx context.Context, msg *Message) error
}

// NewNotifier 按配置组装通知器, 未启用时只记录日志
func NewNotifier(cfg *config.NotificationConfig, logger *zap.Logger) (Notifier, error) {
	if !cfg.Enabled || len(cfg.Providers) == 0 {
		return NewLogNotifier(logger), nil
	}

	timeout := config.Duration(cfg.Timeout, 10*time.Second)
	notifiers := make([]Notifier, 0, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		switch provider {
		case "email":
			notifiers = append(notifiers, NewEmailNotifier(&cfg.Email, timeout, logger))
		case "lark":
			notifiers = append(notifiers, NewLarkNotifier(cfg.LarkWebhook, true, timeout, logger))
		case "log":
			notifiers = append(notifiers, NewLogNotifier(logger))
		default:
			return nil, fmt.Errorf("不支持的通知渠道: %s", provider)
		}
	}

	if len(notifiers) == 1 {
		return notifiers[0], nil
	}
	return NewMultiNotifier(logger, notifiers...), nil
}

// ============= 多通知器 =============

// MultiNotifier 多通知器(支持同时发送到多个渠道)
type MultiNotifier struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMultiNotifier 创建多通知器
func NewMultiNotifier(logger *zap.Logger, notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		notifiers: notifiers,
		logger:    logger,
	}
}

// Notify 发送到所有通知器
func (m *MultiNotifier) Notify(ctx context.Context, msg *Message) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Notify(ctx, msg); err != nil {
			m.logger.Error("发送通知失败", zap.Error(err))
			lastErr = err
			// 继续发送其他通知器
		}
	}
	return lastErr
}

// ============= 日志通知器(仅记录日志,不发送实际通知) =============

// LogNotifier 日志通知器
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
	}
}

// Notify 记录通知到日志
func (n *LogNotifier) Notify(ctx context.Context, msg *Message) error {
	n.logger.Info("📢 通知",
		zap.String("kind", string(msg.Kind)),
		zap.String("title", msg.Title()),
		zap.String("recipient", msg.Recipient),
		zap.String("deployment_id", msg.DeploymentID),
		zap.String("hosting_url", msg.HostingURL),
		zap.String("error", msg.Error))
	return nil
}

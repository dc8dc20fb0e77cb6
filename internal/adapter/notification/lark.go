package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LarkNotifier Lark通知器
type LarkNotifier struct {
	webhookURL string
	enabled    bool
	logger     *zap.Logger
	client     *http.Client
}

// NewLarkNotifier 创建Lark通知器
func NewLarkNotifier(webhookURL string, enabled bool, timeout time.Duration, logger *zap.Logger) *LarkNotifier {
	return &LarkNotifier{
		webhookURL: webhookURL,
		enabled:    enabled,
		logger:     logger,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Notify 发送通知
func (n *LarkNotifier) Notify(ctx context.Context, msg *Message) error {
	if !n.enabled {
		n.logger.Debug("通知已禁用,跳过发送")
		return nil
	}

	if n.webhookURL == "" {
		n.logger.Warn("Lark Webhook URL未配置")
		return nil
	}

	// 构建Lark消息格式
	larkMsg := n.buildLarkMessage(msg)

	jsonData, err := json.Marshal(larkMsg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Lark API返回错误状态码: %d", resp.StatusCode)
	}

	n.logger.Info("Lark通知发送成功",
		zap.String("kind", string(msg.Kind)),
		zap.String("deployment_id", msg.DeploymentID))

	return nil
}

func larkStyle(kind Kind) (string, string) {
	switch kind {
	case KindStarted:
		return "🚀 落地页部署开始", "blue"
	case KindSuccess:
		return "✅ 落地页部署成功", "green"
	case KindFailed:
		return "❌ 落地页部署失败", "red"
	}
	return "📢 落地页部署通知", "grey"
}

// buildLarkMessage 构建Lark消息格式
func (n *LarkNotifier) buildLarkMessage(msg *Message) map[string]interface{} {
	title, color := larkStyle(msg.Kind)

	lines := []string{
		fmt.Sprintf("**组织**: %s", msg.OrganizationName),
		fmt.Sprintf("**部署ID**: %s", msg.DeploymentID),
	}
	if msg.HostingURL != "" {
		lines = append(lines, fmt.Sprintf("**访问地址**: %s", msg.HostingURL))
	}
	if msg.RepoURL != "" {
		lines = append(lines, fmt.Sprintf("**代码仓库**: %s", msg.RepoURL))
	}
	if msg.Error != "" {
		lines = append(lines, fmt.Sprintf("**错误**: %s", msg.Error))
	}
	if msg.DashboardURL != "" {
		lines = append(lines, fmt.Sprintf("[查看详情](%s)", msg.DashboardURL))
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	// Lark富文本消息格式
	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": title,
				},
				"template": color,
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"tag":     "lark_md",
						"content": strings.Join(lines, "\n"),
					},
				},
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"tag":     "plain_text",
						"content": fmt.Sprintf("时间: %s", ts.Format("2006-01-02 15:04:05")),
					},
				},
			},
		},
	}
}

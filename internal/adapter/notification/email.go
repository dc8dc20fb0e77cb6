package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/pkg/config"
)

var emailHTML = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
  </head>
  <body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="border-left: 4px solid {{.Color}}; padding: 15px; margin-bottom: 20px;">
      <h2 style="margin: 0; font-size: 18px;">{{.Title}}</h2>
    </div>
    {{- if eq .Kind "started"}}
    <p>Your landing page deployment has been initiated and is now in progress.</p>
    <p><strong>Organization:</strong> {{.OrganizationName}}</p>
    <p>We'll send you another email once the deployment is complete.</p>
    {{- else if eq .Kind "success"}}
    <p>Great news! Your landing page has been successfully deployed.</p>
    <p><strong>Organization:</strong> {{.OrganizationName}}</p>
    {{- if .HostingURL}}
    <p><strong>Live URL:</strong> <a href="{{.HostingURL}}">{{.HostingURL}}</a></p>
    {{- end}}
    {{- if .RepoURL}}
    <p><strong>Repository:</strong> <a href="{{.RepoURL}}">{{.RepoURL}}</a></p>
    {{- end}}
    <p>Your landing page is now live and ready to share!</p>
    {{- else}}
    <p>Unfortunately, there was an issue deploying your landing page.</p>
    <p><strong>Organization:</strong> {{.OrganizationName}}</p>
    {{- if .Error}}
    <p><strong>Error:</strong> {{.Error}}</p>
    {{- end}}
    <p>Please check the deployment details in your dashboard or contact support if the issue persists.</p>
    {{- end}}
    <p style="font-size: 14px;"><strong>Deployment ID:</strong> <code>{{.DeploymentID}}</code></p>
    {{- if .DashboardURL}}
    <p style="text-align: center;"><a href="{{.DashboardURL}}">View Deployment Details</a></p>
    {{- end}}
  </body>
</html>
`))

// EmailNotifier 通过 Resend HTTP API 发送邮件
type EmailNotifier struct {
	config *config.EmailConfig
	logger *zap.Logger
	client *http.Client
}

// NewEmailNotifier 创建邮件通知器
func NewEmailNotifier(cfg *config.EmailConfig, timeout time.Duration, logger *zap.Logger) *EmailNotifier {
	c := *cfg
	if c.BaseURL == "" {
		c.BaseURL = "https://api.resend.com"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return &EmailNotifier{
		config: &c,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

type emailView struct {
	*Message
	Title string
	Color string
}

func kindColor(kind Kind) string {
	switch kind {
	case KindStarted:
		return "#3b82f6"
	case KindSuccess:
		return "#10b981"
	}
	return "#ef4444"
}

// renderEmail 渲染 HTML 与纯文本正文, 所有字段均经过转义
func renderEmail(msg *Message) (string, string, error) {
	var buf bytes.Buffer
	if err := emailHTML.Execute(&buf, emailView{Message: msg, Title: msg.Title(), Color: kindColor(msg.Kind)}); err != nil {
		return "", "", err
	}

	lines := []string{}
	switch msg.Kind {
	case KindStarted:
		lines = append(lines, "Your landing page deployment has been initiated and is now in progress.")
	case KindSuccess:
		lines = append(lines, "Great news! Your landing page has been successfully deployed.")
	default:
		lines = append(lines, "Unfortunately, there was an issue deploying your landing page.")
	}
	lines = append(lines,
		"Organization: "+msg.OrganizationName,
		"Deployment ID: "+msg.DeploymentID)
	if msg.HostingURL != "" {
		lines = append(lines, "Live URL: "+msg.HostingURL)
	}
	if msg.RepoURL != "" {
		lines = append(lines, "Repository: "+msg.RepoURL)
	}
	if msg.Error != "" {
		lines = append(lines, "Error: "+msg.Error)
	}
	if msg.DashboardURL != "" {
		lines = append(lines, "Details: "+msg.DashboardURL)
	}
	return buf.String(), strings.Join(lines, "\n"), nil
}

// Notify 发送邮件, 未配置 API Key 时跳过
func (n *EmailNotifier) Notify(ctx context.Context, msg *Message) error {
	if n.config.APIKey == "" {
		n.logger.Warn("Resend API Key未配置, 跳过邮件发送", zap.String("deployment_id", msg.DeploymentID))
		return nil
	}
	if msg.Recipient == "" {
		return fmt.Errorf("邮件收件人为空")
	}

	html, text, err := renderEmail(msg)
	if err != nil {
		return fmt.Errorf("渲染邮件失败: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"from":    n.config.From,
		"to":      []string{msg.Recipient},
		"subject": msg.Subject(),
		"html":    html,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("序列化邮件失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("Resend API返回错误 (状态码: %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	n.logger.Info("邮件通知发送成功",
		zap.String("kind", string(msg.Kind)),
		zap.String("deployment_id", msg.DeploymentID))
	return nil
}

package hosting

import (
	"context"
	"fmt"
	"strings"

	"github.com/altnbk/saas-landing-page/internal/pkg/config"
	"github.com/altnbk/saas-landing-page/pkg/constants"
)

// SourceRef 托管项目绑定的代码仓库
type SourceRef struct {
	Owner  string
	Repo   string
	Branch string
}

// Project 托管项目
type Project struct {
	Name      string
	Subdomain string // 例如 acme.pages.dev
	Domains   []string
}

// URL 项目对外访问地址
func (p *Project) URL() string {
	if p == nil || p.Subdomain == "" {
		return ""
	}
	if strings.HasPrefix(p.Subdomain, "http://") || strings.HasPrefix(p.Subdomain, "https://") {
		return p.Subdomain
	}
	return "https://" + p.Subdomain
}

// BuildStatus 构建阶段状态
type BuildStatus struct {
	Stage  string
	Status string
	URL    string
}

// Succeeded 构建成功
func (s *BuildStatus) Succeeded() bool {
	return s != nil && s.Status == constants.BuildStatusSuccess
}

// Failed 构建失败或被取消
func (s *BuildStatus) Failed() bool {
	return s != nil && (s.Status == constants.BuildStatusFailure || s.Status == constants.BuildStatusCanceled)
}

// Terminal 构建已结束, 其余状态(idle/active/...)视为进行中
func (s *BuildStatus) Terminal() bool {
	return s.Succeeded() || s.Failed()
}

// DeploymentInfo 托管平台上的一次部署
type DeploymentInfo struct {
	ID          string
	URL         string
	Environment string
	Stage       BuildStatus
}

// Provisioner 托管平台能力
type Provisioner interface {
	// CreateProject 创建绑定代码仓库的项目, 名称已存在时返回 KindConflict
	CreateProject(ctx context.Context, name string, src SourceRef) (*Project, error)

	// GetProject 查询项目
	GetProject(ctx context.Context, ref string) (*Project, error)

	// LatestDeployment 最近一次部署, 没有部署时返回 nil, nil
	LatestDeployment(ctx context.Context, ref string) (*DeploymentInfo, error)

	// GetDeploymentStatus 查询指定部署的构建状态, 只读
	GetDeploymentStatus(ctx context.Context, ref, deploymentID string) (*BuildStatus, error)

	// DeleteProject 删除项目, 不存在时视为成功
	DeleteProject(ctx context.Context, ref string) error
}

// NewProvisioner 按配置创建托管平台实现
func NewProvisioner(cfg *config.HostingConfig) (Provisioner, error) {
	switch cfg.Provider {
	case constants.ProviderCloudflare:
		return NewCloudflareProvisioner(&cfg.Cloudflare)
	case constants.ProviderMock:
		return NewMockProvisioner(constants.BuildStatusSuccess), nil
	default:
		return nil, fmt.Errorf("不支持的托管平台: %s", cfg.Provider)
	}
}

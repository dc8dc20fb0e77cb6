package hosting

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"

	"github.com/altnbk/saas-landing-page/internal/pkg/config"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
)

// CloudflareProvisioner Cloudflare Pages 实现
type CloudflareProvisioner struct {
	config *config.CloudflareConfig
	api    *cloudflare.API
	rc     *cloudflare.ResourceContainer
}

// NewCloudflareProvisioner 创建 Cloudflare Pages 客户端
//
// SDK 自带的重试关闭, 是否重试由编排层按错误分类决定.
func NewCloudflareProvisioner(cfg *config.CloudflareConfig) (*CloudflareProvisioner, error) {
	c := *cfg
	if c.CompatibilityDate == "" {
		c.CompatibilityDate = "2024-01-01"
	}

	opts := []cloudflare.Option{
		cloudflare.HTTPClient(&http.Client{Timeout: 30 * time.Second}),
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}
	if c.BaseURL != "" {
		opts = append(opts, cloudflare.BaseURL(strings.TrimRight(c.BaseURL, "/")))
	}

	api, err := cloudflare.NewWithAPIToken(c.APIToken, opts...)
	if err != nil {
		return nil, err
	}

	return &CloudflareProvisioner{
		config: &c,
		api:    api,
		rc:     cloudflare.AccountIdentifier(c.AccountID),
	}, nil
}

func toProject(p cloudflare.PagesProject) *Project {
	return &Project{Name: p.Name, Subdomain: p.SubDomain, Domains: p.Domains}
}

func toInfo(d cloudflare.PagesProjectDeployment) *DeploymentInfo {
	return &DeploymentInfo{
		ID:          d.ID,
		URL:         d.URL,
		Environment: d.Environment,
		Stage: BuildStatus{
			Stage:  d.LatestStage.Name,
			Status: d.LatestStage.Status,
			URL:    d.URL,
		},
	}
}

// CreateProject 创建绑定 GitHub 仓库的 Pages 项目, 推送即构建
func (p *CloudflareProvisioner) CreateProject(ctx context.Context, name string, src SourceRef) (*Project, error) {
	branch := src.Branch
	if branch == "" {
		branch = "main"
	}

	project, err := p.api.CreatePagesProject(ctx, p.rc, cloudflare.CreatePagesProjectParams{
		Name:             name,
		ProductionBranch: branch,
		Source: &cloudflare.PagesProjectSource{
			Type: "github",
			Config: &cloudflare.PagesProjectSourceConfig{
				Owner:                        src.Owner,
				RepoName:                     src.Repo,
				ProductionBranch:             branch,
				DeploymentsEnabled:           true,
				ProductionDeploymentsEnabled: true,
				PRCommentsEnabled:            false,
			},
		},
		BuildConfig: cloudflare.PagesProjectBuildConfig{
			BuildCommand:   "",
			DestinationDir: "/",
			RootDir:        "/",
		},
		DeploymentConfigs: cloudflare.PagesProjectDeploymentConfigs{
			Production: cloudflare.PagesProjectDeploymentConfigEnvironment{
				CompatibilityDate: p.config.CompatibilityDate,
			},
		},
	})
	if err != nil {
		return nil, cloudflareError("create_project", err)
	}
	if project.Name == "" {
		return nil, pkgErrors.NewProviderError(constants.ProviderCloudflare, "create_project", http.StatusBadGateway,
			"Cloudflare API error: empty project in response")
	}
	return toProject(project), nil
}

// GetProject 查询项目
func (p *CloudflareProvisioner) GetProject(ctx context.Context, ref string) (*Project, error) {
	project, err := p.api.GetPagesProject(ctx, p.rc, ref)
	if err != nil {
		return nil, cloudflareError("get_project", err)
	}
	return toProject(project), nil
}

// LatestDeployment 列表按创建时间倒序, 只取第一条
func (p *CloudflareProvisioner) LatestDeployment(ctx context.Context, ref string) (*DeploymentInfo, error) {
	deployments, _, err := p.api.ListPagesDeployments(ctx, p.rc, cloudflare.ListPagesDeploymentsParams{
		ProjectName: ref,
		ResultInfo:  cloudflare.ResultInfo{Page: 1, PerPage: 1},
	})
	if err != nil {
		return nil, cloudflareError("list_deployments", err)
	}
	if len(deployments) == 0 {
		return nil, nil
	}
	return toInfo(deployments[0]), nil
}

// GetDeploymentStatus 查询构建状态
func (p *CloudflareProvisioner) GetDeploymentStatus(ctx context.Context, ref, deploymentID string) (*BuildStatus, error) {
	deployment, err := p.api.GetPagesDeploymentInfo(ctx, p.rc, ref, deploymentID)
	if err != nil {
		return nil, cloudflareError("get_deployment", err)
	}
	info := toInfo(deployment)
	return &info.Stage, nil
}

// DeleteProject 删除项目
func (p *CloudflareProvisioner) DeleteProject(ctx context.Context, ref string) error {
	err := p.api.DeletePagesProject(ctx, p.rc, ref)
	if err == nil {
		return nil
	}
	err = cloudflareError("delete_project", err)
	if pkgErrors.IsNotFound(err) {
		return nil
	}
	return err
}

// cfAPIError SDK 按 4xx 状态返回的各错误类型共有的方法
type cfAPIError interface {
	error
	Type() cloudflare.ErrorType
	ErrorMessages() []string
}

// cloudflareError SDK 错误转换为 ProviderError
//
// SDK 对 429/5xx 与网络错误返回普通 error, 一律按瞬时错误处理.
func cloudflareError(op string, err error) error {
	var apiErr cfAPIError
	if !errors.As(err, &apiErr) {
		pe := pkgErrors.WrapTransport(constants.ProviderCloudflare, op, err)
		if !errors.Is(err, context.Canceled) {
			pe.Kind = pkgErrors.KindTransient
		}
		return pe
	}

	msg := strings.Join(apiErr.ErrorMessages(), ", ")
	if msg == "" {
		msg = "Unknown error"
	}

	pe := pkgErrors.NewProviderError(constants.ProviderCloudflare, op, statusOfType(apiErr.Type()), "Cloudflare API error: "+msg)
	pe.Err = err
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already exists"):
		pe.Kind = pkgErrors.KindConflict
	case strings.Contains(lower, "not found"):
		pe.Kind = pkgErrors.KindNotFound
	}
	return pe
}

// statusOfType 错误类型 -> HTTP 状态码
func statusOfType(t cloudflare.ErrorType) int {
	switch t {
	case cloudflare.ErrorTypeAuthentication:
		return http.StatusForbidden
	case cloudflare.ErrorTypeAuthorization:
		return http.StatusUnauthorized
	case cloudflare.ErrorTypeNotFound:
		return http.StatusNotFound
	case cloudflare.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case cloudflare.ErrorTypeService:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

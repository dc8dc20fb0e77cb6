package dto

import (
	"time"

	"github.com/samber/lo"

	"github.com/altnbk/saas-landing-page/internal/core/deployment"
	"github.com/altnbk/saas-landing-page/internal/model"
	"github.com/altnbk/saas-landing-page/pkg/constants"
)

// CreateDeploymentRequest 创建部署请求
type CreateDeploymentRequest struct {
	OrganizationName string `json:"organization_name" binding:"required,max=100"`
	SignerName       string `json:"signer_name" binding:"required,max=100"`
	SignerEmail      string `json:"signer_email" binding:"required,email,max=255"`
}

// ListDeploymentsQuery 部署列表查询
type ListDeploymentsQuery struct {
	PageQuery
	Status string `form:"status" binding:"omitempty,oneof=queued creating_repo creating_pages deploying live failed"`
}

// DeploymentIDParam 部署ID参数
type DeploymentIDParam struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// DeploymentResponse 部署信息
type DeploymentResponse struct {
	ID                  string    `json:"id"`
	Owner               string    `json:"owner"`
	OrganizationName    string    `json:"organization_name"`
	SignerName          string    `json:"signer_name"`
	SignerEmail         string    `json:"signer_email"`
	Status              string    `json:"status"`
	StatusName          string    `json:"status_name"`
	SourceRepoName      string    `json:"source_repo_name,omitempty"`
	SourceRepoURL       string    `json:"source_repo_url,omitempty"`
	HostingProjectRef   string    `json:"hosting_project_ref,omitempty"`
	HostingURL          string    `json:"hosting_url,omitempty"`
	HostingDeploymentID string    `json:"hosting_deployment_id,omitempty"`
	ErrorMessage        *string   `json:"error_message"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DeploymentLogResponse 部署日志
type DeploymentLogResponse struct {
	ID        int64                  `json:"id"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// DeploymentDetailResponse 部署详情(含日志)
type DeploymentDetailResponse struct {
	DeploymentResponse
	Logs []*DeploymentLogResponse `json:"logs"`
}

// DeploymentResultResponse 触发 / 复查结果
type DeploymentResultResponse struct {
	DeploymentID string  `json:"deployment_id"`
	Status       string  `json:"status"`
	InProgress   bool    `json:"in_progress"`
	Noop         bool    `json:"noop"`
	HostingURL   string  `json:"hosting_url,omitempty"`
	RepoURL      string  `json:"repo_url,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// ToDeploymentResponse model -> dto
func ToDeploymentResponse(d *model.Deployment) *DeploymentResponse {
	return &DeploymentResponse{
		ID:                  d.ID,
		Owner:               d.Owner,
		OrganizationName:    d.OrganizationName,
		SignerName:          d.SignerName,
		SignerEmail:         d.SignerEmail,
		Status:              d.Status,
		StatusName:          constants.DeploymentStatusToString(d.Status),
		SourceRepoName:      d.SourceRepoName,
		SourceRepoURL:       d.SourceRepoURL,
		HostingProjectRef:   d.HostingProjectRef,
		HostingURL:          d.HostingURL,
		HostingDeploymentID: d.HostingDeploymentID,
		ErrorMessage:        d.ErrorMessage,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

// ToDeploymentResponses 批量转换
func ToDeploymentResponses(deps []*model.Deployment) []*DeploymentResponse {
	return lo.Map(deps, func(d *model.Deployment, _ int) *DeploymentResponse {
		return ToDeploymentResponse(d)
	})
}

// ToDeploymentDetailResponse 部署 + 日志
func ToDeploymentDetailResponse(d *model.Deployment, logs []*model.DeploymentLog) *DeploymentDetailResponse {
	return &DeploymentDetailResponse{
		DeploymentResponse: *ToDeploymentResponse(d),
		Logs: lo.Map(logs, func(l *model.DeploymentLog, _ int) *DeploymentLogResponse {
			return &DeploymentLogResponse{
				ID:        l.ID,
				Level:     l.Level,
				Message:   l.Message,
				Metadata:  l.Metadata,
				CreatedAt: l.CreatedAt,
			}
		}),
	}
}

// ToDeploymentResultResponse 编排结果 -> dto
func ToDeploymentResultResponse(r *deployment.Result) *DeploymentResultResponse {
	return &DeploymentResultResponse{
		DeploymentID: r.DeploymentID,
		Status:       r.Status,
		InProgress:   r.InProgress,
		Noop:         r.Noop,
		HostingURL:   r.HostingURL,
		RepoURL:      r.RepoURL,
		ErrorMessage: r.ErrorMessage,
	}
}

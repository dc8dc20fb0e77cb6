package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/altnbk/saas-landing-page/internal/dto"
	"github.com/altnbk/saas-landing-page/internal/pkg/logger"
	"github.com/altnbk/saas-landing-page/internal/service"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	"github.com/altnbk/saas-landing-page/pkg/responses"
	"github.com/altnbk/saas-landing-page/pkg/utils"
)

// DeploymentHandler 落地页部署处理器
type DeploymentHandler struct {
	svc service.DeploymentService
}

func NewDeploymentHandler(svc service.DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{svc: svc}
}

// Create 创建部署
// @Summary 创建部署(排队, 不触发)
// @Tags Deployment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateDeploymentRequest true "创建部署请求"
// @Success 200 {object} responses.Response{data=dto.DeploymentResponse}
// @Router /deployments [post]
func (h *DeploymentHandler) Create(c *gin.Context) {
	var req dto.CreateDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), callerOf(c), &req)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, resp)
}

// List 查询本人的部署
// @Summary 部署列表
// @Tags Deployment
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param status query string false "状态过滤"
// @Success 200 {object} responses.Response{data=dto.PageResponse}
// @Router /deployments [get]
func (h *DeploymentHandler) List(c *gin.Context) {
	var query dto.ListDeploymentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	page, err := h.svc.List(c.Request.Context(), callerOf(c), &query)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, page)
}

// Get 部署详情
// @Summary 部署详情(含日志)
// @Tags Deployment
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deployment ID"
// @Success 200 {object} responses.Response{data=dto.DeploymentDetailResponse}
// @Router /deployments/{id} [get]
func (h *DeploymentHandler) Get(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	detail, err := h.svc.Get(c.Request.Context(), callerOf(c), id)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, detail)
}

// Run 触发部署
// @Summary 触发部署, 幂等; 构建未完成时返回 in_progress
// @Tags Deployment
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deployment ID"
// @Success 200 {object} responses.Response{data=dto.DeploymentResultResponse}
// @Router /deployments/{id}/run [post]
func (h *DeploymentHandler) Run(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	// 客户端断开不应中断已开始的外部调用
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.svc.Run(ctx, callerOf(c), id)
	if err != nil && res == nil {
		responses.Error(c, err)
		return
	}
	if err != nil {
		// 失败已记录, 返回 failed 状态与错误信息
		logger.Warn("部署失败", zap.String("deployment_id", id), zap.Error(err))
	}

	responses.Success(c, res)
}

// Status 复查构建状态
// @Summary 单次复查构建状态
// @Tags Deployment
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deployment ID"
// @Success 200 {object} responses.Response{data=dto.DeploymentResultResponse}
// @Router /deployments/{id}/status [get]
func (h *DeploymentHandler) Status(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	res, err := h.svc.CheckStatus(context.WithoutCancel(c.Request.Context()), callerOf(c), id)
	if err != nil && res == nil {
		responses.Error(c, err)
		return
	}
	if err != nil {
		logger.Warn("复查构建状态失败", zap.String("deployment_id", id), zap.Error(err))
	}

	responses.Success(c, res)
}

// Cleanup 删除外部资源
// @Summary 删除终态部署的仓库与托管项目(管理员)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deployment ID"
// @Success 200 {object} responses.Response
// @Router /admin/deployments/{id}/resources [delete]
func (h *DeploymentHandler) Cleanup(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	if err := h.svc.Cleanup(c.Request.Context(), callerOf(c), id); err != nil {
		responses.Error(c, err)
		return
	}

	responses.SuccessWithMessage(c, "已清理", gin.H{"deployment_id": id})
}

func bindID(c *gin.Context) (string, bool) {
	var param dto.DeploymentIDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, http.StatusBadRequest, "deployment_id 无效", c.Param("id"))
		return "", false
	}
	return param.ID, true
}

// callerOf 由认证中间件写入的用户信息
func callerOf(c *gin.Context) service.Caller {
	caller := service.Caller{UID: c.GetString(constants.ContextKeyOwner)}
	if role := c.GetString(constants.ContextKeyRole); role != "" {
		caller.Roles = []string{role}
	}
	return caller
}

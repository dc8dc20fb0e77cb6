package constants

import "fmt"

// DeploymentStatus 部署状态
const (
	DeploymentStatusQueued        = "queued"         // 已排队, 等待触发
	DeploymentStatusCreatingRepo  = "creating_repo"  // 创建代码仓库中
	DeploymentStatusCreatingPages = "creating_pages" // 创建托管项目中
	DeploymentStatusDeploying     = "deploying"      // 托管平台构建中
	DeploymentStatusLive          = "live"           // 已上线
	DeploymentStatusFailed        = "failed"         // 失败(终态)
)

// 状态顺序, failed 不参与排序
var deploymentStatusRank = map[string]int{
	DeploymentStatusQueued:        0,
	DeploymentStatusCreatingRepo:  1,
	DeploymentStatusCreatingPages: 2,
	DeploymentStatusDeploying:     3,
	DeploymentStatusLive:          4,
}

// DeploymentStatusRank 返回状态序号, failed 或未知状态返回 -1
func DeploymentStatusRank(status string) int {
	if rank, ok := deploymentStatusRank[status]; ok {
		return rank
	}
	return -1
}

// IsTerminalStatus live / failed 为终态
func IsTerminalStatus(status string) bool {
	return status == DeploymentStatusLive || status == DeploymentStatusFailed
}

// IsValidStatus 校验状态值
func IsValidStatus(status string) bool {
	return status == DeploymentStatusFailed || DeploymentStatusRank(status) >= 0
}

// CanAdvance 检查 from -> to 是否满足单调推进
func CanAdvance(from, to string) bool {
	if IsTerminalStatus(from) {
		return false
	}
	if to == DeploymentStatusFailed {
		return true
	}
	return DeploymentStatusRank(to) > DeploymentStatusRank(from)
}

// DeploymentStatusToString 状态展示名称
func DeploymentStatusToString(status string) string {
	switch status {
	case DeploymentStatusQueued:
		return "Queued"
	case DeploymentStatusCreatingRepo:
		return "CreatingRepo"
	case DeploymentStatusCreatingPages:
		return "CreatingPages"
	case DeploymentStatusDeploying:
		return "Deploying"
	case DeploymentStatusLive:
		return "Live"
	case DeploymentStatusFailed:
		return "Failed"
	}
	return fmt.Sprintf("Unknown(%s)", status)
}

// LogLevel 部署日志级别
const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// 托管平台构建阶段状态
const (
	BuildStatusSuccess  = "success"
	BuildStatusFailure  = "failure"
	BuildStatusCanceled = "canceled"
)

// Provider 类型
const (
	ProviderGitHub     = "github"
	ProviderCloudflare = "cloudflare"
	ProviderMock       = "mock"
)

// 角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// JWT 相关
const (
	JWTTypeAccess = "access"
)

// HTTP Header
const (
	HeaderAuthorization = "Authorization"
	HeaderBearerPrefix  = "Bearer "
)

// gin context key
const (
	ContextKeyOwner = "uid"
	ContextKeyRole  = "role"
)

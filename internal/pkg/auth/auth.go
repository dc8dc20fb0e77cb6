package auth

import "strings"

// Role 内置角色, 与 token 中的 role claim 对应
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleUser   Role = "user"
	RoleViewer Role = "viewer"
)

// Permission 内置权限
type Permission string

const (
	PermDeploymentCreate  Permission = "deployment:create"
	PermDeploymentView    Permission = "deployment:view"
	PermDeploymentRun     Permission = "deployment:run"
	PermDeploymentViewAll Permission = "deployment:view:all" // 查看他人的部署
	PermDeploymentCleanup Permission = "deployment:cleanup"  // 删除外部资源
)

// RolePermissions 每个角色拥有的权限集合
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		"*",
	},
	RoleUser: {
		PermDeploymentCreate,
		PermDeploymentView,
		PermDeploymentRun,
	},
	RoleViewer: {
		"*:view",
	},
}

// Allow 判断一组角色是否包含所需权限，支持通配符
func Allow(roles []string, need Permission) bool {
	for _, p := range collectPermissions(roles) {
		if match(p, need) {
			return true
		}
	}
	return false
}

func collectPermissions(roles []string) []Permission {
	perms := make([]Permission, 0)
	for _, r := range roles {
		if ps, ok := RolePermissions[Role(r)]; ok {
			perms = append(perms, ps...)
		}
	}
	return perms
}

// match 逐段比较, 末段为 * 时匹配剩余所有段, 中间段 * 只匹配一段
func match(have, need Permission) bool {
	if have == need || have == "*" {
		return true
	}

	allowed := strings.Split(string(have), ":")
	required := strings.Split(string(need), ":")

	for i, part := range allowed {
		if i >= len(required) {
			return false // required 已经结束，但 allowed 还有更多段
		}
		if part == "*" {
			if i == len(allowed)-1 {
				return true
			}
			continue
		}
		if part != required[i] {
			return false
		}
	}
	return len(allowed) == len(required)
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/altnbk/saas-landing-page/internal/pkg/auth"
	"github.com/altnbk/saas-landing-page/internal/pkg/jwt"
	"github.com/altnbk/saas-landing-page/pkg/constants"
	pkgErrors "github.com/altnbk/saas-landing-page/pkg/errors"
	"github.com/altnbk/saas-landing-page/pkg/responses"
)

// AuthMiddleware JWT认证中间件, token 由外部登录服务签发
func AuthMiddleware(tokens *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 获取Authorization header
		authHeader := c.GetHeader(constants.HeaderAuthorization)
		if authHeader == "" {
			responses.ErrorWithCode(c, pkgErrors.CodeUnauthorized, "缺少Authorization Header")
			c.Abort()
			return
		}

		// 检查Bearer前缀
		if !strings.HasPrefix(authHeader, constants.HeaderBearerPrefix) {
			responses.ErrorWithCode(c, pkgErrors.CodeUnauthorized, "Authorization格式错误")
			c.Abort()
			return
		}

		// 验证Token, 类型必须是 AccessToken
		claims, err := tokens.ValidateToken(strings.TrimPrefix(authHeader, constants.HeaderBearerPrefix))
		if err != nil {
			responses.Error(c, err)
			c.Abort()
			return
		}

		role := claims.Role
		if role == "" {
			role = constants.RoleUser
		}

		// 将用户信息存入context
		c.Set(constants.ContextKeyOwner, claims.UID)
		c.Set(constants.ContextKeyRole, role)
		c.Set("email", claims.Email)

		c.Next()
	}
}

// RequirePermission 校验当前角色是否拥有权限
func RequirePermission(perm auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.Allow([]string{c.GetString(constants.ContextKeyRole)}, perm) {
			responses.Error(c, pkgErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// abort 统一的中间件拒绝响应
func abort(c *gin.Context, status, code int, message string) {
	c.JSON(status, gin.H{"code": code, "message": message})
	c.Abort()
}

// Logger 请求日志中间件
// 按响应状态分级：5xx记error，4xx记warn，其余info
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		}
		if userID := c.GetString("user_id"); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Server error", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Client error", fields...)
		default:
			logger.Info("Request", fields...)
		}
	}
}

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestID 请求ID中间件，透传调用方的X-Request-ID，没有则生成
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// JWTClaims 访问令牌携带的身份信息
type JWTClaims struct {
	UserID      string   `json:"uid"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	BranchCode  string   `json:"branch"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"perms"`
	jwt.RegisteredClaims
}

// bearerToken 从Authorization header提取token，
// 回退到query param（文件下载等无法带header的场景）
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return c.Query("token")
}

// JWTAuth JWT认证中间件
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, 40100, "Authorization is required")
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil {
			abort(c, http.StatusUnauthorized, 40102, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid {
			abort(c, http.StatusUnauthorized, 40103, "Invalid token claims")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_name", claims.Name)
		c.Set("user_email", claims.Email)
		c.Set("branch", claims.BranchCode)
		c.Set("roles", claims.Roles)
		c.Set("permissions", claims.Permissions)
		c.Set("claims", claims)
		c.Next()
	}
}

// grantedSet 取上下文里的授权列表
func grantedSet(c *gin.Context, key string) ([]string, bool) {
	values, exists := c.Get(key)
	if !exists {
		return nil, false
	}
	granted, ok := values.([]string)
	return granted, ok
}

// RequirePermission 权限检查中间件，"*"为全量授权
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		granted, ok := grantedSet(c, "permissions")
		if !ok {
			abort(c, http.StatusForbidden, 40300, "No permissions found")
			return
		}
		for _, p := range granted {
			if p == permission || p == "*" {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, 40302, "Permission denied: "+permission)
	}
}

// RequireRole 角色检查中间件，wms_admin放行所有角色要求
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		granted, ok := grantedSet(c, "roles")
		if !ok {
			abort(c, http.StatusForbidden, 40310, "No roles found")
			return
		}
		for _, r := range granted {
			if r == role || r == "wms_admin" {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, 40312, "Role required: "+role)
	}
}

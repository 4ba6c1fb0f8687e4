package middleware

import (
	"context"
	"net/http"
	"strings"

	"clipgram/internal/auth"
	"clipgram/internal/config"

	"github.com/gorilla/mux"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

// UserIDKey 是用于在上下文中存储用户ID的键。
const UserIDKey contextKey = "userID"

// HandleKey 是用于在上下文中存储用户 handle 的键。
const HandleKey contextKey = "handle"

// AuthMiddleware 返回一个 mux 中间件，用于验证 JWT 并将用户信息添加到上下文中。
// blacklist 可以为 nil（不启用吊销检查）。
func AuthMiddleware(authCfg config.AuthConfig, blacklist auth.TokenBlacklist) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "请求未包含授权令牌", http.StatusUnauthorized)
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				http.Error(w, "授权头部格式无效", http.StatusUnauthorized)
				return
			}

			tokenString := headerParts[1]
			claims, err := auth.ValidateToken(r.Context(), tokenString, authCfg.JWTSecretKey, blacklist)
			if err != nil {
				http.Error(w, "令牌无效", http.StatusUnauthorized)
				return
			}

			// 将用户信息存入请求上下文
			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, HandleKey, claims.Handle)

			// 调用链中的下一个处理器，使用更新后的上下文
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext 从上下文中获取用户ID。
// 如果用户ID不存在或类型不正确，返回0和false。
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetHandleFromContext 从上下文中获取用户 handle。
// 如果 handle 不存在或类型不正确，返回空字符串和false。
func GetHandleFromContext(ctx context.Context) (string, bool) {
	handle, ok := ctx.Value(HandleKey).(string)
	return handle, ok
}

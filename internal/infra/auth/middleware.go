package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/unihub-backend/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator — интерфейс проверки bearer-токена Identity-сервиса
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// Типизированные ключи контекста (избегаем коллизий)
type ctxKey string

const (
	userIDKey ctxKey = "user_id"
	scopesKey ctxKey = "user_scopes"
)

// ScopeApprovalsDecide дает право голосовать по заявкам
const ScopeApprovalsDecide = "approvals.decide"

func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Прокидываем данные в контекст
			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, scopesKey, claims.Scopes)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext достает идентификатор авторизованного пользователя.
// Второе значение false означает, что запрос прошел мимо middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// ContextWithUserID используется тестами и внутренними вызовами
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// ContextWithScopes используется тестами и внутренними вызовами
func ContextWithScopes(ctx context.Context, scopes map[string]bool) context.Context {
	return context.WithValue(ctx, scopesKey, scopes)
}

// ScopesFromContext возвращает scopes токена (может быть nil)
func ScopesFromContext(ctx context.Context) map[string]bool {
	scopes, _ := ctx.Value(scopesKey).(map[string]bool)
	return scopes
}

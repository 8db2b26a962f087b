// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/lunchmate/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに外部IDを格納するためのキー。
var identityContextKey = contextKey("identity")

// AuthConfig はアクセストークン検証の設定を保持する。
type AuthConfig struct {
	Secret   []byte
	Issuer   string // 空の場合は検証しない
	Audience string // 空の場合は検証しない
}

// authClaims はIDプロバイダが発行するアクセストークンのクレーム。
type authClaims struct {
	jwt.RegisteredClaims
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// NewAuthMiddleware はBearerトークン（HS256）を検証し、
// 外部IDをリクエストコンテキストに注入するミドルウェアを返す。
// WebSocket接続用にaccess_tokenクエリパラメータも受け付ける。
// 無効なトークンには401 Unauthorizedを返す。
func NewAuthMiddleware(cfg AuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			identity, err := parseIdentity(cfg, tokenString)
			if err != nil {
				slog.Info("アクセストークンを拒否しました",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			recordWorkmate(r.Context(), identity.ExternalID)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func parseIdentity(cfg AuthConfig, tokenString string) (model.Identity, error) {
	claims := &authClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return model.Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	if cfg.Audience != "" && !slices.Contains(claims.Audience, cfg.Audience) {
		return model.Identity{}, fmt.Errorf("unexpected audience: %v", claims.Audience)
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("subject is empty")
	}

	return model.Identity{
		ExternalID: claims.Subject,
		Name:       claims.Name,
		Email:      claims.Email,
		AvatarURL:  claims.Picture,
	}, nil
}

// IdentityFromContext はリクエストコンテキストから外部IDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok || identity.ExternalID == "" {
		return model.Identity{}, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストに外部IDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

package middlewares

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	httperr "github.com/dropDatabas3/consentgate/internal/http/errors"
	"github.com/dropDatabas3/consentgate/internal/security/apikey"
)

type claimsKey struct{}

func setClaims(ctx context.Context, cl jwtv5.MapClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, cl)
}

// GetClaims obtiene los claims del service token del contexto (nil si no hay).
func GetClaims(ctx context.Context) jwtv5.MapClaims {
	if v, ok := ctx.Value(claimsKey{}).(jwtv5.MapClaims); ok {
		return v
	}
	return nil
}

// ServiceAuthConfig configura la verificación de service tokens del runtime.
type ServiceAuthConfig struct {
	// PublicKey: Ed25519 pública en base64 estándar.
	PublicKey string
	// Issuer esperado en el claim iss. Vacío = no se valida.
	Issuer string
}

// RequireServiceToken valida el bearer EdDSA que presenta el runtime de
// autorización en la superficie /v1. Sin clave configurada el middleware
// es passthrough (modo dev).
func RequireServiceToken(cfg ServiceAuthConfig) (Middleware, error) {
	if strings.TrimSpace(cfg.PublicKey) == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	raw, err := base64.StdEncoding.DecodeString(cfg.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("middlewares: jwt public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("middlewares: jwt public key: se esperan %d bytes", ed25519.PublicKeySize)
	}
	pub := ed25519.PublicKey(raw)

	opts := []jwtv5.ParserOption{jwtv5.WithValidMethods([]string{"EdDSA"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(cfg.Issuer))
	}

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httperr.WriteError(w, httperr.ErrUnauthorized.WithDetail("authorization header required"))
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httperr.WriteError(w, httperr.ErrUnauthorized.WithDetail("invalid authorization header format"))
				return
			}

			cl := jwtv5.MapClaims{}
			_, err := jwtv5.ParseWithClaims(parts[1], cl, func(t *jwtv5.Token) (any, error) {
				return pub, nil
			}, opts...)
			if err != nil {
				httperr.WriteError(w, httperr.ErrUnauthorized.WithDetail("invalid service token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(setClaims(r.Context(), cl)))
		})
	}
	return mw, nil
}

// RequireAdminAPIKey valida X-Admin-API-Key contra un hash argon2id PHC.
// Sin hash configurado el middleware es passthrough (modo dev).
func RequireAdminAPIKey(phcHash string) Middleware {
	if strings.TrimSpace(phcHash) == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get("X-Admin-API-Key"))
			if key == "" || !apikey.Verify(key, phcHash) {
				httperr.WriteError(w, httperr.ErrUnauthorized.WithDetail("invalid admin api key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Package auth supplies gRPC unary/stream interceptors that check an
// x-api-key metadata value and/or a Bearer JWT. Credentials come from
// incoming metadata and rejection is a gRPC Unauthenticated status.
package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Claims is the accepted JWT payload shape.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Config controls which credential checks are enforced.
type Config struct {
	RequireAuth bool
	APIKeys     []string
	JWTKey      string
}

// Authenticator validates incoming call credentials against an API-key
// allow-list and/or a symmetric JWT key. TLS/mTLS is handled by the
// transport, outside this package; the checks here may be combined with it
// freely.
type Authenticator struct {
	requireAuth bool
	apiKeys     map[string]struct{}
	jwtKey      []byte
}

// New builds an Authenticator from cfg.
func New(cfg Config) *Authenticator {
	keys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys[k] = struct{}{}
	}
	return &Authenticator{
		requireAuth: cfg.RequireAuth,
		apiKeys:     keys,
		jwtKey:      []byte(cfg.JWTKey),
	}
}

// authenticate checks ctx's incoming metadata, returning an Unauthenticated
// status on any failure. When RequireAuth is false, calls without
// credentials are permitted (useful for local/dev deployments), but
// credentials present are still validated.
func (a *Authenticator) authenticate(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		if a.requireAuth {
			return status.Error(codes.Unauthenticated, "missing credentials")
		}
		return nil
	}

	if key := firstValue(md, "x-api-key"); key != "" {
		if a.validAPIKey(key) {
			return nil
		}
		return status.Error(codes.Unauthenticated, "invalid api key")
	}

	if authz := firstValue(md, "authorization"); authz != "" {
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok {
			return status.Error(codes.Unauthenticated, "invalid authorization header format")
		}
		if err := a.validJWT(token); err != nil {
			return status.Error(codes.Unauthenticated, "invalid token")
		}
		return nil
	}

	if a.requireAuth {
		return status.Error(codes.Unauthenticated, "missing credentials")
	}
	return nil
}

func (a *Authenticator) validAPIKey(key string) bool {
	for candidate := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func (a *Authenticator) validJWT(tokenString string) error {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.jwtKey, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

func firstValue(md metadata.MD, key string) string {
	vs := md.Get(key)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// UnaryServerInterceptor authenticates unary calls.
func (a *Authenticator) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := a.authenticate(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor authenticates streaming calls.
func (a *Authenticator) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := a.authenticate(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/loan-coach/backend/pkg/utils"
)

type contextKey string

const userIDKey contextKey = "userID"

// GatewayUserHeader carries an identity resolved by an upstream gateway.
const GatewayUserHeader = "X-User-ID"

var errMissingCredentials = errors.New("authentication required")

// WithUserID returns ctx carrying the caller identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the caller identity, or "" when none was resolved.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Authenticator resolves the caller identity from an HS256 bearer token or,
// when trusted, from a gateway injected header.
type Authenticator struct {
	secret       []byte
	issuer       string
	trustGateway bool
	log          zerolog.Logger
}

// NewAuthenticator builds an Authenticator. An empty secret disables bearer tokens.
func NewAuthenticator(secret, issuer string, trustGateway bool, log zerolog.Logger) *Authenticator {
	return &Authenticator{
		secret:       []byte(secret),
		issuer:       issuer,
		trustGateway: trustGateway,
		log:          log.With().Str("component", "auth").Logger(),
	}
}

// Require rejects requests without a resolvable identity.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.resolve(r)
		if err != nil {
			a.log.Warn().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg("unauthenticated request")
			utils.RespondError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (a *Authenticator) resolve(r *http.Request) (string, error) {
	if token := bearerToken(r); token != "" && len(a.secret) > 0 {
		return a.parseToken(token)
	}
	if a.trustGateway {
		if id := strings.TrimSpace(r.Header.Get(GatewayUserHeader)); id != "" {
			return id, nil
		}
	}
	return "", errMissingCredentials
}

func (a *Authenticator) parseToken(raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

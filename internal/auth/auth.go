// internal/auth/auth.go
//
// JWT, cookie and middleware handling for player accounts.
//   - Sign/parse HS256 tokens carrying id + username.
//   - Auth cookie and anonymous-player cookie management.
//   - Optional-auth middleware (guests allowed) and require-auth middleware.
//
// Tokens are accepted from "Authorization: Bearer <token>" or the auth cookie.

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const anonCookieName = "emoji_anon"

// Options configures token lifetime and cookie attributes.
type Options struct {
	Secret      string
	ExpiresDays int
	CookieName  string
	Secure      bool // production: Secure + SameSite=None
}

// Service signs and verifies tokens and decorates requests with the player.
type Service struct {
	opts  Options
	users *Users
}

// NewService builds a Service over users.
func NewService(users *Users, opts Options) *Service {
	if opts.ExpiresDays <= 0 {
		opts.ExpiresDays = 14
	}
	if opts.CookieName == "" {
		opts.CookieName = "emoji_token"
	}
	return &Service{opts: opts, users: users}
}

// Users exposes the account repository.
func (s *Service) Users() *Users { return s.users }

// Sign creates an HS256 JWT for the user.
func (s *Service) Sign(id, username string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(time.Duration(s.opts.ExpiresDays) * 24 * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := token.SignedString([]byte(s.opts.Secret))
	return ss, exp, err
}

// Parse validates a token and returns the user id it names.
func (s *Service) Parse(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !t.Valid {
		return "", errors.New("invalid token")
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return "", errors.New("token without id")
	}
	return id, nil
}

// ------------------------------ cookies ------------------------------------

func (s *Service) sameSite() http.SameSite {
	if s.opts.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// SetCookie writes the auth token cookie.
func (s *Service) SetCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: s.sameSite(),
		Expires:  exp,
	})
}

// ClearCookie deletes the auth token cookie.
func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: s.sameSite(),
		MaxAge:   -1,
	})
}

// EnsureAnonID returns the anonymous-player cookie, setting one if missing.
func (s *Service) EnsureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := GenID()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: s.sameSite(),
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	// Make the id visible to later reads of the same request.
	r.AddCookie(&http.Cookie{Name: anonCookieName, Value: id})
	return id
}

// AnonID returns the anonymous-player cookie without setting one.
func (s *Service) AnonID(r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil {
		return c.Value
	}
	return ""
}

// bearerOrCookie extracts a token from the Authorization header or auth cookie.
func (s *Service) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// ----------------------------- middleware ----------------------------------

type ctxUserKey struct{}

// Principal is placed into the request context for signed-in players.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// FromContext returns the signed-in player, or nil for guests.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxUserKey{}).(*Principal)
	return p
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, p)
}

func (s *Service) principal(r *http.Request) (*Principal, error) {
	tok := s.bearerOrCookie(r)
	if tok == "" {
		return nil, errors.New("no token")
	}
	id, err := s.Parse(tok)
	if err != nil {
		return nil, err
	}
	u, err := s.users.ByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &Principal{ID: u.ID, Username: u.Username}, nil
}

// Optional decorates requests with the player if a valid token is present.
// It never rejects; guests pass through.
func (s *Service) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := s.principal(r); err == nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests without a valid token.
func (s *Service) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.principal(r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("auth rejected")
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// PlayerID returns the signed-in user id, or the anonymous cookie id for
// guests. The second value reports whether the player is signed in.
func (s *Service) PlayerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if p := FromContext(r.Context()); p != nil {
		return p.ID, true
	}
	return s.EnsureAnonID(w, r), false
}

// Package auth gates the dashboard behind a single shared password and keeps
// the resulting session in a signed cookie.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	CookieName = "libreria_session"
	subject    = "operator"
)

var ErrNoPassword = errors.New("no password configured (set APP_PASSWORD or APP_PASSWORD_HASH)")

// Session is the per-request authentication state. It is either
// Unauthenticated or Authenticated; handlers switch on the concrete type.
type Session interface {
	isSession()
}

type Unauthenticated struct{}

type Authenticated struct {
	IssuedAt time.Time
}

func (Unauthenticated) isSession() {}
func (Authenticated) isSession()   {}

// IsAuthenticated is a convenience for templates and guards.
func IsAuthenticated(s Session) bool {
	_, ok := s.(Authenticated)
	return ok
}

type Authenticator struct {
	hash   []byte
	secret []byte
	now    func() time.Time
}

// New builds an Authenticator. A plain password is hashed once at startup;
// passwordHash, when set, must be a bcrypt hash and wins. An empty secret is
// replaced by a random one, which invalidates sessions on restart.
func New(password, passwordHash, secret string) (*Authenticator, error) {
	a := &Authenticator{now: time.Now}

	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("invalid APP_PASSWORD_HASH: %w", err)
		}
		a.hash = []byte(passwordHash)
	case password != "":
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		a.hash = h
	default:
		return nil, ErrNoPassword
	}

	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		a.secret = buf
		slog.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	} else {
		a.secret = []byte(secret)
	}
	return a, nil
}

// HashPassword returns a bcrypt hash suitable for APP_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (a *Authenticator) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
}

// Login verifies password and, on success, sets the session cookie.
func (a *Authenticator) Login(w http.ResponseWriter, r *http.Request, password string) (Session, error) {
	if !a.CheckPassword(password) {
		return Unauthenticated{}, nil
	}
	issued := a.now().Truncate(time.Second)
	token, err := a.sign(issued)
	if err != nil {
		return Unauthenticated{}, err
	}
	// No MaxAge/Expires: the cookie ends with the browser session.
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return Authenticated{IssuedAt: issued}, nil
}

// Logout clears the session cookie.
func (a *Authenticator) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Resolve reads the session from the request cookie. Any missing, tampered
// or foreign token resolves to Unauthenticated.
func (a *Authenticator) Resolve(r *http.Request) Session {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Unauthenticated{}
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(subject))
	if err != nil || !token.Valid || claims.IssuedAt == nil {
		return Unauthenticated{}
	}
	return Authenticated{IssuedAt: claims.IssuedAt.Time}
}

func (a *Authenticator) sign(issued time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(issued),
	})
	s, err := t.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return s, nil
}

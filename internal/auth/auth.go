// Package auth issues and checks the admin dashboard session cookie.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the session flag consulted by RequireSession.
const CookieName = "user"

var ErrInvalidSession = errors.New("invalid session")

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Sessions signs and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration, secure bool) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

func (s *Sessions) Issue(name string) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub": name,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Verify returns the session's user name.
func (s *Sessions) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidSession
	}
	name, _ := claims["sub"].(string)
	if name == "" {
		return "", ErrInvalidSession
	}
	return name, nil
}

// SetCookie stores a fresh session for name on the response.
func (s *Sessions) SetCookie(c *gin.Context, name string) error {
	token, err := s.Issue(name)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(s.ttl.Seconds()), "/", "", s.secure, true)
	return nil
}

func (s *Sessions) ClearCookie(c *gin.Context) {
	c.SetCookie(CookieName, "", -1, "/", "", s.secure, true)
}

// RequireSession gates the admin area. API calls get 401, pages are
// redirected to loginPath.
func (s *Sessions) RequireSession(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err == nil {
			if name, err := s.Verify(token); err == nil {
				c.Set("user", name)
				c.Next()
				return
			}
		}

		if strings.Contains(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Redirect(http.StatusFound, loginPath)
		c.Abort()
	}
}

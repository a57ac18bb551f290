package app

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/yuna-go/internal/domain"
)

const tokenIssuer = "yuna"

// Token is returned by a successful login
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// AuthService checks the configured credentials and issues HS256 tokens
type AuthService struct {
	username string
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthService creates an auth service. An empty secret is replaced by a
// random one, so tokens do not survive a restart.
func NewAuthService(config domain.AuthConfig) (*AuthService, error) {
	secret := []byte(config.Secret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		secret = []byte(hex.EncodeToString(buf))
	}
	return &AuthService{
		username: config.Username,
		password: config.Password,
		secret:   secret,
		ttl:      config.TokenTTL,
		now:      time.Now,
	}, nil
}

// Login validates the credentials and returns a signed token
func (s *AuthService) Login(username, password string) (*Token, error) {
	if !s.validate(username, password) {
		return nil, fmt.Errorf("%w: invalid username or password", domain.ErrUnauthorized)
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   username,
		Issuer:    tokenIssuer,
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.ttl / time.Second),
	}, nil
}

// Verify parses a token and returns its subject
func (s *AuthService) Verify(raw string) (string, error) {
	var claims jwt.StandardClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	if claims.Subject == "" || claims.Issuer != tokenIssuer {
		return "", fmt.Errorf("%w: unexpected token claims", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}

func (s *AuthService) validate(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1

	var passOK bool
	if strings.HasPrefix(s.password, "$2") {
		passOK = bcrypt.CompareHashAndPassword([]byte(s.password), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	}
	return userOK && passOK
}

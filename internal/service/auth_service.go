package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer  = "diary"
	tokenSubject = "owner"
)

// DefaultTokenTTL is used when AuthConfig.TokenTTL is not set.
const DefaultTokenTTL = 12 * time.Hour

// Session is a signed token granting access to the diary.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService guards the diary behind a single owner password.
type AuthService interface {
	Enabled() bool
	Login(password string) (*Session, error)
	Verify(token string) error
}

type AuthConfig struct {
	Password  string
	JWTSecret string
	TokenTTL  time.Duration
	Clock     func() time.Time
}

type authService struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewAuthService hashes the configured owner password. An empty password
// yields a disabled service that lets every request through.
func NewAuthService(cfg AuthConfig) (AuthService, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	s := &authService{
		ttl: cfg.TokenTTL,
		now: cfg.Clock,
	}

	password := strings.TrimSpace(cfg.Password)
	if password == "" {
		return s, nil
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required when a password is set")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	s.passwordHash = hash
	s.secret = []byte(cfg.JWTSecret)
	return s, nil
}

func (s *authService) Enabled() bool {
	return len(s.passwordHash) > 0
}

func (s *authService) Login(password string) (*Session, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *authService) Verify(token string) error {
	if !s.Enabled() {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrUnauthorized
	}

	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(tokenSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

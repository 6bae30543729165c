package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Palindrome-Puzzles/jolly-roger/internal/config"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/domain/account"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/events"
	"github.com/Palindrome-Puzzles/jolly-roger/internal/repository"
	jr_errors "github.com/Palindrome-Puzzles/jolly-roger/pkg/errors"
)

// AuthService resolves user identity for the HTTP and websocket surfaces.
// Account management beyond create/login lives outside this service.
type AuthService struct {
	users     repository.UserRepository
	bus       events.Publisher
	jwtSecret []byte
	tokenTTL  time.Duration
}

type AccessClaims struct {
	IsAdmin bool `json:"adm"`
	jwt.RegisteredClaims
}

func NewAuthService(users repository.UserRepository, bus events.Publisher, cfg *config.Config) *AuthService {
	return &AuthService{
		users:     users,
		bus:       bus,
		jwtSecret: []byte(cfg.Auth.JWTSecret),
		tokenTTL:  cfg.Auth.AccessTokenTTL,
	}
}

// CreateUser registers an account. The first account on a fresh install
// becomes the admin, and its creation flips the hasUsers view.
func (s *AuthService) CreateUser(ctx context.Context, email, displayName, password string) (account.User, error) {
	if email == "" || len(password) < 8 {
		return account.User{}, fmt.Errorf("create user: %w", jr_errors.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return account.User{}, fmt.Errorf("create user: %w", err)
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return account.User{}, fmt.Errorf("create user: %w", err)
	}

	now := time.Now()
	u := account.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		IsAdmin:      count == 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return account.User{}, fmt.Errorf("create user: %w", err)
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, events.NewEnvelope(events.CollectionUsers, u.ID.String(), events.OpAdded, map[string]interface{}{
			"id": u.ID, "display_name": u.DisplayName,
		}))
		if count == 0 {
			_ = s.bus.Publish(ctx, events.NewEnvelope(events.PseudoHasUsers, events.PseudoHasUsers, events.OpChanged, map[string]bool{"hasUsers": true}))
		}
	}
	return u, nil
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, account.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, jr_errors.ErrNotFound) {
			return "", account.User{}, jr_errors.ErrUnauthorized
		}
		return "", account.User{}, fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", account.User{}, jr_errors.ErrUnauthorized
	}

	token, err := s.newAccessToken(u)
	if err != nil {
		return "", account.User{}, fmt.Errorf("login: %w", err)
	}
	return token, u, nil
}

// ParseAccessToken validates a bearer token and returns its claims.
func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return AccessClaims{}, jr_errors.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok {
		return AccessClaims{}, jr_errors.ErrUnauthorized
	}
	return *claims, nil
}

// GetUser resolves a user id.
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (account.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AuthService) newAccessToken(u account.User) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		IsAdmin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

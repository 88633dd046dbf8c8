package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"watchparty/internal/core/domain"
	"watchparty/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims carries the identity object inside access tokens.
type Claims struct {
	UserID      domain.UserID `json:"user_id"`
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name,omitempty"`
	PhotoURL    string        `json:"photo_url,omitempty"`
	jwt.RegisteredClaims
}

// Identity reconstructs the authenticated-user object from token claims.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{
		UID:         c.UserID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		PhotoURL:    c.PhotoURL,
	}
}

// AuthService is the identity collaborator: registration, login, and token
// validation yielding {uid, email, displayName, photoURL}.
type AuthService struct {
	users          ports.UserRepository
	jwtSecret      []byte
	accessTokenTTL time.Duration
}

func NewAuthService(users ports.UserRepository, jwtSecret string, accessTokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:          users,
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
	}
}

// Register creates an account and returns its identity with a fresh token.
func (s *AuthService) Register(ctx context.Context, email, displayName, photoURL, password string) (domain.Identity, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user := &domain.User{
		ID:          domain.UserID(uuid.New().String()),
		Email:       email,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		CreatedAt:   time.Now(),
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Identity{}, "", err
	}
	user.PasswordHash = string(hash)

	if err := s.users.Create(ctx, user); err != nil {
		return domain.Identity{}, "", err
	}

	token, err := s.GenerateToken(user.Identity())
	if err != nil {
		return domain.Identity{}, "", err
	}
	return user.Identity(), token, nil
}

// Login verifies credentials and returns the identity with a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.Identity, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Identity{}, "", domain.ErrInvalidCredentials
		}
		return domain.Identity{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.Identity{}, "", domain.ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user.Identity())
	if err != nil {
		return domain.Identity{}, "", err
	}
	return user.Identity(), token, nil
}

func (s *AuthService) GenerateToken(identity domain.Identity) (string, error) {
	claims := &Claims{
		UserID:      identity.UID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		PhotoURL:    identity.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

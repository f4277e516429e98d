package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/repository"
)

const minPasswordLength = 6

// Claims are the JWT claims issued at login.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return nil, domain.ValidationError("missing_credentials")
	}
	if len(password) < minPasswordLength {
		return nil, domain.ValidationError("password_too_short")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &domain.User{Username: username, Email: email, PasswordHash: string(hash), CreatedAt: s.now()}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domain.NewError(domain.ErrorConflict, "username_taken", err)
		}
		return nil, domain.StorageError("create_user", err)
	}
	s.log.Info("user registered", "user_id", user.UserID)
	return user, nil
}

// Login verifies the credentials and returns the user with a signed access token.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, string, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, "", domain.ValidationError("missing_credentials")
	}
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, "", domain.StorageError("load_user", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", domain.NewError(domain.ErrorUnauthorized, "invalid_credentials", nil)
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// IssueToken signs an HS256 access token whose subject is the user id.
func (s *Service) IssueToken(user *domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWTTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates an access token and returns the user id it was issued for.
func (s *Service) ParseToken(tokenString string) (int64, error) {
	if tokenString == "" {
		return 0, domain.NewError(domain.ErrorUnauthorized, "missing_token", nil)
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, domain.NewError(domain.ErrorUnauthorized, "invalid_token", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return 0, domain.NewError(domain.ErrorUnauthorized, "invalid_token", nil)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, domain.NewError(domain.ErrorUnauthorized, "invalid_subject", err)
	}
	return userID, nil
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, domain.StorageError("load_user", err)
	}
	if user == nil {
		return nil, domain.NotFound("user_not_found")
	}
	return user, nil
}

type UpdateUserInput struct {
	Username        string
	Email           string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// UpdateUser changes profile fields. A password change requires the current password.
func (s *Service) UpdateUser(ctx context.Context, userID int64, in UpdateUserInput) (*domain.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if username := strings.TrimSpace(in.Username); username != "" {
		user.Username = username
	}
	if email := strings.TrimSpace(in.Email); email != "" {
		user.Email = email
	}

	if in.NewPassword != "" {
		if in.NewPassword != in.ConfirmPassword {
			return nil, domain.ValidationError("password_mismatch")
		}
		if len(in.NewPassword) < minPasswordLength {
			return nil, domain.ValidationError("password_too_short")
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)) != nil {
			return nil, domain.NewError(domain.ErrorUnauthorized, "current_password_incorrect", nil)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, domain.NewError(domain.ErrorConflict, "username_taken", err)
		}
		return nil, domain.StorageError("update_user", err)
	}
	return user, nil
}

// TokenTTL is the lifetime of issued access tokens.
func (s *Service) TokenTTL() time.Duration {
	return s.config.JWTTTL
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/queue"
	"golang.org/x/crypto/bcrypt"
)

const (
	resetPurpose = "reset_password"

	maxResetRequests   = 3
	resetRequestWindow = time.Hour
)

// ResetClaims bind a user to a reset capability until ExpiresAt.
type ResetClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// IssueResetToken signs a reset token for userID valid for the configured
// reset lifetime.
func (s *UserService) IssueResetToken(userID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.jwt.ResetExpireTime)
	claims := ResetClaims{
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign reset token: %w", err)
	}
	return token, expiresAt, nil
}

// VerifyResetToken checks signature, purpose and expiry and returns the
// claims. It does not consume the token.
func (s *UserService) VerifyResetToken(token string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.jwt.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != resetPurpose || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RequestPasswordReset issues a reset token for the account registered under
// email and publishes it for delivery. An unknown email is not an error so
// callers cannot probe which addresses are registered.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return storageErr("get user by email", err)
	}

	if s.keys != nil {
		n, err := s.keys.IncrWithExpire(ctx, "reset_requests:"+user.ID.String(), resetRequestWindow)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to throttle password reset request")
		} else if n > maxResetRequests {
			s.logger.WithField("user_id", user.ID).Warn("Password reset requests throttled")
			return nil
		}
	}

	token, expiresAt, err := s.IssueResetToken(user.ID)
	if err != nil {
		return err
	}

	s.publish(ctx, user.ID.String(), queue.EventPasswordResetRequested, queue.PasswordResetEventData{
		UserID:    user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Token:     token,
		ExpiresAt: expiresAt,
	})
	return nil
}

// ResetPassword consumes token and replaces the password of the user it
// names. Each token works once when a key store is configured.
func (s *UserService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	claims, err := s.VerifyResetToken(req.Token)
	if err != nil {
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}

	userID := uuid.MustParse(claims.Subject)
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return storageErr("get user", err)
	}

	claimKey := "reset_token:" + claims.ID
	if s.keys != nil {
		ttl := claims.ExpiresAt.Time.Sub(s.now())
		if ttl < time.Second {
			ttl = time.Second
		}
		claimed, err := s.keys.SetNX(ctx, claimKey, 1, ttl)
		if err != nil {
			return fmt.Errorf("%w: claim reset token: %v", ErrStorage, err)
		}
		if !claimed {
			return ErrInvalidToken
		}
	}

	if err := s.storePassword(ctx, userID, req.Password); err != nil {
		s.releaseClaim(ctx, claimKey)
		return err
	}
	return nil
}

func (s *UserService) storePassword(ctx context.Context, userID uuid.UUID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return storageErr("update password", err)
	}
	return nil
}

// releaseClaim frees a reset token whose password change did not happen, so
// it can be used again until it expires.
func (s *UserService) releaseClaim(ctx context.Context, key string) {
	if s.keys == nil {
		return
	}
	if err := s.keys.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WithError(err).Warn("Failed to release reset token claim")
	}
}

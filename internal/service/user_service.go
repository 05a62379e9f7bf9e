package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/event-registration/internal/auth"
	"github.com/campuskit/event-registration/internal/db"
	"github.com/campuskit/event-registration/internal/model"
	"github.com/campuskit/event-registration/internal/repository"
	"github.com/campuskit/event-registration/pkg/logger"
)

const activationTokenTTL = 10 * time.Minute

type UserService struct {
	tx db.Transactor

	users repository.UserRepository

	accessTokenTTL time.Duration
}

func NewUserService(tx db.Transactor, accessTokenTTL time.Duration) *UserService {
	return &UserService{
		tx:             tx,
		accessTokenTTL: accessTokenTTL,
	}
}

// Signup creates an unverified account and returns the activation token.
// Only the token's hash is stored; delivery of the token to the student is
// out of band.
func (s *UserService) Signup(ctx context.Context, req *model.Signup) (string, *Error) {
	l := logger.FromContext(ctx)
	l.Info("signing up user", zap.String("email", req.Email), zap.String("usn", req.USN))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		l.Error("failed to hash password", zap.Error(err))
		return "", NewError(ErrorCodeUnspecified, "failed to sign up")
	}

	token, err := newActivationToken()
	if err != nil {
		l.Error("failed to generate activation token", zap.Error(err))
		return "", NewError(ErrorCodeUnspecified, "failed to sign up")
	}
	tokenHash := hashToken(token)
	expires := time.Now().Add(activationTokenTTL)

	err = s.users.Create(ctx, &repository.User{
		ID:           uuid.NewString(),
		FullName:     req.FullName,
		Email:        req.Email,
		USN:          req.USN,
		Semester:     req.Semester,
		Department:   req.Department,
		PasswordHash: string(hash),
		IsVerified:   false,
		TokenHash:    &tokenHash,
		TokenExpires: &expires,
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		l.Warn("email or usn already taken", zap.String("email", req.Email))
		return "", NewError(ErrorCodeUserExists, "email or usn already registered")
	}
	if err != nil {
		l.Error("failed to create user", zap.String("email", req.Email), zap.Error(err))
		return "", NewError(ErrorCodeUnspecified, "failed to sign up")
	}

	l.Debug("user signed up", zap.String("email", req.Email))
	return token, nil
}

func (s *UserService) Activate(ctx context.Context, token string) *Error {
	l := logger.FromContext(ctx)
	l.Info("activating account")

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetByActivationToken(txCtx, hashToken(token))
		if errors.Is(err, repository.ErrNotFound) {
			l.Warn("activation token not found")
			return NewError(ErrorCodeInvalidArgument, "invalid or expired activation token")
		}
		if err != nil {
			l.Error("failed to look up activation token", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to activate account")
		}

		if user.TokenExpires == nil || time.Now().After(*user.TokenExpires) {
			l.Warn("activation token expired", zap.String("user_id", user.ID))
			return NewError(ErrorCodeInvalidArgument, "invalid or expired activation token")
		}

		if err = s.users.SetVerified(txCtx, user.ID); err != nil {
			l.Error("failed to mark user verified", zap.String("user_id", user.ID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to activate account")
		}
		return nil
	})

	var res *Error
	if errors.As(err, &res) {
		return res
	}
	if err != nil {
		l.Error("activation transaction failed", zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to activate account")
	}
	return nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (string, *model.User, *Error) {
	l := logger.FromContext(ctx)
	l.Info("logging in user", zap.String("email", email))

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("unknown email", zap.String("email", email))
		return "", nil, NewError(ErrorCodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		l.Error("failed to get user", zap.String("email", email), zap.Error(err))
		return "", nil, NewError(ErrorCodeUnspecified, "failed to log in")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		l.Warn("wrong password", zap.String("email", email))
		return "", nil, NewError(ErrorCodeUnauthorized, "invalid credentials")
	}

	if !user.IsVerified {
		l.Warn("account not verified", zap.String("email", email))
		return "", nil, NewError(ErrorCodeUnauthorized, "account not verified")
	}

	token, err := auth.GenerateToken(user.ID, s.accessTokenTTL)
	if err != nil {
		l.Error("failed to generate access token", zap.String("user_id", user.ID), zap.Error(err))
		return "", nil, NewError(ErrorCodeUnspecified, "failed to log in")
	}

	l.Debug("user logged in", zap.String("user_id", user.ID))

	return token, &model.User{
		ID:         user.ID,
		FullName:   user.FullName,
		Email:      user.Email,
		USN:        user.USN,
		Semester:   user.Semester,
		Department: user.Department,
		IsVerified: user.IsVerified,
	}, nil
}

func (s *UserService) WithUserRepo(r repository.UserRepository) *UserService {
	s.users = r
	return s
}

func newActivationToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

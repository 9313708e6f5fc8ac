package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/repository"
	"github.com/carebook/booking-api/pkg/auth"
	apperrors "github.com/carebook/booking-api/pkg/errors"
	"github.com/carebook/booking-api/pkg/logger"
)

const bcryptCost = 12

type Service struct {
	userRepo repository.UserRepository
	jwtMgr   *auth.JWTManager
	log      *logger.Logger
}

func NewService(userRepo repository.UserRepository, jwtMgr *auth.JWTManager, log *logger.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		jwtMgr:   jwtMgr,
		log:      log,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	existing, _ := s.userRepo.GetByEmail(ctx, req.Email)
	if existing != nil {
		return nil, apperrors.Validation("email already registered", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Base:         model.Base{ID: uuid.New()},
		Email:        req.Email,
		PasswordHash: string(hashed),
		Name:         req.Name,
		Role:         req.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user registered", "user_id", user.ID.String(), "role", string(user.Role))
	return s.issueToken(user)
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid credentials", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials", nil)
	}

	return s.issueToken(user)
}

func (s *Service) ValidateToken(tokenString string) (*model.TokenClaims, error) {
	claims, err := s.jwtMgr.ValidateToken(tokenString)
	if err != nil {
		return nil, apperrors.Unauthorized("", err)
	}
	return claims, nil
}

func (s *Service) issueToken(user *model.User) (*model.AuthResponse, error) {
	token, expiresAt, err := s.jwtMgr.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &model.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

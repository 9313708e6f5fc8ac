package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/carebook/booking-api/internal/model"
	"github.com/carebook/booking-api/internal/repository"
	apperrors "github.com/carebook/booking-api/pkg/errors"
	"github.com/carebook/booking-api/pkg/logger"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheSweep   = 10 * time.Minute
	skillCardKey = "skill_cards"
)

type Service struct {
	repo  repository.DoctorRepository
	cache *cache.Cache
	log   *logger.Logger
}

func NewService(repo repository.DoctorRepository, log *logger.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheTTL, cacheSweep),
		log:   log,
	}
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	key := "doctor:" + id.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Doctor), nil
	}

	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, doctor, cache.DefaultExpiration)
	return doctor, nil
}

func (s *Service) ListDoctors(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error) {
	doctors, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

// ListSkillCards serves the marketplace browse view. The set changes rarely
// so it is cached as a whole.
func (s *Service) ListSkillCards(ctx context.Context) ([]*model.SkillCard, error) {
	if cached, ok := s.cache.Get(skillCardKey); ok {
		return cached.([]*model.SkillCard), nil
	}

	cards, err := s.repo.ListSkillCards(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(skillCardKey, cards, cache.DefaultExpiration)
	return cards, nil
}

func (s *Service) GetSkillCard(ctx context.Context, doctorID uuid.UUID) (*model.SkillCard, error) {
	return s.repo.GetSkillCard(ctx, doctorID)
}

func (s *Service) UpsertSkillCard(ctx context.Context, doctorID uuid.UUID, req *model.UpsertSkillCardRequest, actor *model.TokenClaims) (*model.SkillCard, error) {
	if actor == nil || actor.Role != model.RoleDoctor {
		return nil, apperrors.Forbidden("only doctors can edit skill cards", nil)
	}
	if actor.UserID != doctorID {
		return nil, apperrors.Forbidden("", nil)
	}
	if _, err := s.repo.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	card := &model.SkillCard{
		DoctorID: doctorID,
		Title:    req.Title,
		Emoji:    req.Emoji,
	}
	if err := s.repo.UpsertSkillCard(ctx, card); err != nil {
		return nil, err
	}

	s.cache.Delete(skillCardKey)
	s.cache.Delete("doctor:" + doctorID.String())
	return card, nil
}

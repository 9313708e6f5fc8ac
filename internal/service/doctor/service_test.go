package doctor

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebook/booking-api/internal/model"
	apperrors "github.com/carebook/booking-api/pkg/errors"
	"github.com/carebook/booking-api/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

type fakeDoctorRepo struct {
	doctors        map[uuid.UUID]*model.Doctor
	cards          map[uuid.UUID]*model.SkillCard
	getCalls       int
	listCardsCalls int
	upserted       []*model.SkillCard
}

func newFakeDoctorRepo() *fakeDoctorRepo {
	return &fakeDoctorRepo{
		doctors: make(map[uuid.UUID]*model.Doctor),
		cards:   make(map[uuid.UUID]*model.SkillCard),
	}
}

func (r *fakeDoctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.getCalls++
	doc, ok := r.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return doc, nil
}

func (r *fakeDoctorRepo) List(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error) {
	out := make([]*model.Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		out = append(out, d)
	}
	return out, nil
}

func (r *fakeDoctorRepo) GetSkillCard(ctx context.Context, doctorID uuid.UUID) (*model.SkillCard, error) {
	card, ok := r.cards[doctorID]
	if !ok {
		return nil, apperrors.NotFound("skill card", nil)
	}
	return card, nil
}

func (r *fakeDoctorRepo) UpsertSkillCard(ctx context.Context, card *model.SkillCard) error {
	r.cards[card.DoctorID] = card
	r.upserted = append(r.upserted, card)
	return nil
}

func (r *fakeDoctorRepo) ListSkillCards(ctx context.Context) ([]*model.SkillCard, error) {
	r.listCardsCalls++
	out := make([]*model.SkillCard, 0, len(r.cards))
	for _, c := range r.cards {
		out = append(out, c)
	}
	return out, nil
}

func seedDoctor(repo *fakeDoctorRepo) *model.Doctor {
	doc := &model.Doctor{
		Base:      model.Base{ID: uuid.New()},
		Name:      "Dr. Chen",
		Specialty: "cardiology",
		FeeCents:  5000,
		Available: true,
	}
	repo.doctors[doc.ID] = doc
	return doc
}

func TestGetDoctorCaching(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDoctorRepo()
	doc := seedDoctor(repo)
	svc := NewService(repo, quietLogger())

	first, err := svc.GetDoctor(ctx, doc.ID)
	require.NoError(t, err)
	second, err := svc.GetDoctor(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.getCalls)
}

func TestGetSkillCard(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDoctorRepo()
	doc := seedDoctor(repo)
	svc := NewService(repo, quietLogger())

	_, err := svc.GetSkillCard(ctx, doc.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	repo.cards[doc.ID] = &model.SkillCard{DoctorID: doc.ID, Title: "Heart health", Emoji: "🫀"}

	card, err := svc.GetSkillCard(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Heart health", card.Title)
}

func TestUpsertSkillCard(t *testing.T) {
	ctx := context.Background()

	t.Run("doctor edits their own card and the list cache drops", func(t *testing.T) {
		repo := newFakeDoctorRepo()
		doc := seedDoctor(repo)
		svc := NewService(repo, quietLogger())

		_, err := svc.ListSkillCards(ctx)
		require.NoError(t, err)
		_, err = svc.ListSkillCards(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.listCardsCalls)

		actor := &model.TokenClaims{UserID: doc.ID, Role: model.RoleDoctor}
		card, err := svc.UpsertSkillCard(ctx, doc.ID, &model.UpsertSkillCardRequest{Title: "Sleep", Emoji: "😴"}, actor)
		require.NoError(t, err)
		assert.Equal(t, doc.ID, card.DoctorID)

		cards, err := svc.ListSkillCards(ctx)
		require.NoError(t, err)
		assert.Len(t, cards, 1)
		assert.Equal(t, 2, repo.listCardsCalls)
	})

	t.Run("patients cannot edit skill cards", func(t *testing.T) {
		repo := newFakeDoctorRepo()
		doc := seedDoctor(repo)
		svc := NewService(repo, quietLogger())

		actor := &model.TokenClaims{UserID: doc.ID, Role: model.RolePatient}
		_, err := svc.UpsertSkillCard(ctx, doc.ID, &model.UpsertSkillCardRequest{Title: "Sleep", Emoji: "😴"}, actor)
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	})

	t.Run("doctors cannot edit someone else's card", func(t *testing.T) {
		repo := newFakeDoctorRepo()
		doc := seedDoctor(repo)
		svc := NewService(repo, quietLogger())

		actor := &model.TokenClaims{UserID: uuid.New(), Role: model.RoleDoctor}
		_, err := svc.UpsertSkillCard(ctx, doc.ID, &model.UpsertSkillCardRequest{Title: "Sleep", Emoji: "😴"}, actor)
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	})

	t.Run("unknown doctor is rejected", func(t *testing.T) {
		repo := newFakeDoctorRepo()
		svc := NewService(repo, quietLogger())

		id := uuid.New()
		actor := &model.TokenClaims{UserID: id, Role: model.RoleDoctor}
		_, err := svc.UpsertSkillCard(ctx, id, &model.UpsertSkillCardRequest{Title: "Sleep", Emoji: "😴"}, actor)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/model"
	apperrors "github.com/carebook/booking-api/pkg/errors"
)

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	query := `
		SELECT id, name, specialty, bio, image_url, fee_cents,
		       rating_avg, rating_count, available, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`
	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("doctor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return &doctor, nil
}

func (r *doctorRepository) List(ctx context.Context, filters *model.DoctorFilters) ([]*model.Doctor, error) {
	query := `
		SELECT id, name, specialty, bio, image_url, fee_cents,
		       rating_avg, rating_count, available, created_at, updated_at
		FROM doctors
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.Specialty != "" {
			query += fmt.Sprintf(" AND specialty = $%d", argCount)
			args = append(args, filters.Specialty)
			argCount++
		}
		if filters.Available != nil {
			query += fmt.Sprintf(" AND available = $%d", argCount)
			args = append(args, *filters.Available)
			argCount++
		}
	}

	query += " ORDER BY rating_avg DESC, name ASC"

	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) GetSkillCard(ctx context.Context, doctorID uuid.UUID) (*model.SkillCard, error) {
	query := `
		SELECT id, doctor_id, title, emoji, created_at, updated_at
		FROM skill_cards
		WHERE doctor_id = $1
	`
	var card model.SkillCard
	err := r.db.GetContext(ctx, &card, query, doctorID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("skill card", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get skill card: %w", err)
	}
	return &card, nil
}

func (r *doctorRepository) UpsertSkillCard(ctx context.Context, card *model.SkillCard) error {
	query := `
		INSERT INTO skill_cards (id, doctor_id, title, emoji, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (doctor_id) DO UPDATE
		SET title = EXCLUDED.title, emoji = EXCLUDED.emoji, updated_at = EXCLUDED.updated_at
	`
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	now := time.Now().UTC()
	card.CreatedAt = now
	card.UpdatedAt = now

	if _, err := r.db.ExecContext(ctx, query, card.ID, card.DoctorID, card.Title, card.Emoji, now); err != nil {
		return fmt.Errorf("failed to upsert skill card: %w", err)
	}
	return nil
}

func (r *doctorRepository) ListSkillCards(ctx context.Context) ([]*model.SkillCard, error) {
	query := `
		SELECT id, doctor_id, title, emoji, created_at, updated_at
		FROM skill_cards
		ORDER BY title ASC
	`
	var cards []*model.SkillCard
	if err := r.db.SelectContext(ctx, &cards, query); err != nil {
		return nil, fmt.Errorf("failed to list skill cards: %w", err)
	}
	return cards, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/duetapp/notify-api/internal/model"
	"github.com/duetapp/notify-api/internal/repository"
)

type pushSubscriptionRepository struct {
	BaseRepository
}

func NewPushSubscriptionRepository(base BaseRepository) repository.PushSubscriptionRepository {
	return &pushSubscriptionRepository{base}
}

func (r *pushSubscriptionRepository) Upsert(ctx context.Context, sub *model.PushSubscription) (model.UpsertOutcome, error) {
	var outcome model.UpsertOutcome

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var existing model.PushSubscription
		err := tx.GetContext(ctx, &existing,
			`SELECT * FROM push_subscriptions WHERE endpoint = $1 FOR UPDATE`, sub.Endpoint)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			sub.ID = uuid.New()
			sub.CreatedAt = time.Now()
			sub.UpdatedAt = sub.CreatedAt

			_, err := tx.ExecContext(ctx, `
				INSERT INTO push_subscriptions (
					id, user_id, endpoint, auth_secret, p256dh_key, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, sub.ID, sub.UserID, sub.Endpoint, sub.AuthSecret, sub.P256dhKey, sub.CreatedAt, sub.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert subscription: %w", err)
			}
			outcome = model.UpsertOutcomeCreated
			return nil

		case err != nil:
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		// Known endpoint: refresh keys, and reassign ownership when the
		// subscriber changed.
		if existing.UserID == sub.UserID {
			outcome = model.UpsertOutcomeUpdated
		} else {
			outcome = model.UpsertOutcomeTransferred
		}

		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
		sub.UpdatedAt = time.Now()

		_, err = tx.ExecContext(ctx, `
			UPDATE push_subscriptions
			SET user_id = $1, auth_secret = $2, p256dh_key = $3, updated_at = $4
			WHERE id = $5
		`, sub.UserID, sub.AuthSecret, sub.P256dhKey, sub.UpdatedAt, sub.ID)
		if err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return outcome, nil
}

func (r *pushSubscriptionRepository) GetByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	query := `SELECT * FROM push_subscriptions WHERE endpoint = $1`

	var sub model.PushSubscription
	if err := r.db.GetContext(ctx, &sub, query, endpoint); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

func (r *pushSubscriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.PushSubscription, error) {
	query := `
		SELECT * FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY created_at
	`

	subs := []*model.PushSubscription{}
	if err := r.db.SelectContext(ctx, &subs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return subs, nil
}

func (r *pushSubscriptionRepository) Delete(ctx context.Context, endpoint string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	if err != nil {
		return false, fmt.Errorf("failed to delete subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

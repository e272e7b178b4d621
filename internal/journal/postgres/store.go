package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflow/checkout/internal/journal"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Record(ctx context.Context, event journal.Event) (string, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	query := `
		INSERT INTO webhook_events
			(id, provider, payload, raw_body, remote_addr, signature_valid, status, failure_reason, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	id := uuid.NewString()
	_, err = s.pool.Exec(ctx, query,
		id,
		event.Provider,
		payload,
		event.RawBody,
		event.RemoteAddr,
		event.SignatureValid,
		event.Status,
		event.FailureReason,
		event.ReceivedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert webhook event: %w", err)
	}

	return id, nil
}

func (s *Store) AmendFailure(ctx context.Context, id, reason string) error {
	query := `
		UPDATE webhook_events
		SET failure_reason = $2
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("amend webhook event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook event %s not found", id)
	}

	return nil
}

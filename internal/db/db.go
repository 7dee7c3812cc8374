package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"PulseOutreach/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, conn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// InsertEntry appends one ledger row and fills entry.ID and entry.SentAt.
func (s *Store) InsertEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return s.Pool.QueryRow(ctx,
		`INSERT INTO sent_emails
		 (email, status, subject, campaign_id, sent_at)
		 VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),NOW())
		 RETURNING id, sent_at`,
		strings.ToLower(entry.Email),
		entry.Status,
		entry.Subject,
		entry.CampaignID,
	).Scan(&entry.ID, &entry.SentAt)
}

// SentExists reports whether a row with status sent exists for email,
// restricted to campaignID when it is not empty.
func (s *Store) SentExists(ctx context.Context, email, campaignID string) (bool, error) {
	var row pgx.Row
	if campaignID != "" {
		row = s.Pool.QueryRow(ctx,
			`SELECT 1 FROM sent_emails
			 WHERE email=$1 AND campaign_id=$2 AND status=$3
			 LIMIT 1`,
			strings.ToLower(email),
			campaignID,
			models.LedgerSent,
		)
	} else {
		row = s.Pool.QueryRow(ctx,
			`SELECT 1 FROM sent_emails
			 WHERE email=$1 AND status=$2
			 LIMIT 1`,
			strings.ToLower(email),
			models.LedgerSent,
		)
	}

	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) CountSent(ctx context.Context) (int64, error) {
	var n int64
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sent_emails WHERE status=$1`,
		models.LedgerSent,
	).Scan(&n)
	return n, err
}

package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/wrenhollow/authcore/session"
)

// sessionStore implements session.Store over the same DB handle as the
// owning Store.
type sessionStore struct {
	db DB
}

var _ session.Store = (*sessionStore)(nil)

func (s *sessionStore) Insert(ctx context.Context, rec *session.Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (token, user_id, user_agent, location, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.Token, rec.UserID, rec.UserAgent, rec.Location, rec.CreatedAt, rec.ExpiresAt)
	return err
}

func (s *sessionStore) FindByToken(ctx context.Context, tok string) (*session.Record, error) {
	var rec session.Record
	err := s.db.QueryRow(ctx, `
		SELECT token, user_id, COALESCE(user_agent, ''), COALESCE(location, ''), created_at, expires_at
		FROM sessions WHERE token = $1
	`, tok).Scan(&rec.Token, &rec.UserID, &rec.UserAgent, &rec.Location, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *sessionStore) DeleteByToken(ctx context.Context, tok string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, tok)
	return err
}

func (s *sessionStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

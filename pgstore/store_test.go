package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/wrenhollow/authcore"
	"github.com/wrenhollow/authcore/session"
)

func testStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func userColumnNames() []string {
	return []string{"id", "username", "email", "name", "dob", "avatar_url", "created_at"}
}

func TestFindUserByEmail(t *testing.T) {
	s, mock := testStore(t)
	ctx := context.Background()
	created := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("ada@example.com").
		WillReturnRows(pgxmock.NewRows(userColumnNames()).
			AddRow("u1", "ada_l", "ada@example.com", "Ada", "1990-01-01", "", created))

	user, err := s.FindUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail error: %v", err)
	}
	if user.ID != "u1" || user.Username != "ada_l" || user.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindUserNotFound(t *testing.T) {
	s, mock := testStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumnNames()))

	if _, err := s.FindUserByID(ctx, "missing"); !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindUserByIdentifierMatchesUsername(t *testing.T) {
	s, mock := testStore(t)
	ctx := context.Background()

	mock.ExpectQuery("WHERE email = \\$1 OR username = \\$1").
		WithArgs("ada_l").
		WillReturnRows(pgxmock.NewRows(userColumnNames()).
			AddRow("u1", "ada_l", "ada@example.com", "Ada", "", "", time.Now()))

	user, err := s.FindUserByIdentifier(ctx, "ada_l")
	if err != nil {
		t.Fatalf("FindUserByIdentifier error: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUpsertCredential(t *testing.T) {
	s, mock := testStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec("INSERT INTO account_credentials").
		WithArgs("u1", "password", "u1", "scrypt$N=16384,r=16,p=1$k$s", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertCredential(ctx, &authcore.Credential{
		UserID:       "u1",
		Provider:     authcore.ProviderPassword,
		ProviderID:   "u1",
		PasswordHash: "scrypt$N=16384,r=16,p=1$k$s",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("UpsertCredential error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFindCredentialNotFound(t *testing.T) {
	s, mock := testStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM account_credentials").
		WithArgs("google", "g-123").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "provider", "provider_id", "password_hash", "created_at", "updated_at"}))

	if _, err := s.FindCredential(ctx, authcore.Provider("google"), "g-123"); !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	s, mock := testStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "ada_l", "ada@example.com", "Ada", "1990-01-01", "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.WithTx(ctx, func(tx authcore.Store) error {
		if err := tx.CreateUser(ctx, &authcore.User{
			ID: "u1", Username: "ada_l", Email: "ada@example.com",
			Name: "Ada", DOB: "1990-01-01", CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.Sessions().Insert(ctx, &session.Record{
			Token: "tok", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		})
	})
	if err != nil {
		t.Fatalf("WithTx error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s, mock := testStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.WithTx(ctx, func(tx authcore.Store) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fn error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionFindByToken(t *testing.T) {
	s, mock := testStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("FROM sessions WHERE token").
		WithArgs("tok").
		WillReturnRows(pgxmock.NewRows([]string{"token", "user_id", "user_agent", "location", "created_at", "expires_at"}).
			AddRow("tok", "u1", "ua", "loc", now, now.Add(time.Hour)))

	rec, err := s.Sessions().FindByToken(ctx, "tok")
	if err != nil {
		t.Fatalf("FindByToken error: %v", err)
	}
	if rec.UserID != "u1" || rec.UserAgent != "ua" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	mock.ExpectQuery("FROM sessions WHERE token").
		WithArgs("gone").
		WillReturnRows(pgxmock.NewRows([]string{"token", "user_id", "user_agent", "location", "created_at", "expires_at"}))

	if _, err := s.Sessions().FindByToken(ctx, "gone"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected session.ErrNotFound, got %v", err)
	}
}

func TestSweepExpiredSessions(t *testing.T) {
	s, mock := testStore(t)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM sessions WHERE expires_at").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.SweepExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("SweepExpiredSessions error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows swept, got %d", n)
	}
}

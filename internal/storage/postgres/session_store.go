package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hushlab/hushd/internal/storage"
	"github.com/lib/pq"
)

type sessionStore struct {
	db *sql.DB
}

const sessionColumns = "id, user_id, check_in, check_out, status, used_minutes, avg_decibel, max_decibel, quiet_ratio, scored"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*storage.UsageSession, error) {
	var session storage.UsageSession
	var checkOut sql.NullTime
	err := row.Scan(
		&session.ID, &session.UserID, &session.CheckIn, &checkOut,
		&session.Status, &session.UsedMinutes,
		&session.AvgDecibel, &session.MaxDecibel, &session.QuietRatio,
		&session.Scored,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if checkOut.Valid {
		t := checkOut.Time
		session.CheckOut = &t
	}
	return &session, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *sessionStore) Create(ctx context.Context, session storage.UsageSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_sessions(id, user_id, check_in, status) VALUES($1, $2, $3, $4);`,
		session.ID, session.UserID, session.CheckIn.UTC(), string(storage.StatusInProgress),
	)
	if isUniqueViolation(err) {
		return storage.ErrOpenSession
	}
	return err
}

func (s *sessionStore) Get(ctx context.Context, id string) (*storage.UsageSession, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM usage_sessions WHERE id=$1;", sessionColumns), id)
	return scanSession(row)
}

func (s *sessionStore) LatestOpen(ctx context.Context, userID string) (*storage.UsageSession, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM usage_sessions
			WHERE user_id=$1 AND status='IN_PROGRESS'
			ORDER BY check_in DESC LIMIT 1;`, sessionColumns), userID)
	return scanSession(row)
}

func (s *sessionStore) LatestCompleted(ctx context.Context, userID string) (*storage.UsageSession, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM usage_sessions
			WHERE user_id=$1 AND status='COMPLETED'
			ORDER BY check_in DESC LIMIT 1;`, sessionColumns), userID)
	return scanSession(row)
}

func (s *sessionStore) ListOpen(ctx context.Context) ([]storage.UsageSession, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM usage_sessions WHERE status='IN_PROGRESS';", sessionColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func (s *sessionStore) ListForUser(ctx context.Context, userID string) ([]storage.UsageSession, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM usage_sessions WHERE user_id=$1 ORDER BY check_in;", sessionColumns), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]storage.UsageSession, error) {
	sessions := make([]storage.UsageSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func (s *sessionStore) Close(ctx context.Context, id string, at time.Time, status storage.SessionStatus, usedMinutes int) error {
	if !status.Terminal() {
		return fmt.Errorf("close requires a terminal status, got %s", status)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE usage_sessions SET check_out=$2, status=$3, used_minutes=$4
			WHERE id=$1 AND status='IN_PROGRESS';`,
		id, at.UTC(), string(status), usedMinutes,
	)
	if err != nil {
		return err
	}
	return s.checkConditionalWrite(ctx, result, id)
}

// checkConditionalWrite maps a zero-row conditional update to the right
// sentinel.
func (s *sessionStore) checkConditionalWrite(ctx context.Context, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM usage_sessions WHERE id=$1);", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrNotOpen
}

func (s *sessionStore) RecordStats(ctx context.Context, id string, avgDecibel, maxDecibel, quietRatio float64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE usage_sessions SET avg_decibel=$2, max_decibel=$3, quiet_ratio=$4, scored=TRUE
			WHERE id=$1 AND scored=FALSE;`,
		id, avgDecibel, maxDecibel, quietRatio,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM usage_sessions WHERE id=$1);", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

func (s *sessionStore) Split(ctx context.Context, id string, boundary time.Time, newID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE usage_sessions
			SET check_out=$2, status='COMPLETED',
				used_minutes=GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($2 - check_in)) / 60))::INT
			WHERE id=$1 AND status='IN_PROGRESS';`,
		id, boundary.UTC(),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM usage_sessions WHERE id=$1);", id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrNotOpen
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO usage_sessions(id, user_id, check_in, status)
			SELECT $2, user_id, $3, 'IN_PROGRESS' FROM usage_sessions WHERE id=$1;`,
		id, newID, boundary.UTC(),
	); err != nil {
		return err
	}

	return tx.Commit()
}

package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/sports-picks-engine/internal/picks/selection"
	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// Postgres implementa o store da seleção e as operações de usuário
type Postgres struct {
	db               *sql.DB
	startingAttempts int
}

func NewPostgres(db *sql.DB, startingAttempts int) *Postgres {
	return &Postgres{db: db, startingAttempts: startingAttempts}
}

// RunInTx abre a transação, executa fn e faz commit só se fn não falhar
func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context, tx selection.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx, startingAttempts: p.startingAttempts}); err != nil {
		return err
	}
	return tx.Commit()
}

// GetOrCreateUser devolve o usuário, criando com o saldo inicial no primeiro contato
func (p *Postgres) GetOrCreateUser(ctx context.Context, externalID string) (selection.User, error) {
	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO users (external_id, attempts) VALUES ($1, $2) ON CONFLICT (external_id) DO NOTHING`,
		externalID, p.startingAttempts); err != nil {
		return selection.User{}, err
	}
	return scanUser(p.db.QueryRowContext(ctx,
		`SELECT id, external_id, attempts, created_at FROM users WHERE external_id = $1`, externalID))
}

func (p *Postgres) ListUsers(ctx context.Context) ([]selection.User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, external_id, attempts, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []selection.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AdjustAttempts soma delta ao saldo com lock pessimista na linha do usuário.
// Delta zero ou saldo final negativo retornam ErrInvalidAdjustment.
func (p *Postgres) AdjustAttempts(ctx context.Context, externalID string, delta int) (selection.User, error) {
	if delta == 0 {
		return selection.User{}, selection.ErrInvalidAdjustment
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return selection.User{}, err
	}
	defer tx.Rollback()

	u, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT id, external_id, attempts, created_at FROM users WHERE external_id = $1 FOR UPDATE`, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return selection.User{}, selection.ErrUserNotFound
	}
	if err != nil {
		return selection.User{}, err
	}
	if u.Attempts+delta < 0 {
		return selection.User{}, fmt.Errorf("%w: %d%+d", selection.ErrInvalidAdjustment, u.Attempts, delta)
	}

	if err := tx.QueryRowContext(ctx,
		`UPDATE users SET attempts = attempts + $1 WHERE id = $2 RETURNING attempts`, delta, u.ID).Scan(&u.Attempts); err != nil {
		return selection.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return selection.User{}, err
	}
	return u, nil
}

// History junta shows e events do usuário, mais recentes primeiro, já avaliados
func (p *Postgres) History(ctx context.Context, externalID string) ([]selection.HistoryEntry, error) {
	var userID int64
	err := p.db.QueryRowContext(ctx, `SELECT id FROM users WHERE external_id = $1`, externalID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, selection.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT s.id, s.pick_id, s.shown_outcome, s.shown_at, `+eventColumns("e")+`
		FROM shows s
		JOIN events e ON e.id = s.event_id
		WHERE s.user_id = $1
		ORDER BY s.shown_at DESC, s.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []selection.HistoryEntry{}
	for rows.Next() {
		var (
			showID  int64
			pickID  string
			shown   string
			shownAt time.Time
			ev      eventRow
		)
		dest := append([]any{&showID, &pickID, &shown, &shownAt}, ev.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, selection.NewHistoryEntry(showID, pickID, domain.Outcome(shown), shownAt, ev.event()))
	}
	return out, rows.Err()
}

// pgTx é a implementação de selection.Tx sobre *sql.Tx
type pgTx struct {
	tx               *sql.Tx
	startingAttempts int
}

func (t *pgTx) LockUser(ctx context.Context, externalID string) (selection.User, error) {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (external_id, attempts) VALUES ($1, $2) ON CONFLICT (external_id) DO NOTHING`,
		externalID, t.startingAttempts); err != nil {
		return selection.User{}, err
	}
	return scanUser(t.tx.QueryRowContext(ctx,
		`SELECT id, external_id, attempts, created_at FROM users WHERE external_id = $1 FOR UPDATE`, externalID))
}

// Candidates aceita start_time em segundos ou milissegundos e pelo menos uma cotação na faixa
func (t *pgTx) Candidates(ctx context.Context, q selection.Query) ([]domain.Event, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+eventColumns("e")+`
		FROM events e
		WHERE e.sport = ANY($1)
		  AND (($2::text = '' AND e.status IS NULL) OR e.status = $2::text)
		  AND (e.start_time BETWEEN $3 AND $4 OR e.start_time BETWEEN $5 AND $6)
		  AND (e.outcome1   BETWEEN $7 AND $8
		    OR e.outcome_x  BETWEEN $7 AND $8
		    OR e.outcome2   BETWEEN $7 AND $8
		    OR e.outcome1x  BETWEEN $7 AND $8
		    OR e.outcome_x2 BETWEEN $7 AND $8)
		  AND ($9::bigint = 0 OR NOT EXISTS (
		        SELECT 1 FROM shows s WHERE s.user_id = $9::bigint AND s.event_id = e.id))
		ORDER BY random()
		LIMIT $10`,
		pq.Array(q.Sports), q.Status,
		q.From.Unix(), q.To.Unix(), q.From.UnixMilli(), q.To.UnixMilli(),
		q.Min, q.Max, q.ExcludeUser, q.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var ev eventRow
		if err := rows.Scan(ev.dest()...); err != nil {
			return nil, err
		}
		out = append(out, ev.event())
	}
	return out, rows.Err()
}

func (t *pgTx) InsertShows(ctx context.Context, shows []selection.ShowRecord) error {
	stmt, err := t.tx.PrepareContext(ctx,
		`INSERT INTO shows (user_id, event_id, shown_outcome, pick_id) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range shows {
		if _, err := stmt.ExecContext(ctx, s.UserID, s.EventID, string(s.Outcome), s.PickID); err != nil {
			return fmt.Errorf("insert show %s: %w", s.EventID, err)
		}
	}
	return nil
}

// DebitAttempts nunca deixa o saldo negativo
func (t *pgTx) DebitAttempts(ctx context.Context, userID int64, n int) (int, error) {
	var remaining int
	err := t.tx.QueryRowContext(ctx,
		`UPDATE users SET attempts = attempts - $1 WHERE id = $2 AND attempts >= $1 RETURNING attempts`,
		n, userID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("debit user %d: not enough attempts", userID)
	}
	return remaining, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (selection.User, error) {
	var u selection.User
	err := r.Scan(&u.ID, &u.ExternalID, &u.Attempts, &u.CreatedAt)
	return u, err
}

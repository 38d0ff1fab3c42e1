package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/sports-picks-engine/internal/results/reconciler"
)

// Postgres implementa o Store do reconciler e a manutenção de resultados
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// ListEventStates lê id, status e results de todos os eventos
func (p *Postgres) ListEventStates(ctx context.Context) ([]reconciler.EventState, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, status, results FROM events`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reconciler.EventState
	for rows.Next() {
		var (
			st              reconciler.EventState
			status, results sql.NullString
		)
		if err := rows.Scan(&st.ID, &status, &results); err != nil {
			return nil, err
		}
		if status.Valid {
			st.Status = &status.String
		}
		if results.Valid {
			st.Results = &results.String
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ApplyUpdate grava os campos não nulos do update num único UPDATE (atômico por evento).
// Só o reconciler escreve status/results/winning_outcome.
func (p *Postgres) ApplyUpdate(ctx context.Context, u reconciler.Update) error {
	var wo *string
	if u.WinningOutcome != nil {
		s := string(*u.WinningOutcome)
		wo = &s
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE events SET
		  results         = COALESCE($2, results),
		  status          = COALESCE($3, status),
		  winning_outcome = COALESCE($4, winning_outcome)
		WHERE id = $1`,
		u.ID, u.Results, u.Status, wo,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("event %s not found", u.ID)
	}
	return nil
}

// ResetResults limpa results, status e winning_outcome de todos os eventos para que o
// próximo ciclo do reconciler reconstrua tudo a partir do feed. Identidade e cotações ficam.
func (p *Postgres) ResetResults(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE events SET results = NULL, status = NULL, winning_outcome = NULL`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

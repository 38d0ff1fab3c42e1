package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// PostgresRepo implementa a persistência de eventos admitidos pelo feed-ingest
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// insertEvent usa ON CONFLICT DO NOTHING: um id já gravado nunca é reescrito,
// então as cotações persistidas são write-once
const insertEvent = `
	INSERT INTO events
	  (id, sport, tournament, team1, team2, start_time, outcome1, outcome_x, outcome2, outcome1x, outcome_x2)
	VALUES
	  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	ON CONFLICT (id) DO NOTHING
`

// InsertEvents grava o lote numa única transação; qualquer falha desfaz o lote inteiro.
// Retorna quantas linhas foram inseridas (ids existentes não contam).
func (r *PostgresRepo) InsertEvents(ctx context.Context, evs []domain.Event) (int, error) {
	if len(evs) == 0 {
		return 0, nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range evs {
		if !e.HasWinOutcomes() {
			return 0, fmt.Errorf("event %s: missing win outcomes", e.ID)
		}
		res, err := stmt.ExecContext(ctx,
			e.ID, e.Sport, e.Tournament, e.Team1, e.Team2, e.StartTime,
			e.Outcome1, e.OutcomeX, e.Outcome2, e.Outcome1X, e.OutcomeX2,
		)
		if err != nil {
			return 0, fmt.Errorf("insert event %s: %w", e.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

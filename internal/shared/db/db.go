package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ConnectPostgres abre o pool e valida a conexão com um ping curto
func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// schema cria as três tabelas do motor (idempotente)
// start_time guarda o epoch bruto do feed (segundos ou milissegundos)
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id              TEXT PRIMARY KEY,
	sport           TEXT NOT NULL,
	tournament      TEXT NOT NULL,
	team1           TEXT NOT NULL,
	team2           TEXT NOT NULL,
	start_time      BIGINT NOT NULL,
	outcome1        DOUBLE PRECISION,
	outcome_x       DOUBLE PRECISION,
	outcome2        DOUBLE PRECISION,
	outcome1x       DOUBLE PRECISION,
	outcome_x2      DOUBLE PRECISION,
	status          TEXT,
	results         TEXT,
	winning_outcome TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_events_sport_pending ON events (sport, start_time) WHERE status IS NULL;

CREATE TABLE IF NOT EXISTS users (
	id          BIGSERIAL PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	attempts    INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS shows (
	id            BIGSERIAL PRIMARY KEY,
	user_id       BIGINT NOT NULL REFERENCES users(id),
	event_id      TEXT NOT NULL REFERENCES events(id),
	shown_outcome TEXT NOT NULL,
	pick_id       UUID NOT NULL,
	shown_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_shows_user_event ON shows (user_id, event_id);
`

// EnsureSchema aplica o schema; chamado no startup de cada serviço que escreve
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

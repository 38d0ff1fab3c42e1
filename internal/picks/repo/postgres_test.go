package repo

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/picks/selection"
	"github.com/radieske/sports-picks-engine/internal/shared/db"
)

// Os testes abaixo rodam contra um Postgres real; sem PICKS_TEST_POSTGRES_DSN são pulados.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PICKS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PICKS_TEST_POSTGRES_DSN not set")
	}
	pg, err := db.ConnectPostgres(dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { pg.Close() })
	if err := db.EnsureSchema(context.Background(), pg); err != nil {
		t.Fatal(err)
	}
	return pg
}

func insertEvent(t *testing.T, pg *sql.DB, id, sport string, start int64) {
	t.Helper()
	_, err := pg.Exec(`
		INSERT INTO events (id, sport, tournament, team1, team2, start_time, outcome1, outcome_x, outcome2, outcome1x, outcome_x2)
		VALUES ($1, $2, 'Англия. Премьер-лига', 'Arsenal', 'Chelsea', $3, 1.8, 3.6, 4.5, 1.2, 2.1)`,
		id, sport, start)
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
}

func TestSelectionRoundTrip(t *testing.T) {
	pg := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgres(pg, 10)

	// esporte único por execução isola os candidatos deste teste
	sport := "test-" + uuid.NewString()[:8]
	start := time.Now().Add(2 * time.Hour)
	for i := 0; i < 4; i++ {
		insertEvent(t, pg, uuid.NewString(), sport, start.Unix())
	}
	insertEvent(t, pg, uuid.NewString(), sport, start.UnixMilli())

	user := "ext-" + uuid.NewString()
	eng := selection.New(repo, zap.NewNop())

	got, err := eng.Select(ctx, selection.Filter{Sports: []string{sport}}, 3, user)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}

	u, err := repo.GetOrCreateUser(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if u.Attempts != 9 {
		t.Errorf("attempts = %d, want 9", u.Attempts)
	}

	hist, err := repo.History(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 3 {
		t.Fatalf("history = %d entries", len(hist))
	}
	for _, h := range hist {
		if h.ShownValue == nil || h.Grade != "pending" {
			t.Errorf("entry = %+v", h)
		}
	}

	// sobram 2 candidatos nunca exibidos
	got, err = eng.Select(ctx, selection.Filter{Sports: []string{sport}}, 5, user)
	if err != nil || len(got) != 2 {
		t.Fatalf("second select = %d, %v", len(got), err)
	}
}

func TestAdjustAttempts(t *testing.T) {
	pg := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgres(pg, 10)
	user := "ext-" + uuid.NewString()

	if _, err := repo.AdjustAttempts(ctx, user, 5); !errors.Is(err, selection.ErrUserNotFound) {
		t.Fatalf("unknown user: %v", err)
	}
	if _, err := repo.GetOrCreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	u, err := repo.AdjustAttempts(ctx, user, 5)
	if err != nil || u.Attempts != 15 {
		t.Fatalf("adjust = %+v, %v", u, err)
	}
	if _, err := repo.AdjustAttempts(ctx, user, -16); !errors.Is(err, selection.ErrInvalidAdjustment) {
		t.Errorf("negative result: %v", err)
	}
	if _, err := repo.AdjustAttempts(ctx, user, 0); !errors.Is(err, selection.ErrInvalidAdjustment) {
		t.Errorf("zero delta: %v", err)
	}
	if _, err := repo.History(ctx, "missing-"+uuid.NewString()); !errors.Is(err, selection.ErrUserNotFound) {
		t.Errorf("history unknown user: %v", err)
	}
}

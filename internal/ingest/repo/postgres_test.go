package repo

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/radieske/sports-picks-engine/internal/shared/db"
	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// Rodam contra um Postgres real; sem PICKS_TEST_POSTGRES_DSN são pulados.
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

func event(id, team1 string, q1, q2 float64) domain.Event {
	e := domain.Event{
		ID: id, Sport: "football", Tournament: "Англия. Премьер-лига",
		Team1: team1, Team2: "Chelsea", StartTime: 1751716800,
	}
	e.Set(domain.Outcome1, q1)
	e.Set(domain.Outcome2, q2)
	return e
}

func storedQuote(t *testing.T, pg *sql.DB, id string) (team1 string, q1 float64, found bool) {
	t.Helper()
	err := pg.QueryRow(`SELECT team1, outcome1 FROM events WHERE id = $1`, id).Scan(&team1, &q1)
	if err == sql.ErrNoRows {
		return "", 0, false
	}
	if err != nil {
		t.Fatal(err)
	}
	return team1, q1, true
}

func TestInsertEventsIsWriteOnce(t *testing.T) {
	pg := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresRepo(pg)
	id := "test-" + uuid.NewString()

	n, err := repo.InsertEvents(ctx, []domain.Event{event(id, "Arsenal", 1.8, 4.5)})
	if err != nil || n != 1 {
		t.Fatalf("first insert: n=%d err=%v", n, err)
	}

	// mesmo id com cotações e times novos: a linha gravada não muda
	n, err = repo.InsertEvents(ctx, []domain.Event{event(id, "Liverpool", 2.5, 2.9)})
	if err != nil || n != 0 {
		t.Fatalf("second insert: n=%d err=%v", n, err)
	}
	team1, q1, ok := storedQuote(t, pg, id)
	if !ok || team1 != "Arsenal" || q1 != 1.8 {
		t.Errorf("stored = %q %v (found=%v), want Arsenal 1.8", team1, q1, ok)
	}
}

func TestInsertEventsRollsBackWholeBatch(t *testing.T) {
	pg := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresRepo(pg)

	noWin := event("test-"+uuid.NewString(), "Arsenal", 1.8, 4.5)
	noWin.Outcome2 = nil
	nulByte := event("test-"+uuid.NewString(), "Arsenal", 1.8, 4.5)
	nulByte.Team2 = "Chel\x00sea" // Postgres recusa 0x00 em TEXT

	tests := []struct {
		name string
		bad  domain.Event
	}{
		{"missing win outcome", noWin},
		{"row rejected by postgres", nulByte},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := event("test-"+uuid.NewString(), "Arsenal", 1.8, 4.5)
			last := event("test-"+uuid.NewString(), "Arsenal", 1.8, 4.5)

			n, err := repo.InsertEvents(ctx, []domain.Event{first, tt.bad, last})
			if err == nil {
				t.Fatal("expected error")
			}
			if n != 0 {
				t.Errorf("inserted = %d, want 0", n)
			}
			for _, id := range []string{first.ID, tt.bad.ID, last.ID} {
				if _, _, ok := storedQuote(t, pg, id); ok {
					t.Errorf("event %s committed despite failed batch", id)
				}
			}
		})
	}
}

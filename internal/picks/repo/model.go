package repo

import (
	"database/sql"

	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// eventColumns lista as colunas de events na ordem esperada por eventRow.dest
func eventColumns(alias string) string {
	a := alias + "."
	return a + "id, " + a + "sport, " + a + "tournament, " + a + "team1, " + a + "team2, " + a + "start_time, " +
		a + "outcome1, " + a + "outcome_x, " + a + "outcome2, " + a + "outcome1x, " + a + "outcome_x2, " +
		a + "status, " + a + "results, " + a + "winning_outcome"
}

// eventRow recebe uma linha de events com colunas anuláveis
type eventRow struct {
	id, sport, tournament, team1, team2 string
	startTime                           int64
	quotes                              [5]sql.NullFloat64 // mesma ordem de domain.AllOutcomes
	status, results, winning            sql.NullString
}

func (r *eventRow) dest() []any {
	return []any{
		&r.id, &r.sport, &r.tournament, &r.team1, &r.team2, &r.startTime,
		&r.quotes[0], &r.quotes[1], &r.quotes[2], &r.quotes[3], &r.quotes[4],
		&r.status, &r.results, &r.winning,
	}
}

func (r *eventRow) event() domain.Event {
	ev := domain.Event{
		ID:         r.id,
		Sport:      r.sport,
		Tournament: r.tournament,
		Team1:      r.team1,
		Team2:      r.team2,
		StartTime:  r.startTime,
	}
	for i, o := range domain.AllOutcomes {
		if r.quotes[i].Valid {
			ev.Quotes.Set(o, r.quotes[i].Float64)
		}
	}
	if r.status.Valid {
		s := r.status.String
		ev.Status = &s
	}
	if r.results.Valid {
		s := r.results.String
		ev.Results = &s
	}
	if r.winning.Valid && r.winning.String != "" {
		wo := domain.Outcome(r.winning.String)
		ev.WinningOutcome = &wo
	}
	return ev
}

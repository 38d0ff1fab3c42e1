package selection

import (
	"testing"

	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// scriptedRand devolve valores pré-definidos; Shuffle mantém a ordem
type scriptedRand struct {
	floats []float64
	ints   []int
}

func (s *scriptedRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedRand) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0] % n
	s.ints = s.ints[1:]
	return v
}

func (s *scriptedRand) Shuffle(int, func(i, j int)) {}

func quotes(m map[domain.Outcome]float64) domain.Quotes {
	var q domain.Quotes
	for o, v := range m {
		q.Set(o, v)
	}
	return q
}

func TestChooseOutcome(t *testing.T) {
	// favorito claro: time 1 (1.8) contra time 2 (4.5), diferença >= 2
	clearFav := quotes(map[domain.Outcome]float64{
		domain.Outcome1: 1.8, domain.OutcomeX: 3.6, domain.Outcome2: 4.5,
		domain.Outcome1X: 1.2, domain.OutcomeX2: 2.1,
	})
	// jogo equilibrado: dupla chance do favorito fica fora do grupo de risco
	even := quotes(map[domain.Outcome]float64{
		domain.Outcome1: 2.4, domain.OutcomeX: 3.1, domain.Outcome2: 2.9,
		domain.Outcome1X: 1.35, domain.OutcomeX2: 1.45,
	})
	// time 1 azarão
	homeUnder := quotes(map[domain.Outcome]float64{
		domain.Outcome1: 5.0, domain.OutcomeX: 3.8, domain.Outcome2: 1.6,
		domain.Outcome1X: 2.2, domain.OutcomeX2: 1.1,
	})
	tied := quotes(map[domain.Outcome]float64{
		domain.Outcome1: 2.5, domain.OutcomeX: 3.0, domain.Outcome2: 2.5,
		domain.Outcome1X: 1.4, domain.OutcomeX2: 1.5,
	})
	tennis := quotes(map[domain.Outcome]float64{domain.Outcome1: 1.5, domain.Outcome2: 2.6})

	tests := []struct {
		name   string
		sport  string
		q      domain.Quotes
		lo, hi float64
		floats []float64
		ints   []int
		want   domain.Outcome
		wantOK bool
	}{
		{"tennis underdog", "tennis", tennis, 0, 1e9, []float64{0.5}, nil, domain.Outcome2, true},
		{"tennis favorite", "tennis", tennis, 0, 1e9, []float64{0.75}, nil, domain.Outcome1, true},
		{"tennis single side in range", "теннис", tennis, 2, 3, nil, nil, domain.Outcome2, true},
		{"tennis ignores draw slots", "tennis", quotes(map[domain.Outcome]float64{domain.OutcomeX: 3, domain.Outcome1X: 1.3}), 0, 1e9, nil, nil, "", false},
		{"safe group double chance", "football", clearFav, 0, 1e9, []float64{0.5, 0.5}, nil, domain.OutcomeX2, true},
		{"safe group draw", "football", clearFav, 0, 1e9, []float64{0.5, 0.9}, []int{0}, domain.OutcomeX, true},
		{"risk group favorite double chance", "football", clearFav, 0, 1e9, []float64{0.9, 0.3}, nil, domain.Outcome1X, true},
		{"risk group straight win", "football", clearFav, 0, 1e9, []float64{0.9, 0.7}, []int{1}, domain.Outcome2, true},
		{"close game risk has no double chance", "hockey", even, 0, 1e9, []float64{0.9}, []int{0}, domain.Outcome1, true},
		{"home underdog double chance", "football", homeUnder, 0, 1e9, []float64{0.1, 0.1}, nil, domain.Outcome1X, true},
		{"range leaves one per group", "football", clearFav, 3, 5, []float64{0.2}, nil, domain.OutcomeX, true},
		{"range leaves risk only", "football", clearFav, 4, 5, nil, nil, domain.Outcome2, true},
		{"tie makes team2 underdog", "football", tied, 1, 1.6, nil, nil, domain.OutcomeX2, true},
		{"nothing admissible", "football", clearFav, 10, 20, nil, nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rnd := &scriptedRand{floats: tt.floats, ints: tt.ints}
			ev := domain.Event{ID: "1", Sport: tt.sport, Quotes: tt.q}
			got, v, ok := chooseOutcome(ev, tt.lo, tt.hi, rnd)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("chooseOutcome = %s, %v; want %s, %v", got, ok, tt.want, tt.wantOK)
			}
			if ok {
				if want, _ := tt.q.Get(got); v != want {
					t.Errorf("value = %v, want %v", v, want)
				}
			}
			if len(rnd.floats) != 0 || len(rnd.ints) != 0 {
				t.Errorf("unconsumed draws: floats=%v ints=%v", rnd.floats, rnd.ints)
			}
		})
	}
}

func TestNewHistoryEntry(t *testing.T) {
	ox, o1 := domain.OutcomeX, domain.Outcome1
	q := quotes(map[domain.Outcome]float64{domain.Outcome1: 2.1, domain.Outcome1X: 1.3})

	tests := []struct {
		name      string
		shown     domain.Outcome
		winning   *domain.Outcome
		want      domain.Grade
		wantValue bool
	}{
		{"double chance covers draw", domain.Outcome1X, &ox, domain.GradeWin, true},
		{"straight win", domain.Outcome1, &o1, domain.GradeWin, true},
		{"lost", domain.Outcome2, &o1, domain.GradeLose, false},
		{"pending", domain.Outcome1, nil, domain.GradePending, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := domain.Event{ID: "9", Quotes: q, WinningOutcome: tt.winning}
			h := NewHistoryEntry(1, "p", tt.shown, fixedNow, ev)
			if h.Grade != tt.want {
				t.Errorf("grade = %s, want %s", h.Grade, tt.want)
			}
			if (h.ShownValue != nil) != tt.wantValue {
				t.Errorf("shown value = %v", h.ShownValue)
			}
		})
	}
}

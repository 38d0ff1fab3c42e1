package selection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

var fixedNow = time.Date(2025, 7, 5, 12, 0, 0, 0, time.UTC)

type memState struct {
	users  map[string]User
	nextID int64
	events []domain.Event
	shows  []ShowRecord
}

func (s memState) clone() memState {
	c := memState{users: make(map[string]User, len(s.users)), nextID: s.nextID, events: s.events}
	for k, v := range s.users {
		c.users[k] = v
	}
	c.shows = append([]ShowRecord(nil), s.shows...)
	return c
}

// memStore aplica as escritas de uma transação só quando fn retorna nil
type memStore struct {
	mu        sync.Mutex
	st        memState
	starting  int
	failQuery error
	failShows error
	failDebit error
}

func newMemStore(starting int, events ...domain.Event) *memStore {
	return &memStore{st: memState{users: map[string]User{}, events: events}, starting: starting}
}

func (m *memStore) RunInTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.st.clone()
	if err := fn(ctx, &memTx{m: m, st: &work}); err != nil {
		return err
	}
	m.st = work
	return nil
}

func (m *memStore) setUser(ext string, attempts int) {
	m.st.nextID++
	m.st.users[ext] = User{ID: m.st.nextID, ExternalID: ext, Attempts: attempts}
}

func (m *memStore) user(ext string) User { return m.st.users[ext] }

func (m *memStore) showsFor(ext string) []ShowRecord {
	id := m.st.users[ext].ID
	var out []ShowRecord
	for _, s := range m.st.shows {
		if s.UserID == id {
			out = append(out, s)
		}
	}
	return out
}

type memTx struct {
	m  *memStore
	st *memState
}

func (t *memTx) LockUser(_ context.Context, ext string) (User, error) {
	u, ok := t.st.users[ext]
	if !ok {
		t.st.nextID++
		u = User{ID: t.st.nextID, ExternalID: ext, Attempts: t.m.starting}
		t.st.users[ext] = u
	}
	return u, nil
}

func (t *memTx) Candidates(_ context.Context, q Query) ([]domain.Event, error) {
	if t.m.failQuery != nil {
		return nil, t.m.failQuery
	}
	var out []domain.Event
	for _, ev := range t.st.events {
		if !contains(q.Sports, ev.Sport) || !statusMatches(ev, q.Status) || !inWindow(ev.StartTime, q.From, q.To) {
			continue
		}
		if !anyQuoteIn(ev.Quotes, q.Min, q.Max) || t.shown(q.ExcludeUser, ev.ID) {
			continue
		}
		out = append(out, ev)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) shown(userID int64, eventID string) bool {
	if userID == 0 {
		return false
	}
	for _, s := range t.st.shows {
		if s.UserID == userID && s.EventID == eventID {
			return true
		}
	}
	return false
}

func (t *memTx) InsertShows(_ context.Context, shows []ShowRecord) error {
	t.st.shows = append(t.st.shows, shows...)
	return t.m.failShows
}

func (t *memTx) DebitAttempts(_ context.Context, userID int64, n int) (int, error) {
	if t.m.failDebit != nil {
		return 0, t.m.failDebit
	}
	for k, u := range t.st.users {
		if u.ID == userID {
			if u.Attempts < n {
				return 0, errors.New("attempts would go negative")
			}
			u.Attempts -= n
			t.st.users[k] = u
			return u.Attempts, nil
		}
	}
	return 0, errors.New("no such user")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func statusMatches(ev domain.Event, status string) bool {
	if status == "" {
		return ev.Status == nil
	}
	return ev.Status != nil && *ev.Status == status
}

func inWindow(v int64, from, to time.Time) bool {
	return (v >= from.Unix() && v <= to.Unix()) || (v >= from.UnixMilli() && v <= to.UnixMilli())
}

func anyQuoteIn(q domain.Quotes, lo, hi float64) bool {
	for _, o := range domain.AllOutcomes {
		if v, ok := q.Get(o); ok && v >= lo && v <= hi {
			return true
		}
	}
	return false
}

// footballEvent tem cotações com favorito claro e começa em h horas
func footballEvent(id string, h int) domain.Event {
	return domain.Event{
		ID: id, Sport: "football", Tournament: "Англия. Премьер-лига",
		Team1: "Home " + id, Team2: "Away " + id,
		StartTime: fixedNow.Add(time.Duration(h) * time.Hour).Unix(),
		Quotes: quotes(map[domain.Outcome]float64{
			domain.Outcome1: 1.8, domain.OutcomeX: 3.6, domain.Outcome2: 4.5,
			domain.Outcome1X: 1.2, domain.OutcomeX2: 2.1,
		}),
	}
}

func tennisEvent(id string, h int) domain.Event {
	return domain.Event{
		ID: id, Sport: "tennis", Tournament: "Wimbledon",
		Team1: "P1 " + id, Team2: "P2 " + id,
		StartTime: fixedNow.Add(time.Duration(h) * time.Hour).UnixMilli(),
		Quotes:    quotes(map[domain.Outcome]float64{domain.Outcome1: 1.7, domain.Outcome2: 2.2}),
	}
}

func newTestEngine(s Store, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(s, zap.NewNop(), opts...)
}

func f64(v float64) *float64 { return &v }

func TestSelectThreeFootballEvents(t *testing.T) {
	var evs []domain.Event
	for i := 1; i <= 5; i++ {
		evs = append(evs, footballEvent(fmt.Sprint(i), i))
	}
	store := newMemStore(10, evs...)
	store.setUser("u1", 10)

	got, err := newTestEngine(store).Select(context.Background(),
		Filter{Sports: []string{"football"}, Min: f64(1.5), Max: f64(3.0)}, 3, "u1")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	seen := map[string]bool{}
	for _, s := range got {
		if seen[s.ID] {
			t.Errorf("event %s returned twice", s.ID)
		}
		seen[s.ID] = true
		if s.ShownValue < 1.5 || s.ShownValue > 3.0 {
			t.Errorf("event %s shown %s=%v outside range", s.ID, s.ShownOutcome, s.ShownValue)
		}
	}
	shows := store.showsFor("u1")
	if len(shows) != 3 {
		t.Errorf("shows = %d, want 3", len(shows))
	}
	if shows[0].PickID == "" || shows[0].PickID != shows[2].PickID {
		t.Error("shows of one call must share a pick id")
	}
	if a := store.user("u1").Attempts; a != 9 {
		t.Errorf("attempts = %d, want 9", a)
	}
}

func TestSelectBalancesSports(t *testing.T) {
	tests := []struct {
		name       string
		events     []domain.Event
		count      int
		wantSports map[string]int
	}{
		{
			name:       "two football one tennis",
			events:     []domain.Event{footballEvent("f1", 1), footballEvent("f2", 2), tennisEvent("t1", 3)},
			count:      3,
			wantSports: map[string]int{"football": 2, "tennis": 1},
		},
		{
			name: "football never dominates",
			events: []domain.Event{
				footballEvent("f1", 1), footballEvent("f2", 2), footballEvent("f3", 3),
				footballEvent("f4", 4), tennisEvent("t1", 5), tennisEvent("t2", 6),
			},
			count:      4,
			wantSports: map[string]int{"football": 2, "tennis": 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(10, tt.events...)
			got, err := newTestEngine(store).Select(context.Background(),
				Filter{Sports: []string{"футбол", "tennis"}}, tt.count, "")
			if err != nil {
				t.Fatal(err)
			}
			counts := map[string]int{}
			for _, s := range got {
				counts[s.Sport]++
			}
			for sport, want := range tt.wantSports {
				if counts[sport] != want {
					t.Errorf("%s = %d, want %d (all: %v)", sport, counts[sport], want, counts)
				}
			}
		})
	}
}

// reversingRand inverte toda fatia embaralhada; sorteios vêm do script
type reversingRand struct{ scriptedRand }

func (r *reversingRand) Shuffle(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func TestSelectSportOrderIsRandomised(t *testing.T) {
	hockey := footballEvent("h1", 3)
	hockey.Sport = "hockey"
	events := []domain.Event{footballEvent("f1", 1), tennisEvent("t1", 2), hockey}

	tests := []struct {
		name   string
		rnd    Rand
		sports []string
		count  int
		want   []string
	}{
		{"kept order serves football", &scriptedRand{}, []string{"football", "tennis"}, 1, []string{"football"}},
		{"reversed order serves tennis", &reversingRand{}, []string{"football", "tennis"}, 1, []string{"tennis"}},
		{"third sport gets a slot", &reversingRand{}, []string{"football", "hockey", "tennis"}, 2, []string{"tennis", "hockey"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(10, events...)
			got, err := newTestEngine(store, WithRand(tt.rnd)).Select(context.Background(),
				Filter{Sports: tt.sports}, tt.count, "")
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, s := range got {
				if s.Sport != tt.want[i] {
					t.Errorf("slot %d = %s, want %s", i, s.Sport, tt.want[i])
				}
			}
		})
	}
}

func TestSelectZeroAttempts(t *testing.T) {
	store := newMemStore(10, footballEvent("1", 1))
	store.setUser("u1", 0)

	_, err := newTestEngine(store).Select(context.Background(), Filter{}, 5, "u1")
	var insufficient *InsufficientAttemptsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientAttemptsError", err)
	}
	if insufficient.Remaining != 0 {
		t.Errorf("remaining = %d", insufficient.Remaining)
	}
	if n := len(store.st.shows); n != 0 {
		t.Errorf("shows = %d, want 0", n)
	}
}

func TestSelectCreatesUser(t *testing.T) {
	store := newMemStore(10, footballEvent("1", 1))
	got, err := newTestEngine(store).Select(context.Background(), Filter{}, 1, "new")
	if err != nil || len(got) != 1 {
		t.Fatalf("Select = %v, %v", got, err)
	}
	if a := store.user("new").Attempts; a != 9 {
		t.Errorf("attempts = %d, want starting balance minus one", a)
	}
}

func TestSelectNeverRepeats(t *testing.T) {
	store := newMemStore(10, footballEvent("a", 1), footballEvent("b", 2))
	store.setUser("u1", 10)
	eng := newTestEngine(store)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		got, err := eng.Select(ctx, Filter{}, 1, "u1")
		if err != nil || len(got) != 1 {
			t.Fatalf("call %d: %v, %v", i, got, err)
		}
		if seen[got[0].ID] {
			t.Fatalf("event %s repeated", got[0].ID)
		}
		seen[got[0].ID] = true
	}

	got, err := eng.Select(ctx, Filter{}, 1, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("history exhausted, got %v", got)
	}
	if a := store.user("u1").Attempts; a != 8 {
		t.Errorf("attempts = %d, an empty result must not debit", a)
	}
}

func TestSelectWindow(t *testing.T) {
	past := footballEvent("past", -1)
	far := footballEvent("far", 25)
	ms := footballEvent("ms", 3)
	ms.StartTime = fixedNow.Add(3 * time.Hour).UnixMilli()
	sec := footballEvent("sec", 2)

	store := newMemStore(10, past, far, ms, sec)
	got, err := newTestEngine(store).Select(context.Background(), Filter{}, 10, "")
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, s := range got {
		ids[s.ID] = true
	}
	if len(ids) != 2 || !ids["ms"] || !ids["sec"] {
		t.Errorf("ids = %v, want ms and sec", ids)
	}
}

func TestSelectStatusFilter(t *testing.T) {
	finished := footballEvent("done", 1)
	st := domain.StatusFinished
	finished.Status = &st
	store := newMemStore(10, finished, footballEvent("open", 2))

	got, _ := newTestEngine(store).Select(context.Background(), Filter{}, 5, "")
	if len(got) != 1 || got[0].ID != "open" {
		t.Errorf("default status: %v", got)
	}
	got, _ = newTestEngine(store).Select(context.Background(), Filter{Status: "finished"}, 5, "")
	if len(got) != 1 || got[0].ID != "done" {
		t.Errorf("finished status: %v", got)
	}
}

func TestSelectEmptyIsNotAnError(t *testing.T) {
	store := newMemStore(10)
	store.setUser("u1", 3)
	got, err := newTestEngine(store).Select(context.Background(), Filter{Sports: []string{"hockey"}}, 2, "u1")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("Select = %v, %v", got, err)
	}
	if a := store.user("u1").Attempts; a != 3 {
		t.Errorf("attempts = %d", a)
	}
}

func TestSelectInvalidRange(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
	}{
		{"min above max", Filter{Min: f64(3), Max: f64(2)}},
		{"negative min", Filter{Min: f64(-1)}},
		{"nan min", Filter{Min: f64(math.NaN())}},
		{"nan max", Filter{Max: f64(math.NaN())}},
		{"infinite max", Filter{Min: f64(1.5), Max: f64(math.Inf(1))}},
		{"negative infinite min", Filter{Min: f64(math.Inf(-1))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(10, footballEvent("1", 1))
			_, err := newTestEngine(store).Select(context.Background(), tt.f, 1, "")
			if !errors.Is(err, ErrInvalidFilter) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestSelectStoreFailureLeavesNoPartialWrite(t *testing.T) {
	boom := errors.New("connection reset")
	tests := []struct {
		name  string
		setup func(*memStore)
	}{
		{"candidate query", func(m *memStore) { m.failQuery = boom }},
		{"show insert", func(m *memStore) { m.failShows = boom }},
		{"debit", func(m *memStore) { m.failDebit = boom }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(10, footballEvent("1", 1), footballEvent("2", 2))
			store.setUser("u1", 5)
			tt.setup(store)

			_, err := newTestEngine(store).Select(context.Background(), Filter{}, 2, "u1")
			var unavailable *UnavailableError
			if !errors.As(err, &unavailable) || !errors.Is(err, boom) {
				t.Fatalf("err = %v, want UnavailableError wrapping cause", err)
			}
			if a := store.user("u1").Attempts; a != 5 {
				t.Errorf("attempts = %d, want untouched", a)
			}
			if n := len(store.st.shows); n != 0 {
				t.Errorf("shows = %d, want 0", n)
			}
		})
	}
}

func TestSelectHooks(t *testing.T) {
	store := newMemStore(10, footballEvent("1", 1), tennisEvent("2", 1))
	results := map[string]int{}
	picks := map[string]int{}
	eng := newTestEngine(store, WithHooks(Hooks{
		OnRequest: func(r string) { results[r]++ },
		OnPick:    func(s string) { picks[s]++ },
	}))

	_, _ = eng.Select(context.Background(), Filter{}, 5, "")
	_, _ = eng.Select(context.Background(), Filter{Sports: []string{"hockey"}}, 5, "")
	if results["ok"] != 1 || results["empty"] != 1 {
		t.Errorf("results = %v", results)
	}
	if picks["football"] != 1 || picks["tennis"] != 1 {
		t.Errorf("picks = %v", picks)
	}
}

// Package selection serve eventos pendentes para o usuário: filtro por esporte e
// coeficiente, balanceamento entre esportes, escolha ponderada do outcome exibido
// e débito de tentativa junto com o histórico, numa única transação.
package selection

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/ingest/filter"
	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

const (
	attemptCost = 1 // uma tentativa por chamada, independente de count
	maxCount    = 50
	// cotações são sempre > 1: limite aberto vira uma faixa positiva larga
	openMin = 0.0
	openMax = 1e9
)

// Hooks para métricas
type Hooks struct {
	OnRequest func(result string)
	OnPick    func(sport string)
}

type Engine struct {
	store     Store
	log       *zap.Logger
	rnd       Rand
	now       func() time.Time
	window    time.Duration
	overfetch int
	sports    []string
	hooks     Hooks
}

type Option func(*Engine)

func WithRand(r Rand) Option                { return func(e *Engine) { e.rnd = r } }
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
func WithHooks(h Hooks) Option              { return func(e *Engine) { e.hooks = h } }

// WithWindow define a janela à frente de "agora" (padrão 24h)
func WithWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithOverfetch define quantas vezes count é buscado por esporte antes de embaralhar
func WithOverfetch(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.overfetch = n
		}
	}
}

// WithSports define os esportes usados quando o filtro não traz nenhum
func WithSports(sports []string) Option {
	return func(e *Engine) {
		if s := canonicalSports(sports); len(s) > 0 {
			e.sports = s
		}
	}
}

func New(store Store, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		log:       log,
		rnd:       globalRand{},
		now:       time.Now,
		window:    24 * time.Hour,
		overfetch: 3,
		sports:    []string{filter.SportFootball, filter.SportHockey, filter.SportTennis},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Select escolhe até count eventos. Com userID, a verificação de saldo, a gravação
// dos shows e o débito acontecem na mesma transação. Zero candidatos não é erro.
func (e *Engine) Select(ctx context.Context, f Filter, count int, userID string) ([]Selected, error) {
	lo, hi, err := bounds(f)
	if err != nil {
		e.callRequest("invalid")
		return nil, err
	}
	if count <= 0 {
		count = 1
	}
	if count > maxCount {
		count = maxCount
	}

	sports := canonicalSports(f.Sports)
	if len(sports) == 0 {
		sports = e.sports
	}

	now := e.now()
	base := Query{
		Status: strings.TrimSpace(f.Status),
		Min:    lo,
		Max:    hi,
		From:   now,
		To:     now.Add(e.window),
		Limit:  count * e.overfetch,
	}

	var picked []Selected
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var user User
		if userID != "" {
			u, err := tx.LockUser(ctx, userID)
			if err != nil {
				return err
			}
			if u.Attempts < attemptCost {
				return &InsufficientAttemptsError{Remaining: u.Attempts}
			}
			user = u
			base.ExcludeUser = u.ID
		}

		groups := make([][]Selected, 0, len(sports))
		for _, s := range sports {
			q := base
			q.Sports = []string{s}
			evs, err := tx.Candidates(ctx, q)
			if err != nil {
				return err
			}
			if len(evs) > 0 {
				groups = append(groups, asSelected(evs))
			}
		}

		picked = e.balance(groups, count, lo, hi)
		if len(picked) == 0 || user.ID == 0 {
			return nil
		}

		pickID := uuid.NewString()
		shows := make([]ShowRecord, len(picked))
		for i, p := range picked {
			shows[i] = ShowRecord{UserID: user.ID, EventID: p.ID, Outcome: p.ShownOutcome, PickID: pickID}
		}
		if err := tx.InsertShows(ctx, shows); err != nil {
			return err
		}
		remaining, err := tx.DebitAttempts(ctx, user.ID, attemptCost)
		if err != nil {
			return err
		}
		e.log.Info("picks recorded",
			zap.String("user", userID),
			zap.String("pick_id", pickID),
			zap.Int("count", len(picked)),
			zap.Int("remaining", remaining),
		)
		return nil
	})
	if err != nil {
		var insufficient *InsufficientAttemptsError
		if errors.As(err, &insufficient) {
			e.callRequest("insufficient")
			return nil, err
		}
		e.callRequest("unavailable")
		e.log.Error("selection failed", zap.String("user", userID), zap.Error(err))
		return nil, &UnavailableError{Err: err}
	}

	if len(picked) == 0 {
		e.callRequest("empty")
		return []Selected{}, nil
	}
	for _, p := range picked {
		e.callPick(p.Sport)
	}
	e.callRequest("ok")
	return picked, nil
}

// balance embaralha cada grupo e intercala em round-robin até count.
// A ordem dos esportes também é sorteada, senão o primeiro sempre leva a sobra.
// Evento sem outcome admissível pela política é descartado sem contar.
func (e *Engine) balance(groups [][]Selected, count int, lo, hi float64) []Selected {
	e.rnd.Shuffle(len(groups), func(i, j int) { groups[i], groups[j] = groups[j], groups[i] })
	for _, g := range groups {
		e.rnd.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
	}

	out := make([]Selected, 0, count)
	next := make([]int, len(groups))
	for len(out) < count {
		progressed := false
		for gi, g := range groups {
			if len(out) == count {
				break
			}
			for next[gi] < len(g) {
				cand := g[next[gi]]
				next[gi]++
				o, v, ok := chooseOutcome(cand.Event, lo, hi, e.rnd)
				if !ok {
					continue
				}
				cand.ShownOutcome, cand.ShownValue = o, v
				out = append(out, cand)
				progressed = true
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

func bounds(f Filter) (float64, float64, error) {
	lo, hi := openMin, openMax
	if f.Min != nil {
		lo = *f.Min
	}
	if f.Max != nil {
		hi = *f.Max
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 0, ErrInvalidFilter
	}
	if lo < 0 || hi < 0 || lo > hi {
		return 0, 0, ErrInvalidFilter
	}
	return lo, hi, nil
}

// canonicalSports normaliza nomes ("футбол", "Football") e remove repetidos; desconhecidos passam em minúsculas
func canonicalSports(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := filter.Canonical(s)
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(s))
		}
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func asSelected(evs []domain.Event) []Selected {
	out := make([]Selected, len(evs))
	for i, ev := range evs {
		out[i] = Selected{Event: ev}
	}
	return out
}

func (e *Engine) callRequest(result string) {
	if e.hooks.OnRequest != nil {
		e.hooks.OnRequest(result)
	}
}

func (e *Engine) callPick(sport string) {
	if e.hooks.OnPick != nil {
		e.hooks.OnPick(sport)
	}
}

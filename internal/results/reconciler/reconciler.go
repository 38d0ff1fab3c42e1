// Package reconciler aplica o feed de resultados sobre a tabela events:
// placar, status e, na transição para finished, o outcome vencedor.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/results/client"
	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// ErrFeedUnavailable indica que nenhum dos dois dias pôde ser buscado
var ErrFeedUnavailable = errors.New("results feed unavailable")

// Fetcher busca os resultados de um dia
type Fetcher interface {
	FetchDate(ctx context.Context, day time.Time) (client.Results, error)
}

// EventState é o recorte da linha events que o reconciler compara
type EventState struct {
	ID      string
	Status  *string
	Results *string
}

// Update carrega só os campos alterados (nil = mantém)
type Update struct {
	ID             string
	Results        *string
	Status         *string
	WinningOutcome *domain.Outcome
}

// Store é a visão do reconciler sobre a tabela events
type Store interface {
	ListEventStates(ctx context.Context) ([]EventState, error)
	ApplyUpdate(ctx context.Context, u Update) error
}

// Stats resume um ciclo
type Stats struct {
	CycleID        string
	Checked        int
	ResultsUpdated int
	StatusUpdated  int
	Finished       int
	Skipped        int
	Failed         int
}

// Hooks para métricas
type Hooks struct {
	OnCycle   func(result string)
	OnUpdate  func(field string)
	OnSkipped func(reason string)
	OnError   func(stage string)
}

type Reconciler struct {
	fetcher  Fetcher
	store    Store
	log      *zap.Logger
	hooks    Hooks
	loc      *time.Location
	now      func() time.Time
	interval time.Duration
}

type Option func(*Reconciler)

func WithHooks(h Hooks) Option { return func(r *Reconciler) { r.hooks = h } }

// WithLocation define o fuso usado para calcular "hoje" e "ontem"
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option { return func(r *Reconciler) { r.now = now } }

func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

func New(f Fetcher, s Store, log *zap.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		fetcher:  f,
		store:    s,
		log:      log,
		loc:      time.UTC,
		now:      time.Now,
		interval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executa um ciclo imediatamente e reagenda o próximo só depois que o atual termina.
// Bloqueia até ctx ser cancelado.
func (r *Reconciler) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.safeRun(ctx)
			timer.Reset(r.interval)
		}
	}
}

func (r *Reconciler) safeRun(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("reconcile cycle panic", zap.Any("panic", p))
			r.callError("panic")
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	st, err := r.RunOnce(cctx)
	if err != nil {
		r.log.Warn("reconcile cycle failed", zap.String("cycle_id", st.CycleID), zap.Error(err))
		return
	}
	r.log.Info("reconcile cycle done",
		zap.String("cycle_id", st.CycleID),
		zap.Int("checked", st.Checked),
		zap.Int("results_updated", st.ResultsUpdated),
		zap.Int("status_updated", st.StatusUpdated),
		zap.Int("finished", st.Finished),
		zap.Int("skipped", st.Skipped),
		zap.Int("failed", st.Failed),
	)
}

// RunOnce busca hoje e ontem (no fuso configurado) e aplica as diferenças.
// O ciclo só falha se os dois dias falharem ou a leitura do store falhar;
// falha ao gravar um evento é contada e o ciclo segue para o próximo.
func (r *Reconciler) RunOnce(ctx context.Context) (Stats, error) {
	st := Stats{CycleID: uuid.NewString()}

	feed, err := r.fetchWindow(ctx)
	if err != nil {
		r.callError("fetch")
		r.callCycle("error")
		return st, err
	}

	states, err := r.store.ListEventStates(ctx)
	if err != nil {
		r.callError("store")
		r.callCycle("error")
		return st, fmt.Errorf("list events: %w", err)
	}

	for _, ev := range states {
		st.Checked++
		u, reason := plan(ev, feed)
		if reason != "" {
			st.Skipped++
			r.callSkipped(reason)
			r.log.Debug("event skipped", zap.String("event_id", ev.ID), zap.String("reason", reason))
		}
		if u == nil {
			continue
		}

		if err := r.store.ApplyUpdate(ctx, *u); err != nil {
			st.Failed++
			r.callError("update")
			r.log.Error("apply event update failed", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}

		if u.Results != nil {
			st.ResultsUpdated++
			r.callUpdate("results")
		}
		if u.Status != nil {
			st.StatusUpdated++
			r.callUpdate("status")
		}
		if u.WinningOutcome != nil {
			st.Finished++
			r.callUpdate("winning_outcome")
		}
	}

	r.callCycle("ok")
	return st, nil
}

// fetchWindow junta ontem e hoje; hoje vence em caso de id repetido
func (r *Reconciler) fetchWindow(ctx context.Context) (client.Results, error) {
	today := r.now().In(r.loc)
	yesterday := today.AddDate(0, 0, -1)

	var merged client.Results
	var errs []error
	for _, day := range []time.Time{yesterday, today} {
		res, err := r.fetcher.FetchDate(ctx, day)
		if err != nil {
			r.log.Warn("results fetch failed", zap.String("date", day.Format("2006-01-02")), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		merged.Merge(res)
	}
	if len(errs) == 2 {
		return client.Results{}, fmt.Errorf("%w: %w", ErrFeedUnavailable, errors.Join(errs...))
	}
	return merged, nil
}

// plan calcula a atualização de um evento. reason != "" indica algo que foi pulado
// (sem registro no feed, sem placar, placar inválido); o update ainda pode vir preenchido.
func plan(ev EventState, feed client.Results) (*Update, string) {
	score, hasScore := feed.Scores[ev.ID]
	status, hasStatus := feed.Statuses[ev.ID]
	if !hasScore && !hasStatus {
		return nil, "absent"
	}

	u := Update{ID: ev.ID}
	changed := false
	reason := ""

	results := ev.Results
	if hasScore && (ev.Results == nil || *ev.Results != score) {
		s := score
		u.Results = &s
		results = &s
		changed = true
	}
	if !hasScore {
		reason = "no_score"
	}

	if hasStatus && status != "" && (ev.Status == nil || *ev.Status != status) {
		s := status
		u.Status = &s
		changed = true

		if status == domain.StatusFinished && results != nil {
			wo, err := domain.WinningOutcome(*results)
			if err != nil {
				reason = "bad_score"
			} else {
				u.WinningOutcome = &wo
			}
		}
	}

	if !changed {
		return nil, reason
	}
	return &u, reason
}

func (r *Reconciler) callCycle(result string) {
	if r.hooks.OnCycle != nil {
		r.hooks.OnCycle(result)
	}
}

func (r *Reconciler) callUpdate(field string) {
	if r.hooks.OnUpdate != nil {
		r.hooks.OnUpdate(field)
	}
}

func (r *Reconciler) callSkipped(reason string) {
	if r.hooks.OnSkipped != nil {
		r.hooks.OnSkipped(reason)
	}
}

func (r *Reconciler) callError(stage string) {
	if r.hooks.OnError != nil {
		r.hooks.OnError(stage)
	}
}

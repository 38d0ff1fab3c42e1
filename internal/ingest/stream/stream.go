// Package stream implementa o loop de ingestão do feed delta: polling periódico,
// detecção de mudanças, admissão e persistência insert-if-absent dos eventos.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/ingest/feed"
	"github.com/radieske/sports-picks-engine/internal/ingest/filter"
	"github.com/radieske/sports-picks-engine/internal/ingest/taxonomy"
	"github.com/radieske/sports-picks-engine/internal/shared/domain"
	"github.com/radieske/sports-picks-engine/pkg/contracts/events"
)

// ErrStopped indica que o Stop aconteceu durante o fetch; o pacote foi descartado
var ErrStopped = errors.New("stream stopped during fetch")

// Fetcher busca o delta a partir de um cursor de versão
type Fetcher interface {
	Fetch(ctx context.Context, version int64) (feed.Packet, error)
}

// Sink persiste eventos admitidos de forma atômica (tudo ou nada) e insert-if-absent.
// Retorna quantas linhas foram realmente inseridas.
type Sink interface {
	InsertEvents(ctx context.Context, evs []domain.Event) (int, error)
}

// Hooks são callbacks opcionais para métricas (mesmo padrão OnError do processor)
type Hooks struct {
	OnCycle     func(result string)
	OnChanged   func(kind string)
	OnPersisted func(n int)
	OnError     func(stage string)
	OnVersion   func(v int64)
	OnDropped   func()
}

// Stream é dono exclusivo de todos os caches de ingestão
type Stream struct {
	fetcher Fetcher
	sink    Sink
	filter  *filter.Filter
	log     *zap.Logger
	hooks   Hooks

	interval     time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	changes chan events.Change

	// cycleMu serializa ciclos; mu protege o estado lido por Snapshot
	cycleMu sync.Mutex
	mu      sync.RWMutex
	version int64
	lastRun time.Time
	lastErr string

	resolver  *taxonomy.Resolver
	diff      *diffCache
	allowed   map[int64]taxonomy.Resolution // segmentos admitidos pelo filtro
	tracked   map[int64]feed.EventRecord    // partidas de nível 1 vistas e não deletadas
	quotes    map[int64]domain.Quotes
	pending   map[int64]struct{} // aguardando taxonomia ou cotações
	persisted map[int64]struct{}

	runMu   sync.Mutex
	running bool
	gen     uint64
	timer   *time.Timer
}

// Option configura o Stream
type Option func(*Stream)

func WithInterval(d time.Duration) Option {
	return func(s *Stream) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *Stream) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

func WithHooks(h Hooks) Option {
	return func(s *Stream) { s.hooks = h }
}

// WithChangeBuffer define o tamanho do canal de mudanças
func WithChangeBuffer(n int) Option {
	return func(s *Stream) {
		if n >= 0 {
			s.changes = make(chan events.Change, n)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Stream) { s.now = now }
}

func New(f Fetcher, sink Sink, flt *filter.Filter, log *zap.Logger, opts ...Option) *Stream {
	s := &Stream{
		fetcher:      f,
		sink:         sink,
		filter:       flt,
		log:          log,
		interval:     4 * time.Second,
		fetchTimeout: 10 * time.Second,
		now:          time.Now,
		changes:      make(chan events.Change, 1024),

		resolver:  taxonomy.NewResolver(),
		diff:      newDiffCache(),
		allowed:   make(map[int64]taxonomy.Resolution),
		tracked:   make(map[int64]feed.EventRecord),
		quotes:    make(map[int64]domain.Quotes),
		pending:   make(map[int64]struct{}),
		persisted: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Changes é o canal de saída dos registros de mudança. O envio não bloqueia:
// com o buffer cheio o registro é descartado e contado em OnDropped.
func (s *Stream) Changes() <-chan events.Change { return s.changes }

// Version devolve o último packetVersion confirmado
func (s *Stream) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Start inicia o polling contínuo; o primeiro ciclo roda imediatamente
func (s *Stream) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(0, func() { s.tick(gen) })
}

// Stop cancela apenas o timer pendente. Um fetch em andamento termina normalmente
// e seu resultado é descartado.
func (s *Stream) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Stream) active(gen uint64) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running && s.gen == gen
}

// tick executa um ciclo e só então agenda o próximo: o loop nunca se sobrepõe
func (s *Stream) tick(gen uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("ingest cycle panic", zap.Any("panic", r))
			s.callError("panic")
		}
		s.runMu.Lock()
		defer s.runMu.Unlock()
		if s.running && s.gen == gen {
			s.timer = time.AfterFunc(s.interval, func() { s.tick(gen) })
		}
	}()

	if err := s.cycle(func() bool { return s.active(gen) }); err != nil && !errors.Is(err, ErrStopped) {
		s.log.Warn("ingest cycle failed", zap.Error(err))
	}
}

// RunOnce executa um ciclo completo de forma síncrona (usado em testes e no simulador)
func (s *Stream) RunOnce() error {
	return s.cycle(func() bool { return true })
}

func (s *Stream) cycle(stillActive func() bool) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	cycleID := uuid.NewString()
	version := s.Version()

	// o fetch não herda o ciclo de vida do Stop
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	pkt, err := s.fetcher.Fetch(ctx, version)
	if err != nil {
		s.recordFailure(err)
		s.callError("fetch")
		s.callCycle("error")
		return fmt.Errorf("fetch version %d: %w", version, err)
	}
	if !stillActive() {
		s.log.Debug("packet discarded after stop", zap.Int64("packet_version", pkt.PacketVersion))
		s.callCycle("discarded")
		return ErrStopped
	}

	summary := s.process(pkt, cycleID)

	s.mu.Lock()
	s.version = pkt.PacketVersion
	s.lastRun = s.now()
	s.lastErr = ""
	s.mu.Unlock()

	if s.hooks.OnVersion != nil {
		s.hooks.OnVersion(pkt.PacketVersion)
	}
	s.callCycle("ok")

	s.emit(events.Change{
		Kind:          events.ChangeCycle,
		Key:           cycleID,
		PacketVersion: pkt.PacketVersion,
		Cycle:         &summary,
	})

	s.log.Debug("packet processed",
		zap.String("cycle_id", cycleID),
		zap.Int64("packet_version", pkt.PacketVersion),
		zap.Int("events", summary.Events),
		zap.Int("quotes", summary.Quotes),
		zap.Int("persisted", summary.Persisted),
		zap.Int("deferred", summary.Deferred),
	)
	return nil
}

func (s *Stream) recordFailure(err error) {
	s.mu.Lock()
	s.lastRun = s.now()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *Stream) emit(c events.Change) {
	if c.EmittedAt.IsZero() {
		c.EmittedAt = s.now()
	}
	select {
	case s.changes <- c:
		if s.hooks.OnChanged != nil {
			s.hooks.OnChanged(string(c.Kind))
		}
	default:
		if s.hooks.OnDropped != nil {
			s.hooks.OnDropped()
		}
	}
}

func (s *Stream) callError(stage string) {
	if s.hooks.OnError != nil {
		s.hooks.OnError(stage)
	}
}

func (s *Stream) callCycle(result string) {
	if s.hooks.OnCycle != nil {
		s.hooks.OnCycle(result)
	}
}

// Package simulator gera uma linha de apostas sintética no formato do provedor:
// delta versionado em /events/list, resultados por data em /results/v2/getByDate
// e o mesmo delta empurrado por WebSocket a cada tick.
package simulator

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/radieske/sports-picks-engine/internal/ingest/feed"
)

// Status bruto do provedor (o reconciler normaliza 1 -> live, 2 -> finished)
const (
	statusPending  = 0
	statusLive     = 1
	statusFinished = 2
)

const margin = 1.06

type segment struct {
	node  feed.SportNode
	sport string // chave interna: football, hockey, tennis
}

// taxonomia fixa: esportes (kind=sport) e torneios (kind=segment).
// O segmento 13 não está em nenhuma whitelist e serve para exercitar o filtro.
var catalog = []segment{
	{feed.SportNode{ID: 1, Kind: "sport", Name: "Футбол"}, "football"},
	{feed.SportNode{ID: 11, ParentID: 1, Kind: "segment", Name: "Англия. Премьер-лига"}, "football"},
	{feed.SportNode{ID: 12, ParentID: 1, Kind: "segment", Name: "Лига чемпионов УЕФА"}, "football"},
	{feed.SportNode{ID: 13, ParentID: 1, Kind: "segment", Name: "Любительская лига"}, "football"},
	{feed.SportNode{ID: 2, Kind: "sport", Name: "Хоккей"}, "hockey"},
	{feed.SportNode{ID: 21, ParentID: 2, Kind: "segment", Name: "КХЛ"}, "hockey"},
	{feed.SportNode{ID: 3, Kind: "sport", Name: "Теннис"}, "tennis"},
	{feed.SportNode{ID: 31, ParentID: 3, Kind: "segment", Name: "ATP. Уимблдон"}, "tennis"},
}

var teams = map[string][]string{
	"football": {"Арсенал", "Челси", "Ливерпуль", "Реал", "Бавария", "Ювентус", "Порту", "Хозяева", "Гости"},
	"hockey":   {"ЦСКА", "СКА", "Ак Барс", "Динамо", "Локомотив", "Авангард"},
	"tennis":   {"Медведев", "Рублев", "Синнер", "Алькарас", "Джокович", "Зверев"},
}

// match é uma partida de nível 1 com seus marcadores de versão.
// eventVer/quoteVer/delVer = versão do pacote em que o registro mudou pela última vez.
type match struct {
	rec      feed.EventRecord
	sport    string
	start    time.Time
	duration time.Duration

	quotes map[int]float64

	status         int
	score1, score2 int

	eventVer int64
	quoteVer int64
	delVer   int64
}

// Hooks são callbacks opcionais de métricas
type Hooks struct {
	OnTick    func(version int64)
	OnRequest func(endpoint string)
}

// Simulator guarda a linha inteira em memória; seguro para uso concorrente
type Simulator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	now     func() time.Time
	hooks   Hooks
	version int64
	nextID  int64
	matches map[int64]*match

	initial     int
	driftShare  float64
	spawnChance float64
	matchLength time.Duration
	retention   time.Duration
	failRate    float64
}

type Option func(*Simulator)

func WithSeed(seed int64) Option            { return func(s *Simulator) { s.rnd = rand.New(rand.NewSource(seed)) } }
func WithClock(now func() time.Time) Option { return func(s *Simulator) { s.now = now } }
func WithHooks(h Hooks) Option              { return func(s *Simulator) { s.hooks = h } }

// WithMatches define quantas partidas existem na carga inicial
func WithMatches(n int) Option {
	return func(s *Simulator) {
		if n > 0 {
			s.initial = n
		}
	}
}

// WithMatchLength define quanto tempo uma partida fica ao vivo antes de encerrar
func WithMatchLength(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.matchLength = d
		}
	}
}

// WithFailureRate faz uma fração das requisições HTTP responder 503
func WithFailureRate(p float64) Option {
	return func(s *Simulator) {
		if p >= 0 && p <= 1 {
			s.failRate = p
		}
	}
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
		nextID:      40_000_000,
		matches:     make(map[int64]*match),
		initial:     24,
		driftShare:  0.3,
		spawnChance: 0.2,
		matchLength: 2 * time.Hour,
		retention:   48 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.version = 1
	now := s.now()
	for i := 0; i < s.initial; i++ {
		// metade já começou (gera resultados), metade nas próximas 20h
		offset := time.Duration(s.rnd.Int63n(int64(22*time.Hour))) - 2*time.Hour
		s.spawn(now.Add(offset).Truncate(time.Minute))
	}
	return s
}

// Version devolve a versão corrente do pacote
func (s *Simulator) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// spawn cria uma partida num segmento aleatório; chamador segura mu
func (s *Simulator) spawn(start time.Time) *match {
	segs := segments()
	seg := segs[s.rnd.Intn(len(segs))]

	names := teams[seg.sport]
	i := s.rnd.Intn(len(names))
	j := s.rnd.Intn(len(names) - 1)
	if j >= i {
		j++
	}

	s.nextID++
	m := &match{
		rec: feed.EventRecord{
			ID:        s.nextID,
			SportID:   seg.node.ID,
			Level:     feed.TopLevel,
			Team1:     names[i],
			Team2:     names[j],
			StartTime: startEpoch(seg.sport, start),
		},
		sport:    seg.sport,
		start:    start,
		duration: s.matchLength,
		quotes:   s.priceQuotes(seg.sport),
		eventVer: s.version,
		quoteVer: s.version,
	}
	s.matches[m.rec.ID] = m
	return m
}

func segments() []segment {
	var out []segment
	for _, c := range catalog {
		if c.node.Kind == "segment" {
			out = append(out, c)
		}
	}
	return out
}

// tênis vem em milissegundos no feed real; os demais em segundos
func startEpoch(sport string, t time.Time) int64 {
	if sport == "tennis" {
		return t.UnixMilli()
	}
	return t.Unix()
}

// priceQuotes sorteia probabilidades e devolve cotações com margem
func (s *Simulator) priceQuotes(sport string) map[int]float64 {
	p1 := 0.2 + s.rnd.Float64()*0.6
	if sport == "tennis" {
		return map[int]float64{
			feed.FactorOutcome1: price(p1),
			feed.FactorOutcome2: price(1 - p1),
		}
	}
	pX := 0.15 + s.rnd.Float64()*0.15
	p1 *= 1 - pX
	p2 := 1 - p1 - pX
	return map[int]float64{
		feed.FactorOutcome1:  price(p1),
		feed.FactorOutcomeX:  price(pX),
		feed.FactorOutcome2:  price(p2),
		feed.FactorOutcome1X: price(p1 + pX),
		feed.FactorOutcomeX2: price(pX + p2),
	}
}

func price(p float64) float64 {
	q := math.Round(100/(p*margin)) / 100
	if q < 1.01 {
		return 1.01
	}
	return q
}

// Tick avança uma versão: move cotações, atualiza placares e status,
// cria partidas novas e tira da linha as encerradas há muito tempo.
// Devolve o delta da nova versão.
func (s *Simulator) Tick() feed.Packet {
	s.mu.Lock()
	s.version++
	v := s.version
	now := s.now()

	for _, m := range s.sorted() {
		if m.delVer > 0 {
			continue
		}
		switch m.status {
		case statusPending:
			if !now.Before(m.start) {
				m.status = statusLive
				continue
			}
			if s.rnd.Float64() < s.driftShare {
				s.drift(m)
				m.quoteVer = v
			}
		case statusLive:
			if s.rnd.Float64() < 0.25 {
				s.goal(m)
			}
			if !now.Before(m.start.Add(m.duration)) {
				m.status = statusFinished
			}
		case statusFinished:
			if now.Sub(m.start) > s.retention {
				m.delVer = v
			}
		}
	}

	if s.rnd.Float64() < s.spawnChance {
		s.spawn(now.Add(time.Duration(1+s.rnd.Intn(20)) * time.Hour).Truncate(time.Minute))
	}

	pkt := s.deltaLocked(v - 1)
	s.mu.Unlock()

	if s.hooks.OnTick != nil {
		s.hooks.OnTick(v)
	}
	return pkt
}

// drift move cada cotação em até ±5%
func (s *Simulator) drift(m *match) {
	for f, q := range m.quotes {
		q *= 1 + (s.rnd.Float64()-0.5)/10
		m.quotes[f] = math.Max(1.01, math.Round(q*100)/100)
	}
}

func (s *Simulator) goal(m *match) {
	if s.rnd.Intn(2) == 0 {
		m.score1++
	} else {
		m.score2++
	}
}

// Delta devolve tudo que mudou depois de since (since <= 0 = carga completa)
func (s *Simulator) Delta(since int64) feed.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deltaLocked(since)
}

func (s *Simulator) deltaLocked(since int64) feed.Packet {
	pkt := feed.Packet{PacketVersion: s.version}
	if since <= 0 {
		for _, c := range catalog {
			pkt.Sports = append(pkt.Sports, c.node)
		}
	}
	for _, m := range s.sorted() {
		if m.delVer > 0 {
			if m.delVer > since && since > 0 {
				pkt.Deleted = append(pkt.Deleted, m.rec.ID)
			}
			continue
		}
		if m.eventVer > since {
			pkt.Events = append(pkt.Events, m.rec)
		}
		if m.quoteVer > since {
			pkt.Factors = append(pkt.Factors, factorSet(m))
		}
	}
	return pkt
}

func factorSet(m *match) feed.FactorSet {
	codes := make([]int, 0, len(m.quotes))
	for f := range m.quotes {
		codes = append(codes, f)
	}
	sort.Ints(codes)
	fs := feed.FactorSet{E: m.rec.ID}
	for _, f := range codes {
		fs.Factors = append(fs.Factors, feed.Factor{F: f, V: m.quotes[f]})
	}
	return fs
}

func (s *Simulator) sorted() []*match {
	out := make([]*match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rec.ID < out[j].rec.ID })
	return out
}

// ResultRecord e ScoreRecord seguem o formato de /results/v2/getByDate
type ResultRecord struct {
	ID     int64 `json:"id"`
	Status int   `json:"status"`
}

type ScoreRecord struct {
	ID     int64 `json:"id"`
	Score1 int   `json:"score1"`
	Score2 int   `json:"score2"`
}

type ResultsPage struct {
	Events     []ResultRecord `json:"events"`
	EventMiscs []ScoreRecord  `json:"eventMiscs"`
}

// Results lista status e placar das partidas iniciadas no dia (calendário de loc)
func (s *Simulator) Results(day string, loc *time.Location) ResultsPage {
	s.mu.Lock()
	defer s.mu.Unlock()

	page := ResultsPage{Events: []ResultRecord{}, EventMiscs: []ScoreRecord{}}
	for _, m := range s.sorted() {
		if m.status == statusPending || m.start.In(loc).Format("2006-01-02") != day {
			continue
		}
		page.Events = append(page.Events, ResultRecord{ID: m.rec.ID, Status: m.status})
		page.EventMiscs = append(page.EventMiscs, ScoreRecord{ID: m.rec.ID, Score1: m.score1, Score2: m.score2})
	}
	return page
}

// shouldFail sorteia a falha injetada
func (s *Simulator) shouldFail() bool {
	if s.failRate == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64() < s.failRate
}

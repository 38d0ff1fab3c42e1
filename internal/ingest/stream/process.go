package stream

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/ingest/feed"
	"github.com/radieske/sports-picks-engine/internal/ingest/filter"
	"github.com/radieske/sports-picks-engine/internal/ingest/taxonomy"
	"github.com/radieske/sports-picks-engine/internal/shared/domain"
	"github.com/radieske/sports-picks-engine/pkg/contracts/events"
)

// factorOutcomes mapeia código de fator -> campo de cotação
var factorOutcomes = map[int]domain.Outcome{
	feed.FactorOutcome1:  domain.Outcome1,
	feed.FactorOutcomeX:  domain.OutcomeX,
	feed.FactorOutcome2:  domain.Outcome2,
	feed.FactorOutcome1X: domain.Outcome1X,
	feed.FactorOutcomeX2: domain.OutcomeX2,
}

// process aplica um pacote na ordem taxonomia, eventos, mercados, cotações, deleções
// e então persiste o lote de eventos completos.
func (s *Stream) process(pkt feed.Packet, cycleID string) events.CycleSummary {
	sum := events.CycleSummary{
		CycleID:       cycleID,
		Sports:        len(pkt.Sports),
		Markets:       len(pkt.Markets),
		Deleted:       len(pkt.Deleted),
		Skipped:       pkt.Skipped,
		PacketVersion: pkt.PacketVersion,
	}
	if pkt.Skipped > 0 {
		s.log.Debug("malformed records skipped", zap.Int("count", pkt.Skipped))
		s.callError("decode")
	}

	s.mu.Lock()
	s.applyTaxonomy(pkt)
	sum.Events = s.applyEvents(pkt)
	s.applyMarkets(pkt)
	sum.Quotes = s.applyQuotes(pkt)
	s.applyDeletions(pkt)
	batch := s.collectAdmissible()
	s.mu.Unlock()

	if len(batch) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		n, err := s.sink.InsertEvents(ctx, batch)
		cancel()
		if err != nil {
			// lote inteiro voltou; os eventos continuam pendentes para o próximo ciclo
			s.log.Error("persist events batch failed", zap.Int("batch", len(batch)), zap.Error(err))
			s.callError("persist")
		} else {
			s.markPersisted(batch, pkt.PacketVersion)
			sum.Persisted = n
			if s.hooks.OnPersisted != nil {
				s.hooks.OnPersisted(n)
			}
		}
	}

	s.mu.RLock()
	sum.Deferred = len(s.pending)
	s.mu.RUnlock()
	return sum
}

// applyTaxonomy roda em duas passadas: primeiro grava todos os nós (um segmento pode
// chegar antes do esporte pai no mesmo pacote), depois recalcula os segmentos admitidos
func (s *Stream) applyTaxonomy(pkt feed.Packet) {
	var changed []taxonomy.Record
	for _, n := range pkt.Sports {
		kind, err := taxonomy.ParseKind(n.Kind)
		if err != nil {
			s.log.Debug("taxonomy record skipped", zap.Int64("id", n.ID), zap.Error(err))
			s.callError("taxonomy")
			continue
		}
		if !s.diff.changed(kindTaxonomy, n.ID, n.Raw) {
			continue
		}
		rec := taxonomy.Record{ID: n.ID, ParentID: n.ParentID, Kind: kind, Name: n.Name}
		s.resolver.Put(rec)
		changed = append(changed, rec)
	}
	if len(changed) == 0 {
		return
	}

	s.recomputeAllowed()

	for _, rec := range changed {
		c := &events.SportChange{ID: rec.ID, ParentID: rec.ParentID, Kind: rec.Kind.String(), Name: rec.Name}
		switch rec.Kind {
		case taxonomy.KindSport:
			if !s.filter.SportAllowed(rec.Name) {
				continue
			}
		case taxonomy.KindSegment:
			res, ok := s.allowed[rec.ID]
			if !ok {
				continue
			}
			c.Sport, c.Tournament = sportKey(res.Sport), res.Tournament
		}
		s.emit(events.Change{Kind: events.ChangeSport, Key: strconv.FormatInt(rec.ID, 10), PacketVersion: pkt.PacketVersion, Sport: c})
	}
}

func (s *Stream) recomputeAllowed() {
	allowed := make(map[int64]taxonomy.Resolution, len(s.allowed))
	for id, rec := range s.resolver.Snapshot() {
		if rec.Kind != taxonomy.KindSegment {
			continue
		}
		res, err := s.resolver.Resolve(id)
		if err != nil {
			continue
		}
		if s.filter.TournamentAllowed(res.Sport, res.Tournament) {
			allowed[id] = res
		}
	}
	s.allowed = allowed
}

func (s *Stream) applyEvents(pkt feed.Packet) int {
	n := 0
	for _, ev := range pkt.Events {
		if ev.Level != feed.TopLevel {
			continue
		}
		if !s.diff.changed(kindEvent, ev.ID, ev.Raw) {
			continue
		}
		s.tracked[ev.ID] = ev
		n++

		if _, done := s.persisted[ev.ID]; done {
			// identidade e cotações já gravadas não mudam mais
			continue
		}
		s.pending[ev.ID] = struct{}{}
	}
	return n
}

func (s *Stream) applyMarkets(pkt feed.Packet) {
	for _, m := range pkt.Markets {
		if !s.diff.changed(kindMarket, m.ID, m.Raw) {
			continue
		}
		s.emit(events.Change{Kind: events.ChangeMarket, Key: strconv.FormatInt(m.ID, 10), PacketVersion: pkt.PacketVersion, Market: m.Raw})
	}
}

// applyQuotes mescla os deltas por código de fator no conjunto de cotações do evento
func (s *Stream) applyQuotes(pkt feed.Packet) int {
	n := 0
	for _, fs := range pkt.Factors {
		ev, ok := s.tracked[fs.E]
		if !ok {
			continue
		}
		if !s.diff.changed(kindQuote, fs.E, fs.Raw) {
			continue
		}

		q := s.quotes[fs.E]
		touched := false
		for _, f := range fs.Factors {
			o, known := factorOutcomes[f.F]
			if !known || f.V <= 0 {
				continue
			}
			q.Set(o, f.V)
			touched = true
		}
		if !touched {
			continue
		}
		s.quotes[fs.E] = q
		n++

		if _, ok := s.allowed[ev.SportID]; !ok {
			continue
		}
		s.emit(events.Change{
			Kind:          events.ChangeQuote,
			Key:           strconv.FormatInt(fs.E, 10),
			PacketVersion: pkt.PacketVersion,
			Quote: &events.QuoteUpdate{
				EventID:   strconv.FormatInt(fs.E, 10),
				Team1:     ev.Team1,
				Team2:     ev.Team2,
				Quotes:    q,
				UpdatedAt: s.now(),
				Version:   pkt.PacketVersion,
			},
		})
	}
	return n
}

// applyDeletions limpa os caches em memória; linhas já persistidas não são apagadas
func (s *Stream) applyDeletions(pkt feed.Packet) {
	for _, id := range pkt.Deleted {
		_, known := s.tracked[id]
		delete(s.tracked, id)
		delete(s.quotes, id)
		delete(s.pending, id)
		s.diff.forget(kindEvent, id)
		s.diff.forget(kindQuote, id)
		if !known {
			continue
		}
		s.emit(events.Change{Kind: events.ChangeDelete, Key: strconv.FormatInt(id, 10), PacketVersion: pkt.PacketVersion})
	}
}

// collectAdmissible monta o lote de eventos completos. Eventos de segmento ainda não
// resolvido ou sem as duas cotações de vitória ficam pendentes; os rejeitados saem.
func (s *Stream) collectAdmissible() []domain.Event {
	var batch []domain.Event
	for id := range s.pending {
		ev := s.tracked[id]

		res, ok := s.allowed[ev.SportID]
		if !ok {
			if _, err := s.resolver.Resolve(ev.SportID); errors.Is(err, taxonomy.ErrUnresolved) {
				continue
			}
			delete(s.pending, id)
			continue
		}
		if !s.filter.Admit(res.Sport, res.Tournament, ev.Team1, ev.Team2) {
			delete(s.pending, id)
			continue
		}

		q := s.quotes[id]
		if !q.HasWinOutcomes() {
			continue
		}
		batch = append(batch, domain.Event{
			ID:         strconv.FormatInt(id, 10),
			Sport:      sportKey(res.Sport),
			Tournament: res.Tournament,
			Team1:      ev.Team1,
			Team2:      ev.Team2,
			StartTime:  ev.StartTime,
			Quotes:     q,
		})
	}
	return batch
}

func (s *Stream) markPersisted(batch []domain.Event, version int64) {
	s.mu.Lock()
	for _, e := range batch {
		id, _ := strconv.ParseInt(e.ID, 10, 64)
		s.persisted[id] = struct{}{}
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for i := range batch {
		e := batch[i]
		s.emit(events.Change{
			Kind:          events.ChangeEvent,
			Key:           e.ID,
			PacketVersion: version,
			Event: &events.EventChange{
				ID:         e.ID,
				Sport:      e.Sport,
				Tournament: e.Tournament,
				Team1:      e.Team1,
				Team2:      e.Team2,
				StartTime:  e.StartTime,
				Quotes:     e.Quotes,
				Persisted:  true,
			},
		})
	}
}

// sportKey grava a chave canônica ("football") em vez do nome localizado do feed
func sportKey(name string) string {
	if key := filter.Canonical(name); key != "" {
		return key
	}
	return name
}

package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/radieske/sports-picks-engine/internal/ingest/taxonomy"
	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// Snapshot é uma cópia somente leitura do estado do loop
type Snapshot struct {
	Version     int64                         `json:"version"`
	LastRun     time.Time                     `json:"last_run"`
	LastError   string                        `json:"last_error,omitempty"`
	Taxonomy    int                           `json:"taxonomy"`
	Tracked     int                           `json:"tracked"`
	Pending     int                           `json:"pending"`
	Persisted   int                           `json:"persisted"`
	DiffEntries int                           `json:"diff_entries"`
	Segments    map[int64]taxonomy.Resolution `json:"segments"`
	Quotes      map[int64]domain.Quotes       `json:"-"`
}

// Snapshot copia o estado atual; nada do que é devolvido referencia os mapas internos
func (s *Stream) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version:     s.version,
		LastRun:     s.lastRun,
		LastError:   s.lastErr,
		Taxonomy:    s.resolver.Len(),
		Tracked:     len(s.tracked),
		Pending:     len(s.pending),
		Persisted:   len(s.persisted),
		DiffEntries: s.diff.len(),
		Segments:    make(map[int64]taxonomy.Resolution, len(s.allowed)),
		Quotes:      make(map[int64]domain.Quotes, len(s.quotes)),
	}
	for id, res := range s.allowed {
		snap.Segments[id] = res
	}
	for id, q := range s.quotes {
		snap.Quotes[id] = q
	}
	return snap
}

// SnapshotHandler expõe o Snapshot em JSON (pendurado no servidor de métricas)
func (s *Stream) SnapshotHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.Snapshot())
	})
}

// Package taxonomy resolve a hierarquia esporte/segmento do feed em (esporte, torneio).
package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// Kind é o tipo do nó da taxonomia
type Kind int

const (
	KindSport Kind = iota + 1
	KindSegment
)

func (k Kind) String() string {
	switch k {
	case KindSport:
		return "sport"
	case KindSegment:
		return "segment"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrUnknownKind = errors.New("unknown taxonomy kind")
	ErrUnresolved  = errors.New("taxonomy unresolved")
	ErrNotSegment  = errors.New("taxonomy node is not a segment")
)

// ParseKind converte o campo "kind" do feed; qualquer outro valor é rejeitado
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sport":
		return KindSport, nil
	case "segment":
		return KindSegment, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Record é um nó já tipado da taxonomia
type Record struct {
	ID       int64
	ParentID int64
	Kind     Kind
	Name     string
}

// Resolution é o par plano usado pelo filtro e pela tabela events
type Resolution struct {
	Sport      string
	Tournament string
}

// Resolver mantém id -> nó (última escrita vence). Não é seguro para uso concorrente:
// pertence exclusivamente ao loop de ingestão.
type Resolver struct {
	nodes map[int64]Record
}

func NewResolver() *Resolver {
	return &Resolver{nodes: make(map[int64]Record)}
}

// Put grava ou substitui o nó
func (r *Resolver) Put(rec Record) { r.nodes[rec.ID] = rec }

// Get retorna o nó em cache
func (r *Resolver) Get(id int64) (Record, bool) {
	rec, ok := r.nodes[id]
	return rec, ok
}

// Len devolve a quantidade de nós em cache
func (r *Resolver) Len() int { return len(r.nodes) }

// Resolve devolve (nome do esporte pai, nome do segmento) para um segmento.
// Se o segmento ou o esporte pai ainda não estiverem em cache, retorna ErrUnresolved
// para que o chamador adie o processamento.
func (r *Resolver) Resolve(segmentID int64) (Resolution, error) {
	seg, ok := r.nodes[segmentID]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: segment %d not cached", ErrUnresolved, segmentID)
	}
	if seg.Kind != KindSegment {
		return Resolution{}, fmt.Errorf("%w: node %d is a %s", ErrNotSegment, segmentID, seg.Kind)
	}
	parent, ok := r.nodes[seg.ParentID]
	if !ok || parent.Kind != KindSport {
		return Resolution{}, fmt.Errorf("%w: parent %d of segment %d not cached", ErrUnresolved, seg.ParentID, segmentID)
	}
	return Resolution{Sport: parent.Name, Tournament: seg.Name}, nil
}

// Snapshot copia o mapa para leitura fora do loop
func (r *Resolver) Snapshot() map[int64]Record {
	out := make(map[int64]Record, len(r.nodes))
	for k, v := range r.nodes {
		out[k] = v
	}
	return out
}

package selection

import (
	"math"
	"math/rand"

	"github.com/radieske/sports-picks-engine/internal/ingest/filter"
	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// Constantes da regra de produto
const (
	underdogProb     = 0.7 // tênis: lado de cotação mais alta
	safeGroupProb    = 0.7
	doubleChanceBias = 0.6
	favoriteDCGap    = 2.0 // diferença mínima entre cotações de vitória para expor a dupla chance do favorito
)

// Rand é a fonte de aleatoriedade injetável
type Rand interface {
	Float64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// globalRand usa as funções de pacote de math/rand (seguras para uso concorrente)
type globalRand struct{}

func (globalRand) Float64() float64                   { return rand.Float64() }
func (globalRand) Intn(n int) int                     { return rand.Intn(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

type priced struct {
	outcome domain.Outcome
	value   float64
}

// admissible lista os outcomes com valor > 0 dentro de [lo, hi], na ordem das colunas
func admissible(q domain.Quotes, lo, hi float64) map[domain.Outcome]float64 {
	out := make(map[domain.Outcome]float64, len(domain.AllOutcomes))
	for _, o := range domain.AllOutcomes {
		v, ok := q.Get(o)
		if !ok || v <= 0 || v < lo || v > hi {
			continue
		}
		out[o] = v
	}
	return out
}

// chooseOutcome aplica a política de exibição. ok=false quando nenhum outcome é admissível.
func chooseOutcome(ev domain.Event, lo, hi float64, rnd Rand) (domain.Outcome, float64, bool) {
	adm := admissible(ev.Quotes, lo, hi)
	if len(adm) == 0 {
		return "", 0, false
	}
	if filter.Canonical(ev.Sport) == filter.SportTennis {
		return chooseTennis(adm, rnd)
	}
	return chooseWithDraw(ev.Quotes, adm, rnd)
}

func chooseTennis(adm map[domain.Outcome]float64, rnd Rand) (domain.Outcome, float64, bool) {
	v1, ok1 := adm[domain.Outcome1]
	v2, ok2 := adm[domain.Outcome2]
	switch {
	case ok1 && ok2:
		under, fav := priced{domain.Outcome2, v2}, priced{domain.Outcome1, v1}
		if v1 > v2 {
			under, fav = fav, under
		}
		if rnd.Float64() < underdogProb {
			return under.outcome, under.value, true
		}
		return fav.outcome, fav.value, true
	case ok1:
		return domain.Outcome1, v1, true
	case ok2:
		return domain.Outcome2, v2, true
	}
	return "", 0, false
}

// chooseWithDraw divide em grupo seguro {empate, dupla chance do azarão} e
// grupo de risco {vitórias, dupla chance do favorito quando a diferença >= 2}.
// Empate nas cotações de vitória trata o time 2 como azarão.
func chooseWithDraw(q domain.Quotes, adm map[domain.Outcome]float64, rnd Rand) (domain.Outcome, float64, bool) {
	q1, ok1 := q.Get(domain.Outcome1)
	q2, ok2 := q.Get(domain.Outcome2)

	underDC, favDC := domain.OutcomeX2, domain.Outcome1X
	if ok1 && ok2 && q1 > q2 {
		underDC, favDC = domain.Outcome1X, domain.OutcomeX2
	}

	pick := func(outs ...domain.Outcome) []priced {
		var g []priced
		for _, o := range outs {
			if v, ok := adm[o]; ok {
				g = append(g, priced{o, v})
			}
		}
		return g
	}

	safe := pick(domain.OutcomeX, underDC)
	risk := pick(domain.Outcome1, domain.Outcome2)
	if ok1 && ok2 && math.Abs(q1-q2) >= favoriteDCGap {
		risk = append(risk, pick(favDC)...)
	}

	var group []priced
	switch {
	case len(safe) > 0 && len(risk) > 0:
		if rnd.Float64() < safeGroupProb {
			group = safe
		} else {
			group = risk
		}
	case len(safe) > 0:
		group = safe
	case len(risk) > 0:
		group = risk
	default:
		return "", 0, false
	}

	p := pickInGroup(group, rnd)
	return p.outcome, p.value, true
}

// pickInGroup favorece o membro dupla chance com probabilidade 0.6; senão sorteia entre os demais
func pickInGroup(group []priced, rnd Rand) priced {
	var dc *priced
	rest := make([]priced, 0, len(group))
	for i := range group {
		if group[i].outcome.IsDoubleChance() && dc == nil {
			dc = &group[i]
			continue
		}
		rest = append(rest, group[i])
	}
	if dc != nil && (len(rest) == 0 || rnd.Float64() < doubleChanceBias) {
		return *dc
	}
	return rest[rnd.Intn(len(rest))]
}

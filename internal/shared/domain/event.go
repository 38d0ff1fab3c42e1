// Package domain reúne os tipos compartilhados entre ingestão, reconciliação e seleção.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// Outcome identifica um campo de cotação do evento
type Outcome string

const (
	Outcome1  Outcome = "outcome1"  // vitória do time 1
	OutcomeX  Outcome = "outcomeX"  // empate
	Outcome2  Outcome = "outcome2"  // vitória do time 2
	Outcome1X Outcome = "outcome1X" // dupla chance: time 1 ou empate
	OutcomeX2 Outcome = "outcomeX2" // dupla chance: empate ou time 2
)

// AllOutcomes na ordem em que as colunas aparecem na tabela events
var AllOutcomes = []Outcome{Outcome1, OutcomeX, Outcome2, Outcome1X, OutcomeX2}

// ParseOutcome aceita o nome do campo sem diferenciar maiúsculas
func ParseOutcome(s string) (Outcome, bool) {
	for _, o := range AllOutcomes {
		if strings.EqualFold(string(o), s) {
			return o, true
		}
	}
	return "", false
}

// IsDoubleChance indica se o outcome cobre dois resultados
func (o Outcome) IsDoubleChance() bool { return o == Outcome1X || o == OutcomeX2 }

// Covers indica se o outcome exibido é vencedor dado o outcome real
func (o Outcome) Covers(winning Outcome) bool {
	switch o {
	case Outcome1X:
		return winning == Outcome1 || winning == OutcomeX
	case OutcomeX2:
		return winning == Outcome2 || winning == OutcomeX
	default:
		return o == winning
	}
}

// Status do ciclo de vida do evento (vazio = pendente)
const (
	StatusLive     = "live"
	StatusFinished = "finished"
)

// Quotes guarda as cotações conhecidas; nil = ainda não recebida
type Quotes struct {
	Outcome1  *float64 `json:"outcome1,omitempty"`
	OutcomeX  *float64 `json:"outcomeX,omitempty"`
	Outcome2  *float64 `json:"outcome2,omitempty"`
	Outcome1X *float64 `json:"outcome1X,omitempty"`
	OutcomeX2 *float64 `json:"outcomeX2,omitempty"`
}

// Get retorna a cotação do outcome e se ela existe
func (q Quotes) Get(o Outcome) (float64, bool) {
	var p *float64
	switch o {
	case Outcome1:
		p = q.Outcome1
	case OutcomeX:
		p = q.OutcomeX
	case Outcome2:
		p = q.Outcome2
	case Outcome1X:
		p = q.Outcome1X
	case OutcomeX2:
		p = q.OutcomeX2
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set grava a cotação do outcome
func (q *Quotes) Set(o Outcome, v float64) {
	switch o {
	case Outcome1:
		q.Outcome1 = &v
	case OutcomeX:
		q.OutcomeX = &v
	case Outcome2:
		q.Outcome2 = &v
	case Outcome1X:
		q.Outcome1X = &v
	case OutcomeX2:
		q.OutcomeX2 = &v
	}
}

// HasWinOutcomes é a condição mínima para persistir um evento
func (q Quotes) HasWinOutcomes() bool { return q.Outcome1 != nil && q.Outcome2 != nil }

// Event é a linha da tabela events
type Event struct {
	ID         string `json:"id"`
	Sport      string `json:"sport"`
	Tournament string `json:"tournament"`
	Team1      string `json:"team1"`
	Team2      string `json:"team2"`
	StartTime  int64  `json:"startTime"` // epoch em segundos ou milissegundos, como veio do feed
	Quotes

	Status         *string  `json:"status"`
	Results        *string  `json:"results"`
	WinningOutcome *Outcome `json:"winning_outcome"`
}

// msThreshold separa epoch em segundos de epoch em milissegundos
const msThreshold = 100_000_000_000

// Start converte StartTime tolerando as duas codificações do feed
func (e Event) Start() time.Time {
	return EpochToTime(e.StartTime)
}

// EpochToTime trata valores com 12 ou mais dígitos como milissegundos
func EpochToTime(v int64) time.Time {
	if v >= msThreshold || v <= -msThreshold {
		return time.UnixMilli(v)
	}
	return time.Unix(v, 0)
}

// FormatQuote imprime a cotação sem zeros à direita
func FormatQuote(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

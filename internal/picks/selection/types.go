package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidFilter cobre faixa de coeficiente invertida ou negativa
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidAdjustment: delta zero ou saldo final negativo
	ErrInvalidAdjustment = errors.New("invalid attempts adjustment")
)

// InsufficientAttemptsError é devolvido quando o usuário não tem tentativas para a chamada
type InsufficientAttemptsError struct {
	Remaining int
}

func (e *InsufficientAttemptsError) Error() string {
	return fmt.Sprintf("insufficient attempts: %d remaining", e.Remaining)
}

// UnavailableError embrulha falhas de store; a chamada pode ser repetida
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string { return "store unavailable: " + e.Err.Error() }
func (e *UnavailableError) Unwrap() error { return e.Err }

type User struct {
	ID         int64
	ExternalID string
	Attempts   int
	CreatedAt  time.Time
}

// Filter é o pedido do chamador. Min/Max nil = sem limite; Status vazio = pendente.
type Filter struct {
	Sports []string
	Min    *float64
	Max    *float64
	Status string
}

// Query é o que o store recebe por esporte
type Query struct {
	Sports      []string
	Status      string // "" = status IS NULL
	Min, Max    float64
	From, To    time.Time
	ExcludeUser int64 // 0 = sem exclusão por histórico
	Limit       int
}

// Selected é um evento escolhido com o outcome exibido
type Selected struct {
	domain.Event
	ShownOutcome domain.Outcome
	ShownValue   float64
}

// ShowRecord é uma linha de shows a inserir
type ShowRecord struct {
	UserID  int64
	EventID string
	Outcome domain.Outcome
	PickID  string
}

// Tx é a visão transacional do store usada por uma chamada de seleção
type Tx interface {
	// LockUser busca ou cria o usuário e trava a linha até o fim da transação
	LockUser(ctx context.Context, externalID string) (User, error)
	Candidates(ctx context.Context, q Query) ([]domain.Event, error)
	InsertShows(ctx context.Context, shows []ShowRecord) error
	DebitAttempts(ctx context.Context, userID int64, n int) (int, error)
}

// Store executa fn numa transação; erro de fn desfaz tudo
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// HistoryEntry é um show já avaliado contra o resultado do evento
type HistoryEntry struct {
	ShowID       int64
	PickID       string
	ShownOutcome domain.Outcome
	ShownValue   *float64
	ShownAt      time.Time
	Event        domain.Event
	Grade        domain.Grade
}

// NewHistoryEntry preenche valor exibido e grade a partir do evento
func NewHistoryEntry(showID int64, pickID string, shown domain.Outcome, shownAt time.Time, ev domain.Event) HistoryEntry {
	h := HistoryEntry{
		ShowID:       showID,
		PickID:       pickID,
		ShownOutcome: shown,
		ShownAt:      shownAt,
		Event:        ev,
		Grade:        domain.GradeShow(shown, ev.WinningOutcome),
	}
	if v, ok := ev.Quotes.Get(shown); ok {
		h.ShownValue = &v
	}
	return h
}

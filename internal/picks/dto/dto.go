package dto

import (
	"time"

	"github.com/radieske/sports-picks-engine/internal/picks/selection"
	"github.com/radieske/sports-picks-engine/internal/shared/domain"
)

// Event representa a linha de events exposta na API
type Event struct {
	ID             string          `json:"id"`
	Sport          string          `json:"sport"`
	Tournament     string          `json:"tournament"`
	Team1          string          `json:"team1"`
	Team2          string          `json:"team2"`
	StartTime      int64           `json:"startTime"`
	Quotes         domain.Quotes   `json:"quotes"`
	Status         *string         `json:"status"`
	Results        *string         `json:"results"`
	WinningOutcome *domain.Outcome `json:"winningOutcome"`
}

// SelectedEvent é um evento servido com o outcome escolhido
type SelectedEvent struct {
	Event
	ShownOutcome domain.Outcome `json:"shownOutcome"`
	ShownValue   float64        `json:"shownValue"`
}

type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"externalId"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"createdAt"`
}

type UsersResponse struct {
	Users []User `json:"users"`
}

type HistoryEntry struct {
	ShowID       int64          `json:"showId"`
	PickID       string         `json:"pickId"`
	ShownOutcome domain.Outcome `json:"shownOutcome"`
	ShownValue   *float64       `json:"shownValue"`
	ShownAt      time.Time      `json:"shownAt"`
	Grade        domain.Grade   `json:"grade"`
	Event        Event          `json:"event"`
}

// AdjustAttemptsRequest: delta positivo credita, negativo debita
type AdjustAttemptsRequest struct {
	Delta int `json:"delta"`
}

type ResetResponse struct {
	Reset int64 `json:"reset"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Remaining *int   `json:"remaining,omitempty"`
}

func FromEvent(e domain.Event) Event {
	return Event{
		ID:             e.ID,
		Sport:          e.Sport,
		Tournament:     e.Tournament,
		Team1:          e.Team1,
		Team2:          e.Team2,
		StartTime:      e.StartTime,
		Quotes:         e.Quotes,
		Status:         e.Status,
		Results:        e.Results,
		WinningOutcome: e.WinningOutcome,
	}
}

func FromSelected(in []selection.Selected) []SelectedEvent {
	out := make([]SelectedEvent, len(in))
	for i, s := range in {
		out[i] = SelectedEvent{Event: FromEvent(s.Event), ShownOutcome: s.ShownOutcome, ShownValue: s.ShownValue}
	}
	return out
}

func FromUser(u selection.User) User {
	return User{ID: u.ID, ExternalID: u.ExternalID, Attempts: u.Attempts, CreatedAt: u.CreatedAt}
}

func FromHistory(in []selection.HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(in))
	for i, h := range in {
		out[i] = HistoryEntry{
			ShowID:       h.ShowID,
			PickID:       h.PickID,
			ShownOutcome: h.ShownOutcome,
			ShownValue:   h.ShownValue,
			ShownAt:      h.ShownAt,
			Grade:        h.Grade,
			Event:        FromEvent(h.Event),
		}
	}
	return out
}

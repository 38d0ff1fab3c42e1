package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/picks/dto"
	"github.com/radieske/sports-picks-engine/internal/picks/selection"
	"github.com/radieske/sports-picks-engine/pkg/contracts/events"
)

// Selector é a operação de seleção (selection.Engine)
type Selector interface {
	Select(ctx context.Context, f selection.Filter, count int, userID string) ([]selection.Selected, error)
}

// Users cobre as operações de usuário do repositório
type Users interface {
	GetOrCreateUser(ctx context.Context, externalID string) (selection.User, error)
	ListUsers(ctx context.Context) ([]selection.User, error)
	AdjustAttempts(ctx context.Context, externalID string, delta int) (selection.User, error)
	History(ctx context.Context, externalID string) ([]selection.HistoryEntry, error)
}

// Maintenance limpa resultados para reprocessamento pelo reconciler
type Maintenance interface {
	ResetResults(ctx context.Context) (int64, error)
}

// QuoteReader lê a cotação corrente do cache
type QuoteReader interface {
	GetCurrent(ctx context.Context, eventID string) (events.QuoteUpdate, bool, error)
}

// API expõe as operações do motor via REST e o stream de cotações via WebSocket.
// Quotes e WS são opcionais.
type API struct {
	Selector       Selector
	Users          Users
	Maintenance    Maintenance
	Quotes         QuoteReader
	WS             http.HandlerFunc
	Log            *zap.Logger
	AllowedOrigins []string
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	origins := a.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/events", a.selectEvents)              // seleção filtrada (debita 1 tentativa com ?user=)
		r.Get("/events/{id}/quotes", a.currentQuotes) // cotação corrente do cache
		r.Get("/users", a.listUsers)
		r.Get("/users/{externalId}", a.getOrCreateUser)
		r.Get("/users/{externalId}/history", a.history)
		r.Post("/users/{externalId}/attempts", a.adjustAttempts)
	})
	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

// AdminRouter expõe as rotas de manutenção; fica na porta interna de
// métricas/health, nunca no roteador público.
func (a *API) AdminRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Post("/admin/reset-results", a.resetResults)
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// writeDomainError traduz os erros do motor para status HTTP
func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	var insufficient *selection.InsufficientAttemptsError
	var unavailable *selection.UnavailableError
	switch {
	case errors.As(err, &insufficient):
		remaining := insufficient.Remaining
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "insufficient attempts", Remaining: &remaining})
	case errors.Is(err, selection.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, selection.ErrInvalidFilter), errors.Is(err, selection.ErrInvalidAdjustment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry")
	default:
		a.Log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// selectEvents: ?sport=football,tennis&status=&user=&count=3&min_coef=1.5&max_coef=3
func (a *API) selectEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f selection.Filter
	for _, s := range strings.Split(q.Get("sport"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			f.Sports = append(f.Sports, s)
		}
	}
	f.Status = q.Get("status")

	var err error
	if f.Min, err = optFloat(q.Get("min_coef")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid min_coef")
		return
	}
	if f.Max, err = optFloat(q.Get("max_coef")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid max_coef")
		return
	}

	count := 1
	if v := q.Get("count"); v != "" {
		if count, err = strconv.Atoi(v); err != nil || count <= 0 {
			writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
	}

	picked, err := a.Selector.Select(r.Context(), f, count, strings.TrimSpace(q.Get("user")))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSelected(picked))
}

func optFloat(s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// currentQuotes retorna a cotação corrente do evento a partir do cache
func (a *API) currentQuotes(w http.ResponseWriter, r *http.Request) {
	if a.Quotes == nil {
		writeError(w, http.StatusNotFound, "quote cache disabled")
		return
	}
	id := chi.URLParam(r, "id")
	q, ok, err := a.Quotes.GetCurrent(r.Context(), id)
	if err != nil {
		a.Log.Warn("quote cache read failed", zap.String("event_id", id), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "quote cache unavailable")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) getOrCreateUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.Users.GetOrCreateUser(r.Context(), chi.URLParam(r, "externalId"))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromUser(u))
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Users.ListUsers(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	out := dto.UsersResponse{Users: make([]dto.User, 0, len(users))}
	for _, u := range users {
		out.Users = append(out.Users, dto.FromUser(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	h, err := a.Users.History(r.Context(), chi.URLParam(r, "externalId"))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromHistory(h))
}

func (a *API) adjustAttempts(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustAttemptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}
	u, err := a.Users.AdjustAttempts(r.Context(), chi.URLParam(r, "externalId"), req.Delta)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromUser(u))
}

func (a *API) resetResults(w http.ResponseWriter, r *http.Request) {
	if a.Maintenance == nil {
		writeError(w, http.StatusNotFound, "maintenance disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	n, err := a.Maintenance.ResetResults(ctx)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.Log.Info("results reset", zap.Int64("events", n))
	writeJSON(w, http.StatusOK, dto.ResetResponse{Reset: n})
}

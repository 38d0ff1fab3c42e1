package simulator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-picks-engine/internal/ingest/feed"
)

// wirePacket é o envelope JSON de /events/list
type wirePacket struct {
	PacketVersion int64              `json:"packetVersion"`
	Sports        []feed.SportNode   `json:"sports"`
	Events        []feed.EventRecord `json:"events"`
	CustomFactors []feed.FactorSet   `json:"customFactors"`
	Deleted       []int64            `json:"deleted"`
}

func toWire(p feed.Packet) wirePacket {
	w := wirePacket{
		PacketVersion: p.PacketVersion,
		Sports:        p.Sports,
		Events:        p.Events,
		CustomFactors: p.Factors,
		Deleted:       p.Deleted,
	}
	if w.Sports == nil {
		w.Sports = []feed.SportNode{}
	}
	if w.Events == nil {
		w.Events = []feed.EventRecord{}
	}
	if w.CustomFactors == nil {
		w.CustomFactors = []feed.FactorSet{}
	}
	if w.Deleted == nil {
		w.Deleted = []int64{}
	}
	return w
}

// Server expõe o simulador via HTTP
type Server struct {
	Sim *Simulator
	Hub *Hub
	Log *zap.Logger
	// Loc é o fuso das datas de /results/v2/getByDate
	Loc *time.Location
}

// Handler monta as rotas públicas do simulador
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/list", s.eventsList)
	mux.HandleFunc("GET /results/v2/getByDate", s.resultsByDate)
	if s.Hub != nil {
		mux.HandleFunc("/ws", s.Hub.HandleWS)
	}
	return mux
}

// eventsList: ?version=N devolve o delta desde N (0 ou ausente = carga completa)
func (s *Server) eventsList(w http.ResponseWriter, r *http.Request) {
	s.request("events")
	if s.Sim.shouldFail() {
		http.Error(w, "simulated outage", http.StatusServiceUnavailable)
		return
	}

	var since int64
	if v := r.URL.Query().Get("version"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, "bad version", http.StatusBadRequest)
			return
		}
		since = n
	}
	writeJSON(w, toWire(s.Sim.Delta(since)))
}

// resultsByDate: ?lineDate=YYYY-MM-DD
func (s *Server) resultsByDate(w http.ResponseWriter, r *http.Request) {
	s.request("results")
	if s.Sim.shouldFail() {
		http.Error(w, "simulated outage", http.StatusServiceUnavailable)
		return
	}

	day := r.URL.Query().Get("lineDate")
	if _, err := time.Parse("2006-01-02", day); err != nil {
		http.Error(w, "bad lineDate", http.StatusBadRequest)
		return
	}
	loc := s.Loc
	if loc == nil {
		loc = time.UTC
	}
	writeJSON(w, s.Sim.Results(day, loc))
}

func (s *Server) request(endpoint string) {
	if s.Sim.hooks.OnRequest != nil {
		s.Sim.hooks.OnRequest(endpoint)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

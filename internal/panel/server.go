package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/alejandrodnm/spreadwatch/internal/ports"
	"github.com/alejandrodnm/spreadwatch/internal/ratelimit"
)

const (
	defaultSpreadsLimit = 500
	maxSpreadsLimit     = 5000
	binsFetchLimit      = 10000
	simLevels           = 50
)

// Config del servidor del panel.
type Config struct {
	Addr      string
	Pairs     []domain.Pair
	MarketIDs map[string]int // symbol → market_id de lighter, resuelto al arrancar
}

// Server expone la API HTTP/WS del panel sobre el mismo storage y limiter
// que usan los pollers.
type Server struct {
	store    ports.SampleStore
	venues   map[string]ports.Venue
	limiter  *ratelimit.Limiter
	hub      *Hub
	cfg      Config
	srv      *http.Server
	upgrader websocket.Upgrader
}

// NewServer monta el router y deja el servidor listo para Start.
func NewServer(store ports.SampleStore, venues map[string]ports.Venue, limiter *ratelimit.Limiter, hub *Hub, cfg Config) *Server {
	s := &Server{
		store:   store,
		venues:  venues,
		limiter: limiter,
		hub:     hub,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			// El panel es una herramienta de operador, no una API pública.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/spreads", s.handleSpreads).Methods(http.MethodGet)
	r.HandleFunc("/api/pairs", s.handlePairs).Methods(http.MethodGet)
	r.HandleFunc("/api/latest", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/api/stats/bins", s.handleBins).Methods(http.MethodGet)
	r.HandleFunc("/api/depth", s.handleDepth).Methods(http.MethodGet)
	r.HandleFunc("/api/simulate", s.handleSimulate).Methods(http.MethodGet)
	r.HandleFunc("/api/ingest/spread", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/api/admin/config", s.handleAdminGet).Methods(http.MethodGet)
	r.HandleFunc("/api/admin/config", s.handleAdminSet).Methods(http.MethodPost)
	r.HandleFunc("/ws/stream", s.handleStream)

	s.srv = &http.Server{
		Addr:        cfg.Addr,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler expone el router, para tests con httptest.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start sirve hasta Shutdown. ErrServerClosed no es un error para el caller.
func (s *Server) Start() error {
	slog.Info("panel listening", "addr", s.cfg.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("panel.Start: %w", err)
	}
	return nil
}

// Shutdown para el servidor drenando las conexiones en curso.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "err", err)
	}
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"detail": msg})
}

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func (s *Server) findPair(name string) (domain.Pair, bool) {
	for _, p := range s.cfg.Pairs {
		if p.Name == name {
			return p, true
		}
	}
	return domain.Pair{}, false
}

// resolveLeg completa el market_id de lighter desde el mapa descubierto al
// arrancar. Un símbolo sin resolver es error de configuración.
func (s *Server) resolveLeg(leg domain.Market) (domain.Market, error) {
	if leg.Venue != domain.VenueLighter || leg.MarketID != nil {
		return leg, nil
	}
	id, ok := s.cfg.MarketIDs[leg.Symbol]
	if !ok {
		return leg, fmt.Errorf("lighter market_id not resolved for %s", leg.Symbol)
	}
	leg.MarketID = &id
	return leg, nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSpreads(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		httpError(w, http.StatusBadRequest, "pair is required")
		return
	}
	limit, err := queryInt(r, "limit", defaultSpreadsLimit)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxSpreadsLimit {
		limit = maxSpreadsLimit
	}

	rows, err := s.store.Spreads(r.Context(), pair, limit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Storage devuelve newest-first; los charts quieren ascendente.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if rows == nil {
		rows = []domain.Sample{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.store.Pairs(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(pairs) == 0 {
		for _, p := range s.cfg.Pairs {
			pairs = append(pairs, p.Name)
		}
	}
	if pairs == nil {
		pairs = []string{}
	}
	writeJSON(w, http.StatusOK, pairs)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.LatestAll(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []domain.Sample{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleBins(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		httpError(w, http.StatusBadRequest, "pair is required")
		return
	}
	days, err := queryInt(r, "days", 7)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	exitZ, err := queryFloat(r, "exit_z", 0.5)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	edges := r.URL.Query().Get("edges")
	if edges == "" {
		edges = "1.5,2,2.5,3"
	}

	rows, err := s.store.Spreads(r.Context(), pair, binsFetchLimit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sinceMS := domain.NowMS() - int64(days)*86_400_000
	seq := rows[:0]
	for _, row := range rows {
		if row.TsMS >= sinceMS {
			seq = append(seq, row)
		}
	}
	sort.Slice(seq, func(i, j int) bool { return seq[i].TsMS < seq[j].TsMS })

	stats := ComputeBins(seq, ParseEdges(edges), exitZ)
	writeJSON(w, http.StatusOK, map[string]any{
		"pair":   pair,
		"days":   days,
		"exit_z": exitZ,
		"stats":  stats,
	})
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	pairName := r.URL.Query().Get("pair")
	if pairName == "" {
		httpError(w, http.StatusBadRequest, "pair is required")
		return
	}
	levels, err := queryInt(r, "levels", simLevels)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, ok := s.findPair(pairName)
	if !ok {
		httpError(w, http.StatusNotFound, "pair not configured")
		return
	}

	out := map[string]domain.BookLevels{}
	for label, leg := range map[string]domain.Market{"a": pair.A, "b": pair.B} {
		resolved, err := s.resolveLeg(leg)
		if err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		venue, ok := s.venues[resolved.Venue]
		if !ok {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("no adapter for venue %q", resolved.Venue))
			return
		}
		lv, err := venue.OrderBookLevels(r.Context(), resolved, levels)
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out[label] = lv
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	pairName := r.URL.Query().Get("pair")
	if pairName == "" {
		httpError(w, http.StatusBadRequest, "pair is required")
		return
	}
	notional, err := queryFloat(r, "notional_usd", 1000)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = domain.ActionEnterShortALongB
	}
	if pattern != domain.ActionEnterShortALongB && pattern != domain.ActionEnterLongAShortB {
		httpError(w, http.StatusBadRequest, "invalid pattern")
		return
	}
	pair, ok := s.findPair(pairName)
	if !ok {
		httpError(w, http.StatusNotFound, "pair not configured")
		return
	}

	legA, err := s.simLeg(r.Context(), pair.A)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	legB, err := s.simLeg(r.Context(), pair.B)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := simulate(pattern, notional, legA, legB)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// simLeg reúne mid, niveles y taker fee de una pata para el simulador.
func (s *Server) simLeg(ctx context.Context, leg domain.Market) (simLeg, error) {
	resolved, err := s.resolveLeg(leg)
	if err != nil {
		return simLeg{}, err
	}
	venue, ok := s.venues[resolved.Venue]
	if !ok {
		return simLeg{}, fmt.Errorf("no adapter for venue %q", resolved.Venue)
	}

	mid, err := venue.MidPrice(ctx, resolved)
	if err != nil {
		return simLeg{}, err
	}
	lv, err := venue.OrderBookLevels(ctx, resolved, simLevels)
	if err != nil {
		return simLeg{}, err
	}

	out := simLeg{mid: mid, levels: lv}
	if fees, err := venue.Fees(ctx, resolved); err == nil && fees.Taker != nil {
		out.taker = *fees.Taker
	}
	return out, nil
}

var ingestRequired = []string{"pair", "ts_ms", "price_a", "price_b", "spread", "z", "mean", "std"}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json")
		return
	}
	for _, k := range ingestRequired {
		if _, ok := payload[k]; !ok {
			httpError(w, http.StatusBadRequest, fmt.Sprintf("missing field %s", k))
			return
		}
	}

	var sample domain.Sample
	if err := json.Unmarshal(body, &sample); err != nil {
		httpError(w, http.StatusBadRequest, "invalid sample")
		return
	}

	if err := s.store.Insert(r.Context(), sample); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Se difunde el payload tal cual llegó, con cualquier campo extra que
	// el producer haya añadido.
	s.hub.Broadcast(sample.Pair, payload)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		httpError(w, http.StatusBadRequest, "pair is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("ws upgrade failed", "err", err)
		return
	}

	id := s.hub.Subscribe(pair, conn)
	defer func() {
		s.hub.Unsubscribe(pair, id)
		conn.Close()
	}()

	// Solo se lee para detectar la desconexión; el cliente no manda datos.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

var defaultAdminConfig = map[string]any{
	"ratelimits": map[string]any{
		domain.VenueAster:   map[string]any{"global": map[string]any{"capacity": 20, "refill": 10.0}},
		domain.VenueLighter: map[string]any{"global": map[string]any{"capacity": 20, "refill": 10.0}},
	},
}

func (s *Server) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.AdminGet(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cfg == nil {
		cfg = defaultAdminConfig
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleAdminSet(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json")
		return
	}
	raw, ok := payload["ratelimits"]
	if !ok {
		httpError(w, http.StatusBadRequest, "missing ratelimits")
		return
	}
	cfg, err := ratelimit.ParseConfig(raw)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.AdminSet(r.Context(), payload); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.limiter.Update(cfg)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

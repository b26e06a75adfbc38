// Package dashboard serves the engine and the stored trades over a JSON HTTP API.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/pnl"
	"github.com/eddiefleurent/options_advisor/internal/risk"
	"github.com/eddiefleurent/options_advisor/internal/selector"
	"github.com/eddiefleurent/options_advisor/internal/storage"
	"github.com/eddiefleurent/options_advisor/internal/tradedesc"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

const maxBodyBytes = 1 << 20

type Server struct {
	router     *chi.Mux
	server     *http.Server
	storage    storage.Interface
	calc       *risk.Calculator
	thresholds selector.Thresholds
	logger     logrus.FieldLogger
	now        func() time.Time
	port       int
	authToken  string
}

type Config struct {
	Port       int
	AuthToken  string
	Thresholds selector.Thresholds
	Heuristics risk.Heuristics
}

// TradeView is a stored trade as the API shows it.
type TradeView struct {
	ID          string              `json:"id"`
	Symbol      string              `json:"symbol"`
	Strategy    models.StrategyType `json:"strategy"`
	State       models.TradeState   `json:"state"`
	EntryDate   time.Time           `json:"entry_date"`
	Expiry      string              `json:"expiry"`
	DTE         int                 `json:"dte"`
	Description string              `json:"description"`
	OrderID     string              `json:"order_id,omitempty"`
	MaxLoss     models.Amount       `json:"max_loss"`
	MaxProfit   models.Amount       `json:"max_profit"`
	ProbProfit  decimal.Decimal     `json:"prob_profit"`
	CurrentPnL  *decimal.Decimal    `json:"current_pnl,omitempty"`
	PnLPercent  *decimal.Decimal    `json:"pnl_percent,omitempty"`
	RealizedPnL decimal.Decimal     `json:"realized_pnl"`
	IsProfit    bool                `json:"is_profit"`
}

// Statistics is the /api/stats payload.
type Statistics struct {
	storage.Statistics
	CurrentOpen int             `json:"current_open"`
	Simulated   int             `json:"simulated"`
	TodayPnL    decimal.Decimal `json:"today_pnl"`
}

func NewServer(cfg Config, storage storage.Interface, logger logrus.FieldLogger) *Server {
	th := cfg.Thresholds
	if th.Low == 0 && th.High == 0 {
		th = selector.DefaultThresholds()
	}
	h := cfg.Heuristics
	if h.DefaultProbProfit.IsZero() {
		h = risk.DefaultHeuristics()
	}
	s := &Server{
		router:     chi.NewRouter(),
		storage:    storage,
		calc:       risk.NewCalculator(h),
		thresholds: th,
		logger:     util.LoggerOrDiscard(logger),
		now:        time.Now,
		port:       cfg.Port,
		authToken:  cfg.AuthToken,
	}

	s.setupRoutes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/trades", s.handleGetTrades)
		r.Get("/trades/{id}", s.handleGetTrade)
		r.Get("/stats", s.handleGetStats)

		r.Post("/select", s.handleSelect)
		r.Post("/risk/{strategy}", s.handleRisk)
		r.Post("/parse", s.handleParse)
		r.Post("/pnl", s.handlePnL)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request through logrus.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func (s *Server) Start() error {
	s.logger.Infof("Starting dashboard server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	var states []models.TradeState
	for _, st := range r.URL.Query()["state"] {
		states = append(states, models.TradeState(st))
	}
	trades := s.storage.GetTradesByState(states...)

	views := make([]TradeView, 0, len(trades))
	for i := range trades {
		views = append(views, s.convertTradeToView(&trades[i]))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetTrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	trade, err := s.storage.GetTrade(id)
	if err != nil {
		if errors.Is(err, storage.ErrTradeNotFound) {
			s.writeError(w, http.StatusNotFound, "trade not found")
			return
		}
		s.logger.WithError(err).WithField("trade_id", id).Error("Failed to load trade")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		TradeView
		Legs         []models.Leg           `json:"legs"`
		Risk         models.RiskMetrics     `json:"risk"`
		LastAnalysis *models.AnalysisResult `json:"last_analysis,omitempty"`
	}{s.convertTradeToView(trade), trade.Legs, trade.Risk, trade.LastAnalysis})
}

func (s *Server) handleGetStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.calculateStatistics())
}

func (s *Server) convertTradeToView(t *models.TradeRecord) TradeView {
	v := TradeView{
		ID:          t.ID,
		Symbol:      t.Symbol,
		Strategy:    t.Strategy,
		State:       t.State,
		EntryDate:   t.CreatedAt,
		Expiry:      t.Expiry.Format("2006-01-02"),
		DTE:         t.CalculateDTE(s.now()),
		Description: t.Description,
		OrderID:     t.OrderID,
		MaxLoss:     t.Risk.MaxLoss,
		MaxProfit:   t.Risk.MaxProfit,
		ProbProfit:  t.Risk.ProbProfit,
		RealizedPnL: t.RealizedPnL,
	}
	if t.IsOpen() && t.LastAnalysis != nil {
		p, pct := t.LastAnalysis.PnL.Round(2), t.LastAnalysis.PnLPct.Round(2)
		v.CurrentPnL, v.PnLPercent = &p, &pct
		v.IsProfit = p.IsPositive()
	} else if !t.IsOpen() {
		v.IsProfit = t.RealizedPnL.IsPositive()
	}
	return v
}

func (s *Server) calculateStatistics() *Statistics {
	stats := &Statistics{
		Statistics: *s.storage.GetStatistics(),
		TodayPnL:   s.storage.GetDailyPnL(s.now().UTC().Format("2006-01-02")),
	}
	for _, t := range s.storage.GetTradesByState(models.StateRecommended, models.StateSimulated) {
		stats.CurrentOpen++
		if t.State == models.StateSimulated {
			stats.Simulated++
		}
	}
	return stats
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// pnlEvaluate rounds a P&L result to cents.
func pnlEvaluate(legs []models.Leg, quotes []*models.Quote, quantity int) (models.PnLResult, bool) {
	res, ok := pnl.Calculate(legs, quotes, quantity)
	if !ok {
		return res, false
	}
	res.EntryCost = util.Round2(res.EntryCost)
	res.ExitValue = util.Round2(res.ExitValue)
	res.PnL = util.Round2(res.PnL)
	res.PnLPct = util.Round2(res.PnLPct)
	return res, true
}

// legsFrom returns the request legs, parsing the description when none are given.
func legsFrom(legs []models.Leg, description string, hint models.StrategyType) ([]models.Leg, []string) {
	if len(legs) > 0 || description == "" {
		return legs, nil
	}
	parsed := tradedesc.Parse(description, hint)
	return parsed.Legs, parsed.Skipped
}

package dashboard

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/risk"
	"github.com/eddiefleurent/options_advisor/internal/selector"
	"github.com/eddiefleurent/options_advisor/internal/tradedesc"
)

type selectRequest struct {
	Trend  models.Trend `json:"trend"`
	IVRank *float64     `json:"iv_rank"`
}

type selectResponse struct {
	Strategy models.StrategyType `json:"strategy"`
	Bucket   string              `json:"bucket"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.IVRank == nil {
		s.writeError(w, http.StatusBadRequest, "iv_rank is required")
		return
	}
	s.writeJSON(w, http.StatusOK, selectResponse{
		Strategy: selector.Select(req.Trend, *req.IVRank, s.thresholds),
		Bucket:   s.thresholds.Classify(*req.IVRank).String(),
	})
}

type riskRequest struct {
	Legs            []models.Leg     `json:"legs"`
	Description     string           `json:"description"`
	UnderlyingPrice decimal.Decimal  `json:"underlying_price"`
	Delta           *decimal.Decimal `json:"delta"`
	DTE             int              `json:"dte"`
	FrontDTE        int              `json:"front_dte"`
	BackDTE         int              `json:"back_dte"`
}

type riskResponse struct {
	models.RiskMetrics
	Report  string   `json:"report"`
	Skipped []string `json:"skipped,omitempty"`
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	strategy := models.StrategyType(chi.URLParam(r, "strategy"))
	var req riskRequest
	if !s.decode(w, r, &req) {
		return
	}

	legs, skipped := legsFrom(req.Legs, req.Description, strategy)
	metrics, err := s.calc.Evaluate(strategy, legs, risk.Market{
		UnderlyingPrice: req.UnderlyingPrice,
		Delta:           req.Delta,
		DTE:             req.DTE,
		FrontDTE:        req.FrontDTE,
		BackDTE:         req.BackDTE,
	})
	switch {
	case errors.Is(err, risk.ErrUnsupportedStrategy):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, risk.ErrLegMismatch):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, riskResponse{RiskMetrics: metrics, Report: risk.Format(metrics), Skipped: skipped})
}

type parseRequest struct {
	Description string              `json:"description"`
	Strategy    models.StrategyType `json:"strategy"`
}

type parseResponse struct {
	Legs     []models.Leg `json:"legs"`
	Skipped  []string     `json:"skipped,omitempty"`
	Complete bool         `json:"complete"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !s.decode(w, r, &req) {
		return
	}
	res := tradedesc.Parse(req.Description, req.Strategy)
	legs := res.Legs
	if legs == nil {
		legs = []models.Leg{}
	}
	s.writeJSON(w, http.StatusOK, parseResponse{Legs: legs, Skipped: res.Skipped, Complete: res.Complete()})
}

type pnlRequest struct {
	Legs        []models.Leg        `json:"legs"`
	Description string              `json:"description"`
	Strategy    models.StrategyType `json:"strategy"`
	Quotes      []*models.Quote     `json:"quotes"`
	Quantity    int                 `json:"quantity"`
}

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	var req pnlRequest
	if !s.decode(w, r, &req) {
		return
	}
	legs, _ := legsFrom(req.Legs, req.Description, req.Strategy)
	if len(legs) == 0 {
		s.writeError(w, http.StatusBadRequest, "no legs")
		return
	}
	res, ok := pnlEvaluate(legs, req.Quotes, req.Quantity)
	if !ok {
		s.writeError(w, http.StatusUnprocessableEntity, "incomplete pricing")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

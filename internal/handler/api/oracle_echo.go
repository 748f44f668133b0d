package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"OptionsOracle/internal/domain/models"
	"OptionsOracle/internal/service/metrics"
	"OptionsOracle/internal/service/ratelimit"
	"OptionsOracle/internal/services/contextrisk"
	"OptionsOracle/internal/usecase"
	xhttp "OptionsOracle/pkg/http"
	xlogger "OptionsOracle/pkg/logger"
	"OptionsOracle/pkg/util"
)

type StatusSource interface {
	Status() (models.OracleStatus, bool)
}

// Commander delivers operator commands to the decision loop.
type Commander interface {
	SetDailyPnl(ctx context.Context, pnl float64) error
	ExitAll(ctx context.Context) (*models.TradeEvent, error)
}

type Assessor interface {
	Assess(vix float64, hasVix bool, now time.Time) contextrisk.Assessment
}

type WinRater interface {
	WinRate(ctx context.Context, since time.Time) (float64, int, error)
}

type BreakerReporter interface {
	BreakerState() string
}

// HealthCheck reports nil when the named dependency is usable.
type HealthCheck func(ctx context.Context) error

type OracleDeps struct {
	Status   StatusSource
	Commands Commander
	Regime   Assessor
	Journal  WinRater
	Breaker  BreakerReporter
	Checks   map[string]HealthCheck
	Location *time.Location
	Log      *xlogger.Logger
}

// OracleEchoHandler is the operator API: read-only views of the decision
// loop plus the two commands it accepts.
type OracleEchoHandler struct {
	OracleDeps
	rl  *ratelimit.Limiter
	now func() time.Time
}

func NewOracleEchoHandler(deps OracleDeps) *OracleEchoHandler {
	metrics.Register(nil)
	if deps.Log == nil {
		deps.Log = xlogger.Nop()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &OracleEchoHandler{OracleDeps: deps, rl: ratelimit.New(1, 3), now: time.Now}
}

func (h *OracleEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.observe("healthz", h.Health))
	g := e.Group("/api")
	g.GET("/status", h.observe("status", h.GetStatus))
	g.GET("/decision", h.observe("decision", h.GetDecision))
	g.GET("/risk", h.observe("risk", h.GetRisk))
	g.GET("/regime", h.observe("regime", h.GetRegime))
	g.POST("/risk/pnl", h.observe("set_pnl", h.SetDailyPnl))
	g.POST("/position/exit", h.observe("exit_all", h.ExitAll))
}

func (h *OracleEchoHandler) observe(endpoint string, fn echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := fn(c)
		metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil || c.Response().Status >= http.StatusInternalServerError {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
		}
		return err
	}
}

func (h *OracleEchoHandler) GetStatus(c echo.Context) error {
	st, ok := h.Status.Status()
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("no cycle completed yet"))
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *OracleEchoHandler) GetDecision(c echo.Context) error {
	st, ok := h.Status.Status()
	if !ok || st.LastDecision == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no decision yet"))
	}
	return xhttp.SuccessResponse(c, st.LastDecision)
}

type riskResponse struct {
	models.RiskState
	Position     models.Position `json:"position"`
	WinRatePct   *float64        `json:"win_rate_pct,omitempty"`
	ClosedTrades int             `json:"closed_trades"`
	OrderBreaker string          `json:"order_breaker,omitempty"`
}

func (h *OracleEchoHandler) GetRisk(c echo.Context) error {
	st, _ := h.Status.Status()
	resp := riskResponse{RiskState: st.Risk, Position: st.Position}
	if h.Breaker != nil {
		resp.OrderBreaker = h.Breaker.BreakerState()
	}
	if h.Journal != nil {
		now := h.now().In(h.Location)
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.Location)
		rate, n, err := h.Journal.WinRate(c.Request().Context(), day)
		if err != nil {
			h.Log.Warn("win rate unavailable", xlogger.Error(err))
		} else {
			resp.WinRatePct, resp.ClosedTrades = &rate, n
		}
	}
	return xhttp.SuccessResponse(c, resp)
}

type regimeRequest struct {
	Vix string `query:"vix" validate:"omitempty,numeric"`
	At  string `query:"at"`
}

type regimeResponse struct {
	At                 time.Time     `json:"at"`
	Regime             models.Regime `json:"regime"`
	Phase              models.Phase  `json:"phase"`
	RequiredConfidence int           `json:"required_confidence"`
	Penalty            int           `json:"penalty"`
	CadenceSeconds     float64       `json:"cadence_seconds"`
	MarketOpen         bool          `json:"market_open"`
	VixAbovePanic      bool          `json:"vix_above_panic"`
}

// GetRegime evaluates the regime table for an arbitrary VIX and instant.
// Without vix the current reading from the last status is used.
func (h *OracleEchoHandler) GetRegime(c echo.Context) error {
	var req regimeRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	at := h.now()
	if req.At != "" {
		t, ok := util.ParseTime(req.At)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("at must be RFC3339 or unix seconds, got %q", req.At))
		}
		at = t
	}
	var vix float64
	hasVix := req.Vix != ""
	if hasVix {
		v, ok := util.ParseFloat(req.Vix)
		if !ok || v < 0 {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("vix must be a non-negative number, got %q", req.Vix))
		}
		vix = v
	} else if st, ok := h.Status.Status(); ok && st.Vix != nil {
		vix, hasVix = *st.Vix, true
	}
	a := h.Regime.Assess(vix, hasVix, at)
	return xhttp.SuccessResponse(c, regimeResponse{
		At:                 at,
		Regime:             a.Regime,
		Phase:              a.Phase,
		RequiredConfidence: a.RequiredConfidence,
		Penalty:            a.Penalty,
		CadenceSeconds:     a.Cadence.Seconds(),
		MarketOpen:         a.MarketOpen,
		VixAbovePanic:      a.AbovePanic,
	})
}

type pnlRequest struct {
	DailyPnl *float64 `json:"daily_pnl" validate:"required"`
}

func (h *OracleEchoHandler) SetDailyPnl(c echo.Context) error {
	if !h.rl.Allow("cmd:" + c.RealIP()) {
		return xhttp.AppErrorResponse(c, rateLimited())
	}
	var req pnlRequest
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.Commands.SetDailyPnl(c.Request().Context(), *req.DailyPnl); err != nil {
		metrics.CommandsTotal.WithLabelValues("set_pnl", "error").Inc()
		h.Log.Error("set daily pnl", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("decision loop not responding").WithError(err))
	}
	metrics.CommandsTotal.WithLabelValues("set_pnl", "ok").Inc()
	h.Log.Info("operator set daily pnl", xlogger.Float("daily_pnl", *req.DailyPnl), xlogger.String("remote", c.RealIP()))
	return xhttp.SuccessResponse(c, map[string]float64{"daily_pnl": *req.DailyPnl})
}

func (h *OracleEchoHandler) ExitAll(c echo.Context) error {
	if !h.rl.Allow("cmd:" + c.RealIP()) {
		return xhttp.AppErrorResponse(c, rateLimited())
	}
	ev, err := h.Commands.ExitAll(c.Request().Context())
	switch {
	case err == nil:
		metrics.CommandsTotal.WithLabelValues("exit_all", "ok").Inc()
		h.Log.Info("operator exit all", xlogger.String("symbol", ev.Symbol), xlogger.Float("pnl", ev.Pnl))
		return xhttp.SuccessResponse(c, ev)
	case errors.Is(err, usecase.ErrNoPosition):
		metrics.CommandsTotal.WithLabelValues("exit_all", "no_position").Inc()
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("no open position"))
	case errors.Is(err, usecase.ErrSpotUnavailable):
		metrics.CommandsTotal.WithLabelValues("exit_all", "no_spot").Inc()
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("spot price unavailable"))
	default:
		metrics.CommandsTotal.WithLabelValues("exit_all", "error").Inc()
		h.Log.Error("exit all failed", xlogger.Error(err))
		appErr := xhttp.UpstreamError("ERR_EXIT_FAILED", "exit order failed", err)
		if ev != nil {
			appErr.WithParam("event_id", ev.ID)
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
}

func (h *OracleEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, checks)
	}
	return xhttp.SuccessResponse(c, checks)
}

func rateLimited() *xhttp.AppError {
	return xhttp.RateLimitedError("too many commands")
}

package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"tradesim/internal/app"
	"tradesim/internal/domain"
	"tradesim/internal/ports"
	"tradesim/internal/risk"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/analytics"
)

// Simulations is the run registry the handler drives.
type Simulations interface {
	Start(ctx context.Context, params app.StartParams) (app.RunHandle, error)
	Stop(ctx context.Context, h app.RunHandle) (app.Status, error)
	Status(h app.RunHandle) (app.Status, error)
	Report(h app.RunHandle) (*domain.PerformanceReport, error)
	CurrentSignals() (domain.Evaluation, error)
	StoredReport(ctx context.Context, runID string, initialCash float64, opts analytics.Options) (*domain.PerformanceReport, error)
	Trades(ctx context.Context) ([]domain.Trade, error)
	Equity(ctx context.Context) ([]domain.EquitySnapshot, error)
	Clear(ctx context.Context) error
}

// StartRequest starts a run. Omitted fields keep the server's configured values.
type StartRequest struct {
	Symbol        string  `json:"symbol" default:"AAPL" validate:"required,max=20"`
	Interval      string  `json:"interval" default:"1m" validate:"required"`
	Period        string  `json:"period" default:"1d" validate:"required"`
	InitialCash   float64 `json:"initial_cash" default:"100000" validate:"gt=0"`
	MaxIterations int     `json:"max_iterations" validate:"gte=0"`
	PollInterval  string  `json:"poll_interval" default:"1m"`
	ShortWindow   int     `json:"short_window" default:"5" validate:"gt=0,ltfield=LongWindow"`
	LongWindow    int     `json:"long_window" default:"20" validate:"gt=0"`
	RSIWindow     int     `json:"rsi_window" default:"14" validate:"gt=0"`
	SignalMode    string  `json:"signal_mode" default:"crossover" validate:"oneof=crossover confirmed"`
	SizingMode    string  `json:"sizing_mode" default:"all_in" validate:"oneof=all_in risk"`
	StopLoss      float64 `json:"stop_loss" validate:"gte=0,lt=1"`
	ProfitTarget  float64 `json:"profit_target" validate:"gte=0"`
	Commission    float64 `json:"commission" validate:"gte=0,lt=1"`
}

// StartResponse identifies the started run.
type StartResponse struct {
	RunID  string     `json:"run_id"`
	Status app.Status `json:"status"`
}

// Handler serves the simulation control API.
type Handler struct {
	sims   Simulations
	base   app.StartParams
	logger ports.Logger
}

// NewHandler creates the handler. base supplies every start parameter a request leaves out.
func NewHandler(sims Simulations, base app.StartParams, logger ports.Logger) *Handler {
	return &Handler{sims: sims, base: base, logger: logger}
}

// RegisterRoutes mounts the API on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/simulations", h.Start)
	g.POST("/simulations/:id/stop", h.Stop)
	g.GET("/simulations/:id", h.Status)
	g.GET("/simulations/:id/report", h.Report)
	g.GET("/signals", h.Signals)
	g.GET("/report", h.StoredReport)
	g.GET("/trades", h.Trades)
	g.GET("/equity", h.Equity)
	g.DELETE("/history", h.Clear)
}

func (h *Handler) Health(c echo.Context) error {
	return successResponse(c, map[string]string{"status": "ok"})
}

func (h *Handler) newStartRequest() *StartRequest {
	b := h.base
	return &StartRequest{
		Symbol:        b.Runner.Symbol,
		Interval:      b.Runner.Interval,
		Period:        b.Runner.Period,
		InitialCash:   b.Runner.InitialCash,
		MaxIterations: b.Runner.MaxIterations,
		PollInterval:  b.Runner.PollInterval.String(),
		ShortWindow:   b.Strategy.ShortTermMAPeriod,
		LongWindow:    b.Strategy.LongTermMAPeriod,
		RSIWindow:     b.Strategy.RSIPeriod,
		SignalMode:    string(b.Strategy.Mode),
		SizingMode:    string(b.Risk.SizingMode),
		StopLoss:      b.Risk.StopLossPercent,
		ProfitTarget:  b.Risk.ProfitTargetPercent,
		Commission:    b.Risk.CommissionRate,
	}
}

func (h *Handler) toStartParams(req *StartRequest) (app.StartParams, error) {
	poll, err := time.ParseDuration(req.PollInterval)
	if err != nil || poll < 0 {
		return app.StartParams{}, BadRequestErrorf("poll_interval %q is not a valid duration", req.PollInterval)
	}

	p := h.base
	p.Runner.Symbol = req.Symbol
	p.Runner.Interval = req.Interval
	p.Runner.Period = req.Period
	p.Runner.InitialCash = req.InitialCash
	p.Runner.MaxIterations = req.MaxIterations
	p.Runner.PollInterval = poll
	p.Strategy.ShortTermMAPeriod = req.ShortWindow
	p.Strategy.LongTermMAPeriod = req.LongWindow
	p.Strategy.RSIPeriod = req.RSIWindow
	p.Strategy.Mode = strategy.SignalMode(req.SignalMode)
	p.Risk.SizingMode = risk.SizingMode(req.SizingMode)
	p.Risk.StopLossPercent = req.StopLoss
	p.Risk.ProfitTargetPercent = req.ProfitTarget
	p.Risk.CommissionRate = req.Commission
	return p, nil
}

func (h *Handler) Start(c echo.Context) error {
	req := h.newStartRequest()
	if verr := readAndValidate(c, req); verr != nil {
		return badRequestResponse(c, verr)
	}
	params, err := h.toStartParams(req)
	if err != nil {
		return appErrorResponse(c, err)
	}

	ctx := c.Request().Context()
	handle, err := h.sims.Start(ctx, params)
	if err != nil {
		h.logger.Warn(ctx, "Simulation start rejected", map[string]interface{}{"error": err.Error()})
		return appErrorResponse(c, err)
	}
	st, err := h.sims.Status(handle)
	if err != nil {
		return appErrorResponse(c, err)
	}
	return createdResponse(c, StartResponse{RunID: string(handle), Status: st})
}

func (h *Handler) Stop(c echo.Context) error {
	st, err := h.sims.Stop(c.Request().Context(), app.RunHandle(c.Param("id")))
	if err != nil {
		return appErrorResponse(c, err)
	}
	return successResponse(c, st)
}

func (h *Handler) Status(c echo.Context) error {
	st, err := h.sims.Status(app.RunHandle(c.Param("id")))
	if err != nil {
		return appErrorResponse(c, err)
	}
	return successResponse(c, st)
}

func (h *Handler) Report(c echo.Context) error {
	report, err := h.sims.Report(app.RunHandle(c.Param("id")))
	if err != nil {
		return appErrorResponse(c, err)
	}
	return successResponse(c, report)
}

func (h *Handler) Signals(c echo.Context) error {
	eval, err := h.sims.CurrentSignals()
	if err != nil {
		return appErrorResponse(c, err)
	}
	return successResponse(c, eval)
}

// StoredReport analyzes one stored run, the latest unless run_id is given. initial_cash may be
// passed as a query parameter.
func (h *Handler) StoredReport(c echo.Context) error {
	var initialCash float64
	if v := c.QueryParam("initial_cash"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			return appErrorResponse(c, BadRequestErrorf("initial_cash must be a positive number"))
		}
		initialCash = parsed
	}

	report, err := h.sims.StoredReport(c.Request().Context(), c.QueryParam("run_id"), initialCash, analytics.Options{PeriodsPerYear: h.base.Runner.PeriodsPerYear})
	if err != nil {
		h.logger.Error(c.Request().Context(), err, "Failed to build stored report")
		return appErrorResponse(c, err)
	}
	return successResponse(c, report)
}

func (h *Handler) Trades(c echo.Context) error {
	trades, err := h.sims.Trades(c.Request().Context())
	if err != nil {
		h.logger.Error(c.Request().Context(), err, "Failed to load trades")
		return appErrorResponse(c, err)
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	return listResponse(c, trades, len(trades))
}

func (h *Handler) Equity(c echo.Context) error {
	equity, err := h.sims.Equity(c.Request().Context())
	if err != nil {
		h.logger.Error(c.Request().Context(), err, "Failed to load equity curve")
		return appErrorResponse(c, err)
	}
	if equity == nil {
		equity = []domain.EquitySnapshot{}
	}
	return listResponse(c, equity, len(equity))
}

func (h *Handler) Clear(c echo.Context) error {
	if err := h.sims.Clear(c.Request().Context()); err != nil {
		return appErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

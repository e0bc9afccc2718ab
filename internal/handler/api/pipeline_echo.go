package api

import (
	"encoding/json"
	"fmt"
	"time"

	models "PairScan/internal/domain/models"
	domrepo "PairScan/internal/domain/repository"
	"PairScan/internal/plugin"
	icache "PairScan/internal/service/cache"
	"PairScan/internal/usecase"
	xhttp "PairScan/pkg/http"
	xlogger "PairScan/pkg/logger"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// PipelineHandler exposes the pipeline state over HTTP: cycle status, the
// latest filter report, stored candles and consensus signals, plus a verdict
// intake for indicator producers that do not publish via the broker.
type PipelineHandler struct {
	logger   *xlogger.Logger
	orch     *plugin.Orchestrator
	candles  *usecase.CandlesUseCase
	signals  *usecase.SignalsUseCase
	registry *usecase.VerdictRegistry
	reports  domrepo.ReportStore
	store    domrepo.CandleStore

	cache   icache.BytesCache
	limiter *rate.Limiter
}

func NewPipelineHandler(
	logger *xlogger.Logger,
	orch *plugin.Orchestrator,
	candles *usecase.CandlesUseCase,
	signals *usecase.SignalsUseCase,
	registry *usecase.VerdictRegistry,
	reports domrepo.ReportStore,
	store domrepo.CandleStore,
) *PipelineHandler {
	return &PipelineHandler{
		logger:   logger,
		orch:     orch,
		candles:  candles,
		signals:  signals,
		registry: registry,
		reports:  reports,
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(20), 40),
	}
}

// SetCache injects a response cache for the report endpoint.
func (h *PipelineHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *PipelineHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/report", h.Report)
	g.GET("/candles", h.Candles)
	g.GET("/signals", h.Signal)
	g.POST("/verdicts", h.Verdict)
}

func (h *PipelineHandler) Health(c echo.Context) error {
	if h.store != nil {
		if err := h.store.Health(c.Request().Context()); err != nil {
			h.logger.Error("storage health failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_STORAGE", "", "storage unavailable", 503))
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *PipelineHandler) Status(c echo.Context) error {
	cy, status := h.orch.LastCycle()
	resp := map[string]interface{}{
		"status": string(status),
	}
	if cy != nil {
		resp["cycle"] = cy.Seq
		resp["started_at"] = cy.StartedAt
		resp["approved"] = len(cy.ApprovedInstruments())
		if data := cy.CandleData(); data != nil {
			resp["acquired"] = len(data.PerInstrument)
			resp["rotation_complete"] = data.AllBatchesComplete
		}
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *PipelineHandler) Report(c echo.Context) error {
	if !h.limiter.Allow() {
		return xhttp.DataResponse(c, 429, "rate limited")
	}
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cacheKey := fmt.Sprintf("report:%d", req.Limit)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("report cache get failed", xlogger.Error(err))
		} else if ok {
			return c.JSONBlob(200, b)
		}
	}

	report, err := h.reports.LatestReport(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("report query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if h.cache != nil {
		if b, err := json.Marshal(xhttp.APIResponse{Status: 200, Message: "OK", Data: report}); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, 30*time.Second); err != nil {
				h.logger.Warn("report cache set failed", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *PipelineHandler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Instrument: req.Instrument,
		Timeframe:  tf,
		Limit:      req.Limit,
		From:       xhttp.ParseTimeDefault(req.From, time.Time{}),
	})
	if err != nil {
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineHandler) Signal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.signals.Evaluate(req.Instrument))
}

func (h *PipelineHandler) Verdict(c echo.Context) error {
	req := &models.VerdictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.registry.Record(req.Instrument, req.Indicator, models.Verdict{Long: req.Long, Short: req.Short}) {
		return xhttp.BadRequestResponse(c, fmt.Sprintf("unknown indicator: %s", req.Indicator))
	}
	return xhttp.NoContentResponse(c)
}

package api

import (
	"errors"
	"net/http"
	"time"

	"DeepInfo/internal/domain/models"
	domrepo "DeepInfo/internal/domain/repository"
	"DeepInfo/internal/service/metrics"
	"DeepInfo/internal/service/ratelimit"
	"DeepInfo/internal/usecase"
	xhttp "DeepInfo/pkg/http"
	xlogger "DeepInfo/pkg/logger"
	"DeepInfo/pkg/util"

	"github.com/labstack/echo/v4"
)

// ChartEchoHandler serves chart sessions, stateless chart renders and pair pages.
type ChartEchoHandler struct {
	logger *xlogger.Logger
	charts *usecase.ChartService
	pages  *usecase.PageUseCase
	rl     *ratelimit.Limiter
}

func NewChartEchoHandler(logger *xlogger.Logger, charts *usecase.ChartService, pages *usecase.PageUseCase, rl *ratelimit.Limiter) *ChartEchoHandler {
	metrics.Register()
	return &ChartEchoHandler{logger: logger, charts: charts, pages: pages, rl: rl}
}

func (h *ChartEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/resolutions", h.Resolutions)
	g.GET("/chart/:quote/:base", h.Chart)

	s := g.Group("/sessions")
	if h.rl != nil {
		s.Use(limitMutations(h.rl))
	}
	s.POST("", h.Mount)
	s.GET("/:id", h.Render)
	s.DELETE("/:id", h.Unmount)
	s.PUT("/:id/start", h.SetStart)
	s.PUT("/:id/end", h.SetEnd)
	s.PUT("/:id/resolution", h.SetResolution)
	s.POST("/:id/legend/toggle", h.Toggle)
	s.POST("/:id/legend/hover", h.Hover)
	s.POST("/:id/legend/leave", h.Leave)
	s.GET("/:id/stream", h.Stream)

	e.GET("/pages/:quote/:base", h.Page)
	e.GET("/pages/:quote/:base/:view", h.Page)
}

func (h *ChartEchoHandler) Resolutions(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"default":     domrepo.DefaultResolutionValue,
		"resolutions": domrepo.Resolutions(),
	})
}

// Chart renders one window without creating a session.
func (h *ChartEchoHandler) Chart(c echo.Context) error {
	defer h.observe(c, "chart", time.Now())
	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	base, quote := util.NormalizeSymbol(req.Base), util.NormalizeSymbol(req.Quote)
	p := h.charts.DefaultParams(base, quote)
	p.Resolution = req.Resolution
	if req.Start != "" {
		t, ok := util.ParseTime(req.Start)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid start %q", req.Start))
		}
		p.StartTime = t.Unix()
	}
	if req.End != "" {
		t, ok := util.ParseTime(req.End)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid end %q", req.End))
		}
		p.EndTime = t.Unix()
	}

	frame, _, err := h.charts.Chart(c.Request().Context(), p)
	if err != nil {
		h.logger.Error("chart usecase error",
			xlogger.String("base", base),
			xlogger.String("quote", quote),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, frame)
}

func (h *ChartEchoHandler) Mount(c echo.Context) error {
	defer h.observe(c, "mount", time.Now())
	req := &models.MountRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	frame, err := h.charts.Mount(util.NormalizeSymbol(req.Base), util.NormalizeSymbol(req.Quote))
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.CreatedResponse(c, frame)
}

func (h *ChartEchoHandler) Render(c echo.Context) error {
	defer h.observe(c, "render", time.Now())
	frame, err := h.charts.Render(c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, frame)
}

func (h *ChartEchoHandler) Unmount(c echo.Context) error {
	defer h.observe(c, "unmount", time.Now())
	if err := h.charts.Unmount(c.Param("id")); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *ChartEchoHandler) SetStart(c echo.Context) error {
	return h.timeEdit(c, "start", h.charts.SetStartTime)
}

func (h *ChartEchoHandler) SetEnd(c echo.Context) error {
	return h.timeEdit(c, "end", h.charts.SetEndTime)
}

func (h *ChartEchoHandler) SetResolution(c echo.Context) error {
	defer h.observe(c, "resolution", time.Now())
	req := &models.ResolutionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	frame, err := h.charts.SetResolution(req.ID, req.Value)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, frame)
}

func (h *ChartEchoHandler) Toggle(c echo.Context) error {
	return h.legend(c, "toggle", true, func(id, key string) (models.ChartFrame, error) { return h.charts.Toggle(id, key) })
}

func (h *ChartEchoHandler) Hover(c echo.Context) error {
	return h.legend(c, "hover", true, func(id, key string) (models.ChartFrame, error) { return h.charts.Hover(id, key) })
}

func (h *ChartEchoHandler) Leave(c echo.Context) error {
	return h.legend(c, "leave", false, func(id, _ string) (models.ChartFrame, error) { return h.charts.Leave(id) })
}

// Page returns the tab navigation of a pair page and the content of the mounted view.
func (h *ChartEchoHandler) Page(c echo.Context) error {
	defer h.observe(c, "page", time.Now())
	req := &models.PageRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	pathname := "/" + req.Quote + "/" + req.Base
	if req.View != "" {
		pathname += "/" + req.View
	}
	page, err := h.pages.Page(c.Request().Context(), req.Quote, req.Base, pathname, c.QueryString())
	if err != nil {
		h.logger.Error("page usecase error", xlogger.String("path", pathname), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, page)
}

func (h *ChartEchoHandler) timeEdit(c echo.Context, endpoint string, fn func(string, int64) (models.ChartFrame, error)) error {
	defer h.observe(c, endpoint, time.Now())
	req := &models.TimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	frame, err := fn(req.ID, req.Value)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, frame)
}

func (h *ChartEchoHandler) legend(c echo.Context, endpoint string, needKey bool, fn func(string, string) (models.ChartFrame, error)) error {
	defer h.observe(c, endpoint, time.Now())
	req := &models.LegendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if needKey && req.DataKey == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("dataKey is required"))
	}
	frame, err := fn(req.ID, req.DataKey)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, frame)
}

func (h *ChartEchoHandler) observe(c echo.Context, endpoint string, start time.Time) {
	metrics.Observe(endpoint, start, c.Response().Status >= http.StatusBadRequest)
}

func toAppError(err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, usecase.ErrSessionNotFound):
		return xhttp.NotFoundError("chart session not found").WithError(err)
	case errors.Is(err, usecase.ErrUnknownResolution),
		errors.Is(err, usecase.ErrWindowTooShort),
		errors.Is(err, usecase.ErrWindowTooLong),
		errors.Is(err, usecase.ErrInvalidPair):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.UpstreamError("failed to load chart data").WithError(err)
	}
}

func limitMutations(rl *ratelimit.Limiter) echo.MiddlewareFunc {
	limited := ratelimit.Middleware(rl)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := limited(next)
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodGet {
				return next(c)
			}
			return guarded(c)
		}
	}
}

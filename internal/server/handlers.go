package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aryannaik/pitch-finder/internal/event"
	"github.com/aryannaik/pitch-finder/internal/parser"
	"github.com/aryannaik/pitch-finder/internal/search"
	"github.com/aryannaik/pitch-finder/internal/vectordb"
)

// Backend is the part of the pipeline the API needs.
type Backend interface {
	Search(ctx context.Context, q event.Query) ([]event.Ranked, error)
	Retrieve(ctx context.Context, q event.Query) ([]event.Ranked, error)
	Get(ctx context.Context, id string) (*event.Event, error)
	FindSimilar(ctx context.Context, id string, limit int) ([]vectordb.Result, error)
	Parse(res parser.SearchResult) parser.Decision
	Count(ctx context.Context) (int, error)
	Prune(ctx context.Context) (int, error)
}

// HealthCheck reports whether the embedding backend is reachable. May be nil.
type HealthCheck func(ctx context.Context) bool

type Handlers struct {
	backend Backend
	health  HealthCheck
	logger  *slog.Logger
}

func NewHandlers(backend Backend, health HealthCheck, logger *slog.Logger) *Handlers {
	return &Handlers{
		backend: backend,
		health:  health,
		logger:  logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type searchResponse struct {
	Query   event.Query    `json:"query"`
	Results []event.Ranked `json:"results"`
	Total   int            `json:"total"`
}

func (h *Handlers) HandleSearch(c echo.Context) error {
	q, err := queryFromParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{err.Error()})
	}
	return h.runSearch(c, q)
}

func (h *Handlers) HandleSearchJSON(c echo.Context) error {
	var q event.Query
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{"invalid request body"})
	}
	return h.runSearch(c, q)
}

func (h *Handlers) runSearch(c echo.Context, q event.Query) error {
	if err := q.Normalize(); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{err.Error()})
	}

	results, err := h.backend.Search(c.Request().Context(), q)
	if errors.Is(err, search.ErrNoWebSearch) {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{err.Error()})
	}
	if err != nil {
		h.logger.Error("search failed", "intent", q.Intent, "error", err)
		return c.JSON(http.StatusBadGateway, errorResponse{"search failed"})
	}

	return c.JSON(http.StatusOK, searchResponse{
		Query:   q,
		Results: results,
		Total:   len(results),
	})
}

// queryFromParams reads a query from URL parameters. Dates are YYYY-MM-DD.
func queryFromParams(c echo.Context) (event.Query, error) {
	q := event.Query{
		Intent:   c.QueryParam("q"),
		Persona:  event.Persona(c.QueryParam("persona")),
		Location: c.QueryParam("location"),
		Region:   c.QueryParam("region"),
	}
	if q.Intent == "" {
		return q, errors.New("missing query parameter 'q'")
	}
	if v := c.QueryParam("industry"); v != "" {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				q.Industry = append(q.Industry, part)
			}
		}
	}
	for name, dst := range map[string]**time.Time{"date_from": &q.DateFrom, "date_to": &q.DateTo} {
		if v := c.QueryParam(name); v != "" {
			t, err := time.Parse(time.DateOnly, v)
			if err != nil {
				return q, errors.New("invalid " + name + ", want YYYY-MM-DD")
			}
			*dst = &t
		}
	}
	if v := c.QueryParam("max_price"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p < 0 {
			return q, errors.New("invalid max_price")
		}
		q.MaxPrice = &p
	}
	q.PitchOnly, _ = strconv.ParseBool(c.QueryParam("pitch_only"))
	q.OnlineOnly, _ = strconv.ParseBool(c.QueryParam("online_only"))
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		q.MaxResults = n
	}
	return q, nil
}

func (h *Handlers) HandleEvent(c echo.Context) error {
	ev, err := h.backend.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, vectordb.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{"event not found"})
	}
	if err != nil {
		h.logger.Error("get event failed", "id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{"lookup failed"})
	}
	return c.JSON(http.StatusOK, ev)
}

func (h *Handlers) HandleSimilar(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{"missing query parameter 'id'"})
	}

	limit := 10
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		limit = n
	}

	results, err := h.backend.FindSimilar(c.Request().Context(), id, limit)
	if errors.Is(err, vectordb.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{"event not found"})
	}
	if err != nil {
		h.logger.Error("similar failed", "id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{"similar search failed"})
	}

	type similar struct {
		Event event.Event `json:"event"`
		Score float64     `json:"score"`
	}
	out := make([]similar, 0, len(results))
	for _, r := range results {
		out = append(out, similar{Event: r.Event, Score: r.Score})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"sourceId": id,
		"results":  out,
		"total":    len(out),
	})
}

func (h *Handlers) HandleParse(c echo.Context) error {
	var res parser.SearchResult
	if err := c.Bind(&res); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{"invalid request body"})
	}
	return c.JSON(http.StatusOK, h.backend.Parse(res))
}

type statusResponse struct {
	EventCount int   `json:"eventCount"`
	EmbedderOK *bool `json:"embedderOk,omitempty"`
}

func (h *Handlers) HandleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := h.backend.Count(ctx)
	if err != nil {
		h.logger.Error("count failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{"status unavailable"})
	}

	resp := statusResponse{EventCount: n}
	if h.health != nil {
		ok := h.health(ctx)
		resp.EmbedderOK = &ok
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HandlePrune(c echo.Context) error {
	n, err := h.backend.Prune(c.Request().Context())
	if err != nil {
		h.logger.Error("prune failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{"prune failed"})
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": n})
}

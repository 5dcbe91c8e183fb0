package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fogcast/fogcast/internal/api/middleware"
	"github.com/fogcast/fogcast/internal/api/response"
	"github.com/fogcast/fogcast/internal/weather"
)

// ProvenanceHeader tells clients whether forecast data is live, cached or
// the bundled fixture.
const ProvenanceHeader = middleware.ProvenanceHeader

// SelectionHeader identifies a client whose panel requests replace each other.
const SelectionHeader = middleware.SelectionHeader

// WeatherService is the data core behind the weather endpoints.
type WeatherService interface {
	GetUnifiedData(ctx context.Context, loc weather.Location, model weather.ModelSpec, useFixture bool) (*weather.UnifiedData, error)
	weather.PanelSource
}

// WeatherHandler handles the weather data endpoints.
type WeatherHandler struct {
	service   WeatherService
	selectors *weather.SelectorSet
}

// NewWeatherHandler creates a new WeatherHandler. maxSelectors bounds the
// number of tracked selection clients; zero uses the default.
func NewWeatherHandler(service WeatherService, maxSelectors int) *WeatherHandler {
	return &WeatherHandler{
		service:   service,
		selectors: weather.NewSelectorSet(service, maxSelectors),
	}
}

// GetWeather handles GET /v1/weather.
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	q, errs := parseWeatherQuery(r)
	if errs != nil {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	model, err := queryModel(q)
	if err != nil {
		response.FromError(w, r, fmt.Errorf("%w: %q", err, q.Model))
		return
	}

	data, err := h.service.GetUnifiedData(r.Context(), queryLocation(q), model, q.Fixture)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	w.Header().Set(ProvenanceHeader, string(data.Provenance))
	response.JSON(w, r, http.StatusOK, data)
}

// GetPanel handles GET /v1/weather/panels/{panel}. Requests that carry an
// X-Selection-Id are answered 409 once a newer request of the same client
// has started.
func (h *WeatherHandler) GetPanel(w http.ResponseWriter, r *http.Request) {
	q, errs := parseWeatherQuery(r)
	if errs != nil {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	panel, err := weather.ParsePanel(chi.URLParam(r, "panel"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	sel := weather.Selection{
		Location:   queryLocation(q),
		ModelID:    q.Model,
		Panel:      panel,
		View:       weather.View(q.View),
		UseFixture: q.Fixture,
	}

	var view *weather.PanelView
	if id := r.Header.Get(SelectionHeader); id != "" {
		view, err = h.selectors.Get(id).Select(r.Context(), sel)
	} else {
		view, err = h.service.Panel(r.Context(), sel)
	}
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	w.Header().Set(ProvenanceHeader, string(view.Provenance))
	response.JSON(w, r, http.StatusOK, view)
}

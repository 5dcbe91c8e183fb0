package handler

import (
	"net/http"

	"github.com/fogcast/fogcast/internal/api/models"
	"github.com/fogcast/fogcast/internal/api/response"
	"github.com/fogcast/fogcast/internal/weather"
)

// MetadataHandler serves the static catalogs clients build selectors from.
type MetadataHandler struct {
	timezone string
}

// NewMetadataHandler creates a new MetadataHandler for the dashboard timezone.
func NewMetadataHandler(timezone string) *MetadataHandler {
	if timezone == "" {
		timezone = weather.DefaultTimezone
	}
	return &MetadataHandler{timezone: timezone}
}

// ListLocations handles GET /v1/metadata/locations.
func (h *MetadataHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, locationItems())
}

// ListModels handles GET /v1/metadata/models.
func (h *MetadataHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, modelItems())
}

// ListPanels handles GET /v1/metadata/panels.
func (h *MetadataHandler) ListPanels(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, panelItems())
}

// GetCatalog handles GET /v1/metadata/catalog.
func (h *MetadataHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Catalog{
		Locations: locationItems(),
		Models:    modelItems(),
		Panels:    panelItems(),
		Timezone:  h.timezone,
	})
}

func locationItems() []models.LocationItem {
	locs := weather.Locations()
	items := make([]models.LocationItem, 0, len(locs))
	for _, l := range locs {
		items = append(items, models.LocationItem{
			Name:            l.Name,
			Lat:             l.Lat,
			Lon:             l.Lon,
			HasObservations: l.SameCoordinates(weather.StationCoverage),
		})
	}
	return items
}

func modelItems() []models.ModelItem {
	specs := weather.Models()
	items := make([]models.ModelItem, 0, len(specs))
	for _, m := range specs {
		items = append(items, models.ModelItem{
			ID:        m.ID,
			Label:     m.Label,
			ModelName: m.ModelName,
			Kind:      string(m.Kind),
			Default:   m.ID == weather.DefaultModelID,
		})
	}
	return items
}

func panelItems() []models.PanelItem {
	views := []string{
		string(weather.View1Day),
		string(weather.View2Days),
		string(weather.View5Days),
		string(weather.ViewAll),
	}
	items := make([]models.PanelItem, 0, len(weather.Panels()))
	for _, p := range weather.Panels() {
		item := models.PanelItem{ID: string(p)}
		// Actuals cover today only and have no selectable range.
		if p != weather.PanelActuals {
			item.Views = views
		}
		items = append(items, item)
	}
	return items
}

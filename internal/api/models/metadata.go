package models

// LocationItem is a catalog location.
type LocationItem struct {
	Name            string  `json:"name"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	HasObservations bool    `json:"hasObservations"`
}

// ModelItem is a forecast model the dashboard offers.
type ModelItem struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	ModelName string `json:"modelName"`
	Kind      string `json:"kind"`
	Default   bool   `json:"default,omitempty"`
}

// PanelItem describes a dashboard panel.
type PanelItem struct {
	ID    string   `json:"id"`
	Views []string `json:"views,omitempty"`
}

// Catalog lists everything a client needs to build its selectors.
type Catalog struct {
	Locations []LocationItem `json:"locations"`
	Models    []ModelItem    `json:"models"`
	Panels    []PanelItem    `json:"panels"`
	Timezone  string         `json:"timezone"`
}

package weather

// Hourly variables requested from the forecast vendor.
var (
	ensembleVariables = []string{
		"temperature_2m",
		"relative_humidity_2m",
		"precipitation",
		"cloud_cover",
		"weather_code",
		"uv_index",
		"uv_index_clear_sky",
		"wind_speed_10m",
		"wind_direction_10m",
		"wind_gusts_10m",
	}

	deterministicVariables = []string{
		"temperature_2m",
		"relative_humidity_2m",
		"dew_point_2m",
		"precipitation",
		"precipitation_probability",
		"cloud_cover",
		"cloud_cover_low",
		"cloud_cover_mid",
		"cloud_cover_high",
		"visibility",
		"sunshine_duration",
		"weather_code",
		"uv_index",
		"uv_index_clear_sky",
		"wind_speed_10m",
		"wind_direction_10m",
		"wind_gusts_10m",
	}

	// DailyVariables are only requested for deterministic models.
	DailyVariables = []string{"sunrise", "sunset"}
)

// StationCoverage is the only location served by the station feed.
var StationCoverage = Location{Lat: 47.6952, Lon: 9.1307, Name: "Konstanz"}

var locations = []Location{
	StationCoverage,
	{Lat: 47.1549, Lon: 9.3128, Name: "Chäserrugg"},
	{Lat: 47.2033, Lon: 9.3505, Name: "Wildhaus"},
	{Lat: 47.3769, Lon: 8.5417, Name: "Zurich"},
	{Lat: 60.2055, Lon: 24.6559, Name: "Espoo"},
	{Lat: 48.1577, Lon: 8.4876, Name: "Fischbach"},
}

var models = []ModelSpec{
	{ID: "bestmatch", Label: "Best Match", ModelName: "best_match", Kind: KindDeterministic},
	{ID: "icon_d2_det", Label: "ICON D2 48h", ModelName: "icon_d2", Kind: KindDeterministic},
	{ID: "icon_seamless_det", Label: "ICON Seamless", ModelName: "icon_seamless", Kind: KindDeterministic},
	{ID: "meteoswiss_icon_ch1", Label: "ICON CH1", ModelName: "meteoswiss_icon_ch1", Kind: KindDeterministic},
	{ID: "meteoswiss_icon_ch2", Label: "ICON CH2", ModelName: "meteoswiss_icon_ch2", Kind: KindDeterministic},
	{ID: "arpege_europe_det", Label: "ARPEGE Europe", ModelName: "arpege_europe", Kind: KindDeterministic},
	{ID: "arome_france_det", Label: "AROME France", ModelName: "arome_france", Kind: KindDeterministic},
	{ID: "knmi_harmonie_arome_europe_det", Label: "KNMI Harmonie AROME Europe", ModelName: "knmi_harmonie_arome_europe", Kind: KindDeterministic},
	{ID: "dmi_harmonie_arome_europe_det", Label: "DMI Harmonie AROME Europe", ModelName: "dmi_harmonie_arome_europe", Kind: KindDeterministic},
	{ID: "icon_d2_ensemble", Label: "ICON EPS D2", ModelName: "icon_d2", Kind: KindEnsemble},
	{ID: "icon_eu_ensemble", Label: "ICON EPS EU", ModelName: "icon_eu", Kind: KindEnsemble},
	{ID: "meteoswiss_icon_ch1_ensemble", Label: "ICON CH1 EPS", ModelName: "meteoswiss_icon_ch1", Kind: KindEnsemble},
	{ID: "meteoswiss_icon_ch2_ensemble", Label: "ICON CH2 EPS", ModelName: "meteoswiss_icon_ch2", Kind: KindEnsemble},
	{ID: "ecmwf_ensemble_1", Label: "ECMWF EPS", ModelName: "ecmwf_ifs025", Kind: KindEnsemble},
	{ID: "gfs025", Label: "GFS Ensemble", ModelName: "gfs025", Kind: KindEnsemble},
}

// DefaultModelID is used when a selection names no model.
const DefaultModelID = "bestmatch"

// Locations returns the preset locations.
func Locations() []Location {
	return append([]Location(nil), locations...)
}

// Models returns the model catalog.
func Models() []ModelSpec {
	return append([]ModelSpec(nil), models...)
}

// FindModel looks up a catalog entry by id.
func FindModel(id string) (ModelSpec, error) {
	for _, m := range models {
		if m.ID == id {
			return m, nil
		}
	}
	return ModelSpec{}, ErrUnknownModel
}

// FindLocation looks up a preset location by name.
func FindLocation(name string) (Location, bool) {
	for _, l := range locations {
		if l.Name == name {
			return l, true
		}
	}
	return Location{}, false
}

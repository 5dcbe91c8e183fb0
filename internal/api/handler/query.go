package handler

import (
	"errors"
	"math"
	"net/http"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/fogcast/fogcast/internal/api/models"
	"github.com/fogcast/fogcast/internal/weather"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// parseWeatherQuery reads and validates the weather query parameters.
func parseWeatherQuery(r *http.Request) (models.WeatherQuery, []models.FieldError) {
	values := r.URL.Query()
	var (
		q    models.WeatherQuery
		errs []models.FieldError
	)

	parseCoordinate := func(key string) *float64 {
		raw := values.Get(key)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, models.FieldError{Field: key, Message: "must be a number", Code: "number"})
			return nil
		}
		return &v
	}
	q.Lat = parseCoordinate("lat")
	q.Lon = parseCoordinate("lon")
	q.Name = values.Get("name")
	q.Model = values.Get("model")
	q.View = values.Get("view")

	if raw := values.Get("fixture"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, models.FieldError{Field: "fixture", Message: "must be a boolean", Code: "boolean"})
		}
		q.Fixture = b
	}
	if len(errs) > 0 {
		return q, errs
	}

	if err := validate.Struct(q); err != nil {
		return q, fieldErrors(err)
	}
	return q, nil
}

func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Field: "query", Message: err.Error()}}
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// queryLocation resolves the query point. Coordinates matching a preset
// select that preset; any other point is a custom pick.
func queryLocation(q models.WeatherQuery) weather.Location {
	loc := weather.CustomLocation(*q.Lat, *q.Lon)
	for _, preset := range weather.Locations() {
		if preset.SameCoordinates(loc) {
			return preset
		}
	}
	if q.Name != "" {
		loc.Name = q.Name
	}
	return loc
}

func queryModel(q models.WeatherQuery) (weather.ModelSpec, error) {
	if q.Model == "" {
		return weather.FindModel(weather.DefaultModelID)
	}
	return weather.FindModel(q.Model)
}

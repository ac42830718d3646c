package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/util"
	"github.com/bwise1/lookaround/util/tracing"
	"github.com/bwise1/lookaround/util/values"
	"github.com/go-chi/chi/v5"
)

// PlacesRoutes exposes the configured provider without touching any session. Nothing is
// stored.
func (api *API) PlacesRoutes() chi.Router {
	mux := chi.NewRouter()

	// Query Params: ?text=...&lat=...&lon=...&lat_delta=...&lon_delta=... (bias optional)
	mux.Method(http.MethodGet, "/search", Handler(api.SearchPlacesHandler))
	// Query Params: ?lat=...&lon=...
	mux.Method(http.MethodGet, "/reverse", Handler(api.ReverseGeocodeHandler))
	return mux
}

func parseFloats(q map[string][]string, keys ...string) ([]float64, error) {
	out := make([]float64, 0, len(keys))
	for _, k := range keys {
		raw := ""
		if v := q[k]; len(v) > 0 {
			raw = v[0]
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("invalid '" + k + "' parameter")
		}
		out = append(out, f)
	}
	return out, nil
}

func (api *API) SearchPlacesHandler(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)
	queryParams := r.URL.Query()

	text := strings.TrimSpace(queryParams.Get("text"))
	if text == "" {
		return respondWithError(nil, "Missing or empty 'text' query parameter", values.BadRequestBody, &tc)
	}

	var bias *model.Region
	if queryParams.Get("lat") != "" {
		f, err := parseFloats(queryParams, "lat", "lon", "lat_delta", "lon_delta")
		if err != nil {
			return respondWithError(err, err.Error(), values.BadRequestBody, &tc)
		}
		region := model.Region{
			Center: model.Coordinate{Latitude: f[0], Longitude: f[1]},
			Span:   model.Span{LatitudeDelta: f[2], LongitudeDelta: f[3]},
		}
		if err := region.Validate(); err != nil {
			return respondWithError(err, "Invalid bias region", values.BadRequestBody, &tc)
		}
		bias = &region
	}

	results, err := api.Deps.Search.Provider().Search(r.Context(), text, bias)
	if err != nil {
		if strings.Contains(err.Error(), "429") {
			return respondWithError(err, "Rate limit exceeded", values.SystemErr, &tc)
		}
		return respondWithError(err, "Failed to search places", values.SystemErr, &tc)
	}
	if results == nil {
		results = []model.Place{}
	}

	return &ServerResponse{
		Message:    "Places searched successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       results,
	}
}

func (api *API) ReverseGeocodeHandler(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	if api.Deps.Reverse == nil {
		return respondWithError(nil, "Reverse geocoding is not configured", values.Unprocessable, &tc)
	}

	f, err := parseFloats(r.URL.Query(), "lat", "lon")
	if err != nil {
		return respondWithError(err, err.Error(), values.BadRequestBody, &tc)
	}
	coord := model.Coordinate{Latitude: f[0], Longitude: f[1]}
	if err := util.ValidateStruct(coord); err != nil {
		return respondWithError(err, util.ValidationMessage(err), values.BadRequestBody, &tc)
	}

	place, err := api.Deps.Reverse.Reverse(r.Context(), coord)
	if err != nil {
		return respondWithError(err, "Failed to reverse geocode", values.SystemErr, &tc)
	}
	if place == nil {
		return respondWithError(nil, "No place found", values.NotFound, &tc)
	}

	return &ServerResponse{
		Message:    "Reverse geocoding successful",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       place,
	}
}

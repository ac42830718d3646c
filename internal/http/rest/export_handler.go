package rest

import (
	"encoding/json"
	"net/http"

	"github.com/bwise1/lookaround/util"
	"github.com/bwise1/lookaround/util/tracing"
	"github.com/bwise1/lookaround/util/values"
)

// ExportGeoJSON writes the bare FeatureCollection so GIS tools can load the response
// directly.
func (api *API) ExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := destinationID(r)
	if err != nil {
		writeErrorResponse(w, err, values.BadRequestBody, "invalid destination id")
		return
	}

	doc, err := api.Deps.Exporter.GeoJSON(r.Context(), id)
	if err != nil {
		resp := respondWithError(err, "failed to export destination", errorStatus(err), &tc)
		writeErrorResponse(w, err, resp.Status, resp.Message)
		return
	}

	body, err := json.Marshal(doc)
	if err != nil {
		writeErrorResponse(w, err, values.Error, "unable to encode geojson")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type ExportResponse struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (api *API) UploadExport(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := destinationID(r)
	if err != nil {
		return respondWithError(err, "invalid destination id", values.BadRequestBody, &tc)
	}

	key, err := api.Deps.Exporter.Upload(r.Context(), id)
	if err != nil {
		return respondWithError(err, "failed to upload export", errorStatus(err), &tc)
	}

	return &ServerResponse{
		Message:    "Destination exported successfully",
		Status:     values.Created,
		StatusCode: util.StatusCode(values.Created),
		Data:       ExportResponse{Bucket: api.Config.MinioBucket, Key: key},
	}
}

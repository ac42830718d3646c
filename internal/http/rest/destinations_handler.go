package rest

import (
	"net/http"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/session"
	"github.com/bwise1/lookaround/util"
	"github.com/bwise1/lookaround/util/tracing"
	"github.com/bwise1/lookaround/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (api *API) DestinationRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Method(http.MethodGet, "/", Handler(api.ListDestinations))
	mux.Method(http.MethodPost, "/", Handler(api.CreateDestination))
	mux.Method(http.MethodGet, "/{id}", Handler(api.GetDestination))
	mux.Method(http.MethodDelete, "/{id}", Handler(api.DeleteDestination))
	mux.Method(http.MethodGet, "/{id}/geojson", http.HandlerFunc(api.ExportGeoJSON))
	mux.Method(http.MethodPost, "/{id}/export", Handler(api.UploadExport))
	mux.Method(http.MethodPost, "/{id}/sessions", Handler(api.StartSession))
	return mux
}

type CreateDestinationResponse struct {
	Destination model.DestinationResponse `json:"destination"`
	Session     *session.Snapshot         `json:"session,omitempty"`
}

func destinationID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (api *API) ListDestinations(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	list, err := api.Deps.Destinations.List(r.Context())
	if err != nil {
		return respondWithError(err, "failed to list destinations", values.Error, &tc)
	}
	if list == nil {
		list = []model.DestinationSummary{}
	}

	return &ServerResponse{
		Message:    "Destinations fetched successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       list,
	}
}

func (api *API) CreateDestination(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	var req model.CreateDestinationRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, util.ValidationMessage(err), values.BadRequestBody, &tc)
	}

	d, s, err := api.Deps.Destinations.Create(r.Context(), req.Name)
	if err != nil {
		if d.ID == uuid.Nil {
			return respondWithError(err, "failed to create destination", errorStatus(err), &tc)
		}
		// the destination exists even though its session could not start
		api.Log.WithError(err).WithField("destination_id", d.ID).Warn("session did not start")
	}

	resp := CreateDestinationResponse{Destination: model.NewDestinationResponse(d)}
	if s != nil {
		snap := s.Snapshot()
		resp.Session = &snap
	}

	return &ServerResponse{
		Message:    "Destination created successfully",
		Status:     values.Created,
		StatusCode: util.StatusCode(values.Created),
		Data:       resp,
	}
}

func (api *API) GetDestination(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := destinationID(r)
	if err != nil {
		return respondWithError(err, "invalid destination id", values.BadRequestBody, &tc)
	}

	d, err := api.Deps.Destinations.Get(r.Context(), id)
	if err != nil {
		return respondWithError(err, "failed to fetch destination", errorStatus(err), &tc)
	}

	return &ServerResponse{
		Message:    "Destination fetched successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       model.NewDestinationResponse(d),
	}
}

func (api *API) DeleteDestination(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := destinationID(r)
	if err != nil {
		return respondWithError(err, "invalid destination id", values.BadRequestBody, &tc)
	}

	if err := api.Deps.Destinations.Delete(r.Context(), id); err != nil {
		return respondWithError(err, "failed to delete destination", errorStatus(err), &tc)
	}

	return &ServerResponse{
		Message:    "Destination deleted successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
	}
}

func (api *API) StartSession(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := destinationID(r)
	if err != nil {
		return respondWithError(err, "invalid destination id", values.BadRequestBody, &tc)
	}

	s, err := api.Deps.Sessions.Start(r.Context(), id)
	if err != nil {
		return respondWithError(err, "failed to start session", errorStatus(err), &tc)
	}

	return &ServerResponse{
		Message:    "Session started successfully",
		Status:     values.Created,
		StatusCode: util.StatusCode(values.Created),
		Data:       s.Snapshot(),
	}
}

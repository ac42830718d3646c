package rest

import (
	"net/http"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/bwise1/lookaround/internal/session"
	"github.com/bwise1/lookaround/util"
	"github.com/bwise1/lookaround/util/tracing"
	"github.com/bwise1/lookaround/util/values"
	"github.com/bwise1/lookaround/util/websockets"
	"github.com/go-chi/chi/v5"
)

func (api *API) SessionRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Route("/{sid}", func(r chi.Router) {
		r.Method(http.MethodGet, "/", Handler(api.GetSession))
		r.Method(http.MethodDelete, "/", Handler(api.EndSession))
		r.Method(http.MethodPost, "/focus", Handler(api.FocusSearch))
		r.Method(http.MethodPost, "/search", Handler(api.SubmitSearch))
		r.Method(http.MethodDelete, "/search", Handler(api.ClearSearch))
		r.Method(http.MethodPost, "/placement", Handler(api.TogglePlacement))
		r.Method(http.MethodPost, "/taps", Handler(api.Tap))
		r.Method(http.MethodPut, "/camera", Handler(api.CameraChanged))
		r.Method(http.MethodPost, "/region", Handler(api.SetRegion))
		r.Method(http.MethodPost, "/selection", Handler(api.Select))
		r.Method(http.MethodDelete, "/selection", Handler(api.Dismiss))
		r.Method(http.MethodGet, "/detail", Handler(api.GetDetail))
		r.Method(http.MethodPatch, "/detail", Handler(api.EditDetail))
		r.Method(http.MethodPost, "/detail/commit", Handler(api.CommitDetail))
		r.Method(http.MethodPost, "/detail/membership", Handler(api.ToggleMembership))
		r.Get("/ws", api.WatchSession)
	})
	return mux
}

type SetRegionResponse struct {
	Saved bool `json:"saved"`
}

func (api *API) sessionFromRequest(r *http.Request) (*session.Session, error) {
	return api.Deps.Sessions.Get(chi.URLParam(r, "sid"))
}

// snapshotResponse answers a session action with the session's new render model.
func snapshotResponse(s *session.Session, message string) *ServerResponse {
	return &ServerResponse{
		Message:    message,
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       s.Snapshot(),
	}
}

func (api *API) GetSession(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}
	return snapshotResponse(s, "Session fetched successfully")
}

func (api *API) EndSession(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	if err := api.Deps.Sessions.End(r.Context(), chi.URLParam(r, "sid")); err != nil {
		return respondWithError(err, "failed to end session", errorStatus(err), &tc)
	}
	return &ServerResponse{
		Message:    "Session ended successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
	}
}

func (api *API) FocusSearch(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}
	if err := s.Focus(); err != nil {
		return respondWithError(err, "unable to focus search", errorStatus(err), &tc)
	}
	return snapshotResponse(s, "Search focused")
}

func (api *API) SubmitSearch(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}

	var req model.SearchRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, util.ValidationMessage(err), values.BadRequestBody, &tc)
	}

	if err := s.Submit(r.Context(), req.Query); err != nil {
		return respondWithError(err, "unable to search", errorStatus(err), &tc)
	}
	return snapshotResponse(s, "Search completed")
}

func (api *API) ClearSearch(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}
	if err := s.ClearSearch(r.Context()); err != nil {
		return respondWithError(err, "unable to clear search", errorStatus(err), &tc)
	}
	return snapshotResponse(s, "Search cleared")
}

func (api *API) TogglePlacement(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}
	if err := s.TogglePlacement(r.Context()); err != nil {
		return respondWithError(err, "unable to toggle placement", errorStatus(err), &tc)
	}
	return snapshotResponse(s, "Placement toggled")
}

func (api *API) Tap(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}

	var req model.TapRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, util.ValidationMessage(err), values.BadRequestBody, &tc)
	}

	coord := model.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if _, err := s.Tap(r.Context(), coord); err != nil {
		return respondWithError(err, "unable to place pin", errorStatus(err), &tc)
	}

	resp := snapshotResponse(s, "Pin placed")
	resp.Status = values.Created
	resp.StatusCode = util.StatusCode(values.Created)
	return resp
}

func (api *API) CameraChanged(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}

	var req model.CameraRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, util.ValidationMessage(err), values.BadRequestBody, &tc)
	}

	if err := s.CameraChanged(req.Region, req.Phase); err != nil {
		return respondWithError(err, "unable to record camera", errorStatus(err), &tc)
	}
	return &ServerResponse{
		Message:    "Camera recorded",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
	}
}

func (api *API) SetRegion(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}

	saved, err := s.SetRegion(r.Context())
	if err != nil {
		return respondWithError(err, "unable to save region", errorStatus(err), &tc)
	}

	message := "Region saved"
	if !saved {
		message = "No visible region recorded yet"
	}
	return &ServerResponse{
		Message:    message,
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       SetRegionResponse{Saved: saved},
	}
}

func (api *API) Select(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}

	var req model.SelectRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, util.ValidationMessage(err), values.BadRequestBody, &tc)
	}

	if err := s.Select(r.Context(), req.PlacemarkID); err != nil {
		return respondWithError(err, "unable to select placemark", errorStatus(err), &tc)
	}
	return snapshotResponse(s, "Placemark selected")
}

func (api *API) Dismiss(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}
	if err := s.Dismiss(r.Context()); err != nil {
		return respondWithError(err, "unable to dismiss", errorStatus(err), &tc)
	}
	return snapshotResponse(s, "Detail dismissed")
}

func (api *API) GetDetail(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}
	view, err := s.Detail()
	if err != nil {
		return respondWithError(err, "no placemark selected", errorStatus(err), &tc)
	}
	return &ServerResponse{
		Message:    "Detail fetched successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       view,
	}
}

func (api *API) EditDetail(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}

	var req model.EditPlacemarkRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, util.ValidationMessage(err), values.BadRequestBody, &tc)
	}

	view, err := s.Edit(req.Name, req.Address)
	if err != nil {
		return respondWithError(err, "unable to edit placemark", errorStatus(err), &tc)
	}
	return &ServerResponse{
		Message:    "Detail updated",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       view,
	}
}

func (api *API) CommitDetail(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}
	view, err := s.Commit(r.Context())
	if err != nil {
		return respondWithError(err, "unable to save placemark", errorStatus(err), &tc)
	}
	return &ServerResponse{
		Message:    "Placemark saved",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       view,
	}
}

func (api *API) ToggleMembership(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	s, err := api.sessionFromRequest(r)
	if err != nil {
		return respondWithError(err, "session not found", errorStatus(err), &tc)
	}
	p, err := s.ToggleMembership(r.Context())
	if err != nil {
		return respondWithError(err, "unable to change membership", errorStatus(err), &tc)
	}

	message := "Placemark removed from destination"
	if p.BelongsTo(s.DestinationID) {
		message = "Placemark added to destination"
	}
	return snapshotResponse(s, message)
}

// WatchSession streams the session's snapshots over a websocket until the session ends.
func (api *API) WatchSession(w http.ResponseWriter, r *http.Request) {
	s, err := api.sessionFromRequest(r)
	if err != nil {
		writeErrorResponse(w, err, errorStatus(err), "session not found")
		return
	}
	websockets.Serve[session.Snapshot](api.Deps.WebSocket, w, r, s.ID, s)
}

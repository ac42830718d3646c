package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bwise1/lookaround/config"
	deps "github.com/bwise1/lookaround/internal/debs"
	"github.com/bwise1/lookaround/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const (
	defaultIdleTimeout    = time.Minute
	defaultReadTimeout    = 5 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultShutdownPeriod = 30 * time.Second
)

// logger is shared by the response helpers.
var logger logrus.FieldLogger = logrus.StandardLogger()

type Handler func(w http.ResponseWriter, r *http.Request) *ServerResponse

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h(w, r)
	if resp == nil {
		return
	}
	respByte, err := json.Marshal(resp)
	if err != nil {
		writeErrorResponse(w, err, values.Error, "unable to marshal server response")
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

type API struct {
	Server *http.Server
	Config *config.Config
	Deps   *deps.Dependencies
	Log    logrus.FieldLogger
}

// Init must run before Serve or Routes.
func (api *API) Init() {
	if api.Log == nil {
		api.Log = logrus.StandardLogger()
	}
	logger = api.Log
}

func (api *API) Serve() error {
	api.Server = &http.Server{
		Addr:        fmt.Sprintf(":%d", api.Config.Port),
		IdleTimeout: defaultIdleTimeout,
		ReadTimeout: defaultReadTimeout,
		// websocket connections are hijacked and not bound by WriteTimeout
		WriteTimeout: defaultWriteTimeout,
		Handler:      api.Routes(),
	}
	return api.Server.ListenAndServe()
}

func (api *API) Routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	mux.Get("/health", api.Health)

	mux.Group(func(r chi.Router) {
		r.Use(RequestTracing)
		r.Use(api.RequireToken)

		r.Mount("/destinations", api.DestinationRoutes())
		r.Mount("/sessions", api.SessionRoutes())
		r.Mount("/places", api.PlacesRoutes())
	})

	return mux
}

// Health reports readiness; it pings the database when one is configured.
func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	if pool := api.Deps.Pool(); pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			writeErrorResponse(w, err, values.SystemErr, "database unavailable")
			return
		}
	}
	writeJSONResponse(w, []byte(`{"status":"success","message":"ok"}`), http.StatusOK)
}

func (api *API) Shutdown(ctx context.Context) error {
	if api.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownPeriod)
	defer cancel()
	return api.Server.Shutdown(ctx)
}

package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"recircuit.org/internal/auth"
	"recircuit.org/internal/obs"
	"recircuit.org/internal/stream"
	"recircuit.org/internal/waste"
)

// ReadyProbe checks the durable dependencies (a database ping when one is
// configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the disposition workflow and the session guard.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	guard     *auth.Guard
	signer    *auth.Signer
	directory auth.Directory

	registry waste.Registry
	engine   *waste.Engine
	catalog  *waste.Catalog
	stream   *stream.Stream
}

// Deps bundles the collaborators injected into the API.
type Deps struct {
	Guard     *auth.Guard
	Signer    *auth.Signer
	Directory auth.Directory
	Registry  waste.Registry
	Engine    *waste.Engine
	Catalog   *waste.Catalog
	Stream    *stream.Stream
}

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		guard:      deps.Guard,
		signer:     deps.Signer,
		directory:  deps.Directory,
		registry:   deps.Registry,
		engine:     deps.Engine,
		catalog:    deps.Catalog,
		stream:     deps.Stream,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// session credentials
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// disposition workflow
	a.mux.HandleFunc("/v1/items", a.handleItemsCollection)
	a.mux.HandleFunc("/v1/items/", a.handleItemResource)

	// marketplace
	a.mux.HandleFunc("/v1/market/items", a.handleMarketCollection)
	a.mux.HandleFunc("/v1/market/items/", a.handleMarketResource)

	// live disposition events
	a.mux.HandleFunc("/v1/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server. Rate limiting and
// CORS stay in cmd wiring so tests hit an unthrottled surface.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "recircuit-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "recircuit-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

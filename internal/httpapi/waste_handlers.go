package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"recircuit.org/internal/audit"
	"recircuit.org/internal/auth"
	"recircuit.org/internal/obs"
	"recircuit.org/internal/waste"
)

type submitItemRequest struct {
	Description string `json:"description"`
	Operation   string `json:"operation"`
	Location    string `json:"location"`
}

type setStatusRequest struct {
	TargetStatus string `json:"target_status"`
	ImageURL     string `json:"image_url"`
}

type listItemsResponse struct {
	Items []waste.Item `json:"items"`
	AsOf  time.Time    `json:"as_of"`
}

type listMarketResponse struct {
	Items []waste.Listing `json:"items"`
	AsOf  time.Time       `json:"as_of"`
}

func (a *API) handleItemsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitItem(w, r)
	case http.MethodGet:
		a.listItems(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleItemResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/items/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, ok := strings.CutSuffix(path, "/status"); ok {
		id = strings.TrimSuffix(id, "/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.setStatus(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getItem(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleMarketCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listForSale(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleMarketResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/market/items/")
	id, ok := strings.CutSuffix(path, "/purchase")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.purchase(w, r, id)
}

func (a *API) submitItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req submitItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(req.Description) == "" {
		writeError(w, r, http.StatusBadRequest, "description is required")
		return
	}
	operation, err := waste.ParseOperation(strings.TrimSpace(req.Operation))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "operation must be Recycle, Destroy or Repair")
		return
	}
	// Fall back to the owner's registered location when none is supplied.
	location := strings.TrimSpace(req.Location)
	if location == "" && principal.User != nil {
		location = principal.User.Location
	}
	if location == "" {
		writeError(w, r, http.StatusBadRequest, "location is required")
		return
	}

	item, err := a.registry.Create(r.Context(), waste.NewItemInput{
		OwnerID:     principal.UserID(),
		Description: strings.TrimSpace(req.Description),
		Operation:   operation,
		Location:    location,
	})
	if err != nil {
		handleWasteError(w, r, err)
		return
	}

	obs.ItemSubmitted(string(item.Operation))
	a.auditEvent(r, "waste.item.submit", map[string]any{
		"item_id":   item.ID,
		"operation": string(item.Operation),
		"location":  item.Location,
	})

	w.Header().Set("Location", "/v1/items/"+item.ID)
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) listItems(w http.ResponseWriter, r *http.Request) {
	var filter *waste.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := waste.ParseStatus(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unknown status filter")
			return
		}
		filter = &status
	}

	items, err := a.registry.List(r.Context(), filter)
	if err != nil {
		handleWasteError(w, r, err)
		return
	}
	if items == nil {
		items = []waste.Item{}
	}
	writeJSON(w, http.StatusOK, listItemsResponse{Items: items, AsOf: time.Now().UTC()})
}

func (a *API) getItem(w http.ResponseWriter, r *http.Request, id string) {
	item, err := a.registry.Get(r.Context(), id)
	if err != nil {
		handleWasteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) setStatus(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.requireRole(r, auth.RoleOperator); err != nil {
		writeError(w, r, http.StatusForbidden, "operator role required")
		return
	}

	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target, err := waste.ParseStatus(strings.TrimSpace(req.TargetStatus))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown target status")
		return
	}

	item, err := a.engine.Transition(r.Context(), id, target, waste.TransitionInput{
		ImageURL: strings.TrimSpace(req.ImageURL),
	})
	if err != nil {
		handleWasteError(w, r, err)
		return
	}

	obs.TransitionCommitted(string(item.Status))
	a.auditEvent(r, "waste.item.transition", map[string]any{
		"item_id": item.ID,
		"to":      string(item.Status),
	})

	writeJSON(w, http.StatusOK, item)
}

func (a *API) listForSale(w http.ResponseWriter, r *http.Request) {
	listings, err := a.catalog.ListForSale(r.Context())
	if err != nil {
		handleWasteError(w, r, err)
		return
	}
	if listings == nil {
		listings = []waste.Listing{}
	}
	writeJSON(w, http.StatusOK, listMarketResponse{Items: listings, AsOf: time.Now().UTC()})
}

func (a *API) purchase(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := a.catalog.Purchase(r.Context(), id); err != nil {
		handleWasteError(w, r, err)
		return
	}

	obs.PurchaseCompleted()
	a.auditEvent(r, "market.purchase", map[string]any{"item_id": id})

	writeJSON(w, http.StatusOK, map[string]any{"status": "purchased", "item_id": id})
}

func (a *API) requireRole(r *http.Request, role string) error {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || !principal.HasRole(role) {
		return auth.ErrNoCredentials
	}
	return nil
}

func (a *API) auditEvent(r *http.Request, event string, fields map[string]any) {
	_ = audit.LogEvent(r.Context(), event, fields)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleWasteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, waste.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, waste.ErrInvalidTransition):
		// Covers both the unreachable-target and missing-image kinds.
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, waste.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, waste.ErrGone):
		writeError(w, r, http.StatusGone, err.Error())
	case errors.Is(err, waste.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, waste.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "storage unavailable, retry later")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

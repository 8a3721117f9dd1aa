package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"recircuit.org/internal/auth"
	"recircuit.org/internal/stream"
	"recircuit.org/internal/waste"
)

type fixture struct {
	api     *API
	handler http.Handler
	signer  *auth.Signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	signer, err := auth.NewSigner(auth.Config{Secret: []byte("httpapi-test-secret")})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	directory := auth.NewMemoryDirectory(
		&auth.User{ID: "owner-1", Email: "owner@example.org", PasswordHash: hash, Location: "CityX"},
		&auth.User{ID: "op-1", Email: "op@example.org", PasswordHash: hash, Location: "Depot", Roles: []string{auth.RoleOperator}},
	)
	guard := auth.NewGuard(signer, auth.NewMemoryDenylist(), directory)

	registry := waste.NewInMemory()
	events := stream.New()
	deps := Deps{
		Guard:     guard,
		Signer:    signer,
		Directory: directory,
		Registry:  registry,
		Engine:    waste.NewEngine(registry, events),
		Catalog:   waste.NewCatalog(registry, events),
		Stream:    events,
	}
	api := New(ReadyProbe{}, "test", deps)
	return &fixture{api: api, handler: api.Handler(), signer: signer}
}

func (f *fixture) token(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	token, _, err := f.signer.Issue(userID, roles)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:4242"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthzPublic(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestSubmitListAndGet(t *testing.T) {
	f := newFixture(t)
	owner := f.token(t, "owner-1")

	rr := f.do(t, http.MethodPost, "/v1/items", owner, submitItemRequest{
		Description: "broken laptop",
		Operation:   "Repair",
		Location:    "CityX",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeBody[waste.Item](t, rr)
	if created.Status != waste.StatusPending || created.Cost != 0 || created.OwnerID != "owner-1" {
		t.Fatalf("unexpected created item: %#v", created)
	}
	if loc := rr.Header().Get("Location"); loc != "/v1/items/"+created.ID {
		t.Fatalf("unexpected Location header: %q", loc)
	}

	rr = f.do(t, http.MethodGet, "/v1/items?status=Pending", owner, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	list := decodeBody[listItemsResponse](t, rr)
	if len(list.Items) != 1 || list.Items[0].ID != created.ID {
		t.Fatalf("unexpected list: %#v", list)
	}

	rr = f.do(t, http.MethodGet, "/v1/items/"+created.ID, owner, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/v1/items?status=Bogus", owner, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad filter: expected 400, got %d", rr.Code)
	}
}

func TestSubmitFallsBackToRegisteredLocation(t *testing.T) {
	f := newFixture(t)
	owner := f.token(t, "owner-1")

	rr := f.do(t, http.MethodPost, "/v1/items", owner, submitItemRequest{
		Description: "crt monitor",
		Operation:   "Recycle",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeBody[waste.Item](t, rr)
	if created.Location != "CityX" {
		t.Fatalf("expected owner's registered location, got %q", created.Location)
	}
}

func TestFullDispositionFlow(t *testing.T) {
	f := newFixture(t)
	owner := f.token(t, "owner-1")
	operator := f.token(t, "op-1", auth.RoleOperator)

	rr := f.do(t, http.MethodPost, "/v1/items", owner, submitItemRequest{
		Description: "broken laptop", Operation: "Repair", Location: "CityX",
	})
	item := decodeBody[waste.Item](t, rr)

	// Owners cannot drive transitions.
	rr = f.do(t, http.MethodPost, "/v1/items/"+item.ID+"/status", owner, setStatusRequest{TargetStatus: "Processing"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-operator, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/v1/items/"+item.ID+"/status", operator, setStatusRequest{TargetStatus: "Processing"})
	if rr.Code != http.StatusOK {
		t.Fatalf("to Processing: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Repaired without an image is rejected.
	rr = f.do(t, http.MethodPost, "/v1/items/"+item.ID+"/status", operator, setStatusRequest{TargetStatus: "Repaired"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing image, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/v1/items/"+item.ID+"/status", operator, setStatusRequest{
		TargetStatus: "Repaired", ImageURL: "/u/1.png",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("to Repaired: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	repaired := decodeBody[waste.Item](t, rr)
	if repaired.Cost != waste.RepairTariff || repaired.ImageURL != "/u/1.png" {
		t.Fatalf("repair side effects missing: %#v", repaired)
	}

	rr = f.do(t, http.MethodGet, "/v1/market/items", owner, nil)
	market := decodeBody[listMarketResponse](t, rr)
	if len(market.Items) != 1 || market.Items[0].ID != item.ID || market.Items[0].Cost != waste.RepairTariff {
		t.Fatalf("unexpected market listing: %#v", market)
	}

	rr = f.do(t, http.MethodPost, "/v1/market/items/"+item.ID+"/purchase", owner, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("purchase: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = f.do(t, http.MethodGet, "/v1/items/"+item.ID, owner, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after purchase: expected 404, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/v1/market/items/"+item.ID+"/purchase", owner, nil)
	if rr.Code != http.StatusGone {
		t.Fatalf("second purchase: expected 410, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/v1/items/"+item.ID+"/status", operator, setStatusRequest{TargetStatus: "Processing"})
	if rr.Code != http.StatusGone {
		t.Fatalf("transition after purchase: expected 410, got %d", rr.Code)
	}
}

func TestUnreachableTransitionRejected(t *testing.T) {
	f := newFixture(t)
	owner := f.token(t, "owner-1")
	operator := f.token(t, "op-1", auth.RoleOperator)

	rr := f.do(t, http.MethodPost, "/v1/items", owner, submitItemRequest{
		Description: "old phone", Operation: "Recycle", Location: "CityX",
	})
	item := decodeBody[waste.Item](t, rr)

	rr = f.do(t, http.MethodPost, "/v1/items/"+item.ID+"/status", operator, setStatusRequest{TargetStatus: "Repaired", ImageURL: "/u/1.png"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unreachable target, got %d", rr.Code)
	}
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{
		Email: "owner@example.org", Password: "correct horse battery staple",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[loginResponse](t, rr)
	if resp.Token == "" {
		t.Fatal("expected token in response")
	}
	cookieSet := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie && c.Value == resp.Token && c.HttpOnly {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Fatal("expected session cookie")
	}

	// The issued token authenticates.
	rr = f.do(t, http.MethodGet, "/v1/items", resp.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated list: expected 200, got %d", rr.Code)
	}

	// Logout revokes exactly this token.
	rr = f.do(t, http.MethodPost, "/v1/auth/logout", resp.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodGet, "/v1/items", resp.Token, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", rr.Code)
	}
	// Logout is idempotent at the registry level but the second call carries
	// a now-revoked credential, so authentication fails first.
	rr = f.do(t, http.MethodPost, "/v1/auth/logout", resp.Token, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("second logout: expected 401, got %d", rr.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{
		Email: "owner@example.org", Password: "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/v1/auth/login", "", loginRequest{
		Email: "ghost@example.org", Password: "whatever",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: expected 401, got %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	owner := f.token(t, "owner-1")

	rr := f.do(t, http.MethodDelete, "/v1/items", owner, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow == "" {
		t.Fatal("expected Allow header")
	}
}

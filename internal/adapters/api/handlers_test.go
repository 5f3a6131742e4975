package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/galley/internal/adapters/identity"
	"github.com/example/galley/internal/adapters/memory"
	"github.com/example/galley/internal/app"
	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/logging"
)

const testSecret = "test-secret"

var testNow = time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)

type testServer struct {
	router   *gin.Engine
	verifier *identity.Verifier
	store    *memory.Store
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("db down") }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logging.SetOutput(io.Discard)
	t.Cleanup(func() { logging.SetOutput(os.Stdout) })

	store := memory.NewStore()
	n := 0
	svc := app.NewDispatchService(store.Manifests(), store.Archive(), app.DispatchOptions{
		Clock: func() time.Time { return testNow },
		NewID: func() string { n++; return fmt.Sprintf("m-%d", n) },
	})
	verifier := identity.NewVerifier(testSecret)
	handler := NewHandler(svc, identity.ContextProvider{}, store.Manifests())
	return &testServer{router: NewRouter(handler, verifier, nil), verifier: verifier, store: store}
}

func (s *testServer) token(t *testing.T, role access.Role, branches ...string) string {
	t.Helper()
	tok, err := s.verifier.Sign(access.Actor{ID: "u-" + string(role), Name: string(role), Role: role, Branches: branches}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return e
}

var createBody = map[string]any{
	"delivery_date": "2025-06-10",
	"branches": []map[string]any{
		{"slug": "north", "name": "North Kitchen", "items": []map[string]any{{"name": "Rice", "ordered_qty": 50}}},
		{"slug": "south", "items": []map[string]any{{"name": "Milk", "ordered_qty": "12.5"}}},
	},
}

func (s *testServer) createManifest(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/dispatches", s.token(t, access.RoleOperations), createBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", w.Code, w.Body.String())
	}
	var m struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &m)
	return m.ID
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(t, http.MethodGet, "/live", "", nil); w.Code != http.StatusOK {
		t.Errorf("/live = %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/ready", "", nil); w.Code != http.StatusOK {
		t.Errorf("/ready = %d", w.Code)
	}

	verifier := identity.NewVerifier(testSecret)
	down := NewRouter(NewHandler(nil, identity.ContextProvider{}, failingPinger{}), verifier, nil)
	w := httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready with failing store = %d", w.Code)
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + s.token(t, access.RoleViewer), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dispatches", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestCreateAndGetDispatch(t *testing.T) {
	s := newTestServer(t)
	id := s.createManifest(t)

	w := s.do(t, http.MethodGet, "/api/dispatches/"+id, s.token(t, access.RoleViewer), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var m struct {
		CreatedBy        string `json:"created_by"`
		BranchDispatches []struct {
			BranchSlug string `json:"branch_slug"`
			BranchName string `json:"branch_name"`
			Status     string `json:"status"`
			Items      []struct {
				Unit       string          `json:"unit"`
				OrderedQty json.RawMessage `json:"ordered_qty"`
			} `json:"items"`
		} `json:"branch_dispatches"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &m); err != nil {
		t.Fatal(err)
	}
	if m.CreatedBy != "operations (u-operations)" {
		t.Errorf("CreatedBy = %q", m.CreatedBy)
	}
	if len(m.BranchDispatches) != 2 || m.BranchDispatches[1].BranchName != "south" {
		t.Fatalf("branches = %+v", m.BranchDispatches)
	}
	rice := m.BranchDispatches[0].Items[0]
	if rice.Unit != "KG" || string(rice.OrderedQty) != "50" {
		t.Errorf("rice = unit %s qty %s", rice.Unit, rice.OrderedQty)
	}
	if got := m.BranchDispatches[1].Items[0].Unit; got != "LTR" {
		t.Errorf("milk unit = %s", got)
	}
}

func TestCreateDispatch_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		role  access.Role
		body  any
		want  int
		error string
	}{
		{name: "viewer may not create", role: access.RoleViewer, body: createBody, want: http.StatusForbidden, error: "Forbidden"},
		{name: "past delivery date", role: access.RoleAdmin, body: map[string]any{
			"delivery_date": "2025-06-08",
			"branches":      []map[string]any{{"slug": "north", "items": []map[string]any{{"name": "Rice", "ordered_qty": 1}}}},
		}, want: http.StatusBadRequest, error: "Validation failed"},
		{name: "malformed body", role: access.RoleAdmin, body: "not an object", want: http.StatusBadRequest, error: "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/dispatches", s.token(t, tt.role), tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if e := decode(t, w); e.Error != tt.error {
				t.Errorf("error = %q, want %q", e.Error, tt.error)
			}
		})
	}
}

func TestGetDispatch_NotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/dispatches/nope", s.token(t, access.RoleViewer), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestUpdateBranch(t *testing.T) {
	s := newTestServer(t)
	id := s.createManifest(t)
	path := "/api/dispatches/" + id + "/branches/north"

	tests := []struct {
		name  string
		token string
		body  any
		want  int
	}{
		{name: "staff of another branch", token: s.token(t, access.RoleBranchStaff, "south"), body: map[string]any{"status": "packing"}, want: http.StatusForbidden},
		{name: "viewer", token: s.token(t, access.RoleViewer), body: map[string]any{"status": "packing"}, want: http.StatusForbidden},
		{name: "own branch staff", token: s.token(t, access.RoleBranchStaff, "north"), body: map[string]any{"status": "packing"}, want: http.StatusOK},
		{name: "skip a state", token: s.token(t, access.RoleOperations), body: map[string]any{"status": "received"}, want: http.StatusConflict},
		{name: "unknown status", token: s.token(t, access.RoleOperations), body: map[string]any{"status": "lost"}, want: http.StatusBadRequest},
		{name: "unknown item", token: s.token(t, access.RoleOperations), body: map[string]any{"items": []map[string]any{{"id": "ghost", "packed_qty": 1}}}, want: http.StatusBadRequest},
		{name: "record packed quantity", token: s.token(t, access.RoleOperations), body: map[string]any{"items": []map[string]any{{"id": "north-1", "packed_qty": 48}}}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPatch, path, tt.token, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	w := s.do(t, http.MethodGet, "/api/dispatches/"+id, s.token(t, access.RoleViewer), nil)
	var m struct {
		BranchDispatches []struct {
			Status        string `json:"status"`
			Discrepancies []struct {
				PackedDelta json.RawMessage `json:"packed_delta"`
			} `json:"discrepancies"`
		} `json:"branch_dispatches"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &m)
	north := m.BranchDispatches[0]
	if north.Status != "packing" {
		t.Errorf("north status = %s", north.Status)
	}
	if len(north.Discrepancies) != 1 || string(north.Discrepancies[0].PackedDelta) != "-2" {
		t.Errorf("discrepancies = %+v", north.Discrepancies)
	}
	if m.BranchDispatches[1].Status != "pending" {
		t.Error("other branch changed")
	}
}

func TestResolveIssue(t *testing.T) {
	s := newTestServer(t)
	id := s.createManifest(t)
	ops := s.token(t, access.RoleOperations)
	branch := "/api/dispatches/" + id + "/branches/south"

	if w := s.do(t, http.MethodPost, branch+"/resolve", ops, nil); w.Code != http.StatusConflict {
		t.Errorf("resolve without issue = %d, want 409", w.Code)
	}
	if w := s.do(t, http.MethodPatch, branch, ops, map[string]any{"status": "issue", "issue_note": "short delivered"}); w.Code != http.StatusOK {
		t.Fatalf("raise issue = %d body %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, branch+"/resolve", s.token(t, access.RoleBranchManager, "south"), nil); w.Code != http.StatusForbidden {
		t.Errorf("branch manager resolve = %d, want 403", w.Code)
	}
	w := s.do(t, http.MethodPost, branch+"/resolve", ops, map[string]any{"note": "topped up"})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve = %d body %s", w.Code, w.Body.String())
	}
}

func TestAddLateItem(t *testing.T) {
	s := newTestServer(t)
	id := s.createManifest(t)
	ops := s.token(t, access.RoleOperations)
	for _, st := range []string{"packing", "packed", "dispatched"} {
		if w := s.do(t, http.MethodPatch, "/api/dispatches/"+id+"/branches/south", ops, map[string]any{"status": st}); w.Code != http.StatusOK {
			t.Fatalf("advance to %s = %d", st, w.Code)
		}
	}
	path := "/api/dispatches/" + id + "/late-items"

	w := s.do(t, http.MethodPost, path, ops, map[string]any{
		"item_name": "Chili Flakes",
		"reason":    "menu change",
		"branches":  []map[string]any{{"slug": "north", "quantity": 5}, {"slug": "south", "quantity": 5}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		UpdatedBranches []string `json:"updated_branches"`
		SkippedBranches []struct {
			Slug   string `json:"slug"`
			Reason string `json:"reason"`
		} `json:"skipped_branches"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &resp)
	if len(resp.UpdatedBranches) != 1 || len(resp.SkippedBranches) != 1 || resp.SkippedBranches[0].Reason != "already dispatched" {
		t.Errorf("response = %+v", resp)
	}

	w = s.do(t, http.MethodPost, path, ops, map[string]any{
		"item_name": "Ice",
		"unit":      "KG",
		"branches":  []map[string]any{{"slug": "south", "quantity": 5}},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("all skipped = %d, want 422", w.Code)
	}
	var details struct {
		Skipped []struct {
			Slug string `json:"slug"`
		} `json:"skipped_branches"`
	}
	_ = json.Unmarshal(decode(t, w).Details, &details)
	if len(details.Skipped) != 1 || details.Skipped[0].Slug != "south" {
		t.Errorf("details = %s", decode(t, w).Details)
	}

	if w := s.do(t, http.MethodPost, path, s.token(t, access.RoleBranchManager, "north"), map[string]any{}); w.Code != http.StatusForbidden {
		t.Errorf("branch manager = %d, want 403", w.Code)
	}
}

func TestDeleteAndArchive(t *testing.T) {
	s := newTestServer(t)
	id := s.createManifest(t)
	admin := s.token(t, access.RoleAdmin)

	if w := s.do(t, http.MethodDelete, "/api/dispatches/"+id, s.token(t, access.RoleBranchManager, "north"), nil); w.Code != http.StatusForbidden {
		t.Errorf("branch manager delete = %d", w.Code)
	}
	w := s.do(t, http.MethodDelete, "/api/dispatches/"+id, admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d body %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodDelete, "/api/dispatches/"+id, admin, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/archive/"+id, s.token(t, access.RoleViewer), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("archive get = %d", w.Code)
	}
	var m struct {
		IsArchived bool   `json:"is_archived"`
		DeletedBy  string `json:"deleted_by"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &m)
	if !m.IsArchived || m.DeletedBy != "admin (u-admin)" {
		t.Errorf("archived = %+v", m)
	}

	w = s.do(t, http.MethodGet, "/api/archive?delivery_date=2025-06-10", s.token(t, access.RoleViewer), nil)
	var list []json.RawMessage
	_ = json.Unmarshal(decode(t, w).Data, &list)
	if len(list) != 1 {
		t.Errorf("archive list has %d entries", len(list))
	}
}

func TestListDispatches_Filters(t *testing.T) {
	s := newTestServer(t)
	s.createManifest(t)
	viewer := s.token(t, access.RoleViewer)

	tests := []struct {
		name  string
		query string
		code  int
		count int
	}{
		{name: "all", query: "", code: http.StatusOK, count: 1},
		{name: "by branch", query: "?branch=south", code: http.StatusOK, count: 1},
		{name: "no match", query: "?status=received", code: http.StatusOK, count: 0},
		{name: "bad status", query: "?status=lost", code: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=-1", code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/dispatches"+tt.query, viewer, nil)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var list []json.RawMessage
			_ = json.Unmarshal(decode(t, w).Data, &list)
			if len(list) != tt.count {
				t.Errorf("count = %d, want %d", len(list), tt.count)
			}
		})
	}
}

func TestInferUnit(t *testing.T) {
	s := newTestServer(t)
	viewer := s.token(t, access.RoleViewer)

	w := s.do(t, http.MethodGet, "/api/units/infer?name=Garam%20Masala", viewer, nil)
	var data struct {
		Unit string `json:"unit"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &data)
	if w.Code != http.StatusOK || data.Unit != "GM" {
		t.Errorf("status %d unit %q", w.Code, data.Unit)
	}
	if w := s.do(t, http.MethodGet, "/api/units/infer", viewer, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing name = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := identity.NewVerifier(testSecret)
	router := NewRouter(NewHandler(nil, identity.ContextProvider{}, failingPinger{}), verifier, []string{"https://ops.example.com"})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/dispatches", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := preflight("https://ops.example.com")
	if w.Code != http.StatusNoContent {
		t.Errorf("allowed origin preflight = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	if w := preflight("https://evil.example.com"); w.Code != http.StatusForbidden {
		t.Errorf("unknown origin preflight = %d", w.Code)
	}
}

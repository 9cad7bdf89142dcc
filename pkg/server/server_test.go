package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/orneryd/sowgraph/pkg/auth"
	"github.com/orneryd/sowgraph/pkg/inference"
	"github.com/orneryd/sowgraph/pkg/rules"
	"github.com/orneryd/sowgraph/pkg/sow"
	"github.com/orneryd/sowgraph/pkg/storage"
)

// newTestServer wires a full stack over an in-memory store: one
// manufacturing requirement, one retail entity, and the default rule
// catalog.
func newTestServer(t *testing.T, authenticator *auth.Authenticator) (*Server, storage.Engine) {
	t.Helper()
	store := storage.NewMemoryEngine()
	t.Cleanup(func() { store.Close() })

	req := &sow.BusinessRequirement{
		ID:          "REQ_001",
		Description: "Implement supplier tracking system for automotive parts",
		Priority:    1,
		Domain:      "manufacturing",
		Complexity:  sow.ComplexityHigh,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, store.UpsertNode(sow.RequirementNode(req)))

	entity := &sow.DomainEntity{
		ID:              "ENT_RETAIL",
		Name:            "RetailCo",
		EntityType:      "company",
		Industry:        "retail",
		MaturityLevel:   sow.MaturityEnterprise,
		TechnologyStack: []string{"kafka", "spark"},
		DataMaturity:    sow.DataOptimized,
	}
	require.NoError(t, store.UpsertNode(sow.EntityNode(entity)))

	catalog := rules.NewCatalog(store)
	require.NoError(t, catalog.Load(rules.DefaultRules()))
	for _, rule := range rules.DefaultRules() {
		require.NoError(t, store.UpsertNode(sow.RuleNode(&rule)))
	}

	engine := inference.NewEngine(store, catalog, nil)
	srv, err := New(store, engine, nil, authenticator, DefaultConfig())
	require.NoError(t, err)
	return srv, store
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHealthAndStatus(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Status string `json:"status"`
		Graph  struct {
			Nodes int64 `json:"nodes"`
			Edges int64 `json:"edges"`
		} `json:"graph"`
	}
	decodeBody(t, rec, &status)
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, int64(7), status.Graph.Nodes, "requirement, entity, five rules")
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "trace-42", rec.Header().Get("X-Request-ID"))
}

func TestBasicAuthRequired(t *testing.T) {
	authenticator, err := auth.NewAuthenticator(auth.Config{
		Username:   "admin",
		Password:   "SecurePassword123!",
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	srv, _ := newTestServer(t, authenticator)

	// Unauthenticated request is rejected.
	rec := doRequest(t, srv, http.MethodGet, "/sow/opportunities", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	// Wrong password is rejected.
	req := httptest.NewRequest(http.MethodGet, "/sow/opportunities", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct credentials pass.
	req = httptest.NewRequest(http.MethodGet, "/sow/opportunities", nil)
	req.SetBasicAuth("admin", "SecurePassword123!")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health never requires auth.
	rec = doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDiscoverEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/sow/discover/REQ_001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiscoveryResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "REQ_001", resp.RequirementID)
	require.Len(t, resp.Opportunities, 2)
	assert.Empty(t, resp.Failures)

	ids := []string{resp.Opportunities[0].ID, resp.Opportunities[1].ID}
	assert.Contains(t, ids, "REQ_001_OPP_001")
	assert.Contains(t, ids, "REQ_001_CROSS_001")
}

func TestDiscoverErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv, http.MethodPost, "/sow/discover/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/sow/discover/REQ_001", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/sow/discover/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpportunityStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	doRequest(t, srv, http.MethodPost, "/sow/discover/REQ_001", "")

	rec := doRequest(t, srv, http.MethodPost,
		"/sow/opportunities/REQ_001_OPP_001/status", `{"status":"validated"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var opp sow.AnalyticalOpportunity
	decodeBody(t, rec, &opp)
	assert.Equal(t, sow.StatusValidated, opp.Status)

	// Skipping states is a conflict.
	rec = doRequest(t, srv, http.MethodPost,
		"/sow/opportunities/REQ_001_CROSS_001/status", `{"status":"implemented"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown opportunity.
	rec = doRequest(t, srv, http.MethodPost,
		"/sow/opportunities/NOPE/status", `{"status":"validated"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed body.
	rec = doRequest(t, srv, http.MethodPost,
		"/sow/opportunities/REQ_001_OPP_001/status", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	doRequest(t, srv, http.MethodPost, "/sow/discover/REQ_001", "")

	rec := doRequest(t, srv, http.MethodGet, "/sow/analytics/methods", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var methods struct {
		Methods []struct {
			Method string `json:"method"`
			Count  int    `json:"count"`
		} `json:"methods"`
	}
	decodeBody(t, rec, &methods)
	require.Len(t, methods.Methods, 2)
	assert.Equal(t, "cross_domain", methods.Methods[0].Method)

	rec = doRequest(t, srv, http.MethodGet, "/sow/analytics/complexity", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/sow/analytics/top?n=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var top struct {
		Opportunities []sow.AnalyticalOpportunity `json:"opportunities"`
	}
	decodeBody(t, rec, &top)
	require.Len(t, top.Opportunities, 1)
	assert.Equal(t, "REQ_001_CROSS_001", top.Opportunities[0].ID)

	rec = doRequest(t, srv, http.MethodGet, "/sow/analytics/top?n=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/sow/analytics/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGraphEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	doRequest(t, srv, http.MethodPost, "/sow/discover/REQ_001", "")

	rec := doRequest(t, srv, http.MethodGet, "/sow/graph/REQ_001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
		Edges []struct {
			Type string `json:"type"`
		} `json:"edges"`
	}
	decodeBody(t, rec, &view)
	assert.GreaterOrEqual(t, len(view.Nodes), 4)
	assert.NotEmpty(t, view.Edges)

	rec = doRequest(t, srv, http.MethodGet, "/sow/graph/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCentralityEndpoint(t *testing.T) {
	srv, store := newTestServer(t, nil)
	doRequest(t, srv, http.MethodPost, "/sow/discover/REQ_001", "")

	rec := doRequest(t, srv, http.MethodPost, "/sow/centrality/REQ_001?depth=3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scores map[string]struct {
			Combined float64 `json:"combined"`
		} `json:"scores"`
	}
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Scores, "REQ_001")

	// Scores were written back to the stored node.
	node, err := store.GetNode("REQ_001")
	require.NoError(t, err)
	assert.Contains(t, node.Properties, "centrality_combined")

	rec = doRequest(t, srv, http.MethodPost, "/sow/centrality/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/sow/centrality/REQ_001?depth=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsCounting(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	doRequest(t, srv, http.MethodGet, "/health", "")
	doRequest(t, srv, http.MethodGet, "/sow/opportunities", "")
	doRequest(t, srv, http.MethodGet, "/sow/analytics/top?n=bad", "")

	stats := srv.Stats()
	assert.Equal(t, int64(3), stats.RequestCount)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.Equal(t, int64(0), stats.ActiveRequests)
}

package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/villefarm/internal/api"
	"github.com/mcoot/villefarm/internal/api/apierr"
	"github.com/mcoot/villefarm/internal/api/handler"
	"github.com/mcoot/villefarm/internal/api/response"
	"github.com/mcoot/villefarm/internal/factory"
	"github.com/mcoot/villefarm/internal/testutil"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	router := api.NewRouter(api.RouterConfig{
		Logger:            testutil.NopLogger(),
		Storage:           app.Storage,
		IdentityService:   app.IdentityService,
		DelegationService: app.DelegationService,
		FarmController:    app.FarmController,
		BotService:        app.BotService,
		HubManager:        app.HubManager,
		Metrics:           app.Metrics,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	return ts.requestWithHeaders(method, path, body, token, nil)
}

func (ts *testServer) requestWithHeaders(method, path string, body any, token string, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	return decode[apierr.ErrorResponse](t, rr).Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeRouteNotFound, errorCode(t, rr).Code)
}

func TestKinds(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/kinds", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	resp := decode[response.KindsResponse](t, rr)
	assert.Equal(t, int64(20), resp.MaturationSeconds)
	require.Len(t, resp.Kinds, 5)
	assert.Equal(t, response.Kind{Name: "peasant", Cost: 5, Reward: 10}, resp.Kinds[0])
	assert.Equal(t, response.Kind{Name: "solanadev", Cost: 250, Reward: 500}, resp.Kinds[4])
}

func TestCreateGuestIdentity(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"display_name": "Alice"}
	rr := ts.request(http.MethodPost, "/api/v1/identities/guest", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	resp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, "Alice", resp.Identity.DisplayName)
	assert.True(t, resp.Identity.IsGuest)
	assert.NotEmpty(t, resp.SessionToken)
}

func TestCreateGuestRequiresName(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/identities/guest", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr).Code)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	registerBody := map[string]string{
		"username":     "alice",
		"password":     "secret123",
		"display_name": "Alice",
	}
	rr := ts.request(http.MethodPost, "/api/v1/identities/register", registerBody, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	registerResp := decode[response.AuthResponse](t, rr)
	assert.False(t, registerResp.Identity.IsGuest)

	// Same username again
	rr = ts.request(http.MethodPost, "/api/v1/identities/register", registerBody, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	loginBody := map[string]string{"username": "alice", "password": "secret123"}
	rr = ts.request(http.MethodPost, "/api/v1/identities/login", loginBody, "")
	require.Equal(t, http.StatusOK, rr.Code)
	loginResp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, registerResp.Identity.ID, loginResp.Identity.ID)

	loginBody["password"] = "wrong-password"
	rr = ts.request(http.MethodPost, "/api/v1/identities/login", loginBody, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, errorCode(t, rr).Code)
}

func TestGetMeAndLogout(t *testing.T) {
	ts := newTestServer(t)
	token, id := createGuest(t, ts, "Bob")

	rr := ts.request(http.MethodGet, "/api/v1/identities/me", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[response.Identity](t, rr)
	assert.Equal(t, "Bob", me.DisplayName)
	assert.Equal(t, id, me.ID)

	rr = ts.request(http.MethodGet, "/api/v1/identities/"+id, nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/identities/logout", nil, token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/identities/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/identities/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/farm", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/farms/someone/plant", map[string]string{"kind": "peasant"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestFarmLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token, id := createGuest(t, ts, "Alice")
	farmPath := "/api/v1/farms/" + id

	rr := ts.request(http.MethodGet, farmPath, nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, errorCode(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/farm", nil, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	initResp := decode[response.OperationResponse](t, rr)
	assert.Equal(t, "player_initialized", initResp.Event.Type)
	assert.Equal(t, uint64(5), initResp.Farm.Player.Gold)
	assert.Equal(t, uint64(10), initResp.Farm.Player.Energy)

	rr = ts.request(http.MethodPost, "/api/v1/farm", nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeAlreadyInitialized, errorCode(t, rr).Code)

	rr = ts.request(http.MethodPost, farmPath+"/plant", map[string]string{"kind": "Peasant"}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	plantResp := decode[response.OperationResponse](t, rr)
	assert.Equal(t, uint64(0), plantResp.Farm.Player.Gold)
	assert.Equal(t, "peasant", plantResp.Farm.Plot.Occupant)
	assert.False(t, plantResp.Farm.Plot.Mature)
	assert.Equal(t, plantResp.Farm.Plot.PlantedAt+20, plantResp.Farm.Plot.HarvestableAt)

	rr = ts.request(http.MethodPost, farmPath+"/harvest", nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	apiErr := errorCode(t, rr)
	assert.Equal(t, apierr.CodeNotMature, apiErr.Code)
	assert.Equal(t, "NotReadyYet", apiErr.LegacyCode)

	ts.app.MockClock.Advance(20 * time.Second)

	rr = ts.request(http.MethodGet, farmPath, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[response.Farm](t, rr).Plot.Mature)

	rr = ts.request(http.MethodPost, farmPath+"/harvest", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	harvestResp := decode[response.OperationResponse](t, rr)
	assert.Equal(t, uint64(10), harvestResp.Farm.Player.Gold)
	assert.Empty(t, harvestResp.Farm.Plot.Occupant)
	assert.Equal(t, "harvested", harvestResp.Event.Type)

	rr = ts.request(http.MethodPost, farmPath+"/harvest", nil, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeNothingPlanted, errorCode(t, rr).Code)

	rr = ts.request(http.MethodPost, farmPath+"/update", nil, token)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPlantErrors(t *testing.T) {
	ts := newTestServer(t)
	token, id := createGuest(t, ts, "Alice")
	initFarm(t, ts, token)
	plantPath := "/api/v1/farms/" + id + "/plant"

	rr := ts.request(http.MethodPost, plantPath, map[string]string{}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodPost, plantPath, map[string]string{"kind": "wizard"}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	apiErr := errorCode(t, rr)
	assert.Equal(t, apierr.CodeUnknownKind, apiErr.Code)
	assert.Equal(t, "NotEnoughGold", apiErr.LegacyCode)

	rr = ts.request(http.MethodPost, plantPath, map[string]string{"kind": "breadmaker"}, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeInsufficientFunds, errorCode(t, rr).Code)

	rr = ts.request(http.MethodPost, plantPath, map[string]string{"kind": "peasant"}, token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, plantPath, map[string]string{"kind": "peasant"}, token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodePlotOccupied, errorCode(t, rr).Code)

	rr = ts.request(http.MethodPost, plantPath, "not json", token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWrongAuthority(t *testing.T) {
	ts := newTestServer(t)
	ownerToken, ownerID := createGuest(t, ts, "Owner")
	strangerToken, _ := createGuest(t, ts, "Stranger")
	initFarm(t, ts, ownerToken)

	rr := ts.request(http.MethodPost, "/api/v1/farms/"+ownerID+"/plant", map[string]string{"kind": "peasant"}, strangerToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	apiErr := errorCode(t, rr)
	assert.Equal(t, apierr.CodeWrongAuthority, apiErr.Code)
	assert.Equal(t, "WrongAuthority", apiErr.LegacyCode)

	// Nothing changed
	rr = ts.request(http.MethodGet, "/api/v1/farms/"+ownerID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	f := decode[response.Farm](t, rr)
	assert.Equal(t, uint64(5), f.Player.Gold)
	assert.Empty(t, f.Plot.Occupant)
}

func TestDelegationFlow(t *testing.T) {
	ts := newTestServer(t)
	ownerToken, ownerID := createGuest(t, ts, "Owner")
	botToken, botID := createGuest(t, ts, "Bot")
	initFarm(t, ts, ownerToken)

	body := map[string]any{"signer_id": botID, "duration_seconds": 60}
	rr := ts.request(http.MethodPost, "/api/v1/delegations", body, ownerToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	d := decode[response.Delegation](t, rr)
	assert.Equal(t, ownerID, d.Authority)
	assert.Equal(t, botID, d.Signer)

	rr = ts.request(http.MethodGet, "/api/v1/delegations", nil, ownerToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[response.DelegationsResponse](t, rr).Delegations, 1)

	withToken := map[string]string{handler.DelegationHeader: d.ID}
	rr = ts.requestWithHeaders(http.MethodPost, "/api/v1/farms/"+ownerID+"/plant",
		map[string]string{"kind": "peasant"}, botToken, withToken)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[response.OperationResponse](t, rr)
	assert.Equal(t, botID, resp.Event.Signer)
	assert.Equal(t, ownerID, resp.Event.Owner)

	// A stranger can't revoke
	strangerToken, _ := createGuest(t, ts, "Stranger")
	rr = ts.request(http.MethodDelete, "/api/v1/delegations/"+d.ID, nil, strangerToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.request(http.MethodDelete, "/api/v1/delegations/"+d.ID, nil, ownerToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	ts.app.MockClock.Advance(20 * time.Second)
	rr = ts.requestWithHeaders(http.MethodPost, "/api/v1/farms/"+ownerID+"/harvest", nil, botToken, withToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeWrongAuthority, errorCode(t, rr).Code)
}

func TestDelegationExpiry(t *testing.T) {
	ts := newTestServer(t)
	ownerToken, ownerID := createGuest(t, ts, "Owner")
	botToken, botID := createGuest(t, ts, "Bot")
	initFarm(t, ts, ownerToken)

	rr := ts.request(http.MethodPost, "/api/v1/delegations",
		map[string]any{"signer_id": botID, "duration_seconds": 30}, ownerToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	d := decode[response.Delegation](t, rr)
	withToken := map[string]string{handler.DelegationHeader: d.ID}

	ts.app.MockClock.Advance(29 * time.Second)
	rr = ts.requestWithHeaders(http.MethodPost, "/api/v1/farms/"+ownerID+"/update", nil, botToken, withToken)
	assert.Equal(t, http.StatusOK, rr.Code)

	ts.app.MockClock.Advance(time.Second)
	rr = ts.requestWithHeaders(http.MethodPost, "/api/v1/farms/"+ownerID+"/update", nil, botToken, withToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreateDelegationValidation(t *testing.T) {
	ts := newTestServer(t)
	ownerToken, ownerID := createGuest(t, ts, "Owner")

	rr := ts.request(http.MethodPost, "/api/v1/delegations",
		map[string]any{"signer_id": ownerID, "duration_seconds": 60}, ownerToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidDelegation, errorCode(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/delegations",
		map[string]any{"signer_id": "id_missing", "duration_seconds": 60}, ownerToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/delegations",
		map[string]any{"signer_id": "id_missing"}, ownerToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTend(t *testing.T) {
	ts := newTestServer(t)
	token, id := createGuest(t, ts, "Alice")
	initFarm(t, ts, token)
	tendPath := "/api/v1/farms/" + id + "/tend"

	rr := ts.request(http.MethodPost, tendPath, map[string]string{"strategy": "psychic"}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeUnknownStrategy, errorCode(t, rr).Code)

	rr = ts.request(http.MethodPost, tendPath, nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[response.TendResponse](t, rr)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, "plant", resp.Actions[0].Type)
	assert.Equal(t, "peasant", resp.Actions[0].Kind)
	assert.True(t, resp.Waiting)

	ts.app.MockClock.Advance(20 * time.Second)
	rr = ts.request(http.MethodPost, tendPath, map[string]string{"strategy": "greedy"}, token)
	require.Equal(t, http.StatusOK, rr.Code)
	resp = decode[response.TendResponse](t, rr)
	require.Len(t, resp.Actions, 2)
	assert.Equal(t, "harvest", resp.Actions[0].Type)
	assert.Equal(t, "breadmaker", resp.Farm.Plot.Occupant)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token, id := createGuest(t, ts, "Alice")
	initFarm(t, ts, token)
	ts.request(http.MethodGet, "/api/v1/farms/"+id, nil, "")
	ts.request(http.MethodGet, "/api/v1/no/such/route/1", nil, "")
	ts.request(http.MethodGet, "/api/v1/no/such/route/2", nil, "")

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `villefarm_farm_operations_total{operation="init_player",outcome="ok"} 1`)
	assert.Contains(t, body, `villefarm_http_requests_total{method="POST",path="/farm",status="201"} 1`)
	assert.Contains(t, body, `villefarm_http_requests_total{method="GET",path="/farms/{owner}",status="200"} 1`)
	assert.Contains(t, body, `villefarm_http_requests_total{method="GET",path="unmatched",status="404"} 2`)
	assert.NotContains(t, body, id)
}

func TestFarmEventStream(t *testing.T) {
	ts := newTestServer(t)
	token, id := createGuest(t, ts, "Alice")
	initFarm(t, ts, token)

	server := httptest.NewServer(ts.handler)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/farms/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, "event: connected", readEventName(t, reader))

	rr := ts.request(http.MethodPost, "/api/v1/farms/"+id+"/plant", map[string]string{"kind": "peasant"}, token)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, "event: planted", readEventName(t, reader))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"kind":"peasant"`)
	assert.Contains(t, line, fmt.Sprintf(`"owner":%q`, id))
}

func TestFarmEventStreamUnknownFarm(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/farms/id_nobody/events", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Nil(t, ts.app.HubManager.GetHub("id_nobody"))
}

// readEventName skips blank lines and returns the next "event:" line
func readEventName(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "event:") {
			return line
		}
	}
}

func createGuest(t *testing.T, ts *testServer, displayName string) (token, id string) {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/identities/guest", map[string]string{"display_name": displayName}, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	resp := decode[response.AuthResponse](t, rr)
	return resp.SessionToken, resp.Identity.ID
}

func initFarm(t *testing.T, ts *testServer, token string) {
	t.Helper()

	rr := ts.request(http.MethodPost, "/api/v1/farm", nil, token)
	require.Equal(t, http.StatusCreated, rr.Code)
}

package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ssu526/path-builder-backend/internal/api"
	"github.com/ssu526/path-builder-backend/internal/handlers"
	"github.com/ssu526/path-builder-backend/internal/middleware"
	"github.com/ssu526/path-builder-backend/internal/models"
	"github.com/ssu526/path-builder-backend/internal/repositories"
	"github.com/ssu526/path-builder-backend/internal/services"
	"github.com/ssu526/path-builder-backend/internal/session"
)

const testCookieName = "session_token"

// setupApp builds the full Fiber app on an in-memory SQLite database and a
// miniredis-backed session store.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.FlowSummary{}, &models.Flow{}); err != nil {
		t.Fatalf("failed to auto-migrate database: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	sessions := session.NewStore(rdb, "session", time.Hour)

	userRepo := repositories.NewGORMUserRepository(db)
	flowRepo := repositories.NewGORMFlowRepository(db)

	authService := services.NewAuthService(userRepo)
	flowService := services.NewFlowService(flowRepo, userRepo, nil) // nil for RabbitMQ client

	userHandler := handlers.NewUserHandler(authService, sessions, testCookieName, time.Hour)
	flowHandler := handlers.NewFlowHandler(flowService)
	requireAuth := middleware.RequireAuth(sessions, testCookieName)

	return api.New(userHandler, flowHandler, requireAuth)
}

// doJSON performs a request with an optional JSON body and session cookie.
func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, cookie *http.Cookie) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := app.Test(req, -1) // -1 for no timeout
	assert.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	err := json.NewDecoder(resp.Body).Decode(&body)
	assert.NoError(t, err)
	resp.Body.Close()
	return body
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == testCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("expected a session cookie on the response")
	return nil
}

// signup registers a user and returns their session cookie.
func signup(t *testing.T, app *fiber.App, username, email, password string) *http.Cookie {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(t, resp)
	resp.Body.Close()
	return cookie
}

// createFlow creates a flow for the session and returns its id.
func createFlow(t *testing.T, app *fiber.App, cookie *http.Cookie) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/flows/create", nil, cookie)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	flowAdded := body["flowAdded"].(map[string]interface{})
	return flowAdded["id"].(string)
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestFlowLifecycleEndToEnd(t *testing.T) {
	app := setupApp(t)

	// Signup binds a session.
	cookie := signup(t, app, "alice", "a@x.com", "pw1")

	// Login works with the same credentials and binds a fresh session.
	resp := doJSON(t, app, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "pw1",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cookie = sessionCookie(t, resp)
	resp.Body.Close()

	// Create: new empty flow plus an "Untitled"/pending summary.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/flows/create", nil, cookie)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Untitled", body["flowName"])
	flowAdded := body["flowAdded"].(map[string]interface{})
	flowID := flowAdded["id"].(string)
	assert.NotEmpty(t, flowID)
	user := body["user"].(map[string]interface{})
	userFlows := user["flows"].([]interface{})
	assert.Len(t, userFlows, 1)
	summary := userFlows[0].(map[string]interface{})
	assert.Equal(t, "Untitled", summary["name"])
	assert.Equal(t, "pending", summary["progress"])
	assert.Equal(t, "protected", summary["visibility"])
	assert.Equal(t, flowID, summary["flowId"])

	// Get returns the flow with its content.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/flows/"+flowID, nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, flowID, body["id"])
	content := body["flow"].(map[string]interface{})
	assert.Len(t, content["nodes"], 0)
	assert.Len(t, content["edges"], 0)
	viewport := content["viewport"].(map[string]interface{})
	assert.Equal(t, float64(1), viewport["zoom"])

	// Rename updates the summary only.
	resp = doJSON(t, app, http.MethodPut, "/api/v1/flows/name/"+flowID, map[string]string{"name": "My path"}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	summary = body["flows"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "My path", summary["name"])

	// Progress update.
	resp = doJSON(t, app, http.MethodPut, "/api/v1/flows/progress/"+flowID, map[string]string{"progress": "in_progress"}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	summary = body["flows"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "in_progress", summary["progress"])

	// Content replacement.
	resp = doJSON(t, app, http.MethodPut, "/api/v1/flows/detail/"+flowID, map[string]interface{}{
		"flowBody": map[string]interface{}{
			"nodes":    []map[string]interface{}{{"id": "n1", "label": "Start"}},
			"edges":    []map[string]interface{}{},
			"viewport": map[string]float64{"x": 10, "y": 20, "zoom": 0.5},
		},
	}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	content = body["flow"].(map[string]interface{})
	assert.Len(t, content["nodes"], 1)

	// Delete removes both the summary and the document.
	resp = doJSON(t, app, http.MethodDelete, "/api/v1/flows/"+flowID, nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Empty(t, body["flows"])

	resp = doJSON(t, app, http.MethodGet, "/api/v1/flows/"+flowID, nil, cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Flow not found", decodeBody(t, resp)["error"])
}

func TestSignupValidationAndConflicts(t *testing.T) {
	app := setupApp(t)

	// Missing fields
	resp := doJSON(t, app, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"email": "a@x.com", "password": "pw1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Username is missing", decodeBody(t, resp)["error"])

	resp = doJSON(t, app, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"username": "alice", "email": "a@x.com",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Password is missing", decodeBody(t, resp)["error"])

	// Email is checked for presence only, not shape.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"username": "carol", "email": "not-an-email", "password": "pw1",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	signup(t, app, "alice", "a@x.com", "pw1")

	// Same username, different email
	resp = doJSON(t, app, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"username": "alice", "email": "other@x.com", "password": "pw1",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "User name already taken.", decodeBody(t, resp)["error"])

	// Same email, different username
	resp = doJSON(t, app, http.MethodPost, "/api/v1/users/signup", map[string]string{
		"username": "bob", "email": "a@x.com", "password": "pw1",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Email address already taken.", decodeBody(t, resp)["error"])
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	app := setupApp(t)
	signup(t, app, "alice", "a@x.com", "pw1")

	resp := doJSON(t, app, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice", "password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	wrongPassBody := decodeBody(t, resp)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "ghost", "password": "pw1",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	unknownUserBody := decodeBody(t, resp)

	assert.Equal(t, wrongPassBody, unknownUserBody)
	assert.Equal(t, "Invalid credentials", wrongPassBody["error"])
}

func TestLogoutDestroysSession(t *testing.T) {
	app := setupApp(t)
	cookie := signup(t, app, "alice", "a@x.com", "pw1")

	resp := doJSON(t, app, http.MethodGet, "/api/v1/users/", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "alice", body["username"])

	resp = doJSON(t, app, http.MethodPost, "/api/v1/users/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The old token no longer authenticates.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/users/", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthenticated.", decodeBody(t, resp)["error"])
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := setupApp(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/users/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthenticated.", decodeBody(t, resp)["error"])

	resp = doJSON(t, app, http.MethodPost, "/api/v1/flows/create", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthenticated.", decodeBody(t, resp)["error"])

	// A made-up token is just as unauthenticated as no token.
	fake := &http.Cookie{Name: testCookieName, Value: "not-a-session"}
	resp = doJSON(t, app, http.MethodGet, "/api/v1/users/", nil, fake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestFlowEndpointsRejectInvalidIDs(t *testing.T) {
	app := setupApp(t)
	cookie := signup(t, app, "alice", "a@x.com", "pw1")

	requests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/v1/flows/not-a-uuid", nil},
		{http.MethodPut, "/api/v1/flows/name/not-a-uuid", map[string]string{"name": "x"}},
		{http.MethodPut, "/api/v1/flows/progress/not-a-uuid", map[string]string{"progress": "pending"}},
		{http.MethodPut, "/api/v1/flows/detail/not-a-uuid", map[string]interface{}{"flowBody": map[string]interface{}{}}},
		{http.MethodDelete, "/api/v1/flows/not-a-uuid", nil},
	}
	for _, r := range requests {
		resp := doJSON(t, app, r.method, r.path, r.body, cookie)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %s", r.method, r.path)
		assert.Equal(t, "Flow id is not valid", decodeBody(t, resp)["error"])
	}
}

func TestFlowOperationsRejectNonOwners(t *testing.T) {
	app := setupApp(t)
	aliceCookie := signup(t, app, "alice", "a@x.com", "pw1")
	bobCookie := signup(t, app, "bob", "b@x.com", "pw2")

	flowID := createFlow(t, app, aliceCookie)

	requests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/v1/flows/" + flowID, nil},
		{http.MethodPut, "/api/v1/flows/name/" + flowID, map[string]string{"name": "mine now"}},
		{http.MethodPut, "/api/v1/flows/progress/" + flowID, map[string]string{"progress": "completed"}},
		{http.MethodPut, "/api/v1/flows/detail/" + flowID, map[string]interface{}{"flowBody": map[string]interface{}{}}},
		{http.MethodDelete, "/api/v1/flows/" + flowID, nil},
	}
	for _, r := range requests {
		resp := doJSON(t, app, r.method, r.path, r.body, bobCookie)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", r.method, r.path)
		assert.Equal(t, "Not Authorized", decodeBody(t, resp)["error"])
	}

	// The flow is untouched for its owner.
	resp := doJSON(t, app, http.MethodGet, "/api/v1/flows/"+flowID, nil, aliceCookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestRenameValidation(t *testing.T) {
	app := setupApp(t)
	cookie := signup(t, app, "alice", "a@x.com", "pw1")
	flowID := createFlow(t, app, cookie)

	for _, body := range []interface{}{
		map[string]string{"name": ""},
		map[string]string{"name": "   "},
		map[string]string{},
	} {
		resp := doJSON(t, app, http.MethodPut, "/api/v1/flows/name/"+flowID, body, cookie)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Flow must have a name", decodeBody(t, resp)["error"])
	}

	resp := doJSON(t, app, http.MethodPut, "/api/v1/flows/name/"+flowID, map[string]string{"name": "  trimmed  "}, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestProgressValidation(t *testing.T) {
	app := setupApp(t)
	cookie := signup(t, app, "alice", "a@x.com", "pw1")
	flowID := createFlow(t, app, cookie)

	for _, progress := range []string{"pending", "in_progress", "completed", "terminated"} {
		resp := doJSON(t, app, http.MethodPut, "/api/v1/flows/progress/"+flowID, map[string]string{"progress": progress}, cookie)
		assert.Equal(t, http.StatusOK, resp.StatusCode, progress)
		resp.Body.Close()
	}

	resp := doJSON(t, app, http.MethodPut, "/api/v1/flows/progress/"+flowID, map[string]string{}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Progress is missing", decodeBody(t, resp)["error"])

	resp = doJSON(t, app, http.MethodPut, "/api/v1/flows/progress/"+flowID, map[string]string{"progress": "done"}, cookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid progress type", decodeBody(t, resp)["error"])
}

func TestMissingFlowReturns404(t *testing.T) {
	app := setupApp(t)
	cookie := signup(t, app, "alice", "a@x.com", "pw1")

	resp := doJSON(t, app, http.MethodGet, "/api/v1/flows/6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil, cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Flow not found", decodeBody(t, resp)["error"])
}

func TestUnmatchedRoute(t *testing.T) {
	app := setupApp(t)

	// Unmatched paths fall through to the 404 fallback even without a
	// session; the auth gate covers only the flows prefix.
	for _, path := range []string{
		"/api/v1/nothing-here",
		"/api/v1/users/nothing-here",
		"/nothing-here",
	} {
		resp := doJSON(t, app, http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, "Page not found", decodeBody(t, resp)["error"])
	}

	// Same fallback with a live session.
	cookie := signup(t, app, "alice", "a@x.com", "pw1")
	resp := doJSON(t, app, http.MethodGet, "/api/v1/nothing-here", nil, cookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Page not found", decodeBody(t, resp)["error"])
}

func TestUserResponseHidesPassword(t *testing.T) {
	app := setupApp(t)
	cookie := signup(t, app, "alice", "a@x.com", "pw1")

	resp := doJSON(t, app, http.MethodGet, "/api/v1/users/", nil, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	_, hasPassword := body["Password"]
	assert.False(t, hasPassword)
	_, hasPassword = body["password"]
	assert.False(t, hasPassword)
}

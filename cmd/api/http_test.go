package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/metrics"
	"github.com/PaulBabatuyi/socialchat/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type httpHarness struct {
	env    *testEnv
	router *gin.Engine
}

func newHTTPHarness(t *testing.T, opts httpOptions) *httpHarness {
	t.Helper()
	env := newTestEnv(t)
	if opts.corsOrigins == nil {
		opts.corsOrigins = []string{"http://localhost:5173"}
	}
	return &httpHarness{env: env, router: env.srv.routes(opts)}
}

func (h *httpHarness) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// login registers and logs in, returning the user id and session cookie.
func (h *httpHarness) login(t *testing.T, username, email string) (string, *http.Cookie) {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/v1/user/register", map[string]string{"username": username, "email": email, "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, "/api/v1/user/login", map[string]string{"email": email, "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		User    struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	for _, c := range w.Result().Cookies() {
		if c.Name == tokenCookie {
			return resp.User.ID, c
		}
	}
	t.Fatalf("login did not set a %s cookie", tokenCookie)
	return "", nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHTTPLoginCookie(t *testing.T) {
	h := newHTTPHarness(t, httpOptions{})
	_, cookie := h.login(t, "alice", "alice@example.com")

	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int(time.Hour.Seconds()), cookie.MaxAge)
	assert.NotEmpty(t, cookie.Value)

	w := h.do(t, http.MethodPost, "/api/v1/user/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestHTTPRegisterValidation(t *testing.T) {
	h := newHTTPHarness(t, httpOptions{})

	w := h.do(t, http.MethodPost, "/api/v1/user/register", map[string]string{"email": "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	h.login(t, "alice", "alice@example.com")
	w = h.do(t, http.MethodPost, "/api/v1/user/register", map[string]string{"username": "alice2", "email": "alice@example.com", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", decode(t, w)["message"])

	w = h.do(t, http.MethodPost, "/api/v1/user/login", map[string]string{"email": "alice@example.com", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHTTPMessagingRequiresAuth(t *testing.T) {
	h := newHTTPHarness(t, httpOptions{})

	w := h.do(t, http.MethodGet, "/api/v1/message/all/abc", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/message/all/abc", nil, &http.Cookie{Name: tokenCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHTTPSendAndHistory(t *testing.T) {
	h := newHTTPHarness(t, httpOptions{})
	aliceID, alice := h.login(t, "alice", "alice@example.com")
	bobID, bob := h.login(t, "bob", "bob@example.com")

	// strangers: empty array, not an error
	w := h.do(t, http.MethodGet, "/api/v1/message/all/"+bobID, nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"messages":[]}`, w.Body.String())

	// own history: no conversation can exist, still an empty array
	w = h.do(t, http.MethodGet, "/api/v1/message/all/"+aliceID, nil, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"messages":[]}`, w.Body.String())

	w = h.do(t, http.MethodPost, "/api/v1/message/send/"+bobID, map[string]string{"message": "hello"}, alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])
	newMessage := resp["newMessage"].(map[string]any)
	assert.Equal(t, "hello", newMessage["message"])
	assert.Equal(t, aliceID, newMessage["senderId"])
	assert.Equal(t, bobID, newMessage["receiverId"])

	w = h.do(t, http.MethodPost, "/api/v1/message/send/"+aliceID, map[string]string{"message": "hey"}, bob)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/message/all/"+aliceID, nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode(t, w)["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].(map[string]any)["message"])
	assert.Equal(t, "hey", msgs[1].(map[string]any)["message"])

	w = h.do(t, http.MethodGet, "/api/v1/message/conversations", nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	convs := decode(t, w)["conversations"].([]any)
	require.Len(t, convs, 1)
	assert.Equal(t, bobID, convs[0].(map[string]any)["partnerId"])
	assert.EqualValues(t, 2, convs[0].(map[string]any)["messageCount"])
}

func TestHTTPSendErrors(t *testing.T) {
	h := newHTTPHarness(t, httpOptions{})
	aliceID, alice := h.login(t, "alice", "alice@example.com")
	bobID, _ := h.login(t, "bob", "bob@example.com")

	tests := []struct {
		name string
		to   string
		body any
		want int
	}{
		{"blank message", bobID, map[string]string{"message": "  "}, http.StatusBadRequest},
		{"self", aliceID, map[string]string{"message": "me"}, http.StatusBadRequest},
		{"unknown user", "65a000000000000000000000", map[string]string{"message": "hi"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/v1/message/send/"+tt.to, tt.body, alice)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, false, decode(t, w)["success"])
		})
	}

	w := h.do(t, http.MethodGet, "/api/v1/message/conversations?limit=abc", nil, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPBearerHeaderAccepted(t *testing.T) {
	h := newHTTPHarness(t, httpOptions{})
	_, cookie := h.login(t, "alice", "alice@example.com")

	tests := []struct {
		name   string
		header string
		cookie *http.Cookie
		want   int
	}{
		{"canonical scheme", "Bearer " + cookie.Value, nil, http.StatusOK},
		{"lowercase scheme", "bearer " + cookie.Value, nil, http.StatusOK},
		{"bare token", cookie.Value, nil, http.StatusOK},
		{"stale cookie valid header", "Bearer " + cookie.Value, &http.Cookie{Name: tokenCookie, Value: "expired"}, http.StatusOK},
		{"stale cookie no header", "", &http.Cookie{Name: tokenCookie, Value: "expired"}, http.StatusUnauthorized},
		{"scheme without token", "Bearer", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/message/conversations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			h.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("BEARER   abc "))
	assert.Equal(t, "abc", bearerToken("abc"))
	assert.Equal(t, "", bearerToken("Bearer"))
	assert.Equal(t, "", bearerToken(""))
}

func TestHTTPRateLimitsAccountRoutes(t *testing.T) {
	limiter := middleware.NewLimiterStore(1, 1, time.Minute)
	t.Cleanup(limiter.Stop)
	h := newHTTPHarness(t, httpOptions{limiter: limiter})

	body := map[string]string{"email": "x@example.com", "password": "pw"}
	first := h.do(t, http.MethodPost, "/api/v1/user/login", body)
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := h.do(t, http.MethodPost, "/api/v1/user/login", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// health checks are never limited
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestHTTPMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHTTPHarness(t, httpOptions{gatherer: reg})
	h.env.srv.metrics = metrics.New(reg)
	h.router = h.env.srv.routes(httpOptions{gatherer: reg, corsOrigins: []string{"http://localhost:5173"}})

	require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/", nil).Code)

	w := h.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "http_requests_total"), "expected http metrics in exposition")
}

func TestHTTPCORSPreflight(t *testing.T) {
	h := newHTTPHarness(t, httpOptions{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/user/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

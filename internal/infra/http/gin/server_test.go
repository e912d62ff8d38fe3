package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sprinter/internal/app"
	"sprinter/internal/app/commands"
	"sprinter/internal/app/dto"
	"sprinter/internal/app/middleware"
	domainprediction "sprinter/internal/domain/prediction"
	"sprinter/internal/infra/metrics"
	"sprinter/internal/infra/obs"
	"sprinter/internal/infra/security"
	"sprinter/internal/infra/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEstimator struct{}

func (stubEstimator) Estimate(context.Context, domainprediction.Input) (float64, error) {
	return 11.0, nil
}

func newTestRouter(t *testing.T, limiter *RateLimiter) *gin.Engine {
	t.Helper()
	tokens, err := security.NewJWTIssuer("test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	application, err := app.New(app.Dependencies{
		Users:        memory.NewUserRepository(),
		Predictions:  memory.NewPredictionRepository(),
		Idempotency:  memory.NewIdempotencyStore(time.Hour),
		Outbox:       memory.NewOutbox(),
		Estimator:    stubEstimator{},
		Passwords:    security.BcryptHasher{Cost: bcrypt.MinCost},
		Tokens:       tokens,
		Benchmark:    13.0,
		HistoryLimit: 1000,
		Location:     time.UTC,
	})
	require.NoError(t, err)

	return NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Auth:         AuthHandler{Service: application.Auth},
		Prediction:   PredictionHandler{Commands: application.Commands, Queries: application.Queries},
		Authenticate: AuthMiddleware{Resolver: application.Auth}.Require(),
		AuthLimiter:  limiter,
		Metrics:      metrics.New(),
	})
}

func do(t *testing.T, router http.Handler, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func signup(t *testing.T, router http.Handler, name, email string) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/signup", "", map[string]string{"name": name, "email": email, "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tok dto.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(t, "bearer", tok.TokenType)
	return tok.AccessToken
}

func profile(t *testing.T, router http.Handler, token string) dto.UserProfile {
	t.Helper()
	rec := do(t, router, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p dto.UserProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

var sunnyRace = map[string]any{
	"today_time":   12.0,
	"weather_type": "Sunny",
	"track_type":   "Outdoor",
	"target_date":  "2020-01-01",
}

func TestPublicRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Sprinter Prediction API","status":"running","version":"2.0.0"}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(obs.RequestIDHeader))

	rec = do(t, router, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, json.Valid(rec.Body.Bytes()))

	rec = do(t, router, http.MethodGet, "/swagger", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/swagger/doc.json")

	rec = do(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sprinter_http_requests_total")
}

func TestSignupSigninAndMe(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "Usain", "bolt@example.com")

	me := profile(t, router, token)
	assert.Equal(t, "Usain", me.Name)
	assert.Equal(t, "bolt@example.com", me.Email)
	assert.NotEmpty(t, me.ID)

	rec := do(t, router, http.MethodPost, "/signup", "", map[string]string{"name": "Other", "email": "bolt@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", detail(t, rec))

	rec = do(t, router, http.MethodPost, "/signin", "", map[string]string{"email": "bolt@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/signin", "", map[string]string{"email": "bolt@example.com", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect email or password", detail(t, rec))

	rec = do(t, router, http.MethodPost, "/signin", "", map[string]string{"email": "bolt-at-example", "password": "secret1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid email address", detail(t, rec))
}

func TestSignupValidation(t *testing.T) {
	router := newTestRouter(t, nil)
	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"name":`},
		{"bad email", map[string]string{"name": "Ann", "email": "nope", "password": "secret1"}},
		{"short password", map[string]string{"name": "Ann", "email": "ann@example.com", "password": "123"}},
		{"short name", map[string]string{"name": "A", "email": "ann@example.com", "password": "secret1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/signup", "", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthenticationFailures(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authenticated", detail(t, rec))

	rec = do(t, router, http.MethodGet, "/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid authentication credentials", detail(t, rec))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	tokens, err := security.NewJWTIssuer("test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	ghost, err := tokens.Issue("ghost@example.com", time.Now())
	require.NoError(t, err)
	rec = do(t, router, http.MethodGet, "/me", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User not found", detail(t, rec))

	rec = do(t, router, http.MethodPost, "/predict", "", sunnyRace)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPredictAndHistory(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "Usain", "bolt@example.com")
	me := profile(t, router, token)

	rec := do(t, router, http.MethodPost, "/predict", token, sunnyRace)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp dto.PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.HorizonDays)
	assert.Equal(t, 12.0, resp.AdjustedTime)
	assert.Equal(t, 13.0, resp.Benchmark)
	assert.Equal(t, -1.0, resp.Gap)
	assert.Equal(t, string(domainprediction.VerdictLikelyWinner), resp.Verdict)

	rec = do(t, router, http.MethodGet, "/predictions/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []dto.PredictionHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, me.ID, history[0].UserID)
	assert.Equal(t, "bolt@example.com", history[0].UserEmail)
	assert.Equal(t, "2020-01-01", history[0].Input.TargetDate)
	assert.Equal(t, resp.Verdict, history[0].Output.Verdict)

	rec = do(t, router, http.MethodGet, "/predictions/history/"+me.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)
}

func TestHistoryIsPrivate(t *testing.T) {
	router := newTestRouter(t, nil)
	owner := signup(t, router, "Usain", "bolt@example.com")
	ownerID := profile(t, router, owner).ID
	other := signup(t, router, "Tyson", "gay@example.com")

	rec := do(t, router, http.MethodGet, "/predictions/history/"+ownerID, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized to access this user's history", detail(t, rec))

	rec = do(t, router, http.MethodGet, "/predictions/history", other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestPredictRejectsBadInput(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "Usain", "bolt@example.com")

	rec := do(t, router, http.MethodPost, "/predict", token, map[string]any{
		"today_time": 12.0, "weather_type": "Sunny", "track_type": "Outdoor", "target_date": "15/03/2026",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detail(t, rec), "target_date")

	rec = do(t, router, http.MethodPost, "/predict", token, map[string]any{
		"weather_type": "Sunny", "track_type": "Outdoor", "target_date": "2026-03-15",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, router, http.MethodPost, "/predict", token, `{"today_time": "fast"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPredictAcceptsLooseInput(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "Usain", "bolt@example.com")

	rec := do(t, router, http.MethodPost, "/predict", token, map[string]any{
		"today_time": 12.0, "weather_type": "Sunny", "track_type": "Outdoor", "target_date": "2030-7-4",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/predict", token, map[string]any{
		"today_time": 12.0, "weather_type": "", "track_type": "", "target_date": "2020-01-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/predict", token, map[string]any{
		"today_time": 12.0, "track_type": "Outdoor", "target_date": "2020-01-01",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, router, http.MethodGet, "/predictions/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []dto.PredictionHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "", history[0].Input.WeatherType)
	assert.Equal(t, "2030-7-4", history[1].Input.TargetDate)
}

func TestPredictIdempotencyKeyReplays(t *testing.T) {
	router := newTestRouter(t, nil)
	token := signup(t, router, "Usain", "bolt@example.com")

	first := do(t, router, http.MethodPost, "/predict", token, sunnyRace, "Idempotency-Key", "race-42")
	require.Equal(t, http.StatusOK, first.Code)
	second := do(t, router, http.MethodPost, "/predict", token, sunnyRace, "Idempotency-Key", "race-42")
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	rec := do(t, router, http.MethodGet, "/predictions/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []dto.PredictionHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	router := newTestRouter(t, NewRateLimiter(2, time.Minute))
	creds := map[string]string{"email": "nobody@example.com", "password": "secret1"}

	for i := 0; i < 2; i++ {
		rec := do(t, router, http.MethodPost, "/signin", "", creds)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(t, router, http.MethodPost, "/signin", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	rec = do(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "limiter only guards auth routes")
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := extractBearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestRateLimiterNilIsDisabled(t *testing.T) {
	assert.Nil(t, NewRateLimiter(0, time.Minute))
	var rl *RateLimiter
	router := gin.New()
	router.GET("/x", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", strings.NewReader("")))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type failingBus struct{ err error }

func (b failingBus) Dispatch(context.Context, commands.Command) (any, error) { return nil, b.err }

func TestPredictReportsKeyInFlight(t *testing.T) {
	router := gin.New()
	asUser := func(c *gin.Context) {
		c.Set(principalContextKey, principal{ID: "u1", Email: "bolt@example.com"})
		c.Next()
	}
	h := PredictionHandler{Commands: failingBus{err: middleware.ErrRequestInProgress}}
	router.POST("/predict", asUser, h.Predict)

	rec := do(t, router, http.MethodPost, "/predict", "", sunnyRace, "Idempotency-Key", "race-42")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, detail(t, rec), "Idempotency-Key")
}

package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examguard/internal/app"
	"examguard/internal/auth"
	"examguard/internal/config"
	"examguard/internal/domain"
	"examguard/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	server *Server
	store  store.Store
	admins *auth.Registry
	hub    *app.ExamHub
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "exams.json"), testLogger())
	require.NoError(t, err)

	hub := app.NewExamHub(domain.DefaultQuestionBank(), st, app.DefaultSessionSettings(), time.Hour, testLogger())
	admins := auth.NewRegistry(cfg.Admin.SessionTTL, testLogger())

	t.Cleanup(func() {
		hub.Close()
		admins.Close()
		st.Close()
	})

	return &testEnv{
		server: NewServer(cfg, hub, st, admins, testLogger()),
		store:  st,
		admins: admins,
		hub:    hub,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"admin123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == "admin_session" {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) Response {
	t.Helper()

	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *ErrorInfo      `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return Response{Success: raw.Success, Error: raw.Error}
}

func TestSubmitExam_Created(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/exams", `{
		"studentName": "Ada",
		"score": 4,
		"totalQuestions": 5,
		"cheatingLogs": ["[10:00:01] tab switched"],
		"warningCount": 1,
		"answers": {"0": "Paris", "2": "4"},
		"fullscreenExits": 0
	}`)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var body SubmissionResponse
	resp := decode(t, rec, &body)
	assert.True(t, resp.Success)
	require.NotNil(t, body.Submission)
	assert.NotEmpty(t, body.Submission.ID)
	assert.Equal(t, "Ada", body.Submission.StudentName)
	assert.Equal(t, map[int]string{0: "Paris", 2: "4"}, body.Submission.Answers)

	_, err := time.Parse(time.RFC3339Nano, body.Submission.TimestampISO)
	assert.NoError(t, err)
}

func TestSubmitExam_KeepsLogHash(t *testing.T) {
	env := newTestEnv(t, nil)
	head := strings.Repeat("0f", 32)

	rec := env.do(t, http.MethodPost, "/api/exams", `{"studentName":"Ada","logHash":"`+head+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	list, err := env.store.List(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, head, list[0].LogHash)
}

func TestSubmitExam_CoercesLooseFields(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/exams", `{
		"studentName": "Bo",
		"score": "3",
		"totalQuestions": null,
		"cheatingLogs": "nope",
		"answers": [1, 2]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body SubmissionResponse
	decode(t, rec, &body)
	assert.Equal(t, 3, body.Submission.Score)
	assert.Equal(t, 0, body.Submission.TotalQuestions)
	assert.Empty(t, body.Submission.CheatingLogs)
	assert.Empty(t, body.Submission.Answers)
}

func TestSubmitExam_RejectsMissingName(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, payload := range []string{`{"score": 5}`, `{"studentName": "   "}`, `not json`} {
		rec := env.do(t, http.MethodPost, "/api/exams", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)

		resp := decode(t, rec, nil)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
	}

	rec := env.do(t, http.MethodPost, "/api/exams", `{"score": 5}`)
	resp := decode(t, rec, nil)
	assert.Equal(t, "STUDENT_NAME_REQUIRED", resp.Error.Code)

	list, err := env.store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, list, "nothing persisted")
}

func TestListExams_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/exams", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/exams", "", &http.Cookie{Name: "admin_session", Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListExams_NewestFirst(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, name := range []string{"Ada", "Bo", "Cy"} {
		rec := env.do(t, http.MethodPost, "/api/exams", `{"studentName":"`+name+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	cookie := env.login(t)
	rec := env.do(t, http.MethodGet, "/api/exams", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body SubmissionListResponse
	decode(t, rec, &body)
	require.Len(t, body.Submissions, 3)
	assert.Equal(t, "Cy", body.Submissions[0].StudentName)
	assert.Equal(t, "Ada", body.Submissions[2].StudentName)
}

func TestAdminLogin_Cookie(t *testing.T) {
	env := newTestEnv(t, nil)

	cookie := env.login(t)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 86400, cookie.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.False(t, cookie.Secure)

	rec := env.do(t, http.MethodGet, "/api/admin/session", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminLogin_SecureInProduction(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Server.Env = "production" })

	assert.True(t, env.login(t).Secure)
}

func TestAdminLogin_Rejected(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/admin/login", `{"username":"admin","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 0, env.admins.Count())

	rec = env.do(t, http.MethodPost, "/api/admin/login", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminLogout_RevokesAndClears(t *testing.T) {
	env := newTestEnv(t, nil)

	cookie := env.login(t)
	rec := env.do(t, http.MethodPost, "/api/admin/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "admin_session", cleared[0].Name)
	assert.Empty(t, cleared[0].Value)
	assert.Negative(t, cleared[0].MaxAge)

	rec = env.do(t, http.MethodGet, "/api/exams", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQuestions_HideAnswers(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/questions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "correct")

	var body QuestionsResponse
	decode(t, rec, &body)
	assert.Equal(t, 5, body.Total)
	require.Len(t, body.Questions, 5)
	assert.NotEmpty(t, body.Questions[0].Options)
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.hub.CreateSession(app.Capabilities{})
	env.login(t)

	rec := env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/stats", "")
	var stats StatsResponse
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 0, stats.InProgressSessions)
	assert.Equal(t, 1, stats.AdminSessions)
}

func TestMiddleware_PreflightAndCORS(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Server.AllowedOrigins = []string{"http://exam.local"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/exams", nil)
	req.Header.Set("Origin", "http://exam.local")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://exam.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMiddleware_UnlistedOriginGetsNoCORS(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Server.AllowedOrigins = []string{"http://exam.local"}
	})
	cookie := env.login(t)

	rec := env.do(t, http.MethodPost, "/api/exams", `{"studentName":"Ada"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, method := range []string{http.MethodOptions, http.MethodGet} {
		req := httptest.NewRequest(method, "/api/exams", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), method)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"), method)
		assert.Contains(t, rec.Header().Values("Vary"), "Origin", method)
	}
}

func TestMiddleware_NoOriginsAllowedByDefault(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

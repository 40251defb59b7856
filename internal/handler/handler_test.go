package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohort/internal/attendance"
	"cohort/internal/auth"
	"cohort/internal/feedback"
	"cohort/internal/loginlog"
	"cohort/internal/profile"
	"cohort/internal/queue"
	"cohort/internal/schedule"
	"cohort/internal/store"
	"cohort/internal/submission"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "cohort-test"
	student    = "ada@example.com"
	admin      = "grace@example.com"
)

type testEnv struct {
	router *gin.Engine
	db     *store.DB
	queue  *queue.InMemory
}

func newTestEnv(t *testing.T, withRecorder bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := store.NewDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cal := schedule.DefaultConfig()
	now := time.Date(2026, 1, 20, 9, 5, 0, 0, cal.Location)

	profiles := profile.NewRepository(db, cal.TotalTeams)
	_, _, err = profiles.EnsureProfile(ctx, student, "Ada", profile.RoleStudent)
	require.NoError(t, err)
	_, _, err = profiles.EnsureProfile(ctx, admin, "Grace", profile.RoleAdmin)
	require.NoError(t, err)

	q := queue.NewInMemory(8)
	d := Deps{
		DB:          db,
		Attendance:  attendance.NewService(attendance.NewRepository(db), cal, func() time.Time { return now }),
		Profiles:    profiles,
		Submissions: submission.NewRepository(db),
		Feedback:    feedback.NewRepository(db),
		Logins:      loginlog.NewRepository(db),
		SigningKey:  testKey,
		Issuer:      testIssuer,
	}
	if withRecorder {
		d.Recorder = loginlog.NewRecorder(q)
	}

	r := gin.New()
	New(d).Register(r)
	return &testEnv{router: r, db: db, queue: q}
}

func (e *testEnv) do(t *testing.T, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		tok, err := auth.Issue(email, "", testIssuer, testKey, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/v1/attendance/checkin", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckInFlow(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/v1/attendance/checkin", student, gin.H{"comment": "on time"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	rec := body["attendance"].(map[string]any)
	assert.Equal(t, "2026-01-20", rec["date"])
	assert.Equal(t, "present", rec["status"])

	w = env.do(t, http.MethodPost, "/v1/attendance/checkin", student, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Equal(t, "Already checked in today", body["error"])
	assert.Equal(t, "present", body["attendance"].(map[string]any)["status"])

	w = env.do(t, http.MethodGet, "/v1/attendance/checkin", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["checkedIn"])
	assert.Len(t, body["recentAttendance"], 1)
}

func TestCheckIn_UnknownStudent(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/v1/attendance/checkin", "ghost@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutes_RejectStudents(t *testing.T) {
	env := newTestEnv(t, false)
	for _, path := range []string{"/v1/admin/attendance", "/v1/admin/attendance/export", "/v1/admin/login-history"} {
		w := env.do(t, http.MethodGet, path, student, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
}

func TestMarkAndCycle(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/v1/admin/attendance", admin, gin.H{
		"studentEmail": student, "date": "2026-01-21", "status": "excused",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decode(t, w)["attendance"].(map[string]any)
	assert.Equal(t, "admin", rec["markedBy"])

	w = env.do(t, http.MethodPost, "/v1/admin/attendance", admin, gin.H{
		"studentEmail": student, "date": "2026-01-21", "status": "sleeping",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/admin/attendance", admin, gin.H{
		"studentEmail": "ghost@example.com", "date": "2026-01-21", "status": "present",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/v1/admin/attendance/cycle", admin, gin.H{
		"studentEmail": student, "date": "2026-01-21",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["changed"])
	assert.Equal(t, "absent", body["attendance"].(map[string]any)["status"])
}

func TestExportAttendance(t *testing.T) {
	env := newTestEnv(t, false)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/v1/attendance/checkin", student, nil).Code)

	w := env.do(t, http.MethodGet, "/v1/admin/attendance/export?from=2026-01-19&to=2026-01-23", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	assert.Equal(t, `attachment; filename="attendance_report_2026-01-20.csv"`, w.Header().Get("Content-Disposition"))

	lines := strings.Split(w.Body.String(), "\n")
	assert.Equal(t, "Student Name,Email,Team,Mon 2026-01-19,Tue 2026-01-20,Wed 2026-01-21,Thu 2026-01-22,Fri 2026-01-23,Present,Late,Excused,Absent,Rate %", lines[0])
	assert.Equal(t, "Ada,ada@example.com,-,,✓,,,,1,0,0,0,33%", lines[1])

	w = env.do(t, http.MethodGet, "/v1/admin/attendance/export?from=2026-02-01&to=2026-01-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/v1/admin/attendance/export?from=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCohortStats_InvalidRange(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/v1/admin/attendance/stats?from=2026-02-01&to=2026-01-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/v1/admin/attendance/stats?from=2026-01-19&to=2026-01-23", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfileFlow(t *testing.T) {
	env := newTestEnv(t, false)
	const newcomer = "linus@example.com"

	w := env.do(t, http.MethodGet, "/v1/me", newcomer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["exists"])

	w = env.do(t, http.MethodPost, "/v1/me", newcomer, gin.H{"name": "Linus"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Profile created", body["message"])
	assert.Equal(t, "student", body["student"].(map[string]any)["role"])

	w = env.do(t, http.MethodPut, "/v1/admin/students/"+newcomer+"/team", admin, gin.H{"team": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/v1/me", newcomer, nil)
	body = decode(t, w)
	assert.Equal(t, true, body["exists"])
	assert.EqualValues(t, 4, body["student"].(map[string]any)["team"])

	w = env.do(t, http.MethodGet, "/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.EqualValues(t, 2, stats["students"])
	assert.EqualValues(t, 1, stats["teams"])
}

func TestSubmissions(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/v1/submissions", student, gin.H{
		"title": "Week 1", "workDone": "set up the repo", "status": "green",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["submissionId"])

	w = env.do(t, http.MethodPost, "/v1/submissions", student, gin.H{"title": "", "status": "blue"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/v1/submissions", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Ada", body["studentName"])
	assert.Len(t, body["submissions"], 1)

	w = env.do(t, http.MethodGet, "/v1/admin/submissions", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["totalSubmissions"])
}

func TestFeedbackVoteAndUpdate(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/v1/feedback", student, gin.H{
		"type": "bug", "title": "Broken button", "description": "It does nothing",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decode(t, w)["feedbackId"].(string)

	w = env.do(t, http.MethodPatch, "/v1/feedback", admin, gin.H{"feedbackId": id, "action": "vote"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["voted"])

	w = env.do(t, http.MethodPatch, "/v1/feedback", student, gin.H{"feedbackId": id, "action": "update", "status": "resolved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPatch, "/v1/feedback", admin, gin.H{"feedbackId": id, "action": "update", "status": "resolved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPatch, "/v1/feedback", admin, gin.H{"feedbackId": "missing", "action": "vote"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPatch, "/v1/feedback", admin, gin.H{"feedbackId": id, "action": "delete"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/v1/feedback", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["feedback"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.EqualValues(t, 2, item["voteCount"])
	assert.Equal(t, "resolved", item["status"])
}

func TestLogLogin_StoresDirectlyWithoutRecorder(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/v1/auth/log-login", "", gin.H{"email": student, "success": false, "errorMessage": "wrong password"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = env.do(t, http.MethodGet, "/v1/admin/login-history?email=ADA&success=false", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	events := body["events"].([]any)
	require.Len(t, events, 1)
	assert.Equal(t, "wrong password", events[0].(map[string]any)["errorMessage"])
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])

	w = env.do(t, http.MethodGet, "/v1/admin/login-history?startDate=not-a-date", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogLogin_Queued(t *testing.T) {
	env := newTestEnv(t, true)

	w := env.do(t, http.MethodPost, "/v1/auth/log-login", "", gin.H{"email": student, "success": true})
	require.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := env.queue.Consume(ctx)
	require.NoError(t, err)

	msg := <-msgs
	e, err := loginlog.Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, student, e.Email)
	assert.True(t, e.Success)
}

func TestLogLogin_MemoryQueueIsDrained(t *testing.T) {
	env := newTestEnv(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loginlog.NewRepository(env.db).Serve(ctx, env.queue)

	for i := 0; i < 20; i++ {
		w := env.do(t, http.MethodPost, "/v1/auth/log-login", "", gin.H{"email": student, "success": true})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, true, decode(t, w)["success"])
	}

	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/v1/admin/login-history?email=ada", admin, nil)
		if w.Code != http.StatusOK {
			return false
		}
		var page loginlog.Page
		return json.Unmarshal(w.Body.Bytes(), &page) == nil && page.Pagination.Total == 20
	}, 5*time.Second, 20*time.Millisecond)
}

func TestParseBound(t *testing.T) {
	start, err := parseBound("2026-01-20", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), start)

	end, err := parseBound("2026-01-20", true)
	require.NoError(t, err)
	assert.Equal(t, 2026, end.Year())
	assert.Equal(t, 23, end.Hour())

	ts, err := parseBound("2026-01-20T08:00:00+01:00", false)
	require.NoError(t, err)
	assert.Equal(t, 7, ts.UTC().Hour())

	_, err = parseBound("20/01/2026", false)
	assert.Error(t, err)
}

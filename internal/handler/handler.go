package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/attendance"
	"cohort/internal/auth"
	"cohort/internal/chat"
	"cohort/internal/feedback"
	"cohort/internal/httpmiddleware"
	"cohort/internal/loginlog"
	"cohort/internal/metrics"
	"cohort/internal/profile"
	"cohort/internal/store"
	"cohort/internal/submission"
)

// Deps wires the handler to its collaborators. Chat and Redis may be nil.
type Deps struct {
	DB          *store.DB
	Redis       *store.Redis
	Attendance  *attendance.Service
	Profiles    *profile.Repository
	Submissions *submission.Repository
	Feedback    *feedback.Repository
	Logins      *loginlog.Repository
	Recorder    *loginlog.Recorder
	Chat        *chat.Hub
	Limiter     *httpmiddleware.TokenBucket
	SigningKey  string
	Issuer      string
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	return &Handler{Deps: d}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.Use(metrics.Instrument())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/v1")
	if h.Limiter != nil {
		public.Use(h.Limiter.GinMiddleware())
	}
	public.POST("/auth/log-login", h.LogLogin)
	public.GET("/stats", h.CourseStats)

	authed := r.Group("/v1", auth.Authenticate(h.SigningKey, h.Issuer))
	if h.Limiter != nil {
		authed.Use(h.Limiter.GinMiddleware())
	}
	{
		authed.GET("/me", h.GetProfile)
		authed.POST("/me", h.CreateProfile)

		authed.GET("/attendance/checkin", h.TodayStatus)
		authed.POST("/attendance/checkin", h.CheckIn)

		authed.GET("/submissions", h.ListOwnSubmissions)
		authed.POST("/submissions", h.Submit)

		authed.GET("/feedback", h.ListFeedback)
		authed.POST("/feedback", h.SubmitFeedback)
		authed.PATCH("/feedback", h.PatchFeedback)

		authed.GET("/teams/standings", h.Standings)

		if h.Chat != nil {
			authed.GET("/chat/:room", h.ChatHistory)
			authed.POST("/chat/:room", h.ChatPost)
			authed.GET("/chat/:room/stream", h.ChatStream)
		}
	}

	admin := authed.Group("/admin", auth.RequireAdmin(h.Profiles))
	{
		admin.GET("/attendance", h.AttendanceOverview)
		admin.POST("/attendance", h.MarkAttendance)
		admin.POST("/attendance/cycle", h.CycleAttendance)
		admin.GET("/attendance/export", h.ExportAttendance)
		admin.GET("/attendance/stats", h.CohortStats)
		admin.PUT("/students/:email/team", h.SetTeam)
		admin.GET("/submissions", h.ListAllSubmissions)
		admin.GET("/login-history", h.LoginHistory)
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := h.DB.Ping(ctx)
	body := gin.H{"status": "ok", "db": dbHealthy}
	status := http.StatusOK

	if h.Redis != nil {
		redisHealthy := h.Redis.Healthy(ctx)
		body["redis"] = redisHealthy
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
	}
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// ---------- helpers ----------

func claims(c *gin.Context) auth.Claims {
	cl, _ := auth.FromContext(c)
	return cl
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}

// internalError logs err and hides it from the caller.
func internalError(c *gin.Context, op string, err error) {
	logger.Error.Printf("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

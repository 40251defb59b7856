package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_checkins_total",
			Help: "Total number of self check-ins by resulting status",
		},
		[]string{"status"},
	)

	AdminMarksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_admin_marks_total",
			Help: "Total number of admin attendance marks by status",
		},
		[]string{"status"},
	)

	ReportExportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_report_exports_total",
			Help: "Total number of CSV attendance exports",
		},
	)

	LoginEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_events_total",
			Help: "Login events persisted by the worker",
		},
		[]string{"success"},
	)

	// no room label: room names come from callers
	ChatMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages posted",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

// Instrument observes request durations by route template.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		APIRequestDuration.WithLabelValues(
			path,
			c.Request.Method,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

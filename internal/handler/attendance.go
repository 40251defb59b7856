package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/attendance"
	"cohort/internal/report"
	"cohort/internal/schedule"
)

// ---------- Student check-in ----------

func (h *Handler) TodayStatus(c *gin.Context) {
	status, err := h.Attendance.Today(c.Request.Context(), claims(c).Email)
	if errors.Is(err, attendance.ErrStudentNotFound) {
		notFound(c, "student not found")
		return
	}
	if err != nil {
		internalError(c, "today status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type checkInRequest struct {
	Comment string `json:"comment" binding:"max=500"`
}

// CheckIn records the caller's attendance for today. A repeated check-in is
// answered with the record already stored.
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	email := claims(c).Email
	rec, err := h.Attendance.CheckIn(c.Request.Context(), email, req.Comment)

	var already *attendance.AlreadyCheckedInError
	switch {
	case errors.As(err, &already):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Already checked in today",
			"attendance": already.Existing,
		})
		return
	case errors.Is(err, attendance.ErrStudentNotFound):
		notFound(c, "student not found")
		return
	case err != nil:
		internalError(c, "check in", err)
		return
	}

	logger.Info.Printf("Check-in %s for %s on %s", rec.Status, email, rec.Date)
	message := "Checked in"
	if rec.Status == attendance.StatusLate {
		message = "Checked in late"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "attendance": rec, "message": message})
}

func (h *Handler) Standings(c *gin.Context) {
	standings, err := h.Attendance.Standings(c.Request.Context())
	if err != nil {
		internalError(c, "standings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"standings": standings})
}

// ---------- Admin ----------

func (h *Handler) AttendanceOverview(c *gin.Context) {
	overview, err := h.Attendance.Overview(c.Request.Context())
	if err != nil {
		internalError(c, "overview", err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	var in attendance.MarkInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	rec, err := h.Attendance.Mark(c.Request.Context(), claims(c).Email, in)
	switch {
	case errors.Is(err, attendance.ErrInvalidMark):
		badRequest(c, err)
		return
	case errors.Is(err, attendance.ErrStudentNotFound):
		notFound(c, "student not found")
		return
	case err != nil:
		internalError(c, "mark", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "attendance": rec})
}

type cycleRequest struct {
	StudentEmail string `json:"studentEmail" binding:"required,email"`
	Date         string `json:"date" binding:"required"`
}

func (h *Handler) CycleAttendance(c *gin.Context) {
	var req cycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rec, changed, err := h.Attendance.Cycle(c.Request.Context(), claims(c).Email, req.StudentEmail, req.Date)
	switch {
	case errors.Is(err, attendance.ErrInvalidMark):
		badRequest(c, err)
		return
	case errors.Is(err, attendance.ErrStudentNotFound):
		notFound(c, "student not found")
		return
	case err != nil:
		internalError(c, "cycle", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "changed": changed, "attendance": rec})
}

// ExportAttendance serves the CSV report for ?from=&to= as a download.
func (h *Handler) ExportAttendance(c *gin.Context) {
	var r schedule.Range
	if err := c.ShouldBindQuery(&r); err != nil {
		badRequest(c, err)
		return
	}

	out, err := report.Export(c.Request.Context(), h.Attendance, r)
	if errors.Is(err, schedule.ErrInvalidDateRange) {
		badRequest(c, err)
		return
	}
	if err != nil {
		internalError(c, "export", err)
		return
	}

	filename := report.Filename(h.Attendance.CurrentDate())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

func (h *Handler) CohortStats(c *gin.Context) {
	var r schedule.Range
	if err := c.ShouldBindQuery(&r); err != nil {
		badRequest(c, err)
		return
	}
	for _, d := range []string{r.From, r.To} {
		if d != "" && !schedule.ValidDate(d) {
			badRequest(c, schedule.ErrInvalidDateRange)
			return
		}
	}

	stats, err := h.Attendance.Cohort(c.Request.Context(), r)
	if errors.Is(err, schedule.ErrInvalidDateRange) {
		badRequest(c, err)
		return
	}
	if err != nil {
		internalError(c, "cohort stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

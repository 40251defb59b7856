package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/loginlog"
	"cohort/internal/schedule"
)

type logLoginRequest struct {
	Email        string `json:"email" binding:"required"`
	Success      bool   `json:"success"`
	Method       string `json:"method" binding:"omitempty,oneof=password email_link"`
	UserID       string `json:"userId"`
	ErrorMessage string `json:"errorMessage"`
}

// LogLogin accepts a sign-in event from the client. Recording is best
// effort: the caller always gets 200 and only learns whether it was stored.
func (h *Handler) LogLogin(c *gin.Context) {
	var req logLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ua := c.Request.UserAgent()
	if ua == "" {
		ua = "Unknown"
	}
	e := loginlog.Event{
		Email:        strings.TrimSpace(req.Email),
		Timestamp:    time.Now().UTC(),
		Success:      req.Success,
		IPAddress:    c.ClientIP(),
		UserAgent:    ua,
		Method:       req.Method,
		UserID:       req.UserID,
		ErrorMessage: req.ErrorMessage,
	}

	ctx := c.Request.Context()
	ok := true
	if h.Recorder == nil || h.Recorder.Record(ctx, e) != nil {
		// a full queue may have used up the request deadline
		if _, err := h.Logins.Insert(context.WithoutCancel(ctx), e); err != nil {
			logger.Error.Printf("Failed to store login event for %s: %v", e.Email, err)
			ok = false
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": ok})
}

// LoginHistory lists sign-in events. startDate and endDate take RFC 3339 or
// a plain date.
func (h *Handler) LoginHistory(c *gin.Context) {
	f := loginlog.Filter{Email: strings.TrimSpace(c.Query("email"))}

	if s := c.Query("success"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid success value %q", s))
			return
		}
		f.Success = &v
	}

	var err error
	if f.Start, err = parseBound(c.Query("startDate"), false); err != nil {
		badRequest(c, err)
		return
	}
	if f.End, err = parseBound(c.Query("endDate"), true); err != nil {
		badRequest(c, err)
		return
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		badRequest(c, err)
		return
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.Logins.List(c.Request.Context(), f)
	if err != nil {
		internalError(c, "login history", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// parseBound reads a timestamp bound. A plain end date covers the whole day.
func parseBound(s string, end bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(schedule.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}

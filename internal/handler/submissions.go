package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cohort/internal/profile"
	"cohort/internal/submission"
)

func (h *Handler) ListOwnSubmissions(c *gin.Context) {
	ctx := c.Request.Context()
	email := claims(c).Email

	list, err := h.Submissions.ListOwn(ctx, email)
	if err != nil {
		internalError(c, "list submissions", err)
		return
	}

	name := ""
	p, err := h.Profiles.Get(ctx, email)
	switch {
	case err == nil:
		name = p.Name
	case !errors.Is(err, profile.ErrNotFound):
		internalError(c, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": list, "studentName": name})
}

func (h *Handler) Submit(c *gin.Context) {
	var in submission.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	s, err := h.Submissions.Submit(c.Request.Context(), claims(c).Email, in)
	switch {
	case errors.Is(err, submission.ErrInvalid):
		badRequest(c, err)
		return
	case errors.Is(err, submission.ErrStudentNotFound):
		notFound(c, "student not found")
		return
	case err != nil:
		internalError(c, "submit", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submissionId": s.ID, "submission": s})
}

func (h *Handler) ListAllSubmissions(c *gin.Context) {
	overview, err := h.Submissions.ListAll(c.Request.Context())
	if err != nil {
		internalError(c, "list all submissions", err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

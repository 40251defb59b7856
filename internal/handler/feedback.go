package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cohort/internal/feedback"
)

func (h *Handler) ListFeedback(c *gin.Context) {
	items, err := h.Feedback.List(c.Request.Context())
	if err != nil {
		internalError(c, "list feedback", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": items})
}

func (h *Handler) SubmitFeedback(c *gin.Context) {
	var in feedback.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	cl := claims(c)
	id, err := h.Feedback.Submit(c.Request.Context(), feedback.Author{Name: cl.Name, Email: cl.Email}, in)
	if errors.Is(err, feedback.ErrInvalid) {
		badRequest(c, err)
		return
	}
	if err != nil {
		internalError(c, "submit feedback", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "feedbackId": id})
}

type patchFeedbackRequest struct {
	FeedbackID    string           `json:"feedbackId" binding:"required"`
	Action        string           `json:"action" binding:"required"`
	Status        *feedback.Status `json:"status"`
	AdminResponse *string          `json:"adminResponse"`
}

// PatchFeedback toggles the caller's vote (action "vote") or applies an admin
// change (action "update").
func (h *Handler) PatchFeedback(c *gin.Context) {
	var req patchFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	email := claims(c).Email

	switch req.Action {
	case "vote":
		voted, err := h.Feedback.ToggleVote(ctx, req.FeedbackID, email)
		if errors.Is(err, feedback.ErrNotFound) {
			notFound(c, "feedback not found")
			return
		}
		if err != nil {
			internalError(c, "vote", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "voted": voted})

	case "update":
		admin, err := h.Profiles.IsAdmin(ctx, email)
		if err != nil {
			internalError(c, "admin check", err)
			return
		}
		if !admin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		err = h.Feedback.Update(ctx, req.FeedbackID, feedback.Change{Status: req.Status, AdminResponse: req.AdminResponse})
		switch {
		case errors.Is(err, feedback.ErrInvalid):
			badRequest(c, err)
			return
		case errors.Is(err, feedback.ErrNotFound):
			notFound(c, "feedback not found")
			return
		case err != nil:
			internalError(c, "update feedback", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action " + req.Action})
	}
}

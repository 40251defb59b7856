package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shrimpsizemoose/trekker/logger"

	"cohort/internal/profile"
)

func (h *Handler) GetProfile(c *gin.Context) {
	email := claims(c).Email
	p, err := h.Profiles.Get(c.Request.Context(), email)
	if errors.Is(err, profile.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"exists": false, "email": email, "role": nil})
		return
	}
	if err != nil {
		internalError(c, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": true, "email": p.Email, "role": p.Role, "student": p})
}

type createProfileRequest struct {
	Name string `json:"name" binding:"max=200"`
}

// CreateProfile signs the caller up as a student. Calling it again returns
// the existing profile unchanged.
func (h *Handler) CreateProfile(c *gin.Context) {
	var req createProfileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	cl := claims(c)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = cl.Name
	}

	p, created, err := h.Profiles.EnsureProfile(c.Request.Context(), cl.Email, name, profile.RoleStudent)
	if err != nil {
		internalError(c, "create profile", err)
		return
	}

	message := "Profile already exists"
	if created {
		message = "Profile created"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "student": p})
}

// CourseStats is public. On a storage error it still answers with the
// configured team count.
func (h *Handler) CourseStats(c *gin.Context) {
	stats, err := h.Profiles.Stats(c.Request.Context())
	if err != nil {
		logger.Error.Printf("Failed to compute course stats: %v", err)
		stats = profile.CourseStats{Teams: h.Attendance.Calendar().TotalTeams}
	}
	c.JSON(http.StatusOK, stats)
}

type teamRequest struct {
	Team *int `json:"team" binding:"omitempty,min=1,max=99"`
}

func (h *Handler) SetTeam(c *gin.Context) {
	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.Profiles.SetTeam(c.Request.Context(), c.Param("email"), req.Team)
	if errors.Is(err, profile.ErrNotFound) {
		notFound(c, "profile not found")
		return
	}
	if err != nil {
		internalError(c, "set team", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

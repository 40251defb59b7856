package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cohort/internal/chat"
)

func (h *Handler) ChatHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.Chat.History(c.Request.Context(), c.Param("room"), limit)
	if isAny(err, chat.ErrInvalidRoom) {
		badRequest(c, err)
		return
	}
	if err != nil {
		internalError(c, "chat history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type chatPostRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) ChatPost(c *gin.Context) {
	var req chatPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cl := claims(c)
	msg, err := h.Chat.Post(c.Request.Context(), c.Param("room"), chat.Message{
		Author: cl.DisplayName(),
		Email:  cl.Email,
		Text:   req.Text,
	})
	if isAny(err, chat.ErrInvalidRoom, chat.ErrEmptyText) {
		badRequest(c, err)
		return
	}
	if err != nil {
		internalError(c, "chat post", err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// ChatStream pushes new room messages as server-sent events until the
// client goes away.
func (h *Handler) ChatStream(c *gin.Context) {
	ctx := c.Request.Context()
	msgs, stop, err := h.Chat.Subscribe(ctx, c.Param("room"))
	if isAny(err, chat.ErrInvalidRoom) {
		badRequest(c, err)
		return
	}
	if err != nil {
		internalError(c, "chat subscribe", err)
		return
	}
	defer stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-msgs:
			if !ok {
				return false
			}
			c.SSEvent("message", msg)
			return true
		}
	})
}

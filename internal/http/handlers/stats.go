package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// DailyStats returns the last closed generation of a game.
func (h *Handler) DailyStats(c *gin.Context) {
	st, err := h.Results.DailyStats(c.Request.Context(), gameParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// MyResults returns the caller's finished puzzles, newest first.
func (h *Handler) MyResults(c *gin.Context) {
	_, uid, _ := getSession(c)

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	results, err := h.Results.History(c.Request.Context(), uid, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

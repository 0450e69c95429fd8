package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLeaderboard returns the top scores of the current generation
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	gen, top, err := h.Results.Leaderboard(c.Request.Context(), gameParam(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game":        c.Param("game"),
		"generation":  gen,
		"leaderboard": top,
	})
}

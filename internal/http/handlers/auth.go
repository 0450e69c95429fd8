package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"puzzle_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	InitData string `json:"init_data"`
}

// Auth exchanges host init data for a signed identity token.
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}

	var user *service.TelegramUser
	if h.cfg.DevMode {
		// DEV MODE: пропускаем валидацию
		user = devUser(req.InitData)
	} else {
		if len(req.InitData) > 4096 {
			badRequest(c, "init_data too long")
			return
		}

		values, ok := service.ValidateTelegramInitData(req.InitData, h.cfg.BotToken)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or stale telegram data", "code": "identity_invalid"})
			return
		}

		u, err := service.ParseTelegramUser(values)
		if err != nil {
			badRequest(c, "invalid user json")
			return
		}
		user = u
	}

	userID := strconv.FormatInt(user.ID, 10)
	token, err := h.Identity.Issue(userID, user.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity": token,
		"user": gin.H{
			"id":         userID,
			"username":   user.Username,
			"first_name": user.FirstName,
		},
	})
}

// devUser парсит ID из init_data вида {"id":N} (или использует дефолт)
func devUser(initData string) *service.TelegramUser {
	var userID int64 = 12345
	if i := strings.Index(initData, "\"id\":"); i >= 0 {
		start := i + 5
		end := start
		for end < len(initData) && initData[end] >= '0' && initData[end] <= '9' {
			end++
		}
		if parsed, err := strconv.ParseInt(initData[start:end], 10, 64); err == nil {
			userID = parsed
		}
	}
	return &service.TelegramUser{
		ID:        userID,
		Username:  "testuser" + strconv.FormatInt(userID, 10),
		FirstName: "Test",
	}
}

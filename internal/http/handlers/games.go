package handlers

import (
	"net/http"

	"puzzle_webapp/internal/domain"
	"puzzle_webapp/internal/logger"

	"github.com/gin-gonic/gin"
)

// stateRef is the part of the client's copy the server reads: the epoch
// it believes it is playing.
type stateRef struct {
	Epoch *int64 `json:"epoch"`
}

type updateRequest struct {
	State  stateRef      `json:"state"`
	Action domain.Action `json:"action"`
}

type houseTurnRequest struct {
	State stateRef `json:"state"`
}

type gameInfo struct {
	Game  domain.GameType `json:"game"`
	Rules interface{}     `json:"rules"`
}

// ListGames returns the registered games and their rules.
func (h *Handler) ListGames(c *gin.Context) {
	list := h.Engine.Games().List()
	out := make([]gameInfo, 0, len(list))
	for _, g := range list {
		out = append(out, gameInfo{Game: g.Type(), Rules: g.Rules()})
	}
	c.JSON(http.StatusOK, gin.H{
		"games":      out,
		"house_mode": h.Engine.HouseMode(),
	})
}

func (h *Handler) StartGame(c *gin.Context) {
	sid, _, _ := getSession(c)
	st, err := h.Engine.Start(c.Request.Context(), sid, gameParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) ResetGame(c *gin.Context) {
	sid, _, _ := getSession(c)
	st, err := h.Engine.Reset(c.Request.Context(), sid, gameParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// UpdateGame dispatches one player action. Illegal and wrong moves are
// normal 200 outcomes; only an epoch conflict is 409.
func (h *Handler) UpdateGame(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}
	if req.State.Epoch == nil {
		badRequest(c, "state.epoch is required")
		return
	}

	sid, _, _ := getSession(c)
	ctx := logger.NewContext(c.Request.Context(), "game", c.Param("game"))
	res, err := h.Engine.Dispatch(ctx, sid, gameParam(c), *req.State.Epoch, req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HouseTurn applies the pending opponent reply. The body is optional; a
// stale epoch in it is answered with a conflict.
func (h *Handler) HouseTurn(c *gin.Context) {
	var req houseTurnRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "bad request")
			return
		}
	}

	sid, _, _ := getSession(c)
	ctx := c.Request.Context()
	res, err := h.Engine.HouseTurn(ctx, sid, gameParam(c), req.State.Epoch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Package api serves the small public HTTP surface next to the socket server.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nimnim111/LeetDuel-Online/internal/game"
	"github.com/nimnim111/LeetDuel-Online/internal/model"
)

const (
	defaultLadderLimit = 50
	maxLadderLimit     = 500
)

// Lobby is the part of the game manager the lobby listing needs.
type Lobby interface {
	OpenParties() []game.PartySummary
	PartyCount() int
}

type Handler struct {
	Rankings model.RankingStore
	Lobby    Lobby
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/", h.alive)
	r.GET("/health", h.health)
	r.GET("/ladder", h.ladder)
	r.GET("/ladder/user/:uid", h.ladderUser)
	r.GET("/parties", h.parties)
}

func (h *Handler) alive(c *gin.Context) {
	c.String(http.StatusOK, "LeetDuel server is running")
}

func (h *Handler) health(c *gin.Context) {
	body := gin.H{"ok": true, "time": time.Now().UTC()}
	if h.Lobby != nil {
		body["parties"] = h.Lobby.PartyCount()
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) ladder(c *gin.Context) {
	limit := defaultLadderLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = min(n, maxLadderLimit)
	}
	top, err := h.Rankings.TopN(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("ladder query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ladder_unavailable"})
		return
	}
	if top == nil {
		top = []model.RankRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"ladder": top})
}

func (h *Handler) ladderUser(c *gin.Context) {
	rec, err := h.Rankings.Get(c.Request.Context(), c.Param("uid"))
	if errors.Is(err, model.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("uid", c.Param("uid")).Msg("ladder lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ladder_unavailable"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) parties(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"parties": h.Lobby.OpenParties()})
}

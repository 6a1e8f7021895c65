package lobby

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"TripleTriad/internal/catalog"
	"TripleTriad/internal/game/engine"
	"TripleTriad/internal/game/rules"
	"TripleTriad/internal/matchstore"
)

// Mover 走 HTTP 的出牌入口（GameManager 实现）
type Mover interface {
	Submit(ctx context.Context, id, address string, hand, cell int) (*matchstore.Record, error)
}

type Handler struct {
	svc   *Service
	moves Mover
}

func NewHandler(svc *Service, moves Mover) *Handler {
	return &Handler{svc: svc, moves: moves}
}

// Register mounts the game routes on an authenticated group.
func (h *Handler) Register(g gin.IRoutes) {
	g.POST("/games", h.Create)
	g.POST("/games/:id/join", h.Join)
	g.GET("/games/:id", h.Get)
	g.POST("/games/:id/moves", h.Move)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrGameNotFound), errors.Is(err, matchstore.ErrNotFound), errors.Is(err, catalog.ErrDeckNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyStarted), errors.Is(err, matchstore.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrSamePlayer), errors.Is(err, engine.ErrNotInMatch):
		return http.StatusForbidden
	case errors.Is(err, rules.ErrInvalidMove), errors.Is(err, engine.ErrNotStarted):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

// POST /games  body: {deckId}
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.Create(c.Request.Context(), c.GetString("address"), req.DeckID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(rec))
}

// POST /games/:id/join  body: {deckId}
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.svc.Join(c.Request.Context(), c.Param("id"), c.GetString("address"), req.DeckID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(rec))
}

// GET /games/:id
func (h *Handler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(rec))
}

// POST /games/:id/moves  body: {hand, cell}
func (h *Handler) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.moves.Submit(c.Request.Context(), c.Param("id"), c.GetString("address"), *req.Hand, *req.Cell)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(rec))
}

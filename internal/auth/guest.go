package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const guestPrefix = "guest:"

// POST /auth/guest 无钱包的临时身份
func (h *Handler) Guest(c *gin.Context) {
	address := guestPrefix + uuid.NewString()
	jwtStr, err := h.issueToken(address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jwt": jwtStr, "address": address})
}

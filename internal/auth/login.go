package auth

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"TripleTriad/internal/utils"
)

const defaultNonceTTL = 5 * time.Minute

type LoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
}

type Handler struct {
	nonces   NonceStore
	secret   []byte
	tokenTTL time.Duration
	nonceTTL time.Duration
}

// 工厂方法：创建 handler
func NewHandler(nonces NonceStore, secret string, tokenTTL time.Duration) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Handler{
		nonces:   nonces,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		nonceTTL: defaultNonceTTL,
	}
}

// Register mounts the auth routes.
func (h *Handler) Register(g gin.IRoutes) {
	g.GET("/nonce", h.Nonce)
	g.POST("/nonce", h.Nonce)
	g.POST("/login", h.Login)
	g.POST("/guest", h.Guest)
}

// SignMessage is the text the wallet signs with personal_sign.
func SignMessage(nonce string) string {
	return "Sign this message to authenticate with Triad. Nonce: " + nonce
}

// recoverAddress 按 MetaMask personal_sign 的格式恢复签名者地址
func recoverAddress(msg, signature string) (string, error) {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	hash := crypto.Keccak256Hash([]byte(prefix))

	sig := strings.TrimPrefix(signature, "0x")
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return "", err
	}
	if len(sigBytes) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	// 修正 V 值
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}
	pubKey, err := crypto.SigToPub(hash.Bytes(), sigBytes)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

func (h *Handler) issueToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(h.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	// 检查 nonce 是否有效，只允许一次
	ok, err := h.nonces.Consume(c.Request.Context(), req.Nonce)
	if err != nil {
		utils.Print.Error("nonce lookup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce store unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nonce"})
		return
	}

	recovered, err := recoverAddress(SignMessage(req.Nonce), req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verify failed"})
		return
	}
	if !strings.EqualFold(recovered, req.Address) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature mismatch"})
		return
	}

	// ✓ 签名验证成功 → 生成 JWT
	jwtStr, err := h.issueToken(recovered)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}
	utils.Print.Info("wallet login", "address", recovered)
	c.JSON(http.StatusOK, gin.H{"jwt": jwtStr, "address": recovered})
}

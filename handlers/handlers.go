package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Eyali1001/harpoon/config"
	"github.com/Eyali1001/harpoon/service"
)

// Handler handles HTTP requests.
type Handler struct {
	cfg     *config.Config
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(cfg *config.Config, svc *service.Service) *Handler {
	return &Handler{cfg: cfg, service: svc}
}

// resolveParam turns the wildcard path segment (address, profile URL, or
// username) into a canonical wallet address.
func (h *Handler) resolveParam(c *gin.Context) (string, bool) {
	input := strings.TrimPrefix(c.Param("addr"), "/")
	if input == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_ADDRESS",
			"message": "wallet address or profile URL required",
		})
		return "", false
	}

	wallet, err := h.service.ResolveWallet(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_ADDRESS",
			"message": "could not resolve to a valid wallet address",
		})
		return "", false
	}
	return wallet, true
}

// GetTrades returns one page of a wallet's trade history.
func (h *Handler) GetTrades(c *gin.Context) {
	wallet, ok := h.resolveParam(c)
	if !ok {
		return
	}

	page := 1
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v >= 1 {
		page = v
	}
	limit := h.cfg.Pagination.DefaultPageSize
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v >= 1 && v <= h.cfg.Pagination.MaxPageSize {
		limit = v
	}

	result, err := h.service.GetTradesPage(c.Request.Context(), wallet, page, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAnalytics returns the derived analytics summary for a wallet.
func (h *Handler) GetAnalytics(c *gin.Context) {
	wallet, ok := h.resolveParam(c)
	if !ok {
		return
	}

	summary, err := h.service.GetAnalyticsSummary(c.Request.Context(), wallet)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// InvalidateCache drops all cached records for a wallet.
func (h *Handler) InvalidateCache(c *gin.Context) {
	wallet, ok := h.resolveParam(c)
	if !ok {
		return
	}

	deleted, err := h.service.InvalidateCache(c.Request.Context(), wallet)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_trade_count": deleted})
}

// Health reports service liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if service.IsSourceUnavailable(err) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "SOURCE_UNAVAILABLE",
			"message": "upstream data source is unavailable, try again shortly",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "INTERNAL_ERROR",
		"message": err.Error(),
	})
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ai-doc-chat-go/internal/middleware"
	"ai-doc-chat-go/internal/service"
	"ai-doc-chat-go/pkg/log"
)

// SearchHandler handles the cross-document search API.
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler creates a new SearchHandler instance.
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// HybridSearch handles GET /search/hybrid?query=...&topK=N.
func (h *SearchHandler) HybridSearch(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter"})
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", "10"))
	if err != nil || topK <= 0 {
		topK = 10
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}

	results, err := h.searchService.HybridSearch(c.Request.Context(), query, topK, userID)
	if err != nil {
		log.Errorf("[SearchHandler] hybrid search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}

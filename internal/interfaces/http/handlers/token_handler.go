package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/gts/internal/application/dto"
	"github.com/turtacn/gts/internal/application/service"
	"github.com/turtacn/gts/pkg/errors"
)

// TokenHandler handles HTTP requests for token issuance and validation.
type TokenHandler struct {
	tokens *service.TokenAppService
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tokens *service.TokenAppService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// Issue handles the request to issue a new access token.
func (h *TokenHandler) Issue(c *gin.Context) {
	var req dto.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, errors.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}

	result, err := h.tokens.IssueToken(c.Request.Context(), req)
	if err != nil {
		dto.SendError(c, err)
		return
	}

	dto.SendSuccess(c, http.StatusOK, result)
}

// Validate handles the request to check a presented token. Bad tokens are
// reported in the response body with a 200; HTTP errors mean the check
// itself could not run.
func (h *TokenHandler) Validate(c *gin.Context) {
	var req dto.ValidateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, errors.ErrInvalidRequest("invalid request body: "+err.Error()))
		return
	}

	result, err := h.tokens.ValidateToken(c.Request.Context(), req)
	if err != nil {
		dto.SendError(c, err)
		return
	}

	dto.SendSuccess(c, http.StatusOK, result)
}

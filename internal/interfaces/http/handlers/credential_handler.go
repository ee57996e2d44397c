package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/gts/internal/application/dto"
	domainService "github.com/turtacn/gts/internal/domain/service"
	"github.com/turtacn/gts/pkg/errors"
)

// CredentialHandler handles administrative credential and cache endpoints.
type CredentialHandler struct {
	credentials domainService.CredentialService
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(credentials domainService.CredentialService) *CredentialHandler {
	return &CredentialHandler{credentials: credentials}
}

// Provision handles the request to provision a fresh signing credential for
// a consumer. The secret appears in this response and nowhere else.
func (h *CredentialHandler) Provision(c *gin.Context) {
	consumerID := c.Param("id")
	if consumerID == "" {
		dto.SendError(c, errors.ErrInvalidRequest("consumer id is required"))
		return
	}

	secret, err := h.credentials.CreateConsumerSecret(c.Request.Context(), consumerID)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	if secret == nil {
		dto.SendError(c, errors.ErrConsumerNotFound(consumerID))
		return
	}

	dto.SendSuccess(c, http.StatusCreated, dto.CredentialResponse{
		ConsumerID: consumerID,
		Key:        secret.KeyID,
		Secret:     secret.Secret,
	})
}

// EvictCache handles the request to drop one consumer's cached credential,
// forcing the next lookup back to the upstream.
func (h *CredentialHandler) EvictCache(c *gin.Context) {
	if err := h.credentials.ClearCache(c.Request.Context(), c.Param("id")); err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, gin.H{"status": "ok"})
}

// FlushCache handles the request to drop every cached credential.
func (h *CredentialHandler) FlushCache(c *gin.Context) {
	if err := h.credentials.ClearCache(c.Request.Context(), ""); err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, gin.H{"status": "ok"})
}

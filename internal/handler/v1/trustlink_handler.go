package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/telecare-health/telecare/internal/service"
)

type TrustLinkHandler struct {
	linkSvc *service.TrustLinkService
}

func NewTrustLinkHandler(linkSvc *service.TrustLinkService) *TrustLinkHandler {
	return &TrustLinkHandler{linkSvc: linkSvc}
}

type requestLinkRequest struct {
	PhysicianID uuid.UUID `json:"physician_id" binding:"required"`
}

func (h *TrustLinkHandler) Request(c *gin.Context) {
	var req requestLinkRequest
	if !bindJSON(c, &req) {
		return
	}

	link, err := h.linkSvc.Request(c.Request.Context(), req.PhysicianID, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, link)
}

func (h *TrustLinkHandler) Accept(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	link, err := h.linkSvc.Accept(c.Request.Context(), id, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, link)
}

func (h *TrustLinkHandler) Revoke(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.linkSvc.Revoke(c.Request.Context(), id, currentClaims(c), c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"revoked": true})
}

func (h *TrustLinkHandler) ListMine(c *gin.Context) {
	links, err := h.linkSvc.ListMine(c.Request.Context(), currentClaims(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, links)
}

package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/telecare-health/telecare/internal/domain/grant"
	"github.com/telecare-health/telecare/internal/service"
)

type GrantHandler struct {
	grantSvc *service.GrantService
}

func NewGrantHandler(grantSvc *service.GrantService) *GrantHandler {
	return &GrantHandler{grantSvc: grantSvc}
}

type issueGrantRequest struct {
	PhysicianID   uuid.UUID  `json:"physician_id" binding:"required"`
	ResourceType  string     `json:"resource_type" binding:"required"`
	ResourceID    uuid.UUID  `json:"resource_id" binding:"required"`
	CanDownload   bool       `json:"can_download"`
	CanScreenshot bool       `json:"can_screenshot"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

func (h *GrantHandler) Issue(c *gin.Context) {
	var req issueGrantRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := currentClaims(c)
	g, err := h.grantSvc.Grant(c.Request.Context(), &grant.GrantCommand{
		PatientID:     claims.UserID,
		PhysicianID:   req.PhysicianID,
		ResourceType:  grant.ResourceType(req.ResourceType),
		ResourceID:    req.ResourceID,
		CanDownload:   req.CanDownload,
		CanScreenshot: req.CanScreenshot,
		ExpiresAt:     req.ExpiresAt,
	}, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, g)
}

func (h *GrantHandler) Revoke(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.grantSvc.Revoke(c.Request.Context(), id, currentClaims(c), c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"revoked": true})
}

func (h *GrantHandler) ListMine(c *gin.Context) {
	grants, err := h.grantSvc.ListMine(c.Request.Context(), currentClaims(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, grants)
}

// Check exposes the authorization decision for a capability tuple, letting the
// front end grey out actions it knows will be refused.
func (h *GrantHandler) Check(c *gin.Context) {
	resourceID, ok := parseUUID(c, "resourceId")
	if !ok {
		return
	}
	resourceType := grant.ResourceType(c.Param("resourceType"))

	claims := currentClaims(c)
	dec, err := h.grantSvc.Verify(c.Request.Context(), claims.UserID, resourceType, resourceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, dec)
}

package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/telecare-health/telecare/internal/domain"
)

// PhysicianDirectory is the slice of the user store the public directory and
// the admin verification flow need.
type PhysicianDirectory interface {
	ListPhysicians(ctx context.Context, specialty string) ([]*domain.User, error)
	VerifyPhysician(ctx context.Context, id uuid.UUID, at time.Time) error
}

type DirectoryHandler struct {
	directory PhysicianDirectory
}

func NewDirectoryHandler(directory PhysicianDirectory) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// ListPhysicians lets patients browse physicians before requesting a link.
func (h *DirectoryHandler) ListPhysicians(c *gin.Context) {
	physicians, err := h.directory.ListPhysicians(c.Request.Context(), c.Query("specialty"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	out := make([]userResponse, 0, len(physicians))
	for _, p := range physicians {
		out = append(out, toUserResponse(p))
	}
	respondOK(c, out)
}

// VerifyPhysician is admin-only; verified physicians become eligible for
// trust link requests.
func (h *DirectoryHandler) VerifyPhysician(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.directory.VerifyPhysician(c.Request.Context(), id, time.Now()); err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"verified": true})
}

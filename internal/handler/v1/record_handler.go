package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/telecare-health/telecare/internal/domain/dossier"
	"github.com/telecare-health/telecare/internal/service"
)

// RecordHandler serves dossiers, their documents, and document comments. Every
// non-owner access goes through the resource guard.
type RecordHandler struct {
	dossierSvc *service.DossierService
	guard      *service.ResourceGuard
}

func NewRecordHandler(dossierSvc *service.DossierService, guard *service.ResourceGuard) *RecordHandler {
	return &RecordHandler{dossierSvc: dossierSvc, guard: guard}
}

type createDossierRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

func (h *RecordHandler) CreateDossier(c *gin.Context) {
	var req createDossierRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := currentClaims(c)
	d, err := h.dossierSvc.CreateDossier(c.Request.Context(), &dossier.CreateDossierCommand{
		PatientID:   claims.UserID,
		Title:       req.Title,
		Description: req.Description,
	}, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, d)
}

func (h *RecordHandler) ListMyDossiers(c *gin.Context) {
	dossiers, err := h.dossierSvc.ListMine(c.Request.Context(), currentClaims(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, dossiers)
}

func (h *RecordHandler) GetDossier(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	d, err := h.guard.CheckDossier(c.Request.Context(), id, service.IntentView, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, d)
}

type addDocumentRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type"`
	StorageKey  string `json:"storage_key" binding:"required"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (h *RecordHandler) AddDocument(c *gin.Context) {
	dossierID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req addDocumentRequest
	if !bindJSON(c, &req) {
		return
	}

	claims := currentClaims(c)
	doc, err := h.dossierSvc.AddDocument(c.Request.Context(), &dossier.AddDocumentCommand{
		DossierID:   dossierID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		StorageKey:  req.StorageKey,
		SizeBytes:   req.SizeBytes,
		UploadedBy:  claims.UserID,
	}, claims, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, doc)
}

func (h *RecordHandler) ListDocuments(c *gin.Context) {
	dossierID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	docs, err := h.dossierSvc.ListDocuments(c.Request.Context(), dossierID, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, docs)
}

func (h *RecordHandler) ViewDocument(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	doc, err := h.guard.CheckDocument(c.Request.Context(), id, service.IntentView, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, doc)
}

// DownloadDocument authorizes download intent and hands back the storage key;
// the blob itself is fetched from file storage by the client.
func (h *RecordHandler) DownloadDocument(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	doc, err := h.guard.CheckDocument(c.Request.Context(), id, service.IntentDownload, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"file_name":    doc.FileName,
		"content_type": doc.ContentType,
		"storage_key":  doc.StorageKey,
		"size_bytes":   doc.SizeBytes,
	})
}

type addCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *RecordHandler) AddComment(c *gin.Context) {
	documentID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	var req addCommentRequest
	if !bindJSON(c, &req) {
		return
	}

	comment, err := h.guard.Comment(c.Request.Context(), documentID, req.Body, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, comment)
}

func (h *RecordHandler) ListComments(c *gin.Context) {
	documentID, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	comments, err := h.dossierSvc.ListComments(c.Request.Context(), documentID, currentClaims(c), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, comments)
}

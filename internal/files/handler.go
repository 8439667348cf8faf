package files

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"presale-backend/internal/presales"
	"presale-backend/internal/shared/server/respond"
)

const maxUploadSize = 20 << 20 // 20MB

// Handler wires file HTTP routes to the service.
type Handler struct {
	Svc      *Service
	Presales presales.PresalesRepo
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, presalesRepo presales.PresalesRepo) *Handler {
	return &Handler{Svc: svc, Presales: presalesRepo}
}

// RegisterRoutes attaches file routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/presales/:presaleId/files", h.upload)
	rg.GET("/presales/:presaleId/files", h.list)
	rg.DELETE("/presales/:presaleId/files/:fileId", h.remove)
}

func (h *Handler) upload(c *gin.Context) {
	presaleID := c.Param("presaleId")
	if _, err := h.Presales.GetByID(c.Request.Context(), presaleID); err != nil {
		if errors.Is(err, presales.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "presale not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch presale", nil)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	stored, err := h.Svc.Upload(c.Request.Context(), presaleID, fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupportedFileType):
			respond.Error(c, http.StatusBadRequest, "unsupported_file_type", "only pdf, docx, and txt files are supported", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to upload file", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(stored))
}

func (h *Handler) list(c *gin.Context) {
	presaleID := c.Param("presaleId")
	if _, err := h.Presales.GetByID(c.Request.Context(), presaleID); err != nil {
		if errors.Is(err, presales.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "presale not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch presale", nil)
		return
	}

	items, err := h.Svc.List(c.Request.Context(), presaleID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list files", nil)
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, file := range items {
		resp = append(resp, toResponse(file))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("fileId")); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete file", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func toResponse(file File) gin.H {
	return gin.H{
		"fileId":      file.ID,
		"presaleId":   file.PresaleID,
		"fileName":    file.FileName,
		"contentType": file.ContentType,
		"sizeBytes":   file.SizeBytes,
		"uploadedAt":  file.CreatedAt,
	}
}

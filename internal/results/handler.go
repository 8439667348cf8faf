package results

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"presale-backend/internal/jobs"
	"presale-backend/internal/shared/server/respond"
)

// Handler wires result HTTP routes to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches result routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs/:jobId/result", h.get)
	rg.GET("/jobs/:jobId/result/versions", h.versions)
	rg.PATCH("/jobs/:jobId/result/rows", h.patchRows)
	rg.GET("/jobs/:jobId/export/json", h.exportJSON)
}

func (h *Handler) get(c *gin.Context) {
	version, ok := queryVersion(c)
	if !ok {
		return
	}

	res, err := h.Svc.Get(c.Request.Context(), c.Param("jobId"), version)
	if err != nil {
		respondResultError(c, err, "failed to fetch result")
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(res))
}

func (h *Handler) versions(c *gin.Context) {
	items, err := h.Svc.ListVersions(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondResultError(c, err, "failed to list versions")
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, info := range items {
		resp = append(resp, gin.H{
			"version":   info.Version,
			"createdAt": info.CreatedAt,
		})
	}
	respond.JSON(c, http.StatusOK, resp)
}

type patchRequest struct {
	Edits []RowEdit `json:"edits"`
}

func (h *Handler) patchRows(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	res, err := h.Svc.PatchRows(c.Request.Context(), c.Param("jobId"), req.Edits)
	if err != nil {
		if errors.Is(err, ErrInvalidEdit) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respondResultError(c, err, "failed to patch result")
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(res))
}

func (h *Handler) exportJSON(c *gin.Context) {
	version, ok := queryVersion(c)
	if !ok {
		return
	}

	payload, fileName, err := h.Svc.Export(c.Request.Context(), c.Param("jobId"), version)
	if err != nil {
		respondResultError(c, err, "failed to export result")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", fileName))
	respond.JSON(c, http.StatusOK, payload)
}

func respondResultError(c *gin.Context, err error, fallback string) {
	switch {
	case IsNotFound(err):
		respond.Error(c, http.StatusNotFound, "not_found", "result not found", nil)
	case errors.Is(err, ErrResultNotReady):
		respond.Error(c, http.StatusConflict, "result_not_ready", "job has not produced a result yet", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

// resultResponse spreads the stored payload at the top level next to the
// version metadata, so clients read epics and totals directly.
type resultResponse struct {
	Version  int    `json:"version"`
	LLMModel string `json:"llm_model"`
	jobs.AnalysisResult
}

func toResponse(res Result) resultResponse {
	return resultResponse{
		Version:        res.Version,
		LLMModel:       res.LLMModel,
		AnalysisResult: res.Payload,
	}
}

func queryVersion(c *gin.Context) (int, bool) {
	v := c.Query("version")
	if v == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 1 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "version must be a positive integer", nil)
		return 0, false
	}
	return parsed, true
}

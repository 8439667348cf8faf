package jobs

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"presale-backend/internal/files"
	"presale-backend/internal/presales"
	"presale-backend/internal/shared/server/respond"
)

// Handler wires job HTTP routes to the repos.
type Handler struct {
	Repo     JobsRepo
	Presales presales.PresalesRepo
	Files    files.FilesRepo
}

// NewHandler constructs a Handler.
func NewHandler(repo JobsRepo, presalesRepo presales.PresalesRepo, filesRepo files.FilesRepo) *Handler {
	return &Handler{Repo: repo, Presales: presalesRepo, Files: filesRepo}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/presales/:presaleId/jobs", h.submit)
	rg.GET("/presales/:presaleId/jobs", h.listByPresale)
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/:jobId", h.get)
	rg.POST("/jobs/:jobId/alternative", h.alternative)
	rg.GET("/jobs/:jobId/attempts", h.attempts)
}

type submitRequest struct {
	Prompt       string   `json:"prompt"`
	Roles        []string `json:"roles"`
	RoundToHours float64  `json:"roundToHours"`
}

func (h *Handler) submit(c *gin.Context) {
	presaleID := c.Param("presaleId")
	if _, err := h.Presales.GetByID(c.Request.Context(), presaleID); err != nil {
		if errors.Is(err, presales.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "presale not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch presale", nil)
		return
	}

	var req submitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}

	if req.RoundToHours < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "roundToHours must be positive", nil)
		return
	}
	for _, role := range req.Roles {
		if !roleAllowed(role) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown role: "+role, nil)
			return
		}
	}

	uploaded, err := h.Files.ListByPresale(c.Request.Context(), presaleID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list files", nil)
		return
	}
	if len(uploaded) == 0 {
		respond.Error(c, http.StatusBadRequest, "no_files_uploaded", "upload at least one document before starting a job", nil)
		return
	}

	job := newQueuedJob(presaleID, req.Prompt, Params{Roles: req.Roles, RoundToHours: req.RoundToHours})
	if err := h.Repo.Create(c.Request.Context(), job); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create job", nil)
		return
	}

	respond.JSON(c, http.StatusAccepted, toResponse(job))
}

func (h *Handler) listByPresale(c *gin.Context) {
	presaleID := c.Param("presaleId")
	if _, err := h.Presales.GetByID(c.Request.Context(), presaleID); err != nil {
		if errors.Is(err, presales.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "presale not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch presale", nil)
		return
	}

	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	items, err := h.Repo.ListByPresale(c.Request.Context(), presaleID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list jobs", nil)
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, job := range items {
		resp = append(resp, toResponse(job))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) list(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	items, err := h.Repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list jobs", nil)
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, job := range items {
		resp = append(resp, toResponse(job))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) get(c *gin.Context) {
	job, err := h.Repo.GetByID(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(job))
}

// alternative queues a fresh job for the same presale with the same
// params, producing an independent breakdown.
func (h *Handler) alternative(c *gin.Context) {
	source, err := h.Repo.GetByID(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		return
	}

	params := source.Params
	params.Alternative = true
	job := newQueuedJob(source.PresaleID, source.Prompt, params)
	if err := h.Repo.Create(c.Request.Context(), job); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create job", nil)
		return
	}

	respond.JSON(c, http.StatusAccepted, toResponse(job))
}

func (h *Handler) attempts(c *gin.Context) {
	jobID := c.Param("jobId")
	if _, err := h.Repo.GetByID(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch job", nil)
		return
	}

	items, err := h.Repo.ListAttempts(c.Request.Context(), jobID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list attempts", nil)
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, a := range items {
		entry := gin.H{
			"attempt":   a.Index,
			"rawOutput": a.RawOutput,
			"createdAt": a.CreatedAt,
		}
		if a.ErrorKind != "" {
			entry["errorKind"] = a.ErrorKind
			entry["errorMessage"] = a.ErrorMessage
		}
		if len(a.Violations) > 0 {
			entry["violations"] = a.Violations
		}
		resp = append(resp, entry)
	}
	respond.JSON(c, http.StatusOK, resp)
}

func newQueuedJob(presaleID, prompt string, params Params) Job {
	now := time.Now().UTC()
	return Job{
		ID:        uuid.NewString(),
		PresaleID: presaleID,
		Prompt:    prompt,
		Params:    params,
		Status:    StatusQueued,
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func toResponse(job Job) gin.H {
	resp := gin.H{
		"jobId":     job.ID,
		"presaleId": job.PresaleID,
		"status":    job.Status,
		"progress":  job.Progress,
		"message":   job.Message,
		"attempts":  job.Attempts,
		"createdAt": job.CreatedAt,
		"updatedAt": job.UpdatedAt,
	}
	if job.ErrorCode != "" {
		resp["errorCode"] = job.ErrorCode
	}
	return resp
}

func roleAllowed(role string) bool {
	for _, allowed := range AllowedRoles {
		if role == allowed {
			return true
		}
	}
	return false
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

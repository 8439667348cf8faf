package presales

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"presale-backend/internal/shared/server/respond"
)

// Handler wires presale HTTP routes to the repo.
type Handler struct {
	Repo PresalesRepo
}

// NewHandler constructs a Handler.
func NewHandler(repo PresalesRepo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches presale routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/presales", h.create)
	rg.GET("/presales", h.list)
	rg.GET("/presales/:presaleId", h.get)
	rg.PATCH("/presales/:presaleId", h.rename)
	rg.DELETE("/presales/:presaleId", h.remove)
}

type presaleRequest struct {
	Name string `json:"name"`
}

func (h *Handler) create(c *gin.Context) {
	var req presaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}

	presale := Presale{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Repo.Create(c.Request.Context(), presale); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create presale", nil)
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(presale))
}

func (h *Handler) list(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	items, err := h.Repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list presales", nil)
		return
	}

	resp := make([]gin.H, 0, len(items))
	for _, presale := range items {
		resp = append(resp, toResponse(presale))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) get(c *gin.Context) {
	presale, err := h.Repo.GetByID(c.Request.Context(), c.Param("presaleId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "presale not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch presale", nil)
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(presale))
}

func (h *Handler) rename(c *gin.Context) {
	var req presaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}

	presaleID := c.Param("presaleId")
	if err := h.Repo.Rename(c.Request.Context(), presaleID, req.Name); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "presale not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to rename presale", nil)
		return
	}

	presale, err := h.Repo.GetByID(c.Request.Context(), presaleID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch presale", nil)
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(presale))
}

func (h *Handler) remove(c *gin.Context) {
	if err := h.Repo.Delete(c.Request.Context(), c.Param("presaleId")); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "presale not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete presale", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func toResponse(presale Presale) gin.H {
	return gin.H{
		"presaleId": presale.ID,
		"name":      presale.Name,
		"createdAt": presale.CreatedAt,
	}
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

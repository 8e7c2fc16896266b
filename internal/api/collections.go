package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/models"
)

// CollectionHandler serves document reads and routes every write through
// the mutation orchestrator.
type CollectionHandler struct {
	mutator  domain.Mutator
	entities domain.EntityService
	log      *logrus.Logger
}

// NewCollectionHandler creates a CollectionHandler.
func NewCollectionHandler(mutator domain.Mutator, entities domain.EntityService, log *logrus.Logger) *CollectionHandler {
	return &CollectionHandler{mutator: mutator, entities: entities, log: log}
}

// List handles GET /api/v1/collections/:collection.
func (h *CollectionHandler) List(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	entities, err := h.entities.GetAll(c.Request.Context(), tenantID, c.Param("collection"))
	if err != nil {
		h.log.WithError(err).Error("failed to list entities")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to list entities")

		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entities})
}

// Get handles GET /api/v1/collections/:collection/:id.
func (h *CollectionHandler) Get(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	entity, err := h.entities.Get(c.Request.Context(), tenantID, c.Param("collection"), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrEntityNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "entity not found")

			return
		}

		h.log.WithError(err).Error("failed to get entity")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to get entity")

		return
	}

	c.JSON(http.StatusOK, entity)
}

// mutateBody is the write request body; collection and entity id come from
// the path.
type mutateBody struct {
	Action      models.Action   `json:"action,omitempty"`
	Fields      json.RawMessage `json:"fields,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Priority    int             `json:"priority,omitempty"`
	LocalOnly   bool            `json:"local_only,omitempty"`
}

// Put handles PUT /api/v1/collections/:collection/:id.
func (h *CollectionHandler) Put(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	id := c.Param("id")
	if err := validatePathID(id); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	var body mutateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if body.Action == models.ActionDelete {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "use DELETE for delete mutations")

		return
	}

	result, err := h.mutator.Mutate(c.Request.Context(), tenantID, models.MutationRequest{
		Collection:  c.Param("collection"),
		EntityID:    id,
		Action:      body.Action,
		Fields:      body.Fields,
		UserID:      body.UserID,
		Description: body.Description,
		Tags:        body.Tags,
		Priority:    body.Priority,
		LocalOnly:   body.LocalOnly,
	})
	if err != nil {
		h.respondMutationError(c, err)

		return
	}

	c.JSON(http.StatusOK, result)
}

// Delete handles DELETE /api/v1/collections/:collection/:id.
func (h *CollectionHandler) Delete(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	result, err := h.mutator.Mutate(c.Request.Context(), tenantID, models.MutationRequest{
		Collection:  c.Param("collection"),
		EntityID:    c.Param("id"),
		Action:      models.ActionDelete,
		UserID:      c.Query("user_id"),
		Description: c.Query("description"),
	})
	if err != nil {
		h.respondMutationError(c, err)

		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *CollectionHandler) respondMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrEntityNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "entity not found")
	case errors.Is(err, models.ErrMissingCollection),
		errors.Is(err, models.ErrMissingEntityID),
		errors.Is(err, models.ErrInvalidAction),
		errors.Is(err, models.ErrMissingFields):
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
	default:
		h.log.WithError(err).Error("mutation failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "mutation failed")
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/models"
)

// SyncControl is the worker-facing control surface: trigger a pass, flip
// connectivity.
type SyncControl interface {
	Kick()
	SetOnline(online bool)
}

// SyncHandler serves queue inspection and manual sync intervention.
type SyncHandler struct {
	syncer  domain.SyncService
	control SyncControl
	log     *logrus.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(syncer domain.SyncService, control SyncControl, log *logrus.Logger) *SyncHandler {
	return &SyncHandler{syncer: syncer, control: control, log: log}
}

// Status handles GET /api/v1/sync/status.
func (h *SyncHandler) Status(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	report, err := h.syncer.Status(c.Request.Context(), tenantID)
	if err != nil {
		h.log.WithError(err).Error("failed to read sync status")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to read sync status")

		return
	}

	c.JSON(http.StatusOK, report)
}

// Run handles POST /api/v1/sync/run. The pass itself happens on the worker
// goroutine; this only schedules it.
func (h *SyncHandler) Run(c *gin.Context) {
	if h.control == nil {
		respondError(c, http.StatusServiceUnavailable, ErrCodeInternalError, "sync worker not running")

		return
	}

	h.control.Kick()
	c.JSON(http.StatusAccepted, gin.H{"scheduled": true})
}

// SetOnline handles POST /api/v1/sync/online.
func (h *SyncHandler) SetOnline(c *gin.Context) {
	if h.control == nil {
		respondError(c, http.StatusServiceUnavailable, ErrCodeInternalError, "sync worker not running")

		return
	}

	var body struct {
		Online bool `json:"online"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	h.control.SetOnline(body.Online)
	h.log.WithField("online", body.Online).Info("connectivity changed")

	c.JSON(http.StatusOK, gin.H{"online": body.Online})
}

// ListFailed handles GET /api/v1/sync/failed.
func (h *SyncHandler) ListFailed(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	failed, err := h.syncer.ListFailed(c.Request.Context(), tenantID)
	if err != nil {
		h.log.WithError(err).Error("failed to list dead-lettered operations")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to list dead-lettered operations")

		return
	}

	c.JSON(http.StatusOK, gin.H{"data": failed})
}

// RetryFailed handles POST /api/v1/sync/failed/:id/retry.
func (h *SyncHandler) RetryFailed(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	item, err := h.syncer.RetryFailed(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrFailedOpNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "failed operation not found")

			return
		}

		h.log.WithError(err).Error("failed to re-enqueue operation")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to re-enqueue operation")

		return
	}

	if h.control != nil {
		h.control.Kick()
	}

	c.JSON(http.StatusOK, item)
}

// ClearFailed handles DELETE /api/v1/sync/failed/:id.
func (h *SyncHandler) ClearFailed(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	if err := h.syncer.ClearFailed(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		if errors.Is(err, models.ErrFailedOpNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "failed operation not found")

			return
		}

		h.log.WithError(err).Error("failed to clear operation")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to clear operation")

		return
	}

	c.Status(http.StatusNoContent)
}

// Conflicts handles GET /api/v1/sync/conflicts.
func (h *SyncHandler) Conflicts(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	items, err := h.syncer.Conflicts(c.Request.Context(), tenantID)
	if err != nil {
		h.log.WithError(err).Error("failed to list conflicts")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to list conflicts")

		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// Resolve handles POST /api/v1/sync/conflicts/:id/resolve.
func (h *SyncHandler) Resolve(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	var body struct {
		Resolution models.ConflictResolution `json:"resolution"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if body.Resolution != models.ResolutionAcceptLocal && body.Resolution != models.ResolutionAcceptRemote {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, "resolution must be accept-local or accept-remote")

		return
	}

	if err := h.syncer.Resolve(c.Request.Context(), tenantID, c.Param("id"), body.Resolution); err != nil {
		if errors.Is(err, models.ErrQueueItemNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "conflicted item not found")

			return
		}

		h.log.WithError(err).Error("failed to resolve conflict")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to resolve conflict")

		return
	}

	if h.control != nil && body.Resolution == models.ResolutionAcceptLocal {
		h.control.Kick()
	}

	c.Status(http.StatusNoContent)
}

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/domain"
	"github.com/opsledger/opsledger/internal/models"
)

// AuditHandler serves audit chain queries, verification, and retention
// maintenance.
type AuditHandler struct {
	chain domain.ChainService
	log   *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(chain domain.ChainService, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{chain: chain, log: log}
}

// Query handles GET /api/v1/audit.
func (h *AuditHandler) Query(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	opts := models.AuditQueryOpts{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Action:     c.Query("action"),
		Limit:      parseInt(c.Query("limit"), 100),
		Offset:     parseOffset(c.Query("offset")),
	}

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "since must be RFC3339")

			return
		}

		opts.Since = &since
	}

	entries, hasMore, err := h.chain.Query(c.Request.Context(), tenantID, opts)
	if err != nil {
		h.log.WithError(err).Error("audit query failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "audit query failed")

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     entries,
		"has_more": hasMore,
		"limit":    opts.Limit,
		"offset":   opts.Offset,
	})
}

// Verify handles GET /api/v1/audit/verify.
func (h *AuditHandler) Verify(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	report, err := h.chain.Verify(c.Request.Context(), tenantID)
	if err != nil {
		h.log.WithError(err).Error("chain verification failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "chain verification failed")

		return
	}

	c.JSON(http.StatusOK, report)
}

// Expire handles POST /api/v1/audit/expire. It purges entries past their
// retention window and reports how many were removed.
func (h *AuditHandler) Expire(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	purged, err := h.chain.Expire(c.Request.Context(), tenantID, time.Now().UTC())
	if err != nil {
		h.log.WithError(err).Error("retention purge failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "retention purge failed")

		return
	}

	h.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"purged":    purged,
	}).Info("audit retention purge completed")

	c.JSON(http.StatusOK, gin.H{"purged": purged})
}

// SetLegalHold handles PUT /api/v1/audit/:id/hold.
func (h *AuditHandler) SetLegalHold(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	entryID := c.Param("id")
	if err := validatePathID(entryID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	var body struct {
		Hold bool `json:"hold"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if err := h.chain.SetLegalHold(c.Request.Context(), tenantID, entryID, body.Hold); err != nil {
		h.log.WithError(err).Error("failed to set legal hold")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to set legal hold")

		return
	}

	c.JSON(http.StatusOK, gin.H{"id": entryID, "legal_hold": body.Hold})
}

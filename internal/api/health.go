// Package api provides the HTTP handlers for opsledger.
package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/opsledger/opsledger/internal/store"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	registry  *store.Registry
	log       *logrus.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler with the given dependencies.
func NewHealthHandler(registry *store.Registry, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		registry:  registry,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

// healthResponse is the JSON payload returned by the health/liveness endpoint.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Tenants       int     `json:"tenants"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// readinessResponse is the JSON payload returned by the readiness endpoint.
type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort tenant count (non-fatal for liveness).
	if tenants, err := h.registry.Tenants(); err == nil {
		resp.Tenants = len(tenants)
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready — checks that the data directory is
// writable and tenant databases are enumerable.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{
		"data_dir": "ok",
		"stores":   "ok",
	}
	status := "ready"
	statusCode := http.StatusOK

	if err := h.checkDataDir(); err != nil {
		h.log.WithError(err).Error("readiness: data directory check failed")
		checks["data_dir"] = "error"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	if checks["data_dir"] == "ok" {
		if _, err := h.registry.Tenants(); err != nil {
			h.log.WithError(err).Error("readiness: store enumeration failed")
			checks["stores"] = "error"
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
		}
	} else {
		checks["stores"] = "unknown"
	}

	c.JSON(statusCode, readinessResponse{
		Status: status,
		Checks: checks,
	})
}

// checkDataDir verifies the data directory exists and accepts writes.
func (h *HealthHandler) checkDataDir() error {
	dir := h.registry.Dir()

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", dir)
	}

	probe := filepath.Join(dir, ".ready-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	_ = os.Remove(probe)

	return nil
}

package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ramwatch/internal/database"
	"ramwatch/internal/runner"
)

type Handler struct {
	db     *database.Database
	runner *runner.Runner
	logger *logrus.Logger
}

func NewHandler(db *database.Database, r *runner.Runner, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:     db,
		runner: r,
		logger: logger,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.runner != nil {
		resp["state"] = h.runner.State().String()
		resp["totals"] = h.runner.Totals()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.db.GetStats()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetRecent(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "10")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 10
	}

	records, err := h.db.GetRecent(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recent listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recent listings"})
		return
	}

	c.JSON(http.StatusOK, records)
}

func (h *Handler) ClearListings(c *gin.Context) {
	deleted, err := h.db.Clear()
	if err != nil {
		h.logger.WithError(err).Error("Failed to clear listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear listings"})
		return
	}

	h.logger.WithField("deleted", deleted).Warn("Listing store cleared")
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

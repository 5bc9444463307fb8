package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/services"
	"sms-gateway-dashboard/pkg/logger"
	"sms-gateway-dashboard/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ParticipantHandler serves the participant list
type ParticipantHandler struct {
	participants ParticipantServiceInterface
}

// NewParticipantHandler creates a new participant handler
func NewParticipantHandler(participants ParticipantServiceInterface) *ParticipantHandler {
	return &ParticipantHandler{participants: participants}
}

// List handles GET /participants
func (h *ParticipantHandler) List(c *gin.Context) {
	list, err := h.participants.List(c.Request.Context())
	if err != nil {
		internalError(c, "Failed to list participants", err)
		return
	}
	noCache(c)
	c.JSON(http.StatusOK, list)
}

// Create handles POST /participants
func (h *ParticipantHandler) Create(c *gin.Context) {
	var req models.CreateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "First name and phone are required"})
		return
	}
	p, err := h.participants.Create(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidParticipant) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		internalError(c, "Failed to create participant", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// History handles GET /participant-history/:id
func (h *ParticipantHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	history, err := h.participants.History(c.Request.Context(), id)
	if err != nil {
		internalError(c, "Failed to load participant history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// Import handles POST /api/participants/import-excel (multipart field "file")
func (h *ParticipantHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xlsx" && ext != ".xlsm" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file format, use .xlsx"})
		return
	}

	file, err := header.Open()
	if err != nil {
		internalError(c, "Failed to read upload", err)
		return
	}
	defer file.Close()

	result, err := h.participants.ImportExcel(c.Request.Context(), file)
	if err != nil {
		if errors.Is(err, services.ErrEmptySpreadsheet) || errors.Is(err, services.ErrInvalidSpreadsheet) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		internalError(c, "Import failed", err)
		return
	}
	logger.Info("Participants imported",
		zap.String("file", header.Filename),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("error_count", result.ErrorCount),
		zap.String("username", c.GetString(middleware.UsernameKey)),
	)
	c.JSON(http.StatusOK, result)
}

// Export handles GET /api/participants/export-excel
func (h *ParticipantHandler) Export(c *gin.Context) {
	data, err := h.participants.ExportExcel(c.Request.Context())
	if err != nil {
		internalError(c, "Export failed", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="participants.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func internalError(c *gin.Context, msg string, err error) {
	logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func noCache(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dependatrack/internal/models"
	"dependatrack/internal/repository"
	"dependatrack/internal/service"
)

// ImportHandler exposes the import ledger and the manual import
// controls.
type ImportHandler struct {
	Importer *service.Importer
	Store    repository.Store
	Logger   *zap.Logger
}

func (h *ImportHandler) Register(r *gin.Engine) {
	group := r.Group("/api/imports")
	group.GET("", h.listImports)
	group.GET("/:filename", h.getImport)
	group.POST("/:filename/retry", h.retryImport)
	group.POST("/run", h.runImport)
}

func (h *ImportHandler) listImports(c *gin.Context) {
	limit := intQuery(c, "limit", 200)
	imports, err := h.Store.ListImports(c.Request.Context(), limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, imports, map[string]any{"count": len(imports)})
}

func (h *ImportHandler) getImport(c *gin.Context) {
	filename := c.Param("filename")
	imp, err := h.Store.GetImport(c.Request.Context(), filename)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if imp == nil {
		Error(c, http.StatusNotFound, "import not found", nil)
		return
	}
	Ok(c, imp, nil)
}

func (h *ImportHandler) retryImport(c *gin.Context) {
	filename := c.Param("filename")
	result, err := h.Importer.Retry(c.Request.Context(), filename)
	if err != nil {
		h.Logger.Warn("manual retry failed", zap.String("filename", filename), zap.Error(err))
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{"filename": filename})
		return
	}
	Ok(c, result, nil)
}

// runImport imports a single hour (?hour=2024-01-01T14) or an inclusive
// range (?from=...&to=...).
func (h *ImportHandler) runImport(c *gin.Context) {
	if raw := c.Query("hour"); raw != "" {
		hour, err := parseHour(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		result, err := h.Importer.ImportHour(c.Request.Context(), hour)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), map[string]any{"filename": result.Filename})
			return
		}
		Ok(c, result, nil)
		return
	}

	from, err := parseHour(c.Query("from"))
	if err != nil {
		Error(c, http.StatusBadRequest, "from: "+err.Error(), nil)
		return
	}
	to, err := parseHour(c.Query("to"))
	if err != nil {
		Error(c, http.StatusBadRequest, "to: "+err.Error(), nil)
		return
	}
	if to.Before(from) {
		Error(c, http.StatusBadRequest, "to precedes from", nil)
		return
	}
	results, err := h.Importer.ImportRange(c.Request.Context(), from, to)
	meta := map[string]any{"hours": len(results)}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), meta)
		return
	}
	Ok(c, results, meta)
}

func parseHour(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15", raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Truncate(time.Hour), nil
	}
	return models.HourForFilename(raw)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dependatrack/internal/repository"
	"dependatrack/internal/service"
)

// AdvisoryHandler exposes the advisory catalog and its sync trigger.
type AdvisoryHandler struct {
	Service *service.AdvisoryService
	Enrich  *service.EnrichService
	Store   repository.Store
	Logger  *zap.Logger
}

func (h *AdvisoryHandler) Register(r *gin.Engine) {
	group := r.Group("/api/advisories")
	group.GET("", h.listAdvisories)
	group.POST("/sync", h.syncAdvisories)
	r.POST("/api/enrich/run", h.runEnrich)
}

func (h *AdvisoryHandler) listAdvisories(c *gin.Context) {
	limit := intQuery(c, "limit", 200)
	advisories, err := h.Store.ListAdvisories(c.Request.Context(), limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, advisories, map[string]any{"count": len(advisories)})
}

func (h *AdvisoryHandler) syncAdvisories(c *gin.Context) {
	result, err := h.Service.Sync(c.Request.Context())
	if err != nil {
		h.Logger.Warn("advisory sync failed", zap.Error(err))
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{
			"pages":    result.Pages,
			"upserted": result.Upserted,
		})
		return
	}
	Ok(c, result, nil)
}

func (h *AdvisoryHandler) runEnrich(c *gin.Context) {
	if h.Enrich == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	result, err := h.Enrich.Run(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dependatrack/internal/repository"
)

// PackageHandler exposes read access to tracked packages.
type PackageHandler struct {
	Store repository.Store
}

func (h *PackageHandler) Register(r *gin.Engine) {
	group := r.Group("/api/packages")
	group.GET("", h.listPackages)
	group.GET("/:ecosystem/*name", h.getPackage)
}

func (h *PackageHandler) listPackages(c *gin.Context) {
	ecosystem := strings.TrimSpace(c.Query("ecosystem"))
	limit := intQuery(c, "limit", 200)
	packages, err := h.Store.ListPackages(c.Request.Context(), ecosystem, limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, packages, map[string]any{"count": len(packages)})
}

func (h *PackageHandler) getPackage(c *gin.Context) {
	ecosystem := c.Param("ecosystem")
	// Wildcard params keep their leading slash; package names may
	// themselves contain slashes (npm scopes, go module paths).
	name := strings.TrimPrefix(c.Param("name"), "/")
	pkg, err := h.Store.FindPackage(c.Request.Context(), ecosystem, strings.ToLower(name))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if pkg == nil {
		Error(c, http.StatusNotFound, "package not found", nil)
		return
	}
	Ok(c, pkg, nil)
}

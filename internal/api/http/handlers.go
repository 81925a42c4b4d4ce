// Package http exposes the synchronization engine over a JSON HTTP API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/forgeide/pkgsync/internal/domain/project"
	"github.com/forgeide/pkgsync/internal/domain/sync"
	"github.com/forgeide/pkgsync/internal/host"
)

// Handlers holds the HTTP handler methods for the engine API.
type Handlers struct {
	engine *sync.Engine
}

// NewHandlers creates the API handlers.
func NewHandlers(engine *sync.Engine) *Handlers {
	return &Handlers{engine: engine}
}

// RegisterRoutes mounts the API under the given router group.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/status", h.Status)

	r.GET("/projects", h.ListProjects)
	r.GET("/projects/:id", h.GetProject)
	r.GET("/projects/:id/enabled", h.ProjectEnabled)
	r.GET("/projects/:id/packages/:name", h.PackageInstalled)
	r.POST("/projects/:id/packages", h.InstallPackage)
	r.DELETE("/projects/:id/packages/:name", h.UninstallPackage)

	r.GET("/packages/:name/versions", h.PackageVersions)
	r.GET("/packages/:name/projects", h.PackageProjects)

	r.GET("/sources", h.ListSources)
	r.POST("/sources/refresh", h.RefreshSources)

	r.POST("/sync", h.TriggerSync)
}

// Status reports the engine lifecycle state and tracked-project count.
func (h *Handlers) Status(c *gin.Context) {
	snapshot := h.engine.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"state":    h.engine.State().String(),
		"projects": len(snapshot),
	})
}

// ListProjects returns every tracked project with its cached state.
func (h *Handlers) ListProjects(c *gin.Context) {
	snapshot := h.engine.Snapshot()

	projects := make([]gin.H, 0, len(snapshot))
	for id, state := range snapshot {
		projects = append(projects, gin.H{
			"id":       string(id),
			"enabled":  state.Enabled(),
			"packages": state.PackageCount(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"projects": projects,
	})
}

// GetProject returns the full cached state for one project. Untracked
// projects answer the enabled-by-default view rather than 404: absence means
// "not yet scanned", not "unknown".
func (h *Handlers) GetProject(c *gin.Context) {
	id := project.ID(c.Param("id"))

	state, ok := h.engine.Project(id)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"id":       string(id),
			"enabled":  true,
			"scanned":  false,
			"packages": gin.H{},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"id":       string(id),
		"enabled":  state.Enabled(),
		"scanned":  true,
		"packages": state.Packages(),
	})
}

// ProjectEnabled reports whether a project can be managed.
func (h *Handlers) ProjectEnabled(c *gin.Context) {
	id := project.ID(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"enabled": h.engine.IsEnabled(id),
	})
}

// PackageInstalled reports whether a project has a package installed.
func (h *Handlers) PackageInstalled(c *gin.Context) {
	id := project.ID(c.Param("id"))
	name := c.Param("name")
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"installed": h.engine.Installed(id, name),
	})
}

// InstallPackage installs a package into a project through the host.
func (h *Handlers) InstallPackage(c *gin.Context) {
	id := project.ID(c.Param("id"))

	var req struct {
		Name    string `json:"name" binding:"required"`
		Version string `json:"version" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	if err := h.engine.Install(c.Request.Context(), id, req.Name, req.Version); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    req.Name,
		"version": req.Version,
	})
}

// UninstallPackage removes a package from a project through the host.
func (h *Handlers) UninstallPackage(c *gin.Context) {
	id := project.ID(c.Param("id"))
	name := c.Param("name")

	if err := h.engine.Uninstall(c.Request.Context(), id, name); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"name":    name,
	})
}

// PackageVersions returns the installed versions of a package across all
// projects, newest-looking first.
func (h *Handlers) PackageVersions(c *gin.Context) {
	name := c.Param("name")
	versions := h.engine.InstalledVersions(name)
	if versions == nil {
		versions = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"name":     name,
		"versions": versions,
	})
}

// PackageProjects returns the projects with a given package version
// installed. The version is passed as a query parameter.
func (h *Handlers) PackageProjects(c *gin.Context) {
	name := c.Param("name")
	version := c.Query("version")
	if version == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "missing required query parameter: version",
		})
		return
	}

	ids := h.engine.ProjectsWith(name, version)
	projects := make([]string, 0, len(ids))
	for _, id := range ids {
		projects = append(projects, string(id))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"name":     name,
		"version":  version,
		"projects": projects,
	})
}

// ListSources returns the cached package-source list without blocking; empty
// until the first computation completes.
func (h *Handlers) ListSources(c *gin.Context) {
	list := h.engine.Sources()
	if list == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"sources": []gin.H{},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sources": list,
	})
}

// RefreshSources invalidates the source cache and starts a recomputation.
func (h *Handlers) RefreshSources(c *gin.Context) {
	h.engine.RefreshSources()
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
	})
}

// TriggerSync enqueues a rescan: of one project when the body names one, of
// the whole solution otherwise. The scan itself happens after the quiescence
// window, so the response only acknowledges the request.
func (h *Handlers) TriggerSync(c *gin.Context) {
	var req struct {
		Project string `json:"project"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid request: " + err.Error(),
			})
			return
		}
	}

	if req.Project != "" {
		h.engine.HandleChange(host.ChangeEvent{
			Kind:    host.EventProjectChanged,
			Project: project.ID(req.Project),
		})
	} else {
		h.engine.HandleChange(host.ChangeEvent{Kind: host.EventSolutionChanged})
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
	})
}

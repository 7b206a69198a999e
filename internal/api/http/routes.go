package http

import "github.com/gin-gonic/gin"

// Register mounts the playground API on api, typically the /api group.
func (h *Handlers) Register(api gin.IRouter) {
	// Sessions
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.DeleteSession)
	api.POST("/sessions/:id/reset", h.Reset)
	api.POST("/sessions/:id/save", h.Save)
	api.POST("/sessions/:id/new-project", h.NewProject)
	api.GET("/sessions/:id/export", h.Export)
	api.GET("/sessions/:id/notices", h.Notices)

	// Files
	api.GET("/sessions/:id/files", h.ListFiles)
	api.POST("/sessions/:id/files", h.AddFile)
	api.PUT("/sessions/:id/files/:fid", h.UpdateFile)
	api.PATCH("/sessions/:id/files/:fid", h.RenameFile)
	api.DELETE("/sessions/:id/files/:fid", h.DeleteFile)
	api.POST("/sessions/:id/files/:fid/select", h.SelectFile)
	api.POST("/sessions/:id/import", h.Import)

	// Preview and console
	api.GET("/sessions/:id/preview", h.Preview)
	api.POST("/sessions/:id/preview/reload", h.Reload)
	api.POST("/sessions/:id/preview/dispatch", h.Dispatch)
	api.GET("/sessions/:id/preview/dom", h.DOM)
	api.GET("/sessions/:id/console", h.Logs)
	api.DELETE("/sessions/:id/console", h.ClearConsole)
	api.POST("/sessions/:id/events", h.Relay)

	// Saved projects
	api.GET("/projects", h.ListProjects)
	api.POST("/projects", h.SaveProject)
	api.POST("/projects/:pid/load", h.LoadProject)
	api.DELETE("/projects/:pid", h.DeleteProject)

	// Secrets
	api.GET("/sessions/:id/secrets", h.ListSecrets)
	api.POST("/sessions/:id/secrets", h.AddSecret)
	api.DELETE("/sessions/:id/secrets/:sid", h.DeleteSecret)
	api.POST("/sessions/:id/secrets/:sid/reveal", h.RevealSecret)
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/models"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Health       gin.HandlerFunc
	Auth         *AuthHandler
	Users        *UserHandler
	Audit        *AuditHandler
	Candidates   *CandidateHandler
	Resumes      *ResumeHandler
	Jobs         *JobHandler
	Matches      *MatchHandler
	Applications *ApplicationHandler
	Settings     *SettingsHandler
	Chat         *ChatHandler
	Reports      *ReportHandler
}

// RegisterRoutes mounts the API under api. Reads need a viewer, domain writes a
// recruiter, and users, settings and audit logs an admin.
func RegisterRoutes(api *gin.RouterGroup, h *Handlers, authn Authenticator) {
	api.GET("/health", h.Health)
	api.POST("/auth/login", h.Auth.Login)

	authed := api.Group("", RequireAuth(authn))
	authed.POST("/auth/logout", h.Auth.Logout)
	authed.GET("/auth/me", h.Auth.Me)

	read := authed.Group("", RequireRole(models.RoleViewer))
	write := authed.Group("", RequireRole(models.RoleRecruiter))
	admin := authed.Group("", RequireRole(models.RoleAdmin))

	// Candidate Routes
	read.GET("/candidates", h.Candidates.List)
	read.GET("/candidates/:id", h.Candidates.Get)
	read.GET("/candidates/:id/resumes", h.Resumes.ListForCandidate)
	read.GET("/candidates/:id/matches", h.Matches.ForCandidate)
	write.POST("/candidates", h.Candidates.Create)
	write.PATCH("/candidates/:id", h.Candidates.Update)
	write.DELETE("/candidates/:id", h.Candidates.Delete)
	write.PUT("/candidates/:id/profile", h.Candidates.ReplaceProfile)
	write.POST("/candidates/:id/resumes", h.Resumes.Upload)

	// Resume Routes
	read.GET("/resumes/:id", h.Resumes.Get)
	read.GET("/resumes/:id/download", h.Resumes.Download)
	read.GET("/resumes/:id/analysis", h.Resumes.Analysis)
	write.POST("/resumes/ingest", h.Resumes.Ingest)
	write.POST("/resumes/:id/reparse", h.Resumes.Reparse)

	// Job Routes
	read.GET("/jobs", h.Jobs.ListJobs)
	read.GET("/jobs/:id", h.Jobs.GetJob)
	read.GET("/jobs/:id/matches", h.Matches.ForJob)
	write.POST("/jobs", h.Jobs.CreateJob)
	write.POST("/jobs/extract", h.Jobs.ParseJob)
	write.PATCH("/jobs/:id", h.Jobs.UpdateJob)
	write.DELETE("/jobs/:id", h.Jobs.DeleteJob)
	write.POST("/jobs/:id/matches", h.Matches.Recompute)

	// Application Routes
	read.GET("/applications", h.Applications.List)
	read.GET("/applications/:id", h.Applications.Get)
	write.POST("/applications", h.Applications.Create)
	write.PATCH("/applications/:id/status", h.Applications.ChangeStatus)
	write.DELETE("/applications/:id", h.Applications.Delete)

	read.POST("/ai/chat", h.Chat.Ask)
	read.GET("/reports/applications.xlsx", h.Reports.Applications)

	// Admin Routes
	admin.GET("/users", h.Users.List)
	admin.POST("/users", h.Users.Create)
	admin.PATCH("/users/:id", h.Users.Update)
	admin.GET("/audit-logs", h.Audit.List)
	admin.GET("/settings", h.Settings.List)
	admin.GET("/settings/ai", h.Settings.GetAI)
	admin.PUT("/settings/ai", h.Settings.UpdateAI)
	admin.POST("/settings/ai/test", h.Settings.TestAI)
	admin.GET("/settings/:key", h.Settings.Get)
	admin.PUT("/settings/:key", h.Settings.Set)
}

package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/config"
	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/pkg/auth"
	"github.com/telecare-health/telecare/pkg/metrics"
)

type Handlers struct {
	Auth         *AuthHandler
	TrustLinks   *TrustLinkHandler
	Grants       *GrantHandler
	Messages     *MessageHandler
	Records      *RecordHandler
	Appointments *AppointmentHandler
	Directory    *DirectoryHandler
}

func NewRouter(cfg *config.Config, jwtManager *auth.JWTManager, mx *metrics.Collector, log *zap.Logger, h Handlers) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(log), Observe(mx))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.App.Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/password", Authenticate(jwtManager), h.Auth.ChangePassword)
	}

	authed := api.Group("")
	authed.Use(Authenticate(jwtManager))

	links := authed.Group("/trust-links")
	{
		links.POST("", RequireRole(domain.RolePatient), h.TrustLinks.Request)
		links.GET("", h.TrustLinks.ListMine)
		links.POST("/:id/accept", RequireRole(domain.RolePhysician), h.TrustLinks.Accept)
		links.POST("/:id/revoke", h.TrustLinks.Revoke)
	}

	grants := authed.Group("/grants")
	{
		grants.POST("", RequireRole(domain.RolePatient), h.Grants.Issue)
		grants.GET("", RequireRole(domain.RolePatient), h.Grants.ListMine)
		grants.POST("/:id/revoke", h.Grants.Revoke)
		grants.GET("/check/:resourceType/:resourceId", RequireRole(domain.RolePhysician), h.Grants.Check)
	}

	messages := authed.Group("/messages")
	{
		messages.POST("", h.Messages.Send)
		messages.GET("/unread", h.Messages.UnreadCount)
		messages.GET("/conversation/:userId", h.Messages.Conversation)
		messages.POST("/:id/read", h.Messages.MarkRead)
	}

	dossiers := authed.Group("/dossiers")
	{
		dossiers.POST("", RequireRole(domain.RolePatient), h.Records.CreateDossier)
		dossiers.GET("", RequireRole(domain.RolePatient), h.Records.ListMyDossiers)
		dossiers.GET("/:id", h.Records.GetDossier)
		dossiers.POST("/:id/documents", RequireRole(domain.RolePatient), h.Records.AddDocument)
		dossiers.GET("/:id/documents", h.Records.ListDocuments)
	}

	documents := authed.Group("/documents")
	{
		documents.GET("/:id", h.Records.ViewDocument)
		documents.GET("/:id/download", h.Records.DownloadDocument)
		documents.POST("/:id/comments", h.Records.AddComment)
		documents.GET("/:id/comments", h.Records.ListComments)
	}

	appointments := authed.Group("/appointments")
	{
		appointments.POST("", RequireRole(domain.RolePatient), h.Appointments.Request)
		appointments.GET("", h.Appointments.List)
		appointments.GET("/:id", h.Appointments.Get)
		appointments.POST("/:id/confirm", RequireRole(domain.RolePhysician), h.Appointments.Confirm)
		appointments.POST("/:id/cancel", h.Appointments.Cancel)
		appointments.POST("/:id/complete", RequireRole(domain.RolePhysician), h.Appointments.Complete)
	}

	authed.GET("/physicians", h.Directory.ListPhysicians)
	authed.POST("/physicians/:id/verify", RequireRole(domain.RoleAdmin), h.Directory.VerifyPhysician)

	return r
}

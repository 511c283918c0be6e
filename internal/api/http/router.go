package http

import (
	"github.com/EternisAI/certpass/internal/api/http/handler"
	"github.com/EternisAI/certpass/internal/api/http/middleware"
	"github.com/EternisAI/certpass/internal/apiauth"
	"github.com/EternisAI/certpass/internal/auth"
	"github.com/EternisAI/certpass/internal/certificate"
	"github.com/EternisAI/certpass/internal/metrics"
	"github.com/EternisAI/certpass/internal/ratelimit"
	"github.com/EternisAI/certpass/internal/users"
	"github.com/EternisAI/certpass/internal/verification"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Verification *verification.Orchestrator
	Certificates *certificate.Service
	Credentials  *apiauth.Service
	Signatures   *apiauth.Verifier
	Limiter      *ratelimit.Limiter
	RequestLogs  apiauth.RequestLogStore
	Events       handler.EventLister
	Auth         *auth.Service
	JWTSecret    string
}

func SetupRoute(engine *gin.Engine, srvs *Services, config Config) {
	engine.Use(middleware.RequestLogger())
	engine.Use(metrics.Instrument())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	verifyHandler := handler.NewVerifyHandler(srvs.Verification, config.BaseURL, config.QRSize)
	engine.GET("/verify", verifyHandler.Verify)
	engine.GET("/verify/qr", verifyHandler.QRCode)

	certificateHandler := handler.NewCertificateHandler(srvs.Certificates)
	apiKeyHandler := handler.NewAPIKeyHandler(srvs.Credentials, srvs.Limiter)

	api := engine.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(middleware.APIAuthConfig{
		Credentials: srvs.Credentials,
		Verifier:    srvs.Signatures,
		RequestLogs: srvs.RequestLogs,
	}))
	quota := middleware.APIQuota(srvs.Limiter)
	{
		api.GET("/info", quota, apiKeyHandler.Info)
		api.GET("/verify/:certificate_id", middleware.RequirePermission(apiauth.PermissionRead), quota, verifyHandler.VerifyAPI)
		api.GET("/certificates", middleware.RequirePermission(apiauth.PermissionRead), quota, certificateHandler.List)
		api.POST("/certificates", middleware.RequirePermission(apiauth.PermissionCreate), quota, certificateHandler.Create)
		api.PUT("/certificates/:id", middleware.RequirePermission(apiauth.PermissionUpdate), quota, certificateHandler.Update)
	}

	adminHandler := handler.NewAdminHandler(srvs.Auth, srvs.Events)
	engine.POST("/admin/login", adminHandler.Login)

	admin := engine.Group("/admin")
	admin.Use(middleware.JWTAuth(srvs.JWTSecret), middleware.RequireRole(users.RoleAdmin))
	{
		admin.POST("/api-keys", apiKeyHandler.CreateKey)
		admin.DELETE("/api-keys/:id", apiKeyHandler.RevokeKey)
		admin.GET("/certificates/:id/events", adminHandler.CertificateEvents)
	}
}

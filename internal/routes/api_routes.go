package routes

import (
	"github.com/JACT-22/cobranza-funeraria/config"
	"github.com/JACT-22/cobranza-funeraria/internal/handlers"
	"github.com/JACT-22/cobranza-funeraria/internal/middleware"
	"github.com/JACT-22/cobranza-funeraria/internal/registrar"

	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes wires up the /api/v1 surface.
func RegisterAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", handlers.LoginHandler)

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware())
		{
			authed.GET("/clients", handlers.ListClientsHandler)

			// --- PAGOS ---
			payments := authed.Group("/payments")
			{
				ph := handlers.NewPaymentHandler(registrar.New(config.DB))
				payments.POST("", ph.Create)
				payments.GET("/export", middleware.RequireAdmin(), handlers.ExportPaymentsHandler)
			}

			// --- TICKETS ---
			tickets := authed.Group("/tickets")
			{
				tickets.GET("/folio/:series/:number/pdf", handlers.TicketPDFHandler)
				tickets.GET("/folio/:series/:number/print", handlers.TicketPrintHandler)
			}
		}
	}
}

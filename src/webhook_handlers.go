package main

import (
	"menusync/src/boot"
	"menusync/src/controllers"

	"github.com/gin-gonic/gin"
)

// webhookRoutes takes deliveries from the platforms. No host resolution and
// no bearer token: the platform authenticates with the tenant's credentials.
func webhookRoutes(g *gin.Engine, app *boot.App) *gin.RouterGroup {
	ctrl := &controllers.Webhooks{
		Resolver:    app.Resolver,
		Ingester:    app.Ingester,
		Credentials: app.Vault,
		MaxBytes:    app.Config.Server.MaxWebhookBytes,
	}
	hooks := g.Group(webhookPrefix)
	hooks.
		POST("/:platform/:tenant", func(ctx *gin.Context) {
			res, status, err := ctrl.Receive(ctx)
			respond(ctx, res, status, err)
		})
	return hooks
}

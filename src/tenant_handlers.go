package main

import (
	"menusync/src/boot"
	"menusync/src/controllers"
	"menusync/src/middlewares"
	"menusync/src/policy"

	"github.com/gin-gonic/gin"
)

// tenantRoutes serves the dashboard of the tenant named by the Host header.
func tenantRoutes(g *gin.Engine, app *boot.App) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix, middlewares.ResolveTenant(app.Resolver))
	apiv1.
		POST("/auth/login", func(ctx *gin.Context) {
			res, status, err := app.Auth.AuthLogin(ctx.Copy())
			respond(ctx, res, status, err)
		})

	authorized := apiv1.Group("",
		middlewares.AuthMiddleware([]byte(app.Config.Security.JWTSecret), app.Repos.Users, app.Auth.Sessions),
		middlewares.RequireTenantMatch,
	)
	authorized.
		POST("/impersonate/leave", func(ctx *gin.Context) {
			res, status, err := app.Auth.LeaveImpersonation(ctx.Copy())
			respond(ctx, res, status, err)
		})

	orderHandlers(authorized, &controllers.Orders{Repos: app.Repos, Syncer: app.Syncer})
	credentialHandlers(authorized, &controllers.Credentials{Vault: app.Vault})
	catalogHandlers(authorized, app.Catalog)
	return apiv1
}

func orderHandlers(g *gin.RouterGroup, ctrl *controllers.Orders) *gin.RouterGroup {
	g.
		GET("/orders", middlewares.Authorize(policy.Orders, policy.Read), func(ctx *gin.Context) {
			res, status, err := ctrl.List(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		GET("/orders/:id", middlewares.Authorize(policy.Orders, policy.Read), func(ctx *gin.Context) {
			res, status, err := ctrl.Get(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		GET("/sync/failed", middlewares.Authorize(policy.SyncQueue, policy.Read), func(ctx *gin.Context) {
			res, status, err := ctrl.ListFailed(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		POST("/sync/orders/:id/retry", middlewares.Authorize(policy.SyncQueue, policy.Retry), func(ctx *gin.Context) {
			res, status, err := ctrl.Retry(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		GET("/webhook-logs", middlewares.Authorize(policy.WebhookLogs, policy.Read), func(ctx *gin.Context) {
			res, status, err := ctrl.WebhookLogs(ctx.Copy())
			respond(ctx, res, status, err)
		})
	return g
}

func credentialHandlers(g *gin.RouterGroup, ctrl *controllers.Credentials) *gin.RouterGroup {
	g.
		GET("/credentials", middlewares.Authorize(policy.Credentials, policy.Read), func(ctx *gin.Context) {
			res, status, err := ctrl.List(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		PUT("/credentials", middlewares.Authorize(policy.Credentials, policy.Write), func(ctx *gin.Context) {
			res, status, err := ctrl.Store(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		DELETE("/credentials/:id", middlewares.Authorize(policy.Credentials, policy.Write), func(ctx *gin.Context) {
			status, err := ctrl.Deactivate(ctx.Copy())
			respond[any](ctx, nil, status, err)
		})
	return g
}

func catalogHandlers(g *gin.RouterGroup, ctrl *controllers.Catalog) *gin.RouterGroup {
	g.
		GET("/catalog/items", middlewares.Authorize(policy.Catalog, policy.Read), func(ctx *gin.Context) {
			res, status, err := ctrl.Items(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		GET("/catalog/:platform/items", middlewares.Authorize(policy.Catalog, policy.Read), func(ctx *gin.Context) {
			res, status, err := ctrl.PlatformItems(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		POST("/catalog/:platform/push-menu", middlewares.Authorize(policy.Catalog, policy.Write), func(ctx *gin.Context) {
			res, status, err := ctrl.PushMenu(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		POST("/orders/:id/platform-status", middlewares.Authorize(policy.Orders, policy.Write), func(ctx *gin.Context) {
			res, status, err := ctrl.PushOrderStatus(ctx.Copy())
			respond(ctx, res, status, err)
		})
	return g
}

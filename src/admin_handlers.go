package main

import (
	"menusync/src/boot"
	"menusync/src/controllers"
	"menusync/src/middlewares"
	"menusync/src/policy"

	"github.com/gin-gonic/gin"
)

// adminRoutes is the super-admin surface. It never resolves a tenant from
// the host.
func adminRoutes(g *gin.Engine, app *boot.App) *gin.RouterGroup {
	admin := g.Group(adminPrefix)
	admin.
		POST("/auth/login", func(ctx *gin.Context) {
			res, status, err := app.Auth.AdminLogin(ctx.Copy())
			respond(ctx, res, status, err)
		})

	tenants := &controllers.Tenants{Repos: app.Repos, Onboarding: app.Onboarding}
	orders := &controllers.Orders{Repos: app.Repos, Syncer: app.Syncer}

	authorized := admin.Group("", middlewares.AuthMiddleware([]byte(app.Config.Security.JWTSecret), app.Repos.Users, app.Auth.Sessions))
	authorized.
		POST("/tenants", middlewares.Authorize(policy.Tenants, policy.Manage), func(ctx *gin.Context) {
			res, status, err := tenants.Create(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		GET("/tenants", middlewares.Authorize(policy.Tenants, policy.Read), func(ctx *gin.Context) {
			res, status, err := tenants.List(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		PATCH("/tenants/:id/status", middlewares.Authorize(policy.Tenants, policy.Manage), func(ctx *gin.Context) {
			res, status, err := tenants.UpdateStatus(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		GET("/sync/failed", middlewares.Authorize(policy.AllTenantsSync, policy.Read), func(ctx *gin.Context) {
			res, status, err := orders.ListFailedAllTenants(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		POST("/sync/orders/:id/retry", middlewares.Authorize(policy.AllTenantsSync, policy.Retry), func(ctx *gin.Context) {
			res, status, err := orders.RetryAllTenants(ctx.Copy())
			respond(ctx, res, status, err)
		}).
		POST("/impersonate/:userId", func(ctx *gin.Context) {
			res, status, err := app.Auth.Impersonate(ctx.Copy())
			respond(ctx, res, status, err)
		})
	return admin
}

package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/example/galley/internal/core/access"
	"github.com/example/galley/internal/logging"
)

// NewRouter builds the gin engine with logging, recovery, CORS, auth and role gates.
// An empty corsOrigins allows every origin.
func NewRouter(handler *Handler, parser TokenParser, corsOrigins []string) *gin.Engine {
	// Quantities go out as JSON numbers; both forms are accepted on input.
	decimal.MarshalJSONWithoutQuotes = true

	router := gin.New()
	router.Use(logging.JSONLogger())
	router.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}
	if len(corsOrigins) > 0 {
		corsCfg.AllowOrigins = corsOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	router.Use(cors.New(corsCfg))

	router.GET("/live", func(c *gin.Context) { c.Status(200) })
	router.GET("/ready", handler.Ready)

	apiGroup := router.Group("/api")
	apiGroup.Use(AuthMiddleware(parser))
	{
		read := RequireRole(access.CanRead)
		manage := RequireRole(access.CanManageManifests)

		apiGroup.GET("/dispatches", read, handler.ListDispatches)
		apiGroup.POST("/dispatches", manage, handler.CreateDispatch)
		apiGroup.GET("/dispatches/:id", read, handler.GetDispatch)
		apiGroup.DELETE("/dispatches/:id", manage, handler.DeleteDispatch)

		// Branch-scoped check happens in the handler once the slug is known.
		apiGroup.PATCH("/dispatches/:id/branches/:slug", handler.UpdateBranch)
		apiGroup.POST("/dispatches/:id/branches/:slug/resolve", RequireRole(access.CanResolveIssues), handler.ResolveIssue)
		apiGroup.POST("/dispatches/:id/late-items", RequireRole(access.CanAddLateItems), handler.AddLateItem)

		apiGroup.GET("/archive", read, handler.ListArchive)
		apiGroup.GET("/archive/:id", read, handler.GetArchived)

		apiGroup.GET("/units/infer", read, handler.InferUnit)
	}

	return router
}

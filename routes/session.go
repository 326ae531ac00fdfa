package routes

import (
	"sparhub/controllers"

	"github.com/gin-gonic/gin"
)

// SetupSessionRoutes registers the session lifecycle and catalog routes.
func SetupSessionRoutes(router *gin.RouterGroup, sc *controllers.SessionController, cc *controllers.CatalogController) {
	router.GET("/counterparts", cc.ListCounterparts)

	sessions := router.Group("/sessions")
	{
		sessions.POST("", sc.CreateSession)
		sessions.GET("", sc.ListSessions)
		sessions.GET("/:token", sc.GetSession)
		sessions.POST("/:token/messages", sc.SubmitMessage)
		sessions.POST("/:token/complete", sc.CompleteSession)
		sessions.POST("/:token/verdict/regenerate", sc.RegenerateVerdict)
		sessions.POST("/:token/extend", sc.ExtendRounds)
		sessions.POST("/:token/vote", sc.CastVote)
	}
}

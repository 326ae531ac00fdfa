package routes

import (
	"sparhub/config"
	"sparhub/controllers"
	"sparhub/middlewares"
	"sparhub/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter assembles the gin engine: CORS, identity resolution, and the
// session/catalog routes. Shared by the server binary and the tests.
func NewRouter(cfg *config.Config, svc *services.SessionService, catalog controllers.CatalogReader) *gin.Engine {
	router := gin.Default()
	router.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	api := router.Group("/")
	api.Use(middlewares.IdentityMiddleware(cfg.JWT.Secret))
	SetupSessionRoutes(api, controllers.NewSessionController(svc), controllers.NewCatalogController(catalog))

	return router
}

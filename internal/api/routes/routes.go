package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/scribe/internal/api/handlers"
	"github.com/yoockh/scribe/internal/api/middleware"
)

type Deps struct {
	Session *handlers.SessionHandler
	WS      *handlers.WSHandler
	JWT     middleware.JWTConfig
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWT))

	auth.POST("/session/start", d.Session.Start)
	auth.GET("/session/:session_id", d.Session.Get)
	auth.POST("/session/:session_id/end", d.Session.End)
	auth.GET("/session/:session_id/transcript", d.Session.Transcript)

	auth.GET("/ws/session", d.WS.SessionWS)
}

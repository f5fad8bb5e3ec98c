package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/aweso807-blip/syncb/internal/adapters/signal"
	"github.com/aweso807-blip/syncb/internal/app"
	"github.com/aweso807-blip/syncb/internal/config"
	"github.com/aweso807-blip/syncb/internal/core"
)

func SetupRouter(ctx context.Context, cfg *config.Config, relay *app.Relay, rooms core.RoomFactory) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewWSController(relay, cfg)

	api := r.Group("/api")
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rooms.List()})
	})
	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"count": relay.Registry.Count()})
	})

	r.GET("/ws", func(c *gin.Context) {
		ctrl.HandleWS(ctx, c)
	})

	return r
}

package server

import (
	"directchat/internal/auth"
	"directchat/internal/config"
	"directchat/internal/metrics"
	"directchat/internal/mw"
	"directchat/internal/service"
	"directchat/internal/store"
	"directchat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, st store.Store, chat *service.ChatService, hub *ws.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.Logger())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CorsAllowedOrigins))
	if cfg.RateLimitPerSecond > 0 {
		r.Use(mw.RateLimit(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst))
	}

	h := NewHandler(chat, st, cfg.RequestTimeout)

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	authed := api.Group("", auth.AuthMiddleware(cfg, st))

	rooms := authed.Group("/chat")
	rooms.POST("/rooms", auth.RejectGuests(), h.CreateRoom)
	rooms.GET("/rooms", h.ListRooms)
	rooms.GET("/rooms/:id", h.GetRoom)
	rooms.GET("/rooms/:id/messages", h.ListMessages)
	rooms.POST("/rooms/:id/messages", h.SendMessage)
	rooms.GET("/users/:username/room", h.GetRoomByUsername)

	r.GET("/ws", ws.Serve(hub, st, ws.SenderFunc(chat.SendFromSocket), cfg))
	return r
}

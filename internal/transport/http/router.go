package http

import (
	"github.com/gin-gonic/gin"
	"github.com/iamasit07/snakesync/internal/transport/http/middleware"
)

// NewRouter mounts the control API. ws may be nil when no observer stream is wanted.
func NewRouter(control *ControlHandler, history *HistoryHandler, ws gin.HandlerFunc, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())
	router.Use(middleware.CORSMiddleware(allowedOrigins))

	api := router.Group("/api")
	{
		api.GET("/state", control.GetState)
		api.POST("/stop", control.StopAll)

		api.POST("/lan/host", control.HostLAN)
		api.POST("/lan/discover", control.StartLANDiscovery)
		api.DELETE("/lan/discover", control.StopLANDiscovery)
		api.GET("/lan/rooms", control.LANRooms)
		api.POST("/lan/join", control.JoinLAN)

		api.POST("/bt/host", control.HostBT)
		api.POST("/bt/scan", control.ScanBT)
		api.GET("/bt/devices", control.BTDevices)
		api.POST("/bt/join", control.JoinBT)

		api.POST("/game/start", control.StartGame)
		api.POST("/game/steer", control.Steer)
		api.POST("/game/boost", control.Boost)

		api.GET("/history", history.GetHistory)
		api.GET("/history/:id", history.GetMatchDetails)
	}

	if ws != nil {
		router.GET("/ws", ws)
	}
	return router
}

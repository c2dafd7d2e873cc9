package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/broker"
	"github.com/roomchat/roomchat-server/internal/config"
	"github.com/roomchat/roomchat-server/internal/core"
)

// NewServer builds the HTTP server: REST room endpoints, the websocket
// gateway at /chat, and a health probe.
func NewServer(rooms *core.RoomService, messages *core.MessageService, br *broker.Broker, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	r.GET("/health", healthHandler)

	rh := NewRoomHandlers(rooms, messages, logger)
	api := r.Group("/api/v1")
	api.POST("/rooms", rh.CreateRoom)
	api.GET("/rooms", rh.ListRooms)
	api.GET("/rooms/:roomId", rh.GetRoom)
	api.GET("/rooms/:roomId/messages", rh.ListMessages)
	// Request/response fallback for clients that cannot hold a socket.
	api.POST("/rooms/:roomId/messages", rh.SendMessage)

	// The gateway hijacks the connection during the upgrade, which gin's
	// ResponseWriter does not support, so /chat is mounted on the outer mux
	// and only the REST routes go through gin.
	mux := stdhttp.NewServeMux()
	mux.Handle("/chat", NewWSHandler(messages, br, cfg, logger))
	mux.Handle("/", r)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	fmt.Fprint(c.Writer, "ok")
}

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Louaq/Awesome-poetize-open/internal/config"
	"github.com/Louaq/Awesome-poetize-open/internal/health"
	"github.com/Louaq/Awesome-poetize-open/pkg/jwt"
)

// SetupRouter 设置路由
func SetupRouter(
	cfg *config.Config,
	jwtService *jwt.Service,
	readStateHandler *ReadStateHandler,
	healthChecker *health.Checker,
	logger *slog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.HTTP.Mode)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(AccessLog(logger))
	r.Use(CORS(cfg.HTTP.AllowedOrigins, cfg.HTTP.AllowCredentials))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(healthChecker.HTTPStatus(c.Request.Context()), healthChecker.Check(c.Request.Context()))
	})

	im := r.Group("/api/im")
	im.Use(JWTAuth(jwtService))
	{
		im.POST("/read", readStateHandler.MarkRead)
		im.POST("/hide", readStateHandler.Hide)
		im.POST("/unhide", readStateHandler.Unhide)
		im.GET("/unread", readStateHandler.UnreadCount)
		im.GET("/unread/all", readStateHandler.AllUnreadCounts)
		im.GET("/chats", readStateHandler.ChatList)
	}

	return r
}

// NewHTTPServer 构造 HTTP 服务器
func NewHTTPServer(addr string, engine *gin.Engine) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: engine,
	}
}

package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/config"
	"github.com/yeremiapane/backoffice/controllers"
	"github.com/yeremiapane/backoffice/middlewares"
	"github.com/yeremiapane/backoffice/passwords"
	"github.com/yeremiapane/backoffice/realtime"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
	"gorm.io/gorm"
)

// Deps is what the router needs from main. Orders is optional; when nil a
// service publishing on Hub is created.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Hub    *realtime.Hub
	Orders *services.OrderService
}

func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSOrigins))

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	r.Use(middlewares.OptionalAuth(tokens))

	orders := d.Orders
	if orders == nil {
		orders = services.NewOrderService(d.DB, d.Hub)
	}
	users := services.NewUserService(d.DB, passwords.NewChain(cfg.LegacyEncryptionKey), tokens, cfg.MigratePasswords)

	healthCtrl := controllers.NewHealthController(d.DB, healthDatabase(cfg))
	authCtrl := controllers.NewAuthController(users)
	orderCtrl := controllers.NewOrderController(orders)
	paymentCtrl := controllers.NewPaymentController(services.NewPaymentService(d.DB))
	lancamentoCtrl := controllers.NewLancamentoController(services.NewLancamentoService(d.DB))
	attendanceCtrl := controllers.NewAttendanceController(services.NewAttendanceService(d.DB))
	statsCtrl := controllers.NewStatsController(services.NewStatsService(d.DB))
	chatCtrl := controllers.NewChatController(services.NewChatService(d.DB, d.Hub))
	realtimeCtrl := controllers.NewRealtimeController(d.Hub, cfg.CORSOrigins)

	r.GET("/health", healthCtrl.Health)

	api := r.Group("/api")
	{
		api.GET("/health", healthCtrl.Health)

		loginLimiter := middlewares.NewLoginRateLimiter(cfg.LoginRatePerMinute)
		api.POST("/auth/login", loginLimiter.RateLimit(), authCtrl.Login)

		for _, prefix := range []string{"/orders", "/os"} {
			g := api.Group(prefix)
			g.GET("", orderCtrl.GetOrders)
			g.POST("", orderCtrl.CreateOrder)
			g.GET("/:id", orderCtrl.GetOrderByID)
			g.PUT("/:id", orderCtrl.UpdateOrder)
		}

		api.GET("/payments/today", paymentCtrl.Today)
		api.GET("/pagos/today", paymentCtrl.Today)

		lanc := api.Group("/lancamentos")
		lanc.GET("/summary", lancamentoCtrl.Summary)
		lanc.GET("/realizadas", lancamentoCtrl.Realizadas)
		lanc.GET("/pendientes", lancamentoCtrl.Pendientes)
		lanc.GET("/prevision", lancamentoCtrl.Prevision)

		api.GET("/attendance/daily", attendanceCtrl.Daily)
		api.GET("/stats/metros-por-usuario", statsCtrl.MetrosPorUsuario)

		chat := api.Group("/chat")
		chat.GET("/users", chatCtrl.AvailableUsers)
		chat.GET("/conversations", chatCtrl.Conversations)
		chat.GET("/messages/:otherUserId", chatCtrl.Messages)
		chat.POST("/messages", chatCtrl.Send)
		chat.PUT("/messages/read/:otherUserId", chatCtrl.MarkAsRead)
		chat.GET("/unread", chatCtrl.Unread)
	}

	rt := r.Group("/realtime")
	{
		rt.GET("", realtimeCtrl.Stream)
		rt.GET("/stream", realtimeCtrl.Stream)
		rt.OPTIONS("/stream", realtimeCtrl.Preflight)
		rt.GET("/ws", realtimeCtrl.WebSocket)
		rt.GET("/clients", realtimeCtrl.Clients)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Ruta no encontrada"})
	})

	return r
}

func healthDatabase(cfg *config.Config) string {
	if cfg.DBDriver == "sqlite" {
		return cfg.SQLitePath
	}
	return cfg.MySQLDatabase
}

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/signup-backend/internal/config"
	"github.com/ignatzorin/signup-backend/internal/http/handlers"
	"github.com/ignatzorin/signup-backend/internal/http/middleware"
)

// SetupRouter собирает маршруты сервиса регистрации.
func SetupRouter(
	cfg *config.Config,
	registrationHandler *handlers.RegistrationHandler,
	userHandler *handlers.UserHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Регистрация защищена своим лимитом: подбор кода и рассылку
	// спама ограничиваем ещё до бизнес-логики.
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/send-otp", registrationHandler.SendOtp)
		authGroup.POST("/verify-otp", registrationHandler.VerifyOtp)
	}

	// Операции над подтверждёнными пользователями.
	api.GET("/users/check-username", userHandler.CheckUsername)
	api.GET("/users/by-username/:username", userHandler.GetUser)
	api.PATCH("/users/:id", middleware.UUIDValidator("id"), userHandler.UpdateUser)
	api.DELETE("/users/:id", middleware.UUIDValidator("id"), userHandler.DeleteUser)

	return r
}

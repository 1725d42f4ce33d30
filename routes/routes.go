package routes

import (
	"log/slog"
	"net/http"
	"time"

	"storefront-backend/cache"
	"storefront-backend/cart"
	"storefront-backend/firebase"
	"storefront-backend/handlers"
	"storefront-backend/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the shared collaborators the HTTP layer is built from.
type Deps struct {
	DB      *gorm.DB
	Cache   cache.Cache
	Carts   *cart.Service
	Storage firebase.StorageClient
	Log     *slog.Logger

	ProductTTL time.Duration
	UserTTL    time.Duration
}

// SetupRoutes registers every route on r. The returned func stops background
// work started for the routes and should be called on shutdown.
func SetupRoutes(r *gin.Engine, deps Deps) (stop func()) {
	authHandler := handlers.NewAuthHandler(deps.DB, deps.Carts, deps.Cache, deps.Log)
	userHandler := handlers.NewUserHandler(deps.DB, deps.Cache, deps.UserTTL, deps.Log)
	productHandler := handlers.NewProductHandler(deps.DB, deps.Cache, deps.Storage, deps.ProductTTL, deps.Log)
	categoryHandler := handlers.NewCategoryHandler(deps.DB, deps.Log)
	cartHandler := handlers.NewCartHandler(deps.Carts, deps.Log)
	orderHandler := handlers.NewOrderHandler(deps.DB, deps.Carts, deps.Cache, deps.Log)

	// 10 login attempts per minute per client IP
	loginLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", loginLimiter.Middleware(), authHandler.Login)
		api.POST("/auth/refresh", authHandler.Refresh)

		api.GET("/products", productHandler.GetProducts)
		api.GET("/products/slug/:slug", productHandler.GetProductBySlug)
		api.GET("/products/:id", productHandler.GetProduct)

		api.GET("/categories", categoryHandler.GetCategories)
		api.GET("/categories/:id", categoryHandler.GetCategory)
	}

	// Cart works for guests (X-Session-Id) and signed-in users alike.
	carts := api.Group("/cart")
	carts.Use(middleware.OptionalAuthMiddleware())
	{
		carts.GET("", cartHandler.GetCart)
		carts.POST("", cartHandler.AddItem)
		carts.DELETE("", cartHandler.ClearCart)
		carts.PUT("/items/:itemId", cartHandler.UpdateItem)
		carts.DELETE("/items/:itemId", cartHandler.RemoveItem)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/auth/profile", authHandler.GetProfile)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)

		protected.POST("/orders", orderHandler.CreateOrder)
		protected.GET("/orders", orderHandler.GetOrders)
		protected.GET("/orders/:id", orderHandler.GetOrder)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	{
		admin.POST("/products", productHandler.CreateProduct)
		admin.PUT("/products/:id", productHandler.UpdateProduct)
		admin.DELETE("/products/:id", productHandler.DeleteProduct)
		admin.POST("/products/:id/image", productHandler.UploadImage)
		admin.PUT("/variants/:id", productHandler.UpdateVariant)

		admin.POST("/categories", categoryHandler.CreateCategory)
		admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
		admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)

		admin.GET("/users", userHandler.ListUsers)
		admin.PUT("/users/:id/block", userHandler.SetBlocked)

		admin.PUT("/orders/:id/status", orderHandler.UpdateOrderStatus)
	}

	return loginLimiter.Stop
}

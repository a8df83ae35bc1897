// Package server wires the gin engine: middleware, CORS and the route table.
package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-pos-backend/internal/config"
	"go-pos-backend/internal/handlers"
	"go-pos-backend/internal/middleware"
	"go-pos-backend/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const webDir = "./web"

// Role groups used by the route table. Admin passes every check.
var (
	managers  = []string{models.RoleManager, models.RoleAdmin}
	cashiers  = []string{models.RoleCashier, models.RoleManager, models.RoleAdmin}
	adminOnly = []string{models.RoleAdmin}
)

func NewRouter(cfg *config.Config, h *handlers.Handler, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })
	r.POST("/login", h.Login)
	r.POST("/api/token", h.Login)

	// Only opens if explicitly allowed in .env
	if cfg.Auth.AllowRegistration {
		r.POST("/register", h.Register)
		log.Warn("registration route is open; disable ALLOW_REGISTRATION in production")
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(h.Issuer))
	{
		api.GET("/me", h.Me)

		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/scan/:barcode", h.ScanProduct)

		api.GET("/sales-report", h.SalesReport)
		api.GET("/sales-report/export", h.ExportSalesReport)
		api.GET("/store-today-sales", h.StoreTodaySales)
		api.GET("/user-today-performance", h.UserTodayPerformance)

		api.GET("/customers", h.ListCustomers)
		api.POST("/customers", h.CreateCustomer)
		api.GET("/customers/:id", h.GetCustomer)
		api.PUT("/customers/:id", h.UpdateCustomer)
		api.DELETE("/customers/:id", h.DeleteCustomer)
		api.GET("/customer-transactions", h.CustomerTransactions)
		api.POST("/redeem-points", h.RedeemPoints)

		till := api.Group("", middleware.RequireRole(cashiers...))
		{
			till.GET("/sales", h.ListSales)
			till.POST("/sales", h.CreateSale)
			till.POST("/sales/quote", h.QuoteSale)
			till.GET("/sales/:id", h.GetSale)
			till.POST("/restock", h.Restock)
			till.GET("/restock-history", h.RestockHistory)
		}

		mgr := api.Group("", middleware.RequireRole(managers...))
		{
			mgr.POST("/products", h.AddProduct)
			mgr.PUT("/products/:id", h.UpdateProduct)
			mgr.PATCH("/products/:id", h.UpdateProduct)
			mgr.DELETE("/products/:id", h.DeleteProduct)

			mgr.GET("/categories", h.ListCategories)
			mgr.POST("/categories", h.CreateCategory)
			mgr.GET("/categories/:id", h.GetCategory)
			mgr.PUT("/categories/:id", h.UpdateCategory)
			mgr.DELETE("/categories/:id", h.DeleteCategory)

			mgr.GET("/bulk-discounts", h.ListDiscounts)
			mgr.POST("/bulk-discounts", h.CreateDiscount)
			mgr.GET("/bulk-discounts/:id", h.GetDiscount)
			mgr.PUT("/bulk-discounts/:id", h.UpdateDiscount)
			mgr.DELETE("/bulk-discounts/:id", h.DeleteDiscount)

			mgr.GET("/loyalty-settings", h.ListLoyaltySettings)
			mgr.POST("/loyalty-settings", h.CreateLoyaltySettings)
			mgr.GET("/loyalty-settings/:id", h.GetLoyaltySettings)
			mgr.PUT("/loyalty-settings/:id", h.UpdateLoyaltySettings)
			mgr.DELETE("/loyalty-settings/:id", h.DeleteLoyaltySettings)

			mgr.GET("/staff", h.ListStaff)
			mgr.GET("/staff/:id", h.GetStaff)

			mgr.GET("/reports/valuation", h.StockValuation)
			mgr.GET("/reports/top-selling", h.TopSelling)
		}

		admin := api.Group("", middleware.RequireRole(adminOnly...))
		{
			admin.DELETE("/staff/:id", h.DeleteStaff)
			admin.POST("/ask", h.AskAI)
		}
	}

	serveFrontend(r)
	return r
}

// serveFrontend serves the built SPA when ./web exists. Unknown /api paths
// stay JSON 404s; everything else falls back to index.html.
func serveFrontend(r *gin.Engine) {
	index := filepath.Join(webDir, "index.html")
	_, err := os.Stat(index)
	hasWeb := err == nil
	if hasWeb {
		r.Static("/assets", filepath.Join(webDir, "assets"))
		r.StaticFile("/vite.svg", filepath.Join(webDir, "vite.svg"))
	}

	r.NoRoute(func(c *gin.Context) {
		if !hasWeb || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.File(index)
	})
}

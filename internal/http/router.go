package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS)

	r.With(Timeout).Get("/healthz", handler.Health)

	r.Route("/api", func(r chi.Router) {
		// Long-lived; must stay outside Timeout.
		r.Get("/products/updates", handler.ProductUpdates)

		r.Group(func(r chi.Router) {
			r.Use(Timeout)

			r.Get("/products", handler.ListProducts)
			r.Post("/products", handler.CreateProduct)
			r.Post("/products/import", handler.ImportProducts)
			r.Get("/products/{id}", handler.GetProduct)
			r.Put("/products/{id}", handler.UpdateProduct)
			r.Delete("/products/{id}", handler.DeleteProduct)
			r.Put("/products/{id}/stock", handler.SetStock)
			r.Post("/products/{id}/stock/adjust", handler.AdjustStock)

			r.Get("/categories", handler.ListCategories)
			r.Post("/categories", handler.CreateCategory)
			r.Delete("/categories/{id}", handler.DeleteCategory)

			r.Get("/sales", handler.ListSales)
			r.Post("/sales", handler.CreateSale)
			r.Get("/sales/{id}", handler.GetSale)

			r.Get("/reports/summary", handler.SalesSummary)
			r.Get("/reports/daily", handler.DailySales)
			r.Get("/reports/categories", handler.CategoryStock)
			r.Get("/reports/top-products", handler.TopProducts)

			r.Get("/alerts/low-stock", handler.LowStock)
			r.Get("/alerts/out-of-stock", handler.OutOfStock)
			r.Get("/alerts/expiry", handler.ExpiryAlerts)

			r.Post("/reset-data", handler.ResetData)
		})
	})

	return r
}

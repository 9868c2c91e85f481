package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/smm-dashboard/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware дашборда.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", h.OpenSession)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Delete("/session", h.CloseSession)

			r.Group(func(r chi.Router) {
				r.Use(h.withSession)

				r.Get("/currencies", h.GetCurrencies)
				r.Put("/currency", h.SelectCurrency)
				r.Get("/balance", h.GetBalance)

				r.Get("/categories", h.GetCategories)
				r.Get("/services", h.GetServices)

				r.Route("/order", func(r chi.Router) {
					r.Get("/", h.GetOrder)
					r.Put("/category", h.SelectCategory)
					r.Put("/service", h.SelectService)
					r.Put("/quantity", h.SetQuantity)
					r.Put("/link", h.SetLink)
					r.Post("/submit", h.SubmitOrder)
					r.Delete("/status", h.DismissOrderStatus)
				})
				r.Get("/orders/recent", h.GetRecentOrders)

				r.Route("/search", func(r chi.Router) {
					r.Get("/", h.GetSearch)
					r.Put("/query", h.SetSearchQuery)
					r.Post("/focus", h.FocusSearch)
					r.Post("/blur", h.BlurSearch)
					r.Post("/select", h.SelectSearchResult)
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", h.GetNotifications)
					r.Delete("/", h.ClearNotifications)
					r.Post("/read-all", h.MarkAllNotificationsRead)
					r.Post("/{id}/read", h.MarkNotificationRead)
					r.Delete("/{id}", h.DeleteNotification)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

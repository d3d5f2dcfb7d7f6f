package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/op-system/internal/middleware"
	"github.com/mmeshcher/op-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware панели учёта ОП.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	// WebSocket вне gzip-обёртки: апгрейду соединения нужен исходный ResponseWriter.
	if h.wsHandler != nil {
		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Handle("/api/ws", h.wsHandler)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)
		r.Use(custommiddleware.Logger(h.logger))

		r.Post("/api/session", h.CreateSession)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/api/orders", h.GetOrders)
			r.Get("/api/orders/{number}", h.GetOrder)
			r.Get("/api/orders/{number}/history", h.GetOrderHistory)
			r.Get("/api/stats", h.GetStats)
			r.Post("/api/sync", h.Sync)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleOperator, model.RoleManager))
				r.Post("/api/orders/{number}/separation", h.RecordSeparation)
			})

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleManager))
				r.Post("/api/orders", h.CreateOrder)
				r.Post("/api/orders/{number}/print", h.MarkPrinted)
				r.Get("/api/orders/export", h.ExportOrders)
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

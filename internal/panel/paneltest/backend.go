// Package paneltest содержит поддельный бэкенд панели для тестов.
package paneltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

// OrderFunc формирует ответ на создание заказа: статус и тело.
type OrderFunc func(req model.OrderRequest) (int, any)

// SearchFunc формирует ответ поиска. Ненулевой статус вне 2xx означает ошибку.
type SearchFunc func(query string, limit int) ([]model.Service, int)

// Backend реализует поддельный бэкенд панели поверх httptest.Server.
// Поля можно менять до запросов или внутри Update.
type Backend struct {
	mu sync.Mutex

	Token string

	Currencies    []model.Currency
	Balance       float64
	Categories    []model.Category
	Services      map[int64][]model.Service
	Notifications []model.Notification

	FailCategories    bool
	FailServices      bool
	FailNotifications bool

	Search      SearchFunc
	SearchDelay func(query string) time.Duration
	Order       OrderFunc

	Orders []model.OrderRequest

	calls  map[string]int
	server *httptest.Server
}

// New запускает поддельный бэкенд и останавливает его по завершении теста.
func New(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		Services: make(map[int64][]model.Service),
		calls:    make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(b.auth)
	r.Get("/api/currencies", b.currencies)
	r.Get("/api/user/balance", b.balance)
	r.Get("/api/categories", b.categories)
	r.Get("/api/services", b.services)
	r.Get("/api/services/search", b.search)
	r.Post("/api/orders", b.createOrder)
	r.Get("/api/notifications", b.notifications)
	r.Post("/api/notifications/read-all", b.readAll)
	r.Post("/api/notifications/{id}/read", b.readOne)
	r.Delete("/api/notifications/{id}", b.deleteOne)
	r.Delete("/api/notifications", b.clear)

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)

	return b
}

// URL возвращает адрес поддельного бэкенда.
func (b *Backend) URL() string {
	return b.server.URL
}

// Update изменяет состояние бэкенда под блокировкой.
func (b *Backend) Update(fn func(b *Backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

// Calls возвращает число обращений к операции.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// PlacedOrders возвращает принятые запросы на создание заказов.
func (b *Backend) PlacedOrders() []model.OrderRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.OrderRequest(nil), b.Orders...)
}

func (b *Backend) count(op string) {
	b.mu.Lock()
	b.calls[op]++
	b.mu.Unlock()
}

func (b *Backend) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		token := b.Token
		b.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) currencies(w http.ResponseWriter, r *http.Request) {
	b.count("currencies")
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "currencies": b.Currencies})
}

func (b *Backend) balance(w http.ResponseWriter, r *http.Request) {
	b.count("balance")
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"balance": b.Balance})
}

func (b *Backend) categories(w http.ResponseWriter, r *http.Request) {
	b.count("categories")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailCategories {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server Error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": b.Categories})
}

func (b *Backend) services(w http.ResponseWriter, r *http.Request) {
	b.count("services")
	id, _ := strconv.ParseInt(r.URL.Query().Get("category"), 10, 64)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailServices {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server Error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": b.Services[id]})
}

func (b *Backend) search(w http.ResponseWriter, r *http.Request) {
	b.count("search")
	q := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	b.mu.Lock()
	fn := b.Search
	delay := b.SearchDelay
	b.mu.Unlock()

	if delay != nil {
		time.Sleep(delay(q))
	}

	if fn == nil {
		writeJSON(w, http.StatusOK, map[string]any{"data": []model.Service{}})
		return
	}

	res, status := fn(q, limit)
	if status != 0 && (status < 200 || status >= 300) {
		writeJSON(w, status, map[string]string{"message": "search unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": res})
}

func (b *Backend) createOrder(w http.ResponseWriter, r *http.Request) {
	b.count("create_order")

	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	b.Orders = append(b.Orders, req)
	fn := b.Order
	b.mu.Unlock()

	if fn == nil {
		writeJSON(w, http.StatusCreated, map[string]any{"order_id": len(b.PlacedOrders())})
		return
	}

	status, body := fn(req)
	writeJSON(w, status, body)
}

func (b *Backend) notifications(w http.ResponseWriter, r *http.Request) {
	b.count("notifications")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailNotifications {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "Bad Gateway"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": b.Notifications})
}

func (b *Backend) readAll(w http.ResponseWriter, r *http.Request) {
	b.mutateNotifications(w, "notifications_read_all", func() {
		for i := range b.Notifications {
			b.Notifications[i].IsRead = true
		}
	})
}

func (b *Backend) readOne(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	b.mutateNotifications(w, "notification_read", func() {
		for i := range b.Notifications {
			if b.Notifications[i].ID == id {
				b.Notifications[i].IsRead = true
			}
		}
	})
}

func (b *Backend) deleteOne(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	b.mutateNotifications(w, "notification_delete", func() {
		kept := b.Notifications[:0]
		for _, n := range b.Notifications {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		b.Notifications = kept
	})
}

func (b *Backend) clear(w http.ResponseWriter, r *http.Request) {
	b.mutateNotifications(w, "notifications_clear", func() {
		b.Notifications = nil
	})
}

func (b *Backend) mutateNotifications(w http.ResponseWriter, op string, fn func()) {
	b.count(op)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailNotifications {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "Bad Gateway"})
		return
	}
	fn()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

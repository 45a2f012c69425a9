package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cleanwash/cleanwash/internal/auth"
	"github.com/cleanwash/cleanwash/internal/live"
	"github.com/cleanwash/cleanwash/internal/orders"
	"github.com/cleanwash/cleanwash/internal/redisx"
	"github.com/cleanwash/cleanwash/internal/store"
)

type OrderStore interface {
	Create(ctx context.Context, studentID string, in orders.PlaceOrderInput) (string, int, error)
	Get(ctx context.Context, id string) (*orders.Order, error)
	ListByStudent(ctx context.Context, studentID string) ([]orders.OrderView, error)
	Catalog(ctx context.Context) ([]orders.ClothingItem, error)
}

type TransitionService interface {
	ApplyTransition(ctx context.Context, orderID string, target orders.Status, actor orders.Actor, notes string) (*orders.Order, error)
	AnnounceCreated(orderID, studentID string, totalCents int)
}

type QueueSource interface {
	Snapshot() live.Snapshot
	Listen() (<-chan live.Snapshot, func())
}

type ChangePublisher interface {
	Publish(ctx context.Context, c store.Change) error
}

type OrdersHandler struct {
	Store OrderStore
	Svc   TransitionService
	Sync  QueueSource
	Feed  ChangePublisher
	Redis *redis.Client
	Log   *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router, tokens *auth.Token) {
	r.Get("/api/catalog", h.catalog)

	r.Group(func(r chi.Router) {
		r.Use(Auth(tokens), RequireRole(auth.RoleStudent))
		r.Post("/api/orders", h.createOrder)
		r.Get("/api/orders", h.listOwnOrders)
		r.Get("/api/orders/{id}/status", h.orderStatus)
		r.Post("/api/orders/{id}/cancel", h.cancelOrder)
	})

	r.Group(func(r chi.Router) {
		r.Use(Auth(tokens), RequireRole(auth.RoleWorker))
		r.Get("/api/worker/orders", h.listQueues)
		r.Post("/api/worker/orders/{id}/status", h.updateStatus)
		r.Get("/api/worker/orders/stream", h.streamQueues)
	})
}

func (h *OrdersHandler) catalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.Catalog(r.Context())
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())

	var in orders.PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	orderID, total, err := h.Store.Create(r.Context(), claims.UserID, in)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	h.Svc.AnnounceCreated(orderID, claims.UserID, total)

	key := fmt.Sprintf(redisx.KeyOrderStatus, claims.UserID, orderID)
	if err := h.Redis.Set(r.Context(), key, string(orders.StatusPending), redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Warn("status cache set failed", zap.String("order_id", orderID), zap.Error(err))
	}
	if err := h.Feed.Publish(r.Context(), store.Change{
		Collection: store.CollectionOrders,
		Event:      store.EventInsert,
		ID:         orderID,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		h.Log.Warn("change publish failed", zap.String("order_id", orderID), zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id":    orderID,
		"total_cents": total,
	})
}

func (h *OrdersHandler) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	views, err := h.Store.ListByStudent(r.Context(), claims.UserID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// orderStatus serves the status poll from the Redis cache when it can,
// falling back to the database and refilling the cache on a miss. The cache
// key carries the owner, so a hit can only ever be the caller's own order.
func (h *OrdersHandler) orderStatus(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	id := chi.URLParam(r, "id")

	key := fmt.Sprintf(redisx.KeyOrderStatus, claims.UserID, id)
	if cached, err := h.Redis.Get(r.Context(), key).Result(); err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"order_id": id, "status": cached})
		return
	}

	o, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if o.StudentID != claims.UserID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	if err := h.Redis.Set(r.Context(), key, string(o.Status), redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Warn("status cache set failed", zap.String("order_id", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_id": id, "status": string(o.Status)})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	id := chi.URLParam(r, "id")

	o, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if o.StudentID != claims.UserID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	// Students may only withdraw orders no worker has picked up yet.
	if o.Status != orders.StatusPending {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "order already in progress"})
		return
	}

	actor := orders.Actor{ID: claims.UserID, Role: claims.Role}
	updated, err := h.Svc.ApplyTransition(r.Context(), id, orders.StatusCancelled, actor, "")
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *OrdersHandler) listQueues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sync.Snapshot())
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	id := chi.URLParam(r, "id")

	var in updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	target, ok := orders.ParseStatus(in.Status)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "unknown status " + in.Status})
		return
	}

	actor := orders.Actor{ID: claims.UserID, Role: claims.Role}
	updated, err := h.Svc.ApplyTransition(r.Context(), id, target, actor, in.Notes)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, updated.StudentID, id)
	if err := h.Redis.Set(r.Context(), key, string(updated.Status), redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Warn("status cache set failed", zap.String("order_id", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, updated)
}

// streamQueues pushes queue snapshots over server-sent events. The
// first frame is the current snapshot so the dashboard paints without
// waiting for a change.
func (h *OrdersHandler) streamQueues(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Sync.Listen()
	defer cancel()

	send := func(s live.Snapshot) bool {
		b, err := json.Marshal(s)
		if err != nil {
			h.Log.Error("snapshot marshal failed", zap.Error(err))
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", b)
		fl.Flush()
		return true
	}
	if !send(h.Sync.Snapshot()) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case s := <-ch:
			if !send(s) {
				return
			}
		}
	}
}

func (h *OrdersHandler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrBadInput),
		errors.Is(err, orders.ErrNoWashesLeft):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrNoIdentity):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	default:
		h.Log.Error("order request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

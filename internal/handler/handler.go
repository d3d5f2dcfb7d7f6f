// Package handler содержит HTTP-обработчики API панели учёта ОП.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/op-system/internal/dashboard"
	"github.com/mmeshcher/op-system/internal/export"
	"github.com/mmeshcher/op-system/internal/filter"
	"github.com/mmeshcher/op-system/internal/middleware"
	"github.com/mmeshcher/op-system/internal/model"
	"github.com/mmeshcher/op-system/internal/repository"
	"github.com/mmeshcher/op-system/internal/separation"
	"github.com/mmeshcher/op-system/internal/service"
	"github.com/mmeshcher/op-system/internal/sheets"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetOrder(ctx context.Context, number string) (*model.ProductionOrder, error)
	RecordSeparation(ctx context.Context, number string, event model.SeparationEvent, actor string) (*model.ProductionOrder, error)
	MarkPrinted(ctx context.Context, number, actor string) (*model.ProductionOrder, error)
	CreateOrder(ctx context.Context, draft service.OrderDraft, actor string) (*model.ProductionOrder, error)
	OrderHistory(ctx context.Context, number string) ([]model.AuditRecord, error)
}

// Dashboard определяет контракт контроллера панели, используемого обработчиками.
type Dashboard interface {
	Snapshot() dashboard.Snapshot
	Refresh(ctx context.Context) error
	ApplyLocal(order model.ProductionOrder)
}

// Handler реализует HTTP-обработчики API панели.
type Handler struct {
	service        Service
	board          Dashboard
	wsHandler      http.Handler
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, board Dashboard, wsHandler http.Handler, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		board:          board,
		wsHandler:      wsHandler,
		logger:         logger,
		authMiddleware: auth,
	}
}

type sessionRequest struct {
	User string `json:"user"`
	Role string `json:"role"`
}

// CreateSession открывает сессию пользователя панели и устанавливает cookie.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	role := model.Role(req.Role)
	if req.User == "" || (role != model.RoleOperator && role != model.RoleManager) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.authMiddleware.SetAuthCookie(w, middleware.Session{User: req.User, Role: role})
	w.WriteHeader(http.StatusOK)
}

type orderResponse struct {
	Number              string  `json:"number"`
	CreatedAt           string  `json:"createdAt,omitempty"`
	Group               string  `json:"group"`
	RawSKU              string  `json:"rawSku"`
	RawColor            string  `json:"rawColor,omitempty"`
	RequestedSpools     float64 `json:"requestedSpools"`
	RequestedKg         float64 `json:"requestedKg"`
	FinishedSKU         string  `json:"finishedSku"`
	FinishedDescription string  `json:"finishedDescription,omitempty"`
	FinishedQty         float64 `json:"finishedQty,omitempty"`
	Barcode             string  `json:"barcode,omitempty"`
	SeparationStatus    string  `json:"separationStatus"`
	SeparatedSpools     float64 `json:"separatedSpools"`
	SeparatedKg         float64 `json:"separatedKg"`
	Note                string  `json:"note,omitempty"`
	SeparationTimestamp string  `json:"separationTimestamp,omitempty"`
	SeparatingUser      string  `json:"separatingUser,omitempty"`
	PrintStatus         string  `json:"printStatus"`
	PrintTimestamp      string  `json:"printTimestamp,omitempty"`
	OrderStatus         string  `json:"orderStatus"`
}

func toOrderResponse(o model.ProductionOrder) orderResponse {
	resp := orderResponse{
		Number:              o.Number,
		Group:               string(o.Group),
		RawSKU:              o.RawSKU,
		RawColor:            o.RawColor,
		RequestedSpools:     o.RequestedSpools,
		RequestedKg:         o.RequestedKg,
		FinishedSKU:         o.FinishedSKU,
		FinishedDescription: o.FinishedDescription,
		FinishedQty:         o.FinishedQty,
		Barcode:             o.Barcode,
		SeparationStatus:    string(o.SeparationStatus),
		SeparatedSpools:     o.SeparatedSpools,
		SeparatedKg:         o.SeparatedKg,
		Note:                o.Note,
		SeparatingUser:      o.SeparatingUser,
		PrintStatus:         string(o.PrintStatus),
		OrderStatus:         string(o.OrderStatus),
	}
	if !o.CreatedAt.IsZero() {
		resp.CreatedAt = o.CreatedAt.Format(time.RFC3339)
	}
	if o.SeparationTimestamp != nil {
		resp.SeparationTimestamp = o.SeparationTimestamp.Format(time.RFC3339)
	}
	if o.PrintTimestamp != nil {
		resp.PrintTimestamp = o.PrintTimestamp.Format(time.RFC3339)
	}
	return resp
}

type ordersResponse struct {
	Orders    []orderResponse `json:"orders"`
	Stats     model.Stats     `json:"stats"`
	Status    string          `json:"syncStatus"`
	LastSync  string          `json:"lastSync,omitempty"`
	LastError string          `json:"lastError,omitempty"`
}

// criteriaFromRequest строит критерии фильтрации из query-параметров и роли сессии.
func criteriaFromRequest(r *http.Request) filter.Criteria {
	session, _ := middleware.SessionFromContext(r.Context())
	c := filter.Default(session.Role)

	q := r.URL.Query()
	if v := q.Get("group"); v != "" {
		c.Group = v
	}
	if v := q.Get("sku"); v != "" {
		c.SKU = v
	}
	if v := q.Get("status"); v != "" {
		c.Status = v
	}
	return c
}

// GetOrders возвращает отфильтрованный срез панели с показателями.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	snap := h.board.Snapshot()
	orders := filter.Apply(snap.Orders, criteriaFromRequest(r))

	resp := ordersResponse{
		Orders: make([]orderResponse, 0, len(orders)),
		Stats:  filter.Stats(orders),
		Status: string(snap.Status),
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	if snap.LastSync != nil {
		resp.LastSync = snap.LastSync.Format(time.RFC3339)
	}
	resp.LastError = snap.LastError

	writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает одну ОП по номеру, читая актуальное состояние из хранилища.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	order, err := h.service.GetOrder(r.Context(), number)
	if err != nil {
		h.writeError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

type createOrderRequest struct {
	Group           string  `json:"group"`
	RawSKU          string  `json:"rawSku"`
	RawColor        string  `json:"rawColor"`
	RequestedSpools float64 `json:"requestedSpools"`
	UnitWeight      float64 `json:"unitWeight"`
	FinishedSKU     string  `json:"finishedSku"`
	FinishedDesc    string  `json:"finishedDescription"`
	FinishedQty     float64 `json:"finishedQty"`
	BarcodeProduct  string  `json:"barcodeProduct"`
}

// CreateOrder создаёт новую ОП.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), service.OrderDraft{
		Group:           model.OrderGroup(req.Group),
		RawSKU:          req.RawSKU,
		RawColor:        req.RawColor,
		RequestedSpools: req.RequestedSpools,
		UnitWeight:      req.UnitWeight,
		FinishedSKU:     req.FinishedSKU,
		FinishedDesc:    req.FinishedDesc,
		FinishedQty:     req.FinishedQty,
		BarcodeProduct:  req.BarcodeProduct,
	}, session.User)
	if err != nil {
		h.writeError(w, "create order", err)
		return
	}

	h.board.ApplyLocal(*order)
	writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

type separationRequest struct {
	Type           string  `json:"type"`
	ReportedSpools float64 `json:"reportedSpools"`
	Note           string  `json:"note"`
}

// RecordSeparation фиксирует результат сепарации по ОП.
func (h *Handler) RecordSeparation(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req separationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	number := chi.URLParam(r, "number")
	order, err := h.service.RecordSeparation(r.Context(), number, model.SeparationEvent{
		Type:           model.SeparationEventType(req.Type),
		ReportedSpools: req.ReportedSpools,
		Note:           req.Note,
	}, session.User)
	if err != nil {
		h.writeError(w, "record separation", err)
		return
	}

	h.board.ApplyLocal(*order)
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// MarkPrinted помечает ОП как распечатанную.
func (h *Handler) MarkPrinted(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	number := chi.URLParam(r, "number")
	order, err := h.service.MarkPrinted(r.Context(), number, session.User)
	if err != nil {
		h.writeError(w, "mark printed", err)
		return
	}

	h.board.ApplyLocal(*order)
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

type auditResponse struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	OrderNumber string `json:"orderNumber"`
	Action      string `json:"action"`
	Actor       string `json:"actor"`
	Previous    string `json:"previous,omitempty"`
	New         string `json:"new,omitempty"`
}

// GetOrderHistory возвращает журнал изменений указанной ОП.
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	records, err := h.service.OrderHistory(r.Context(), number)
	if err != nil {
		h.writeError(w, "order history", err)
		return
	}

	resp := make([]auditResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, auditResponse{
			ID:          rec.ID,
			Timestamp:   rec.Timestamp.Format(time.RFC3339),
			OrderNumber: rec.OrderNumber,
			Action:      rec.Action,
			Actor:       rec.Actor,
			Previous:    rec.Previous,
			New:         rec.New,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetStats возвращает показатели панели по отфильтрованному набору ОП.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.board.Snapshot()
	orders := filter.Apply(snap.Orders, criteriaFromRequest(r))
	writeJSON(w, http.StatusOK, filter.Stats(orders))
}

// Sync принудительно перечитывает список ОП из хранилища.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.board.Refresh(r.Context()); err != nil {
		h.writeError(w, "sync", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ExportOrders отдаёт отфильтрованный список ОП файлом XLSX.
func (h *Handler) ExportOrders(w http.ResponseWriter, r *http.Request) {
	snap := h.board.Snapshot()
	orders := filter.Apply(snap.Orders, criteriaFromRequest(r))

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(time.Now())+`"`)

	if err := export.WriteOrders(w, orders); err != nil {
		h.logger.Error("export orders error", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// writeError переводит доменные ошибки в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var vErr *model.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, repository.ErrOrderNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, separation.ErrInvalidOrderState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, repository.ErrConcurrentModification):
		// Строка исчезла из-под записи: кэш панели устарел, перечитываем
		// его, не задерживая ответ.
		go func() {
			if rerr := h.board.Refresh(context.Background()); rerr != nil {
				h.logger.Warn("refresh after conflict failed", zap.Error(rerr))
			}
		}()
		http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
	case errors.Is(err, sheets.ErrUnavailable):
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

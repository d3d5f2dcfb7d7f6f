// Package dashboard содержит контроллер состояния панели: локальный кэш ОП,
// фоновую синхронизацию с хранилищем и рассылку обновлений подписчикам.
package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/op-system/internal/model"
)

// SyncStatus описывает состояние фоновой синхронизации.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncRunning SyncStatus = "syncing"
	SyncError   SyncStatus = "error"
)

// OrderLister отдаёт актуальный список ОП из хранилища.
type OrderLister interface {
	ListOrders(ctx context.Context) ([]model.ProductionOrder, error)
}

// Snapshot — согласованный срез состояния панели на момент запроса.
type Snapshot struct {
	Orders    []model.ProductionOrder `json:"orders"`
	Status    SyncStatus              `json:"syncStatus"`
	LastSync  *time.Time              `json:"lastSync,omitempty"`
	LastError string                  `json:"lastError,omitempty"`
}

// Controller хранит кэш ОП и уведомляет подписчиков об изменениях.
type Controller struct {
	lister OrderLister
	logger *zap.Logger

	mu       sync.RWMutex
	orders   []model.ProductionOrder
	status   SyncStatus
	lastSync *time.Time
	lastErr  string
	syncing  bool

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}

	now func() time.Time
}

// NewController создаёт контроллер панели поверх источника списка ОП.
func NewController(lister OrderLister, logger *zap.Logger) *Controller {
	return &Controller{
		lister: lister,
		logger: logger,
		status: SyncIdle,
		subs:   make(map[chan Snapshot]struct{}),
		now:    time.Now,
	}
}

// Snapshot возвращает копию текущего состояния панели.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	orders := make([]model.ProductionOrder, len(c.orders))
	copy(orders, c.orders)

	return Snapshot{
		Orders:    orders,
		Status:    c.status,
		LastSync:  c.lastSync,
		LastError: c.lastErr,
	}
}

// Refresh перечитывает список ОП из хранилища и обновляет кэш. Если другая
// синхронизация уже идёт, вызов возвращается сразу без работы.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		return nil
	}
	c.syncing = true
	c.status = SyncRunning
	c.mu.Unlock()

	orders, err := c.lister.ListOrders(ctx)

	c.mu.Lock()
	c.syncing = false
	if err != nil {
		c.status = SyncError
		c.lastErr = err.Error()
		c.mu.Unlock()
		return err
	}
	c.orders = orders
	c.status = SyncIdle
	c.lastErr = ""
	now := c.now()
	c.lastSync = &now
	c.mu.Unlock()

	c.notify()
	return nil
}

// ApplyLocal подставляет обновлённую ОП в кэш, не дожидаясь следующей
// синхронизации. Расхождение с хранилищем устранит ближайший Refresh.
func (c *Controller) ApplyLocal(order model.ProductionOrder) {
	c.mu.Lock()
	for i := range c.orders {
		if c.orders[i].Number == order.Number {
			c.orders[i] = order
			c.mu.Unlock()
			c.notify()
			return
		}
	}
	c.orders = append(c.orders, order)
	c.mu.Unlock()

	c.notify()
}

// StartSync запускает фоновую периодическую синхронизацию кэша. Тики,
// совпавшие с ещё идущей синхронизацией, пропускаются.
func (c *Controller) StartSync(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(ctx); err != nil {
					c.logger.Warn("background sync failed", zap.Error(err))
				}
			}
		}
	}()
}

// Subscribe регистрирует подписчика на обновления панели. Возвращённая
// функция снимает подписку и закрывает канал.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.subMu.Unlock()
	}

	return ch, cancel
}

// notify рассылает свежий срез всем подписчикам. Медленный подписчик
// получает только последнее состояние: устаревший срез вытесняется.
func (c *Controller) notify() {
	snap := c.Snapshot()

	c.subMu.Lock()
	defer c.subMu.Unlock()

	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

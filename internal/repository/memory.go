package repository

import (
	"context"
	"sync"
	"time"

	"github.com/mmeshcher/op-system/internal/model"
)

// MemoryRepository хранит ОП в памяти. Применяется в тестах и при локальном
// запуске без настроенного хранилища.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders []model.ProductionOrder
	audit  []model.AuditRecord
}

// NewMemoryRepository создаёт пустой репозиторий в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Seed заменяет содержимое репозитория указанными ОП.
func (r *MemoryRepository) Seed(orders []model.ProductionOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append([]model.ProductionOrder(nil), orders...)
}

// Close освобождает ресурсы репозитория.
func (r *MemoryRepository) Close() error { return nil }

// FetchAll возвращает копию всех ОП.
func (r *MemoryRepository) FetchAll(ctx context.Context) ([]model.ProductionOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.ProductionOrder(nil), r.orders...), nil
}

// FetchByNumber возвращает ОП по номеру.
func (r *MemoryRepository) FetchByNumber(ctx context.Context, number string) (*model.ProductionOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.orders {
		if o.Number == number {
			cp := o
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

// AppendOrder добавляет новую ОП.
func (r *MemoryRepository) AppendOrder(ctx context.Context, o model.ProductionOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
	return nil
}

// PersistSeparation записывает поля сепарации ОП.
func (r *MemoryRepository) PersistSeparation(ctx context.Context, number string, upd SeparationUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.orders {
		if r.orders[i].Number == number {
			ts := upd.Timestamp
			r.orders[i].SeparationStatus = upd.Status
			r.orders[i].SeparatedSpools = upd.SeparatedSpools
			r.orders[i].SeparatedKg = upd.SeparatedKg
			r.orders[i].Note = upd.Note
			r.orders[i].SeparationTimestamp = &ts
			r.orders[i].SeparatingUser = upd.User
			return nil
		}
	}
	return ErrConcurrentModification
}

// PersistPrintMark отмечает ОП напечатанной.
func (r *MemoryRepository) PersistPrintMark(ctx context.Context, number string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.orders {
		if r.orders[i].Number == number {
			ts := at
			r.orders[i].PrintStatus = model.PrintStatusPrinted
			r.orders[i].PrintTimestamp = &ts
			return nil
		}
	}
	return ErrConcurrentModification
}

// AppendAuditRecord добавляет запись в журнал изменений.
func (r *MemoryRepository) AppendAuditRecord(ctx context.Context, rec model.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, rec)
	return nil
}

// AuditByOrder возвращает журнал изменений одной ОП.
func (r *MemoryRepository) AuditByOrder(ctx context.Context, number string) ([]model.AuditRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []model.AuditRecord
	for _, rec := range r.audit {
		if rec.OrderNumber == number {
			res = append(res, rec)
		}
	}
	return res, nil
}

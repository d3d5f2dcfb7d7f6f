// Package service реализует бизнес-логику системы ОП.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/op-system/internal/model"
	"github.com/mmeshcher/op-system/internal/repository"
	"github.com/mmeshcher/op-system/internal/separation"
	"github.com/mmeshcher/op-system/internal/units"
	"github.com/mmeshcher/op-system/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
// Перед каждой записью целевая ОП перечитывается заново: положение строки в
// удалённом хранилище между обновлениями может измениться.
type Repository interface {
	Close() error
	FetchAll(ctx context.Context) ([]model.ProductionOrder, error)
	FetchByNumber(ctx context.Context, number string) (*model.ProductionOrder, error)
	AppendOrder(ctx context.Context, order model.ProductionOrder) error
	PersistSeparation(ctx context.Context, number string, upd repository.SeparationUpdate) error
	PersistPrintMark(ctx context.Context, number string, at time.Time) error
	AppendAuditRecord(ctx context.Context, rec model.AuditRecord) error
	AuditByOrder(ctx context.Context, number string) ([]model.AuditRecord, error)
}

// Service содержит бизнес-логику системы ОП.
type Service struct {
	repo   Repository
	logger *zap.Logger

	// now вынесено в поле ради детерминированных тестов.
	now func() time.Time
}

// NewService создаёт сервис поверх указанного репозитория.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// ListOrders возвращает все ОП из хранилища.
func (s *Service) ListOrders(ctx context.Context) ([]model.ProductionOrder, error) {
	return s.repo.FetchAll(ctx)
}

// GetOrder возвращает одну ОП по номеру.
func (s *Service) GetOrder(ctx context.Context, number string) (*model.ProductionOrder, error) {
	return s.repo.FetchByNumber(ctx, number)
}

// RecordSeparation применяет событие сепарации к ОП и записывает результат
// в хранилище. Валидация выполняется до любого обращения к хранилищу.
// Возвращает обновлённую ОП.
func (s *Service) RecordSeparation(ctx context.Context, number string, event model.SeparationEvent, actor string) (*model.ProductionOrder, error) {
	order, err := s.repo.FetchByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	updated, err := separation.Apply(*order, event, s.now(), actor)
	if err != nil {
		return nil, err
	}

	upd := repository.SeparationUpdate{
		Status:          updated.SeparationStatus,
		SeparatedSpools: updated.SeparatedSpools,
		SeparatedKg:     updated.SeparatedKg,
		Note:            updated.Note,
		Timestamp:       *updated.SeparationTimestamp,
		User:            updated.SeparatingUser,
	}
	if err := s.repo.PersistSeparation(ctx, number, upd); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, model.AuditRecord{
		OrderNumber: number,
		Action:      fmt.Sprintf("SeparacaoAtualizada: %s", updated.SeparationStatus),
		Actor:       actor,
		Previous:    fmt.Sprintf("%s - %s rocas", order.SeparationStatus, formatSpools(order.SeparatedSpools)),
		New:         fmt.Sprintf("%s - %s rocas", updated.SeparationStatus, formatSpools(updated.SeparatedSpools)),
	})

	return &updated, nil
}

// MarkPrinted отмечает ОП напечатанной.
func (s *Service) MarkPrinted(ctx context.Context, number, actor string) (*model.ProductionOrder, error) {
	order, err := s.repo.FetchByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if err := s.repo.PersistPrintMark(ctx, number, at); err != nil {
		return nil, err
	}

	updated := *order
	updated.PrintStatus = model.PrintStatusPrinted
	updated.PrintTimestamp = &at

	s.appendAudit(ctx, model.AuditRecord{
		OrderNumber: number,
		Action:      "OPImpressa",
		Actor:       actor,
		Previous:    string(order.PrintStatus),
		New:         string(model.PrintStatusPrinted),
	})

	return &updated, nil
}

// OrderHistory возвращает журнал изменений одной ОП.
func (s *Service) OrderHistory(ctx context.Context, number string) ([]model.AuditRecord, error) {
	if _, err := s.repo.FetchByNumber(ctx, number); err != nil {
		return nil, err
	}
	return s.repo.AuditByOrder(ctx, number)
}

// OrderDraft описывает данные для создания новой ОП.
type OrderDraft struct {
	Group           model.OrderGroup
	RawSKU          string
	RawColor        string
	RequestedSpools float64
	UnitWeight      float64
	FinishedSKU     string
	FinishedDesc    string
	FinishedQty     float64
	BarcodeProduct  string
}

// Префикс штрихкодов готовой продукции.
const barcodePrefix = "789"

// CreateOrder создаёт новую ОП: присваивает следующий номер, фиксирует вес
// роки через запрошенные килограммы и генерирует штрихкод готовой продукции.
func (s *Service) CreateOrder(ctx context.Context, draft OrderDraft, actor string) (*model.ProductionOrder, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	orders, err := s.repo.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	kg, err := units.SpoolsToKg(draft.RequestedSpools, draft.UnitWeight)
	if err != nil {
		return nil, &model.ValidationError{Field: "unitWeight", Reason: "must be positive"}
	}

	order := model.ProductionOrder{
		Number:              validation.OrderNumber(nextSequence(orders)),
		CreatedAt:           s.now(),
		Group:               draft.Group,
		RawSKU:              strings.TrimSpace(draft.RawSKU),
		RawColor:            draft.RawColor,
		RequestedSpools:     draft.RequestedSpools,
		RequestedKg:         kg,
		FinishedSKU:         strings.TrimSpace(draft.FinishedSKU),
		FinishedDescription: draft.FinishedDesc,
		FinishedQty:         draft.FinishedQty,
		Barcode:             validation.GenerateEAN13(barcodePrefix, draft.BarcodeProduct),
		SeparationStatus:    model.SeparationPending,
		PrintStatus:         model.PrintStatusNotPrinted,
		OrderStatus:         model.OrderStatusActive,
	}

	if err := s.repo.AppendOrder(ctx, order); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, model.AuditRecord{
		OrderNumber: order.Number,
		Action:      "OPCriada",
		Actor:       actor,
		New:         fmt.Sprintf("%s - %s rocas", order.RawSKU, formatSpools(order.RequestedSpools)),
	})

	return &order, nil
}

func validateDraft(d OrderDraft) error {
	if d.Group != model.GroupFfilotex && d.Group != model.GroupCCFios {
		return &model.ValidationError{Field: "group", Reason: "unknown"}
	}
	if !validation.IsValidSKU(d.RawSKU) {
		return &model.ValidationError{Field: "rawSku", Reason: "invalid"}
	}
	if !validation.IsValidSKU(d.FinishedSKU) {
		return &model.ValidationError{Field: "finishedSku", Reason: "invalid"}
	}
	if d.RequestedSpools <= 0 {
		return &model.ValidationError{Field: "requestedSpools", Reason: "must be positive"}
	}
	if d.UnitWeight <= 0 {
		return &model.ValidationError{Field: "unitWeight", Reason: "must be positive"}
	}
	return nil
}

// nextSequence возвращает следующий порядковый номер ОП по максимальному из
// уже существующих.
func nextSequence(orders []model.ProductionOrder) int {
	max := 0
	for _, o := range orders {
		if !validation.IsValidOrderNumber(o.Number) {
			continue
		}
		if n, err := strconv.Atoi(o.Number[2:]); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

// appendAudit записывает событие в журнал изменений. Ошибка записи журнала
// никогда не прерывает основную операцию — только логируется.
func (s *Service) appendAudit(ctx context.Context, rec model.AuditRecord) {
	rec.ID = uuid.NewString()
	rec.Timestamp = s.now()

	if err := s.repo.AppendAuditRecord(ctx, rec); err != nil {
		s.logger.Warn("audit record append failed",
			zap.String("order", rec.OrderNumber),
			zap.String("action", rec.Action),
			zap.Error(err))
	}
}

func formatSpools(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/op-system/internal/model"
	"github.com/mmeshcher/op-system/internal/repository"
)

type stubRepo struct {
	order    *model.ProductionOrder
	orderErr error

	all    []model.ProductionOrder
	allErr error

	persistedSep *repository.SeparationUpdate
	persistErr   error

	printedAt *time.Time
	printErr  error

	appended  []model.ProductionOrder
	appendErr error

	auditRecords []model.AuditRecord
	auditErr     error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) FetchAll(ctx context.Context) ([]model.ProductionOrder, error) {
	return s.all, s.allErr
}

func (s *stubRepo) FetchByNumber(ctx context.Context, number string) (*model.ProductionOrder, error) {
	return s.order, s.orderErr
}

func (s *stubRepo) AppendOrder(ctx context.Context, order model.ProductionOrder) error {
	s.appended = append(s.appended, order)
	return s.appendErr
}

func (s *stubRepo) PersistSeparation(ctx context.Context, number string, upd repository.SeparationUpdate) error {
	s.persistedSep = &upd
	return s.persistErr
}

func (s *stubRepo) PersistPrintMark(ctx context.Context, number string, at time.Time) error {
	s.printedAt = &at
	return s.printErr
}

func (s *stubRepo) AppendAuditRecord(ctx context.Context, rec model.AuditRecord) error {
	s.auditRecords = append(s.auditRecords, rec)
	return s.auditErr
}

func (s *stubRepo) AuditByOrder(ctx context.Context, number string) ([]model.AuditRecord, error) {
	var res []model.AuditRecord
	for _, rec := range s.auditRecords {
		if rec.OrderNumber == number {
			res = append(res, rec)
		}
	}
	return res, nil
}

func pendingOrder() *model.ProductionOrder {
	return &model.ProductionOrder{
		Number:           "OP00001",
		Group:            model.GroupFfilotex,
		RawSKU:           "FO273",
		RequestedSpools:  100,
		RequestedKg:      50,
		SeparationStatus: model.SeparationPending,
		PrintStatus:      model.PrintStatusNotPrinted,
		OrderStatus:      model.OrderStatusActive,
	}
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, zap.NewNop())
	svc.now = func() time.Time {
		return time.Date(2025, 11, 2, 12, 30, 0, 0, time.UTC)
	}
	return svc
}

func TestRecordSeparation_PersistsAndAudits(t *testing.T) {
	repo := &stubRepo{order: pendingOrder()}
	svc := newTestService(repo)

	updated, err := svc.RecordSeparation(context.Background(), "OP00001", model.SeparationEvent{
		Type:           model.EventPartial,
		ReportedSpools: 80,
		Note:           "faltam 20",
	}, "separador1")
	if err != nil {
		t.Fatalf("RecordSeparation error: %v", err)
	}

	if updated.SeparatedSpools != 80 || updated.SeparatedKg != 40 {
		t.Fatalf("updated quantities: %v / %v", updated.SeparatedSpools, updated.SeparatedKg)
	}

	if repo.persistedSep == nil {
		t.Fatalf("separation was not persisted")
	}
	if repo.persistedSep.Status != model.SeparationPartial || repo.persistedSep.SeparatedSpools != 80 {
		t.Fatalf("persisted update: %+v", repo.persistedSep)
	}

	if len(repo.auditRecords) != 1 {
		t.Fatalf("audit records = %d, want 1", len(repo.auditRecords))
	}
	rec := repo.auditRecords[0]
	if rec.OrderNumber != "OP00001" || rec.Action != "SeparacaoAtualizada: Parcial" {
		t.Fatalf("unexpected audit record: %+v", rec)
	}
	if rec.ID == "" {
		t.Fatalf("audit record without id")
	}
}

func TestRecordSeparation_ValidationBeforePersist(t *testing.T) {
	repo := &stubRepo{order: pendingOrder()}
	svc := newTestService(repo)

	_, err := svc.RecordSeparation(context.Background(), "OP00001", model.SeparationEvent{
		Type: model.EventPartial,
		Note: "motivo",
	}, "separador1")

	var vErr *model.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if repo.persistedSep != nil {
		t.Fatalf("invalid event must not be persisted")
	}
	if len(repo.auditRecords) != 0 {
		t.Fatalf("invalid event must not be audited")
	}
}

func TestRecordSeparation_AuditFailureIsSwallowed(t *testing.T) {
	repo := &stubRepo{
		order:    pendingOrder(),
		auditErr: errors.New("audit sheet unavailable"),
	}
	svc := newTestService(repo)

	_, err := svc.RecordSeparation(context.Background(), "OP00001", model.SeparationEvent{
		Type:           model.EventFull,
		ReportedSpools: 100,
	}, "separador1")
	if err != nil {
		t.Fatalf("audit failure must not abort the primary write: %v", err)
	}
}

func TestRecordSeparation_PersistError(t *testing.T) {
	repo := &stubRepo{
		order:      pendingOrder(),
		persistErr: repository.ErrConcurrentModification,
	}
	svc := newTestService(repo)

	_, err := svc.RecordSeparation(context.Background(), "OP00001", model.SeparationEvent{
		Type:           model.EventFull,
		ReportedSpools: 100,
	}, "separador1")
	if !errors.Is(err, repository.ErrConcurrentModification) {
		t.Fatalf("error = %v, want ErrConcurrentModification", err)
	}
}

func TestMarkPrinted(t *testing.T) {
	repo := &stubRepo{order: pendingOrder()}
	svc := newTestService(repo)

	updated, err := svc.MarkPrinted(context.Background(), "OP00001", "gestor1")
	if err != nil {
		t.Fatalf("MarkPrinted error: %v", err)
	}

	if updated.PrintStatus != model.PrintStatusPrinted || updated.PrintTimestamp == nil {
		t.Fatalf("updated print state: %+v", updated)
	}
	if repo.printedAt == nil {
		t.Fatalf("print mark was not persisted")
	}
	if len(repo.auditRecords) != 1 || repo.auditRecords[0].Action != "OPImpressa" {
		t.Fatalf("unexpected audit records: %+v", repo.auditRecords)
	}
}

func TestCreateOrder(t *testing.T) {
	repo := &stubRepo{
		all: []model.ProductionOrder{
			{Number: "OP00007"},
			{Number: "OP00003"},
		},
	}
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), OrderDraft{
		Group:           model.GroupFfilotex,
		RawSKU:          "FO273",
		RawColor:        "Azul Royal",
		RequestedSpools: 100,
		UnitWeight:      0.5,
		FinishedSKU:     "LH048",
		FinishedDesc:    "Linha Hortolandia 48 Tex",
		FinishedQty:     500,
		BarcodeProduct:  "123456789",
	}, "gestor1")
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	if order.Number != "OP00008" {
		t.Fatalf("number = %q, want OP00008", order.Number)
	}
	if order.RequestedKg != 50 {
		t.Fatalf("requested kg = %v, want 50", order.RequestedKg)
	}
	if order.SeparationStatus != model.SeparationPending || order.SeparatedSpools != 0 {
		t.Fatalf("new order separation state: %+v", order)
	}
	if len(order.Barcode) != 13 {
		t.Fatalf("barcode = %q", order.Barcode)
	}
	if len(repo.appended) != 1 {
		t.Fatalf("order was not appended")
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		draft OrderDraft
	}{
		{
			name: "unknown group",
			draft: OrderDraft{
				Group: "Outra", RawSKU: "FO273", FinishedSKU: "LH048",
				RequestedSpools: 10, UnitWeight: 0.5,
			},
		},
		{
			name: "bad raw sku",
			draft: OrderDraft{
				Group: model.GroupFfilotex, RawSKU: "!", FinishedSKU: "LH048",
				RequestedSpools: 10, UnitWeight: 0.5,
			},
		},
		{
			name: "zero spools",
			draft: OrderDraft{
				Group: model.GroupFfilotex, RawSKU: "FO273", FinishedSKU: "LH048",
				UnitWeight: 0.5,
			},
		},
		{
			name: "zero unit weight",
			draft: OrderDraft{
				Group: model.GroupFfilotex, RawSKU: "FO273", FinishedSKU: "LH048",
				RequestedSpools: 10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{}
			svc := newTestService(repo)

			_, err := svc.CreateOrder(context.Background(), tt.draft, "gestor1")

			var vErr *model.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if len(repo.appended) != 0 {
				t.Fatalf("invalid draft must not be appended")
			}
		})
	}
}

func TestOrderHistory_UnknownOrder(t *testing.T) {
	repo := &stubRepo{orderErr: repository.ErrOrderNotFound}
	svc := newTestService(repo)

	_, err := svc.OrderHistory(context.Background(), "OP00042")
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("error = %v, want ErrOrderNotFound", err)
	}
}

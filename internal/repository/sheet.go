package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/op-system/internal/model"
	"github.com/mmeshcher/op-system/internal/sheets"
)

// Имена вкладок и диапазоны удалённой таблицы.
const (
	ordersSheet   = "OPs"
	productsSheet = "ProdutosAcabados"
	auditSheet    = "HistoricoAlteracoes"

	ordersRange   = ordersSheet + "!A2:R1000"
	productsRange = productsSheet + "!A2:F1000"
	auditRange    = auditSheet + "!A2:G1000"
)

// SheetRepository реализует доступ к ОП поверх удалённого табличного
// хранилища. Строка 1 каждой вкладки — заголовок, данные начинаются со
// строки 2.
type SheetRepository struct {
	client *sheets.Client
}

// NewSheetRepository создаёт репозиторий поверх клиента API значений.
func NewSheetRepository(client *sheets.Client) *SheetRepository {
	return &SheetRepository{client: client}
}

// Close освобождает ресурсы репозитория. Для табличного хранилища
// закрывать нечего.
func (r *SheetRepository) Close() error { return nil }

// FetchAll возвращает все ОП, дополняя их описанием и штрихкодом готовой
// продукции из вкладки каталога.
func (r *SheetRepository) FetchAll(ctx context.Context) ([]model.ProductionOrder, error) {
	rows, err := r.client.GetValues(ctx, ordersRange)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}

	products, err := r.fetchProducts(ctx)
	if err != nil {
		return nil, err
	}

	orders := make([]model.ProductionOrder, 0, len(rows))
	for _, row := range rows {
		o := orderFromRow(row)
		if o.Number == "" {
			continue
		}
		if p, ok := products[o.FinishedSKU]; ok {
			o.FinishedDescription = p.description
			o.Barcode = p.barcode
		}
		orders = append(orders, o)
	}

	return orders, nil
}

// FetchByNumber возвращает ОП по номеру.
func (r *SheetRepository) FetchByNumber(ctx context.Context, number string) (*model.ProductionOrder, error) {
	o, _, err := r.locate(ctx, number)
	return o, err
}

// PersistSeparation записывает поля сепарации одним блоком в колонки J–O
// строки ОП. Номер строки каждый раз определяется свежим чтением: порядок
// строк таблицы может измениться между обновлениями.
func (r *SheetRepository) PersistSeparation(ctx context.Context, number string, upd SeparationUpdate) error {
	_, rowIndex, err := r.locate(ctx, number)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrConcurrentModification
		}
		return err
	}

	rng := fmt.Sprintf("%s!J%d:O%d", ordersSheet, rowIndex, rowIndex)
	if err := r.client.UpdateValues(ctx, rng, [][]string{separationToRow(upd)}); err != nil {
		return fmt.Errorf("write separation: %w", err)
	}

	return nil
}

// PersistPrintMark отмечает ОП напечатанной (колонки P–Q).
func (r *SheetRepository) PersistPrintMark(ctx context.Context, number string, at time.Time) error {
	_, rowIndex, err := r.locate(ctx, number)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrConcurrentModification
		}
		return err
	}

	rng := fmt.Sprintf("%s!P%d:Q%d", ordersSheet, rowIndex, rowIndex)
	values := [][]string{{string(model.PrintStatusPrinted), formatTime(at)}}
	if err := r.client.UpdateValues(ctx, rng, values); err != nil {
		return fmt.Errorf("write print mark: %w", err)
	}

	return nil
}

// AppendOrder добавляет новую ОП в конец вкладки.
func (r *SheetRepository) AppendOrder(ctx context.Context, order model.ProductionOrder) error {
	if err := r.client.AppendValues(ctx, ordersSheet, [][]string{orderToRow(order)}); err != nil {
		return fmt.Errorf("append order: %w", err)
	}
	return nil
}

// AppendAuditRecord добавляет запись в журнал изменений.
func (r *SheetRepository) AppendAuditRecord(ctx context.Context, rec model.AuditRecord) error {
	if err := r.client.AppendValues(ctx, auditSheet, [][]string{auditToRow(rec)}); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// AuditByOrder возвращает записи журнала по одной ОП.
func (r *SheetRepository) AuditByOrder(ctx context.Context, number string) ([]model.AuditRecord, error) {
	rows, err := r.client.GetValues(ctx, auditRange)
	if err != nil {
		return nil, fmt.Errorf("fetch audit: %w", err)
	}

	var res []model.AuditRecord
	for _, row := range rows {
		if cell(row, 2) == number {
			res = append(res, auditFromRow(row))
		}
	}
	return res, nil
}

// locate читает вкладку ОП и возвращает ОП вместе с номером её строки
// (1-индексация, данные со строки 2).
func (r *SheetRepository) locate(ctx context.Context, number string) (*model.ProductionOrder, int, error) {
	rows, err := r.client.GetValues(ctx, ordersRange)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch orders: %w", err)
	}

	for i, row := range rows {
		if cell(row, 0) == number {
			o := orderFromRow(row)
			return &o, i + 2, nil
		}
	}

	return nil, 0, ErrOrderNotFound
}

type productInfo struct {
	description string
	barcode     string
}

func (r *SheetRepository) fetchProducts(ctx context.Context) (map[string]productInfo, error) {
	rows, err := r.client.GetValues(ctx, productsRange)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	res := make(map[string]productInfo, len(rows))
	for _, row := range rows {
		sku := cell(row, 0)
		if sku == "" {
			continue
		}
		res[sku] = productInfo{
			description: cell(row, 1),
			barcode:     cell(row, 2),
		}
	}
	return res, nil
}

// Package repository содержит реализации доступа к хранилищу ОП:
// удалённая таблица, PostgreSQL и память.
package repository

import (
	"errors"
	"strconv"
	"time"

	"github.com/mmeshcher/op-system/internal/model"
)

// ErrOrderNotFound возвращается, если ОП с указанным номером не найдена.
var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrConcurrentModification возвращается, если ОП исчезла между чтением
	// и записью — строку больше нельзя надёжно адресовать.
	ErrConcurrentModification = errors.New("order modified concurrently")
)

// SeparationUpdate содержит поля сепарации, записываемые одним блоком
// (колонки J–O строки ОП).
type SeparationUpdate struct {
	Status          model.SeparationStatus
	SeparatedSpools float64
	SeparatedKg     float64
	Note            string
	Timestamp       time.Time
	User            string
}

// Формат даты-времени, принятый в таблице.
const timeLayout = "02/01/2006 15:04"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(timeLayout, s, time.Local)
	if err != nil {
		if t, err = time.ParseInLocation("02/01/2006", s, time.Local); err != nil {
			return nil
		}
	}
	return &t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// cell возвращает значение колонки строки или пустую строку: хвостовые
// пустые ячейки API значений не возвращает.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

// orderFromRow восстанавливает ОП из строки таблицы (колонки A..R).
func orderFromRow(row []string) model.ProductionOrder {
	o := model.ProductionOrder{
		Number:              cell(row, 0),
		Group:               model.OrderGroup(cell(row, 2)),
		RawSKU:              cell(row, 3),
		RawColor:            cell(row, 4),
		RequestedSpools:     parseFloat(cell(row, 5)),
		RequestedKg:         parseFloat(cell(row, 6)),
		FinishedSKU:         cell(row, 7),
		FinishedQty:         parseFloat(cell(row, 8)),
		SeparationStatus:    model.SeparationStatus(cell(row, 9)),
		SeparatedSpools:     parseFloat(cell(row, 10)),
		SeparatedKg:         parseFloat(cell(row, 11)),
		Note:                cell(row, 12),
		SeparationTimestamp: parseTime(cell(row, 13)),
		SeparatingUser:      cell(row, 14),
		PrintStatus:         model.PrintStatus(cell(row, 15)),
		PrintTimestamp:      parseTime(cell(row, 16)),
		OrderStatus:         model.OrderStatus(cell(row, 17)),
	}

	if created := parseTime(cell(row, 1)); created != nil {
		o.CreatedAt = *created
	}
	if o.SeparationStatus == "" {
		o.SeparationStatus = model.SeparationPending
	}
	if o.PrintStatus == "" {
		o.PrintStatus = model.PrintStatusNotPrinted
	}
	if o.OrderStatus == "" {
		o.OrderStatus = model.OrderStatusActive
	}

	return o
}

// orderToRow раскладывает ОП в строку таблицы (колонки A..R).
func orderToRow(o model.ProductionOrder) []string {
	var sepAt, printAt string
	if o.SeparationTimestamp != nil {
		sepAt = formatTime(*o.SeparationTimestamp)
	}
	if o.PrintTimestamp != nil {
		printAt = formatTime(*o.PrintTimestamp)
	}

	return []string{
		o.Number,
		formatTime(o.CreatedAt),
		string(o.Group),
		o.RawSKU,
		o.RawColor,
		formatFloat(o.RequestedSpools),
		formatFloat(o.RequestedKg),
		o.FinishedSKU,
		formatFloat(o.FinishedQty),
		string(o.SeparationStatus),
		formatFloat(o.SeparatedSpools),
		formatFloat(o.SeparatedKg),
		o.Note,
		sepAt,
		o.SeparatingUser,
		string(o.PrintStatus),
		printAt,
		string(o.OrderStatus),
	}
}

func separationToRow(upd SeparationUpdate) []string {
	return []string{
		string(upd.Status),
		formatFloat(upd.SeparatedSpools),
		formatFloat(upd.SeparatedKg),
		upd.Note,
		formatTime(upd.Timestamp),
		upd.User,
	}
}

func auditToRow(rec model.AuditRecord) []string {
	return []string{
		rec.ID,
		formatTime(rec.Timestamp),
		rec.OrderNumber,
		rec.Action,
		rec.Actor,
		rec.Previous,
		rec.New,
	}
}

func auditFromRow(row []string) model.AuditRecord {
	rec := model.AuditRecord{
		ID:          cell(row, 0),
		OrderNumber: cell(row, 2),
		Action:      cell(row, 3),
		Actor:       cell(row, 4),
		Previous:    cell(row, 5),
		New:         cell(row, 6),
	}
	if ts := parseTime(cell(row, 1)); ts != nil {
		rec.Timestamp = *ts
	}
	return rec
}

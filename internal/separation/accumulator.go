// Package separation реализует учёт сепарации сырья по ОП: накопление
// отделённых количеств по событиям и вывод статуса сепарации.
package separation

import (
	"errors"
	"time"

	"github.com/mmeshcher/op-system/internal/model"
	"github.com/mmeshcher/op-system/internal/units"
)

// ErrInvalidOrderState возвращается для ОП, у которой не определён вес роки
// (запрошено ноль рок) — событие сепарации к такой ОП неприменимо.
var ErrInvalidOrderState = errors.New("order has no defined unit weight")

// Apply применяет событие сепарации к текущему состоянию ОП и возвращает
// обновлённую копию. Функция чистая: время и идентификатор исполнителя
// передаются вызывающей стороной, вход не изменяется.
//
// Количество события прибавляется к ранее накопленному, никогда не заменяет
// его. Килограммы каждый раз пересчитываются от накопленных рок, а не
// суммированием по событиям, чтобы округление не накапливало расхождение.
// Статус берётся из типа события как есть: решение «частично или полностью»
// принимает кладовщик, а не система.
func Apply(order model.ProductionOrder, event model.SeparationEvent, now time.Time, actor string) (model.ProductionOrder, error) {
	if err := validate(event); err != nil {
		return model.ProductionOrder{}, err
	}

	if order.RequestedSpools == 0 {
		return model.ProductionOrder{}, ErrInvalidOrderState
	}

	updated := order

	switch event.Type {
	case model.EventUnavailable:
		// Количества не меняются; ReportedSpools игнорируется.
		updated.SeparationStatus = model.SeparationUnavailable
	case model.EventFull, model.EventPartial:
		newSpools := order.SeparatedSpools + event.ReportedSpools
		newKg, err := units.SpoolsToKg(newSpools, order.UnitWeight())
		if err != nil {
			return model.ProductionOrder{}, ErrInvalidOrderState
		}
		updated.SeparatedSpools = newSpools
		updated.SeparatedKg = newKg
		updated.SeparationStatus = model.SeparationStatus(event.Type)
	default:
		return model.ProductionOrder{}, &model.ValidationError{Field: "type", Reason: "unknown"}
	}

	updated.Note = event.Note
	updated.SeparationTimestamp = &now
	updated.SeparatingUser = actor

	return updated, nil
}

func validate(event model.SeparationEvent) error {
	if event.ReportedSpools < 0 {
		return &model.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if event.Type == model.EventPartial && event.ReportedSpools <= 0 {
		return &model.ValidationError{Field: "quantity", Reason: "required"}
	}
	if (event.Type == model.EventPartial || event.Type == model.EventUnavailable) && event.Note == "" {
		return &model.ValidationError{Field: "note", Reason: "required"}
	}
	return nil
}

// Overrun возвращает превышение накопленных рок над запрошенными.
// Превышение допускается и носит информационный характер.
func Overrun(order model.ProductionOrder) float64 {
	if order.SeparatedSpools <= order.RequestedSpools {
		return 0
	}
	return order.SeparatedSpools - order.RequestedSpools
}

// Package filter реализует фильтрацию набора ОП по критериям панели.
package filter

import (
	"strings"

	"github.com/mmeshcher/op-system/internal/model"
)

// All — значение критерия, отключающее фильтр по группе или статусу.
const All = "todos"

// Criteria описывает критерии фильтрации списка ОП.
type Criteria struct {
	// Group — точное совпадение группы или All.
	Group string
	// SKU — подстрока без учёта регистра, совпадение ищется и по SKU
	// сырья, и по SKU готовой продукции; пустая строка отключает фильтр.
	SKU string
	// Status — точное совпадение статуса сепарации или All.
	Status string
	// Role определяет видимость: руководитель не видит ОП в статусе Pendente.
	Role model.Role
}

// Default возвращает критерии без ограничений для указанной роли.
func Default(role model.Role) Criteria {
	return Criteria{Group: All, Status: All, Role: role}
}

// Apply возвращает подмножество ОП, удовлетворяющее критериям, с сохранением
// исходного порядка. Входной срез не изменяется.
func Apply(orders []model.ProductionOrder, c Criteria) []model.ProductionOrder {
	res := make([]model.ProductionOrder, 0, len(orders))
	for _, o := range orders {
		if matches(o, c) {
			res = append(res, o)
		}
	}
	return res
}

func matches(o model.ProductionOrder, c Criteria) bool {
	if c.Group != "" && c.Group != All && string(o.Group) != c.Group {
		return false
	}
	if c.SKU != "" {
		needle := strings.ToLower(c.SKU)
		if !strings.Contains(strings.ToLower(o.FinishedSKU), needle) &&
			!strings.Contains(strings.ToLower(o.RawSKU), needle) {
			return false
		}
	}
	if c.Status != "" && c.Status != All && string(o.SeparationStatus) != c.Status {
		return false
	}
	if c.Role == model.RoleManager && o.SeparationStatus == model.SeparationPending {
		return false
	}
	return true
}

// Stats считает показатели панели по множеству ОП.
func Stats(orders []model.ProductionOrder) model.Stats {
	s := model.Stats{Total: len(orders)}

	for _, o := range orders {
		switch o.SeparationStatus {
		case model.SeparationPending:
			s.Pending++
		case model.SeparationFull:
			s.Full++
		case model.SeparationPartial:
			s.Partial++
		case model.SeparationUnavailable:
			s.Unavailable++
		}

		if o.PrintStatus == model.PrintStatusPrinted {
			s.Printed++
		}
		if o.OrderStatus == model.OrderStatusActive {
			s.Active++
		}
	}

	return s
}

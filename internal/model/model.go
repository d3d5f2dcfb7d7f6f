// Package model содержит доменные сущности системы ордеров производства (ОП).
package model

import (
	"fmt"
	"time"
)

// ValidationError описывает вход, отклонённый до каких-либо внешних вызовов.
// Состояние ОП при такой ошибке не изменяется.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// OrderGroup описывает производственную группу, к которой относится ОП.
type OrderGroup string

// Фиксированные группы, известные системе.
const (
	GroupFfilotex OrderGroup = "Ffilotex"
	GroupCCFios   OrderGroup = "CC Fios"
)

// SeparationStatus описывает статус сепарации сырья по ОП.
// Строковые значения совпадают со значениями, хранимыми в удалённой таблице.
type SeparationStatus string

const (
	SeparationPending     SeparationStatus = "Pendente"
	SeparationFull        SeparationStatus = "Total"
	SeparationPartial     SeparationStatus = "Parcial"
	SeparationUnavailable SeparationStatus = "NaoSeparou"
)

// PrintStatus описывает статус печати ОП.
type PrintStatus string

const (
	PrintStatusNotPrinted PrintStatus = "NaoImpressa"
	PrintStatusPrinted    PrintStatus = "Impressa"
)

// OrderStatus описывает жизненный цикл ОП. Ядро системы его не изменяет.
type OrderStatus string

const (
	OrderStatusActive    OrderStatus = "Ativa"
	OrderStatusCompleted OrderStatus = "Concluida"
	OrderStatusCancelled OrderStatus = "Cancelada"
)

// Role описывает роль пользователя интерактивной панели.
type Role string

const (
	// RoleOperator — кладовщик, выполняющий сепарацию сырья.
	RoleOperator Role = "separador"
	// RoleManager — руководитель, проверяющий и печатающий ОП.
	RoleManager Role = "gestor"
)

// Valid сообщает, является ли значение роли одним из известных.
func (r Role) Valid() bool {
	return r == RoleOperator || r == RoleManager
}

// ProductionOrder описывает ордер производства — центральную сущность системы.
// Поля создания неизменяемы после создания ОП; изменяются только поля
// сепарации и печати.
type ProductionOrder struct {
	Number    string
	CreatedAt time.Time
	Group     OrderGroup

	RawSKU          string
	RawColor        string
	RequestedSpools float64
	RequestedKg     float64

	FinishedSKU         string
	FinishedDescription string
	FinishedQty         float64
	Barcode             string

	SeparationStatus    SeparationStatus
	SeparatedSpools     float64
	SeparatedKg         float64
	Note                string
	SeparationTimestamp *time.Time
	SeparatingUser      string

	PrintStatus    PrintStatus
	PrintTimestamp *time.Time

	OrderStatus OrderStatus
}

// UnitWeight возвращает вес одной роки в килограммах, зафиксированный при
// создании ОП как отношение запрошенных килограммов к запрошенным рокам.
// Для ОП с нулевым количеством рок вес не определён и возвращается ноль.
func (o *ProductionOrder) UnitWeight() float64 {
	if o.RequestedSpools == 0 {
		return 0
	}
	return o.RequestedKg / o.RequestedSpools
}

// SeparationEventType описывает тип события сепарации.
type SeparationEventType string

const (
	EventFull        SeparationEventType = "Total"
	EventPartial     SeparationEventType = "Parcial"
	EventUnavailable SeparationEventType = "NaoSeparou"
)

// SeparationEvent описывает одно событие сепарации, сообщённое кладовщиком.
// ReportedSpools — количество, отделённое именно в этом событии, не накопленное.
type SeparationEvent struct {
	Type           SeparationEventType
	ReportedSpools float64
	Note           string
}

// AuditRecord описывает запись в журнале изменений ОП.
type AuditRecord struct {
	ID          string
	Timestamp   time.Time
	OrderNumber string
	Action      string
	Actor       string
	Previous    string
	New         string
}

// Stats содержит счётчики панели по множеству ОП.
type Stats struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Full        int `json:"full"`
	Partial     int `json:"partial"`
	Unavailable int `json:"unavailable"`
	Printed     int `json:"printed"`
	Active      int `json:"active"`
}

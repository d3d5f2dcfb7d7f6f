// Package export формирует XLSX-выгрузку текущего списка ОП.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/op-system/internal/model"
)

const sheetName = "OPs"

const timeLayout = "02/01/2006 15:04"

var headers = []string{
	"OP",
	"Data",
	"Grupo",
	"SKU Fio",
	"Cor",
	"Rocas Solicitadas",
	"Kg Solicitados",
	"SKU Acabado",
	"Descricao",
	"Status Separacao",
	"Rocas Separadas",
	"Kg Separados",
	"Observacao",
	"Separado Por",
	"Impressao",
	"Status OP",
}

// WriteOrders записывает список ОП в XLSX и отдаёт результат в w.
func WriteOrders(w io.Writer, orders []model.ProductionOrder) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	boldStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		cell := col + "1"
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, boldStyle); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	for i, o := range orders {
		row := i + 2
		values := []any{
			o.Number,
			formatTime(&o.CreatedAt),
			string(o.Group),
			o.RawSKU,
			o.RawColor,
			o.RequestedSpools,
			o.RequestedKg,
			o.FinishedSKU,
			o.FinishedDescription,
			string(o.SeparationStatus),
			o.SeparatedSpools,
			o.SeparatedKg,
			o.Note,
			o.SeparatingUser,
			string(o.PrintStatus),
			string(o.OrderStatus),
		}
		for j, v := range values {
			col, err := excelize.ColumnNumberToName(j + 1)
			if err != nil {
				return fmt.Errorf("column name: %w", err)
			}
			if err := f.SetCellValue(sheetName, fmt.Sprintf("%s%d", col, row), v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// FileName возвращает имя файла выгрузки с отметкой времени.
func FileName(at time.Time) string {
	return fmt.Sprintf("ops_%s.xlsx", at.Format("20060102_1504"))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

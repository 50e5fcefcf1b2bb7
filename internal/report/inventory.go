// Package report renders the inventory as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"labtrack.io/labtrack/internal/domain"
)

// ContentType is the media type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names.
const (
	SheetEquipment   = "Equipment"
	SheetMaintenance = "Maintenance"
)

var equipmentHeaders = []string{
	"Asset Number", "Name", "Model", "Serial Number", "Manufacturer", "Category", "Location",
	"Purchase Date", "Warranty Expiry", "Cost", "Status", "Last Maintenance", "Next Maintenance",
	"Created At", "Updated At",
}

var maintenanceHeaders = []string{
	"ID", "Asset Number", "Type", "Date", "Description", "Technician", "Cost", "Next Due",
	"Equipment Status", "Files", "Created At",
}

// Inventory builds the workbook. The caller must Close the returned file.
func Inventory(equipment []domain.Equipment, maintenance []domain.Maintenance) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetEquipment); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SheetMaintenance); err != nil {
		_ = f.Close()
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	rows := make([][]interface{}, 0, len(equipment))
	for _, e := range equipment {
		rows = append(rows, []interface{}{
			e.AssetNumber, e.Name, e.Model, e.SerialNumber, e.Manufacturer, e.Category, e.Location,
			e.PurchaseDate, e.WarrantyExpiry, e.Cost, e.Status, e.LastMaintenance, e.NextMaintenance,
			e.CreatedAt, e.UpdatedAt,
		})
	}
	if err := writeSheet(f, SheetEquipment, equipmentHeaders, rows, header); err != nil {
		_ = f.Close()
		return nil, err
	}

	rows = make([][]interface{}, 0, len(maintenance))
	for _, m := range maintenance {
		names := make([]string, 0, len(m.Files))
		for _, a := range m.Files {
			names = append(names, a.Filename)
		}
		rows = append(rows, []interface{}{
			m.ID, m.EquipmentAsset, m.Type, m.Date, m.Description, m.Technician, m.Cost, m.NextDue,
			m.EquipmentStatus, strings.Join(names, ", "), m.CreatedAt,
		})
	}
	if err := writeSheet(f, SheetMaintenance, maintenanceHeaders, rows, header); err != nil {
		_ = f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteInventory builds the workbook and writes it to w.
func WriteInventory(w io.Writer, equipment []domain.Equipment, maintenance []domain.Maintenance) error {
	f, err := Inventory(equipment, maintenance)
	if err != nil {
		return fmt.Errorf("build inventory workbook: %w", err)
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write inventory workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}

	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// Package domain provides the record types of labtrack.
//
// Dates (purchase_date, next_maintenance, ...) are kept as the strings the
// client supplied; timestamps (created_at, updated_at) are UTC ISO-8601.
package domain

import "strings"

// Equipment statuses. Maintenance propagation may store any other non-blank value.
const (
	StatusOperational         = "Operational"
	StatusMaintenanceRequired = "Maintenance Required"
	StatusCalibrationDue      = "Calibration Due"
	StatusOutOfService        = "Out of Service"
)

// Statuses lists the well-known equipment statuses.
func Statuses() []string {
	return []string{StatusOperational, StatusMaintenanceRequired, StatusCalibrationDue, StatusOutOfService}
}

// Equipment is an inventory record keyed by its asset number.
type Equipment struct {
	AssetNumber     string  `json:"asset_number"`
	Name            string  `json:"name"`
	Model           string  `json:"model"`
	SerialNumber    string  `json:"serial_number"`
	Manufacturer    string  `json:"manufacturer"`
	Category        string  `json:"category"`
	Location        string  `json:"location"`
	PurchaseDate    string  `json:"purchase_date"`
	WarrantyExpiry  string  `json:"warranty_expiry"`
	Cost            float64 `json:"cost"`
	Status          string  `json:"status"`
	LastMaintenance string  `json:"last_maintenance,omitempty"`
	NextMaintenance string  `json:"next_maintenance,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// EquipmentInput carries the fields of a new equipment record.
type EquipmentInput struct {
	AssetNumber     string   `json:"asset_number" form:"asset_number" yaml:"asset_number" validate:"omitempty,max=64"`
	Name            string   `json:"name" form:"name" yaml:"name" validate:"required,max=200"`
	Model           string   `json:"model" form:"model" yaml:"model" validate:"max=200"`
	SerialNumber    string   `json:"serial_number" form:"serial_number" yaml:"serial_number" validate:"max=200"`
	Manufacturer    string   `json:"manufacturer" form:"manufacturer" yaml:"manufacturer" validate:"max=200"`
	Category        string   `json:"category" form:"category" yaml:"category" validate:"required"`
	Location        string   `json:"location" form:"location" yaml:"location"`
	PurchaseDate    string   `json:"purchase_date" form:"purchase_date" yaml:"purchase_date" validate:"omitempty,labdate"`
	WarrantyExpiry  string   `json:"warranty_expiry" form:"warranty_expiry" yaml:"warranty_expiry" validate:"omitempty,labdate"`
	Cost            *float64 `json:"cost" form:"cost" yaml:"cost" validate:"omitempty,gte=0"`
	Status          string   `json:"status" form:"status" yaml:"status"`
	LastMaintenance string   `json:"last_maintenance" form:"last_maintenance" yaml:"last_maintenance" validate:"omitempty,labdate"`
	NextMaintenance string   `json:"next_maintenance" form:"next_maintenance" yaml:"next_maintenance" validate:"omitempty,labdate"`
}

// Build merges the input over the record defaults.
func (in EquipmentInput) Build(now string) Equipment {
	e := Equipment{
		AssetNumber:     strings.TrimSpace(in.AssetNumber),
		Name:            strings.TrimSpace(in.Name),
		Model:           in.Model,
		SerialNumber:    in.SerialNumber,
		Manufacturer:    in.Manufacturer,
		Category:        in.Category,
		Location:        in.Location,
		PurchaseDate:    in.PurchaseDate,
		WarrantyExpiry:  in.WarrantyExpiry,
		Status:          StatusOperational,
		LastMaintenance: in.LastMaintenance,
		NextMaintenance: in.NextMaintenance,
		CreatedAt:       now,
	}
	if in.Cost != nil {
		e.Cost = *in.Cost
	}
	if s := strings.TrimSpace(in.Status); s != "" {
		e.Status = s
	}
	return e
}

// EquipmentPatch holds the supplied fields of an equipment update.
// A nil field was not supplied. The asset number and creation time are immutable.
type EquipmentPatch struct {
	Name            *string  `json:"name" form:"name" validate:"omitempty,min=1,max=200"`
	Model           *string  `json:"model" form:"model" validate:"omitempty,max=200"`
	SerialNumber    *string  `json:"serial_number" form:"serial_number" validate:"omitempty,max=200"`
	Manufacturer    *string  `json:"manufacturer" form:"manufacturer" validate:"omitempty,max=200"`
	Category        *string  `json:"category" form:"category" validate:"omitempty,min=1"`
	Location        *string  `json:"location" form:"location"`
	PurchaseDate    *string  `json:"purchase_date" form:"purchase_date" validate:"omitempty,labdate"`
	WarrantyExpiry  *string  `json:"warranty_expiry" form:"warranty_expiry" validate:"omitempty,labdate"`
	Cost            *float64 `json:"cost" form:"cost" validate:"omitempty,gte=0"`
	Status          *string  `json:"status" form:"status"`
	LastMaintenance *string  `json:"last_maintenance" form:"last_maintenance" validate:"omitempty,labdate"`
	NextMaintenance *string  `json:"next_maintenance" form:"next_maintenance" validate:"omitempty,labdate"`
}

// Apply shallow-merges the supplied fields into e.
func (p EquipmentPatch) Apply(e *Equipment, now string) {
	setString(&e.Name, p.Name)
	setString(&e.Model, p.Model)
	setString(&e.SerialNumber, p.SerialNumber)
	setString(&e.Manufacturer, p.Manufacturer)
	setString(&e.Category, p.Category)
	setString(&e.Location, p.Location)
	setString(&e.PurchaseDate, p.PurchaseDate)
	setString(&e.WarrantyExpiry, p.WarrantyExpiry)
	setString(&e.Status, p.Status)
	setString(&e.LastMaintenance, p.LastMaintenance)
	setString(&e.NextMaintenance, p.NextMaintenance)
	if p.Cost != nil {
		e.Cost = *p.Cost
	}
	e.UpdatedAt = now
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

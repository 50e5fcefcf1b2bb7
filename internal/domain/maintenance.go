package domain

import "strings"

// Maintenance is a service event on one piece of equipment.
// IDs are never reused.
type Maintenance struct {
	ID              int64        `json:"id"`
	EquipmentAsset  string       `json:"equipment_asset"`
	Type            string       `json:"type"`
	Date            string       `json:"date"`
	Description     string       `json:"description"`
	Technician      string       `json:"technician,omitempty"`
	Cost            float64      `json:"cost"`
	NextDue         string       `json:"next_due,omitempty"`
	EquipmentStatus string       `json:"equipment_status,omitempty"`
	Files           []Attachment `json:"files"`
	CreatedAt       string       `json:"created_at"`
	UpdatedAt       string       `json:"updated_at,omitempty"`
}

// Attachment references a blob in the attachment directory.
type Attachment struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	MimeType     string `json:"mimetype"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
}

// HasFile reports whether the record references filename.
func (m Maintenance) HasFile(filename string) bool {
	for _, f := range m.Files {
		if f.Filename == filename {
			return true
		}
	}
	return false
}

// AddFiles appends attachments whose filename is not referenced yet.
func (m *Maintenance) AddFiles(files ...Attachment) {
	if m.Files == nil {
		m.Files = []Attachment{}
	}
	for _, f := range files {
		if !m.HasFile(f.Filename) {
			m.Files = append(m.Files, f)
		}
	}
}

// RemoveFile strips every reference to filename and reports whether any was removed.
func (m *Maintenance) RemoveFile(filename string) bool {
	kept := make([]Attachment, 0, len(m.Files))
	for _, f := range m.Files {
		if f.Filename != filename {
			kept = append(kept, f)
		}
	}
	removed := len(kept) != len(m.Files)
	m.Files = kept
	return removed
}

// MaintenanceInput carries the form fields of a new maintenance record.
type MaintenanceInput struct {
	EquipmentAsset  string   `json:"equipment_asset" form:"equipment_asset" yaml:"equipment_asset" validate:"required"`
	Type            string   `json:"type" form:"type" yaml:"type" validate:"required,max=100"`
	Date            string   `json:"date" form:"date" yaml:"date" validate:"required,labdate"`
	Description     string   `json:"description" form:"description" yaml:"description" validate:"max=4000"`
	Technician      string   `json:"technician" form:"technician" yaml:"technician" validate:"max=200"`
	Cost            *float64 `json:"cost" form:"cost" yaml:"cost" validate:"omitempty,gte=0"`
	NextDue         string   `json:"next_due" form:"next_due" yaml:"next_due" validate:"omitempty,labdate"`
	EquipmentStatus string   `json:"equipment_status" form:"equipment_status" yaml:"equipment_status"`
}

// Build creates the record for id; attachments are added by the caller.
func (in MaintenanceInput) Build(id int64, now string) Maintenance {
	m := Maintenance{
		ID:              id,
		EquipmentAsset:  strings.TrimSpace(in.EquipmentAsset),
		Type:            in.Type,
		Date:            in.Date,
		Description:     in.Description,
		Technician:      in.Technician,
		NextDue:         in.NextDue,
		EquipmentStatus: in.EquipmentStatus,
		Files:           []Attachment{},
		CreatedAt:       now,
	}
	if in.Cost != nil {
		m.Cost = *in.Cost
	}
	return m
}

// Propagation returns the equipment changes implied by a new record.
func (in MaintenanceInput) Propagation() Propagation {
	return Propagation{Date: in.Date, NextDue: in.NextDue, Status: in.EquipmentStatus}
}

// MaintenancePatch holds the supplied fields of a maintenance update.
// id, files and created_at cannot be patched.
type MaintenancePatch struct {
	EquipmentAsset  *string  `json:"equipment_asset" form:"equipment_asset" validate:"omitempty,min=1"`
	Type            *string  `json:"type" form:"type" validate:"omitempty,min=1,max=100"`
	Date            *string  `json:"date" form:"date" validate:"omitempty,labdate"`
	Description     *string  `json:"description" form:"description" validate:"omitempty,max=4000"`
	Technician      *string  `json:"technician" form:"technician" validate:"omitempty,max=200"`
	Cost            *float64 `json:"cost" form:"cost" validate:"omitempty,gte=0"`
	NextDue         *string  `json:"next_due" form:"next_due" validate:"omitempty,labdate"`
	EquipmentStatus *string  `json:"equipment_status" form:"equipment_status"`
}

// Apply merges the supplied fields into m.
func (p MaintenancePatch) Apply(m *Maintenance, now string) {
	setString(&m.EquipmentAsset, p.EquipmentAsset)
	setString(&m.Type, p.Type)
	setString(&m.Date, p.Date)
	setString(&m.Description, p.Description)
	setString(&m.Technician, p.Technician)
	setString(&m.NextDue, p.NextDue)
	setString(&m.EquipmentStatus, p.EquipmentStatus)
	if p.Cost != nil {
		m.Cost = *p.Cost
	}
	m.UpdatedAt = now
}

// Propagation returns the equipment changes implied by an update of m.
// Only a status supplied with this update is propagated.
func (p MaintenancePatch) Propagation(m Maintenance) Propagation {
	prop := Propagation{Date: m.Date}
	if p.NextDue != nil {
		prop.NextDue = *p.NextDue
	}
	if p.EquipmentStatus != nil {
		prop.Status = *p.EquipmentStatus
	}
	return prop
}

// Propagation is the set of equipment fields a maintenance record updates.
type Propagation struct {
	Date    string
	NextDue string
	Status  string
}

// ApplyTo stamps the referenced equipment: last_maintenance always, next_maintenance
// when a next due date is set, status when a non-blank status is set.
func (p Propagation) ApplyTo(e *Equipment, now string) {
	e.LastMaintenance = p.Date
	if strings.TrimSpace(p.NextDue) != "" {
		e.NextMaintenance = p.NextDue
	}
	if strings.TrimSpace(p.Status) != "" {
		e.Status = p.Status
	}
	e.UpdatedAt = now
}

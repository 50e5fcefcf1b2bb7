package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of domain event.
type EventType string

const (
	EventEquipmentCreated       EventType = "EQUIPMENT_CREATED"
	EventEquipmentUpdated       EventType = "EQUIPMENT_UPDATED"
	EventEquipmentDeleted       EventType = "EQUIPMENT_DELETED"
	EventEquipmentStatusChanged EventType = "EQUIPMENT_STATUS_CHANGED"

	EventMaintenanceCreated EventType = "MAINTENANCE_CREATED"
	EventMaintenanceUpdated EventType = "MAINTENANCE_UPDATED"
	EventMaintenanceDeleted EventType = "MAINTENANCE_DELETED"

	EventAttachmentDeleted EventType = "ATTACHMENT_DELETED"
)

// Aggregate types.
const (
	AggregateEquipment   = "equipment"
	AggregateMaintenance = "maintenance"
	AggregateAttachment  = "attachment"
)

// DomainEvent is published after a change has been committed.
type DomainEvent struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	Payload       []byte    `json:"payload,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Payload is an event body.
type Payload interface {
	ToJSON() ([]byte, error)
}

// NewEvent builds an event; payload may be nil.
func NewEvent(eventType EventType, aggregateType, aggregateID string, payload Payload, at time.Time) *DomainEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	ev := &DomainEvent{
		EventID:       id.String(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		CreatedAt:     at,
	}
	if payload != nil {
		if data, err := payload.ToJSON(); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// StatusChangedPayload is the payload of EQUIPMENT_STATUS_CHANGED.
type StatusChangedPayload struct {
	AssetNumber string `json:"asset_number"`
	From        string `json:"from"`
	To          string `json:"to"`
	// Source is "derived" for the due-date rule, "maintenance" for propagation.
	Source string `json:"source"`
}

// ToJSON converts payload to JSON bytes.
func (p StatusChangedPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// EquipmentDeletedPayload is the payload of EQUIPMENT_DELETED.
type EquipmentDeletedPayload struct {
	AssetNumber    string   `json:"asset_number"`
	MaintenanceIDs []int64  `json:"maintenance_ids"`
	Files          []string `json:"files"`
}

// ToJSON converts payload to JSON bytes.
func (p EquipmentDeletedPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// MaintenancePayload is the payload of the maintenance events.
type MaintenancePayload struct {
	ID             int64  `json:"id"`
	EquipmentAsset string `json:"equipment_asset"`
	// Propagated is false when no equipment matched equipment_asset.
	Propagated bool     `json:"propagated"`
	Files      []string `json:"files,omitempty"`
}

// ToJSON converts payload to JSON bytes.
func (p MaintenancePayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload unmarshals the event payload into T.
func DecodePayload[T any](ev *DomainEvent) (T, error) {
	var out T
	err := json.Unmarshal(ev.Payload, &out)
	return out, err
}

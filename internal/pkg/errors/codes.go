package errors

import (
	"fmt"
	"net/http"
)

// Error codes returned in the JSON error body. Messages are English only.

// Equipment error codes.
const (
	CodeEquipmentNotFound = "EQUIPMENT_NOT_FOUND"
	CodeEquipmentExists   = "EQUIPMENT_ALREADY_EXISTS"
)

// Maintenance error codes.
const (
	CodeMaintenanceNotFound = "MAINTENANCE_NOT_FOUND"
	CodeAttachmentNotFound  = "ATTACHMENT_NOT_FOUND"
)

// Upload error codes.
const (
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeTooManyFiles        = "TOO_MANY_FILES"
)

// Store error codes.
const (
	CodeStoreReadFailed  = "STORE_READ_FAILED"
	CodeStoreWriteFailed = "STORE_WRITE_FAILED"
	CodeBlobWriteFailed  = "ATTACHMENT_WRITE_FAILED"
)

// Validation error codes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrEquipmentNotFoundf creates an equipment not found error.
func ErrEquipmentNotFoundf(assetNumber string) *AppError {
	return NotFound(CodeEquipmentNotFound, "equipment not found").
		WithParams(map[string]interface{}{"asset_number": assetNumber})
}

// ErrEquipmentExistsf creates a duplicate asset number error.
func ErrEquipmentExistsf(assetNumber string) *AppError {
	return Conflict(CodeEquipmentExists, "equipment with this asset number already exists").
		WithParams(map[string]interface{}{"asset_number": assetNumber})
}

// ErrMaintenanceNotFoundf creates a maintenance record not found error.
func ErrMaintenanceNotFoundf(id int64) *AppError {
	return NotFound(CodeMaintenanceNotFound, "maintenance record not found").
		WithParams(map[string]interface{}{"id": id})
}

// ErrAttachmentNotFoundf creates an attachment not found error.
func ErrAttachmentNotFoundf(filename string) *AppError {
	return NotFound(CodeAttachmentNotFound, "file not found").
		WithParams(map[string]interface{}{"filename": filename})
}

// ErrUnsupportedFileTypef rejects an upload whose mimetype is not allowed.
func ErrUnsupportedFileTypef(filename, mimeType string) *AppError {
	return New(CodeUnsupportedFileType, fmt.Sprintf("file type %s is not allowed", mimeType), http.StatusBadRequest).
		WithParams(map[string]interface{}{"filename": filename, "mimetype": mimeType})
}

// ErrFileTooLargef rejects an upload above the configured size limit.
func ErrFileTooLargef(filename string, limit int64) *AppError {
	return New(CodeFileTooLarge, fmt.Sprintf("file exceeds the %d byte limit", limit), http.StatusBadRequest).
		WithParams(map[string]interface{}{"filename": filename, "limit": limit})
}

// ErrTooManyFilesf rejects a request carrying more attachments than allowed.
func ErrTooManyFilesf(count, limit int) *AppError {
	return New(CodeTooManyFiles, fmt.Sprintf("at most %d files per request", limit), http.StatusBadRequest).
		WithParams(map[string]interface{}{"count": count, "limit": limit})
}

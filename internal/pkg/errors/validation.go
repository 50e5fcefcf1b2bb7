package errors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromValidation converts validator.ValidationErrors into a 400 AppError with
// one FieldError per failed rule. Other errors become a plain INVALID_REQUEST.
func FromValidation(err error) *AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Wrap(err, CodeInvalidRequest, "malformed request body", http.StatusBadRequest)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fieldName(fe),
			Code:    strings.ToUpper(fe.Tag()),
			Message: fe.Error(),
		})
	}
	return Wrap(err, CodeValidationFailed, "request validation failed", http.StatusBadRequest).WithFieldErrors(fields)
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		return fe.Field()
	}
	return ns
}

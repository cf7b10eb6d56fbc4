package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	dErrors "medkiosk/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validatable lets request types run domain validation beyond struct tags.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the JSON body into T, runs struct-tag validation,
// and calls Validate when T implements Validatable. On failure it writes the
// error response and returns ok=false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return req, false
	}

	if err := validate.StructCtx(ctx, &req); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "request validation failed"))
			return req, false
		}
	}

	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			WriteError(w, err)
			return req, false
		}
	}
	return req, true
}

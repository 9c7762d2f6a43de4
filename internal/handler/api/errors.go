package api

import (
	"errors"
	"strings"

	"SybilScan/internal/domain/models"
	xhttp "SybilScan/pkg/http"
)

// toAppError maps domain errors onto HTTP application errors.
func toAppError(err error) *xhttp.AppError {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		e := xhttp.BadRequestError(ve.Error())
		e.Code = "ERR_INVALID_" + strings.ToUpper(ve.Field)
		e.Field = ve.Field
		if ve.Field == "addresses" || ve.Field == "address" {
			e.WithParam("index", ve.Index)
		}
		return e.WithError(err)
	case errors.Is(err, models.ErrJobNotFound):
		return xhttp.NotFoundError("job not found").WithError(err)
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrJobClosed):
		return xhttp.ConflictError("job already finished").WithError(err)
	case errors.Is(err, models.ErrModelUnavailable):
		return xhttp.ServiceUnavailableError("risk model unavailable").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}

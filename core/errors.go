package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ReconErrorBadInput         = "RECON_BAD_INPUT"
	ReconErrorNotFound         = "RECON_NOT_FOUND"
	ReconErrorRunConflict      = "RECON_RUN_CONFLICT"
	ReconErrorRateLimited      = "RECON_RATE_LIMITED"
	ReconErrorUpstreamFailed   = "RECON_UPSTREAM_FAILED"
	ReconErrorQualityGate      = "RECON_QUALITY_GATE"
	ReconErrorStoreUnavailable = "RECON_STORE_UNAVAILABLE"
	ReconErrorInternal         = "RECON_INTERNAL_ERROR"
)

// ReconErrorMapper normalizes any error into the go-errors envelope used
// at the trigger surface.
func ReconErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureReconErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "already active"):
		return newReconError(err.Error(), goerrors.CategoryConflict, ReconErrorRunConflict)
	case strings.Contains(msg, "not found"):
		return newReconError(err.Error(), goerrors.CategoryNotFound, ReconErrorNotFound)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newReconError(err.Error(), goerrors.CategoryRateLimit, ReconErrorRateLimited)
	case strings.Contains(msg, "quality gate"), strings.Contains(msg, "below threshold"):
		return newReconError(err.Error(), goerrors.CategoryOperation, ReconErrorQualityGate)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "out of range"):
		return newReconError(err.Error(), goerrors.CategoryBadInput, ReconErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureReconErrorEnvelope(mapped)
}

func newReconError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureReconErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureReconErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = reconHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultReconTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultReconTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ReconErrorBadInput
	case goerrors.CategoryNotFound:
		return ReconErrorNotFound
	case goerrors.CategoryConflict:
		return ReconErrorRunConflict
	case goerrors.CategoryRateLimit:
		return ReconErrorRateLimited
	case goerrors.CategoryExternal:
		return ReconErrorUpstreamFailed
	case goerrors.CategoryOperation:
		return ReconErrorQualityGate
	default:
		return ReconErrorInternal
	}
}

func reconHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

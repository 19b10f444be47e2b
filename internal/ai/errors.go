package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/propchat/pkg/models"
)

var (
	// Retryable: the gateway moves to the next model in the chain.
	ErrQuotaExhausted       = errors.New("model quota exhausted")
	ErrModelNotFound        = errors.New("model not found")
	ErrInvalidModelArgument = errors.New("invalid model argument")

	ErrModelUnavailable = errors.New("all models in the chain are unavailable")
	ErrInferenceTimeout = errors.New("ai inference timeout")
	ErrInvalidResponse  = models.ErrInvalidResponse
)

// Retryable reports whether err should advance the model chain.
func Retryable(err error) bool {
	return errors.Is(err, ErrQuotaExhausted) ||
		errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrInvalidModelArgument)
}

// classify maps provider failures onto the package sentinels. Errors that are
// already classified pass through unchanged.
func classify(err error) error {
	if err == nil || Retryable(err) || errors.Is(err, ErrInvalidResponse) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	var pe *models.ProviderError
	if !errors.As(err, &pe) {
		return err
	}
	status := strings.ToUpper(pe.Status)
	switch {
	case pe.StatusCode == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
	case pe.StatusCode == http.StatusNotFound || status == "NOT_FOUND":
		return fmt.Errorf("%w: %v", ErrModelNotFound, err)
	case (pe.StatusCode == http.StatusBadRequest || status == "INVALID_ARGUMENT") && namesModel(pe):
		return fmt.Errorf("%w: %v", ErrInvalidModelArgument, err)
	}
	return err
}

// namesModel reports whether a rejected request was rejected because of the
// model itself. Malformed conversations are the caller's fault on any model.
func namesModel(pe *models.ProviderError) bool {
	msg := strings.ToLower(pe.Message)
	if pe.Model != "" && strings.Contains(msg, strings.ToLower(pe.Model)) {
		return true
	}
	return strings.Contains(msg, "model")
}

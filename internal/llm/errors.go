package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"

	"github.com/brightcart/support-assistant/internal/apperr"
)

// Client-safe messages for each backend failure class. Provider diagnostics
// are kept in the wrapped cause and never forwarded verbatim.
const (
	msgTimeout     = "The AI service is taking too long to respond. Please try again."
	msgRateLimited = "The service is experiencing high demand. Please try again in a moment."
	msgAuth        = "There was an authentication error with the AI service."
	msgQuota       = "The AI service is temporarily unavailable."
	msgGeneric     = "An unexpected error occurred with the AI service."
)

// ClassifyError translates a backend failure into the error taxonomy.
func ClassifyError(err error) *apperr.Error {
	var classified *apperr.Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindBackendTimeout, msgTimeout, err)
	}

	if kind, ok := classifyStatus(statusCodeOf(err)); ok {
		return apperr.Wrap(kind, messageFor(kind), err)
	}

	return apperr.Wrap(apperr.KindBackend, msgGeneric, err)
}

// statusCodeOf digs the HTTP status out of provider error types.
func statusCodeOf(err error) int {
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) {
		if oaiAPI.HTTPStatusCode == 429 && hasCode(oaiAPI.Code, "insufficient_quota") {
			return 402 // treated as quota below
		}
		return oaiAPI.HTTPStatusCode
	}

	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) {
		return oaiReq.HTTPStatusCode
	}

	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}

	return 0
}

func classifyStatus(status int) (apperr.Kind, bool) {
	switch status {
	case 401, 403:
		return apperr.KindBackendAuth, true
	case 402:
		return apperr.KindBackendQuota, true
	case 429:
		return apperr.KindBackendRateLimited, true
	case 408, 504:
		return apperr.KindBackendTimeout, true
	case 0:
		return "", false
	default:
		return apperr.KindBackend, true
	}
}

func messageFor(kind apperr.Kind) string {
	switch kind {
	case apperr.KindBackendTimeout:
		return msgTimeout
	case apperr.KindBackendAuth:
		return msgAuth
	case apperr.KindBackendQuota:
		return msgQuota
	case apperr.KindBackendRateLimited:
		return msgRateLimited
	default:
		return msgGeneric
	}
}

func hasCode(code any, want string) bool {
	return fmt.Sprintf("%v", code) == want
}

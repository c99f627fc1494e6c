package stt

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"

	"go.aimuz.me/echo/internal/types"
)

// Key validation failure reasons.
const (
	ReasonEmpty        = "api key is empty"
	ReasonUnauthorized = "unauthorized"
	ReasonForbidden    = "forbidden"
	ReasonUnreachable  = "network unreachable"
)

// ValidateKey checks key by listing the service's models. It never uses
// the configured KeySource.
func (c *Client) ValidateKey(ctx context.Context, key string) types.KeyValidation {
	key = strings.TrimSpace(key)
	if key == "" {
		return types.KeyValidation{Error: ReasonEmpty}
	}

	client := c.api(key)
	if _, err := client.Models.List(ctx); err != nil {
		return types.KeyValidation{Error: keyErrorReason(err)}
	}
	return types.KeyValidation{Valid: true}
}

func keyErrorReason(err error) string {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err.Error()
		}
		return ReasonUnreachable
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return ReasonUnauthorized
	case http.StatusForbidden:
		return ReasonForbidden
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return http.StatusText(apiErr.StatusCode)
}

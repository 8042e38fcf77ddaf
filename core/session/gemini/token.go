package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
)

const tokenPath = "/v1alpha/auth_tokens"

// EphemeralToken is a short-lived credential that can be handed to a less
// trusted environment instead of the long-lived API key.
type EphemeralToken struct {
	Name       string
	ExpireTime time.Time
}

type tokenRequest struct {
	Uses       int    `json:"uses,omitempty"`
	ExpireTime string `json:"expireTime,omitempty"`
}

type tokenResponse struct {
	Name       string `json:"name"`
	ExpireTime string `json:"expireTime"`
}

// CreateEphemeralToken mints a single-use session token valid for the given
// lifetime.
func (c *Client) CreateEphemeralToken(ctx context.Context, lifetime time.Duration) (*EphemeralToken, error) {
	ctx, span := tracer.Start(ctx, "create ephemeral token")
	defer span.End()

	expireTime := time.Now().Add(lifetime).UTC()
	body, err := json.Marshal(tokenRequest{Uses: 1, ExpireTime: expireTime.Format(time.RFC3339)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	tokenURL := url.URL{Scheme: "https", Host: c.host, Path: tokenPath}
	queryParams := tokenURL.Query()
	queryParams.Set("key", c.apiKey)
	tokenURL.RawQuery = queryParams.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	response, err := client.Do(request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		err := fmt.Errorf("token request rejected (status %d): %s", response.StatusCode, payload)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var parsed tokenResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	token := &EphemeralToken{Name: parsed.Name}
	if parsed.ExpireTime != "" {
		if expiry, err := time.Parse(time.RFC3339, parsed.ExpireTime); err == nil {
			token.ExpireTime = expiry
		}
	}
	return token, nil
}

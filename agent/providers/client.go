package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/voyago/voyago/agent/contract"
)

const maxProviderResponseBytes = 2 << 20

// Config configures one upstream travel data provider.
type Config struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" required:"true"`
	APIKey  string        `envconfig:"API_KEY" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// restClient is the shared HTTP plumbing behind every provider tool. Fault
// conditions come back as declared-failure payloads (error=true), never as
// Go errors: the dispatcher passes them through unchanged and the fault
// taxonomy stays intact end to end.
type restClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newRESTClient(cfg Config) (*restClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("provider base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid provider url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &restClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// getJSON performs one provider call and maps every outcome into a payload.
func (c *restClient) getJSON(ctx context.Context, path string, query url.Values) map[string]any {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return declaredFailure(contractx.FaultUnexpected, fmt.Sprintf("build provider request: %v", err), "")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return declaredFailure(contractx.FaultTimeout, "provider call timed out",
				"The provider is slow right now; please try again in a moment.")
		}
		return declaredFailure(contractx.FaultNetwork, fmt.Sprintf("provider unreachable: %v", err),
			"The travel data provider could not be reached; please try again.")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return declaredFailure(contractx.FaultNetwork, fmt.Sprintf("read provider response: %v", err),
			"The provider response was cut off; please try again.")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return declaredFailure(contractx.FaultHTTP, fmt.Sprintf("provider http status=%d", resp.StatusCode),
			"The travel data provider rejected the request; please try again later.")
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return declaredFailure(contractx.FaultAPI, fmt.Sprintf("malformed provider payload: %v", err),
			"The provider returned unusable data; please try again later.")
	}
	return payload
}

// declaredFailure shapes the provider-side failure convention the
// dispatcher recognizes.
func declaredFailure(code contractx.FaultCode, message, suggestion string) map[string]any {
	payload := map[string]any{
		"error":   true,
		"code":    string(code),
		"message": message,
	}
	if suggestion != "" {
		payload["suggestion"] = suggestion
	}
	return payload
}

// dataUnavailable is the legitimate-absence failure: the data simply does
// not exist, so retrying cannot help.
func dataUnavailable(message, suggestion string) map[string]any {
	return declaredFailure(contractx.FaultDataUnavailable, message, suggestion)
}

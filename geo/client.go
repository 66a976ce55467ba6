package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/phillip/event-finder-go/metrics"
)

const (
	outcomeOK           = "ok"
	outcomeUnconfigured = "unconfigured"
	outcomeError        = "error"
	outcomeNoResult     = "no_result"
	outcomeCached       = "cached"
)

// getJSON performs a GET bounded by timeout and decodes a JSON body into out.
func getJSON(ctx context.Context, client *http.Client, timeout time.Duration, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func observe(provider, outcome string) {
	metrics.ProviderCalls.WithLabelValues(provider, outcome).Inc()
}

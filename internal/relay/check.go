package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Check probes the configured endpoint with a minimal test POST and
// reports whether it answers with a well-formed success response.
// Like Deliver, it resolves every failure as an Outcome.
func (d *Dispatcher) Check(ctx context.Context) Outcome {
	if d.cfg.Offline {
		return Outcome{Success: true, Confirmed: false, Message: "Simulated submission (local mode)"}
	}
	if !d.Configured() {
		return Outcome{Success: false, Message: "delivery endpoint not configured"}
	}

	return d.race(ctx, func(ctx context.Context) Outcome {
		values := url.Values{
			"test":      {"true"},
			"timestamp": {time.Now().UTC().Format(time.RFC3339)},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, strings.NewReader(values.Encode()))
		if err != nil {
			return Outcome{Success: false, Message: "invalid endpoint: " + err.Error()}
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := d.client.Do(req)
		if err != nil {
			return Outcome{Success: false, Message: "connection failed: " + err.Error()}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return Outcome{Success: false, Message: "connection failed: status " + resp.Status}
		}

		var result postResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return Outcome{Success: false, Message: "malformed response: " + err.Error()}
		}

		return Outcome{Success: true, Confirmed: true, Message: "connection successful"}
	})
}

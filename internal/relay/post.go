package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/normalize"
)

// postResponse is the JSON body the web-app returns for direct POSTs.
type postResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	FileUploaded bool   `json:"fileUploaded"`
}

// deliverPost sends the record as a form-encoded body and trusts the
// JSON response for confirmation.
func (d *Dispatcher) deliverPost(ctx context.Context, rec normalize.Record) Outcome {
	body := rec.Values().Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.Endpoint, strings.NewReader(body))
	if err != nil {
		return Outcome{Success: false, Message: "invalid endpoint: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return Outcome{Success: false, Message: "network error: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{Success: false, Message: fmt.Sprintf("HTTP error: status %d", resp.StatusCode)}
	}

	var result postResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Outcome{Success: false, Message: "malformed response: " + err.Error()}
	}

	if !result.Success {
		d.log.Warn("receiver rejected submission", zap.String("message", result.Message))
		return Outcome{Success: false, Message: result.Message}
	}

	msg := result.Message
	if msg == "" {
		msg = "Data saved"
	}
	if rec.HasAttachment() && !result.FileUploaded {
		d.log.Warn("receiver accepted submission but did not store the attachment")
	}
	return Outcome{Success: true, Confirmed: true, Message: msg}
}

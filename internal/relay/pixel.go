package relay

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/normalize"
)

// deliverPixel fires the record as query parameters on a throwaway
// GET, the server-side equivalent of assigning an image src. The
// strategy resolves optimistically as soon as the request is on the
// wire; the response, if any, is drained and discarded. Outcome is
// Success true but Confirmed false: there is no way to know whether
// the receiver stored the row.
func (d *Dispatcher) deliverPixel(ctx context.Context, rec normalize.Record) Outcome {
	u := d.queryURL(rec.Values())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Outcome{Success: false, Message: "invalid endpoint: " + err.Error()}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Outcome{Success: false, Message: "network error: " + err.Error()}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	d.log.Debug("pixel dispatch completed", zap.Int("status", resp.StatusCode))
	return Outcome{Success: true, Confirmed: false, Message: "dispatched without delivery confirmation"}
}

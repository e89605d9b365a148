package experiment

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Forwarder is a third-party analytics collaborator. Dispatch is
// fire-and-forget: implementations swallow their own failures and the
// experiment guards against panics, so the absence or breakage of any
// collaborator never affects core behavior.
type Forwarder interface {
	Record(ev Event)
}

// LogForwarder mirrors every event into the structured log, the
// server-side stand-in for the console trail the page version kept.
type LogForwarder struct {
	Log *zap.Logger
}

func (f LogForwarder) Record(ev Event) {
	f.Log.Info("ab test event",
		zap.String("eventType", ev.EventType),
		zap.String("variation", ev.VariantID),
		zap.String("url", ev.URL),
	)
}

// HTTPForwarder posts each event as JSON to an external collector
// (GA-measurement-protocol style). Errors are logged and dropped.
type HTTPForwarder struct {
	URL    string
	Log    *zap.Logger
	Client *http.Client
}

func NewHTTPForwarder(url string, log *zap.Logger) *HTTPForwarder {
	return &HTTPForwarder{
		URL:    url,
		Log:    log,
		Client: &http.Client{Timeout: 3 * time.Second},
	}
}

func (f *HTTPForwarder) Record(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		f.Log.Warn("failed to encode event for forwarding", zap.Error(err))
		return
	}

	resp, err := f.Client.Post(f.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		f.Log.Warn("analytics forward failed", zap.String("url", f.URL), zap.Error(err))
		return
	}
	resp.Body.Close()
}

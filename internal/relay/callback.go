package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/normalize"
)

// callbackResult is the single argument the receiver passes to the
// named callback.
type callbackResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// callbackRegistry is the script-tag relay's global callback
// namespace, encapsulated so callers never see it. Every registration
// is removed on completion or timeout; a dangling slot would leak
// state across submissions.
type callbackRegistry struct {
	mu      sync.Mutex
	pending map[string]chan callbackResult
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{pending: make(map[string]chan callbackResult)}
}

func (r *callbackRegistry) register(name string) chan callbackResult {
	ch := make(chan callbackResult, 1)
	r.mu.Lock()
	r.pending[name] = ch
	r.mu.Unlock()
	return ch
}

func (r *callbackRegistry) remove(name string) {
	r.mu.Lock()
	delete(r.pending, name)
	r.mu.Unlock()
}

// invoke fires the named callback if it is still registered.
func (r *callbackRegistry) invoke(name string, res callbackResult) bool {
	r.mu.Lock()
	ch, ok := r.pending[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- res:
	default:
	}
	return true
}

func (r *callbackRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// deliverCallback serializes the record into query parameters plus a
// uniquely named callback parameter and expects the response body to
// be script text invoking that callback with a JSON result. Three
// branches race to resolve the outcome: the callback firing, a load
// error, and the dispatcher's timeout (which fires in race once this
// strategy hangs). The callback slot and any partial state are
// cleaned up on every path.
func (d *Dispatcher) deliverCallback(ctx context.Context, rec normalize.Record) Outcome {
	name := "splitship_cb_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	ch := d.callbacks.register(name)
	defer d.callbacks.remove(name)

	values := rec.Values()
	values.Set("callback", name)
	u := d.queryURL(values)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Outcome{Success: false, Message: "invalid endpoint: " + err.Error()}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Outcome{Success: false, Message: "script load error: " + err.Error()}
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return Outcome{Success: false, Message: "script load error: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{Success: false, Message: fmt.Sprintf("script load error: status %d", resp.StatusCode)}
	}

	// "Execute" the returned script: parse the callback invocation
	// and fire the registered slot.
	res, err := parseCallbackBody(name, string(body))
	if err != nil {
		d.log.Warn("callback relay returned unparseable body", zap.Error(err))
		return Outcome{Success: false, Message: "malformed callback response: " + err.Error()}
	}
	d.callbacks.invoke(name, res)

	select {
	case out := <-ch:
		return Outcome{Success: out.Success, Confirmed: true, Message: out.Message}
	case <-ctx.Done():
		// The dispatcher timer already resolved the outcome.
		return Outcome{Success: false, Message: "Request timeout"}
	}
}

// parseCallbackBody extracts the JSON argument from a body of the
// form `name({...});`. The invocation must address the callback we
// registered for this request.
func parseCallbackBody(name, body string) (callbackResult, error) {
	body = strings.TrimSpace(body)

	open := strings.Index(body, "(")
	end := strings.LastIndex(body, ")")
	if open < 0 || end < open {
		return callbackResult{}, fmt.Errorf("no callback invocation in response")
	}

	invoked := strings.TrimSpace(body[:open])
	if invoked != name {
		return callbackResult{}, fmt.Errorf("response invokes %q, expected %q", invoked, name)
	}

	var res callbackResult
	if err := json.Unmarshal([]byte(body[open+1:end]), &res); err != nil {
		return callbackResult{}, fmt.Errorf("invalid callback argument: %w", err)
	}
	return res, nil
}

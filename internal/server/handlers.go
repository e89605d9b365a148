package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/experiment"
	"github.com/nesium/splitship/internal/forms"
	"github.com/nesium/splitship/internal/normalize"
	"github.com/nesium/splitship/internal/stats"
)

const visitorCookieName = "ss_vid"

type HealthResponse struct {
	Status        string `json:"status"`
	Variant       string `json:"variant"`
	EventsCount   int    `json:"events_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:        "ok",
		Variant:       s.exp.ActiveVariant().ID,
		EventsCount:   len(s.exp.Events()),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleAssign returns the active variant for the embedded client
// script and logs the page view. First-time visitors get a visitor
// id cookie so repeat views stay attributable.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vid := s.ensureVisitor(w, r)

	v := s.exp.ActiveVariant()
	s.exp.RecordPageView(eventContext(r, vid))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Baseline string `json:"baseline"`
	}{v.ID, v.DisplayText, s.exp.Config().Baseline})
}

// EventRequest is an incoming beacon event from the client script.
type EventRequest struct {
	EventType string            `json:"e"`
	Extra     map[string]string `json:"extra,omitempty"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	switch req.EventType {
	case experiment.EventPageView, experiment.EventFormSubmission, experiment.EventManualChange:
	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
		return
	}

	s.exp.RecordEvent(eventContext(r, s.ensureVisitor(w, r)), req.EventType, req.Extra)
	w.WriteHeader(http.StatusNoContent)
}

// submitResponse wraps the controller result for the wire.
type submitResponse struct {
	forms.Result
	ConfirmDelayMS int64 `json:"confirmDelayMs"`
}

// handleSubmit is the form interception entry point: it accepts the
// intercepted form post (urlencoded or multipart), reads any file
// upload, and runs the controller pipeline. Responses are always 200
// with a JSON result; blocked submissions are a result, not an error.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sub, result, ok := s.parseSubmission(r)
	if ok {
		sub.VisitorID = s.ensureVisitor(w, r)
		s.ctrl.Bind(sub.FormID)
		result = s.ctrl.Submit(r.Context(), sub)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(submitResponse{
		Result:         result,
		ConfirmDelayMS: result.ConfirmDelay.Milliseconds(),
	})
}

// parseSubmission extracts fields and the optional file upload. A
// file that cannot be read blocks the submission with a user-visible
// message; a record is never sent without its attachment.
func (s *Server) parseSubmission(r *http.Request) (forms.Submission, forms.Result, bool) {
	var sub forms.Submission

	contentType := r.Header.Get("Content-Type")
	if len(contentType) >= 19 && contentType[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			s.log.Warn("failed to parse multipart form", zap.Error(err))
			return sub, blockedResult(r, "Invalid form submission."), false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.log.Warn("failed to parse form", zap.Error(err))
			return sub, blockedResult(r, "Invalid form submission."), false
		}
	}

	sub.FormID = r.FormValue("form_id")
	if sub.FormID == "" {
		sub.FormID = "unknown-form"
	}
	sub.Fields = r.Form
	sub.SourceURL = r.FormValue("source_url")
	if sub.SourceURL == "" {
		sub.SourceURL = r.Referer()
	}
	sub.UserAgent = r.UserAgent()

	if r.MultipartForm != nil {
		file, header, err := r.FormFile("file-upload")
		if err == nil {
			defer file.Close()
			att, readErr := normalize.ReadAttachment(header.Filename, header.Header.Get("Content-Type"), file)
			if readErr != nil {
				s.log.Warn("file upload failed", zap.Error(readErr))
				return sub, blockedResult(r, "Error preparing file for upload. Please try again."), false
			}
			sub.Attachment = &att
		}
	}

	return sub, forms.Result{}, true
}

func blockedResult(r *http.Request, msg string) forms.Result {
	return forms.Result{
		Accepted: false,
		FormType: forms.Classify(r.FormValue("form_id")),
		Message:  msg,
	}
}

func (s *Server) handleResultsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := stats.Snapshot(s.exp.Config().Variants, s.exp.Events())
	winner := stats.Winner(snapshot)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Experiment string                 `json:"experiment"`
		Variants   []stats.VariantMetrics `json:"variants"`
		Winner     string                 `json:"winner,omitempty"`
	}{s.exp.Config().Name, snapshot, winner})
}

func (s *Server) ensureVisitor(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(visitorCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	vid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookieName,
		Value:    vid,
		Path:     "/",
		MaxAge:   int(365 * 24 * time.Hour / time.Second),
		SameSite: http.SameSiteLaxMode,
	})
	return vid
}

func eventContext(r *http.Request, vid string) experiment.EventContext {
	url := r.Referer()
	if url == "" {
		url = r.URL.String()
	}
	return experiment.EventContext{URL: url, UserAgent: r.UserAgent(), VisitorID: vid}
}

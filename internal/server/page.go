package server

import (
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/applier"
)

// handlePage serves the configured marketing page with the active
// variant's headline applied and logs the page view. Without a
// configured page the root path just reports where the script lives.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.cfg.PageFile == "" {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("splitship is running. Embed /ab.js on your page or configure --page.\n"))
		return
	}

	f, err := os.Open(s.cfg.PageFile)
	if err != nil {
		s.log.Error("failed to open page file", zap.String("path", s.cfg.PageFile), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	cfg := s.exp.Config()
	v := s.exp.ActiveVariant()

	page, err := applier.Apply(f, cfg.Baseline, v)
	if err != nil {
		s.log.Error("failed to apply variant to page", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.exp.RecordPageView(eventContext(r, s.ensureVisitor(w, r)))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

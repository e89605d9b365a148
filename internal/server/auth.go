package server

import (
	"net/http"
	"time"
)

const tokenCookieName = "ss_token"

// requireToken gates the dashboard surface. The token printed at
// startup may arrive once as a ?token query parameter; it is exchanged
// for a session cookie and stripped from the URL so it never lingers
// in browser history. ?logout=1 clears the session.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if q.Get("logout") == "1" {
			s.clearSession(w)
			http.Redirect(w, r, r.URL.Path, http.StatusFound)
			return
		}

		if token := q.Get("token"); token != "" {
			if token != s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			s.startSession(w)

			clean := *r.URL
			q.Del("token")
			clean.RawQuery = q.Encode()
			http.Redirect(w, r, clean.String(), http.StatusFound)
			return
		}

		if c, err := r.Cookie(tokenCookieName); err != nil || c.Value != s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) startSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    s.token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(24 * time.Hour / time.Second),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   tokenCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

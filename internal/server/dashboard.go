package server

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/nesium/splitship/internal/stats"
)

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"rate": func(r float64) float64 { return r * 100 },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<title>splitship · {{.Experiment}}</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 720px; margin: 40px auto; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #ddd; }
th { font-size: 12px; text-transform: uppercase; color: #666; }
.winner { background: #eaffda; }
.muted { color: #888; }
</style>
</head>
<body>
<h1>{{.Experiment}}</h1>
<table>
<tr><th>Variant</th><th>Title</th><th>Views</th><th>Submissions</th><th>Rate</th></tr>
{{range .Variants}}
<tr{{if and $.Winner (eq .VariantID $.Winner)}} class="winner"{{end}}>
<td>{{.VariantID}}</td>
<td>{{.Title}}</td>
<td>{{.PageViews}}</td>
<td>{{.FormSubmissions}}</td>
<td>{{printf "%.1f%%" (rate .ConversionRate)}}</td>
</tr>
{{end}}
</table>
{{if .Winner}}<p>Winner: <strong>{{.Winner}}</strong></p>
{{else}}<p class="muted">No winner yet (variants need at least {{.MinViews}} views).</p>{{end}}
<p class="muted"><a href="/dashboard?logout=1">Log out</a></p>
</body>
</html>
`))

type dashboardData struct {
	Experiment string
	Variants   []stats.VariantMetrics
	Winner     string
	MinViews   int
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snapshot := stats.Snapshot(s.exp.Config().Variants, s.exp.Events())
	data := dashboardData{
		Experiment: s.exp.Config().Name,
		Variants:   snapshot,
		Winner:     stats.Winner(snapshot),
		MinViews:   stats.MinViewsForWinner,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.log.Error("failed to render dashboard", zap.Error(err))
	}
}

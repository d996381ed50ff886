package server

import (
	"html/template"
	"net/http"
)

var redocPage = template.Must(template.New("redoc").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>{{.Title}} - ReDoc</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <style>body { margin: 0; padding: 0; }</style>
</head>
<body>
  <redoc spec-url="{{.SpecURL}}"></redoc>
  <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body>
</html>
`))

// redocHandler renders a ReDoc page over the same OpenAPI document the
// swagger UI uses.
func redocHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = redocPage.Execute(w, struct {
			Title   string
			SpecURL string
		}{Title: title, SpecURL: "/docs/doc.json"})
	}
}

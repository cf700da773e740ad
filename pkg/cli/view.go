package cli

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/fairlens/fairlens/pkg/data"
)

func homeViewHandler(tmpl *template.Template, store *data.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListDatasets()
		if err != nil {
			slog.Error("failed to list datasets", "error", err)
		}

		d := map[string]any{
			"version":    version,
			"commit":     commit,
			"build_date": date,
			"err":        r.URL.Query().Get("err"),
			"datasets":   list,
		}
		if err := tmpl.ExecuteTemplate(w, "home", d); err != nil {
			slog.Error("template render failed", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}

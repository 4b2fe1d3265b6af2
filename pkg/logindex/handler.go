package logindex

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// ServeExport builds the handler for GET /logs/export.csv and
// GET /logs/export.json: it runs a Query against storage (scoped to
// service, optionally narrowed by ?config=&limit=&offset=) and streams
// the result through ExportCSV or ExportJSON depending on the request
// path's extension.
func ServeExport(storage Storage, service string, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		q := &Query{
			Service:    service,
			ConfigName: r.URL.Query().Get("config"),
			Limit:      queryInt(r, "limit", 1000),
			Offset:     queryInt(r, "offset", 0),
		}

		records, err := storage.Query(q)
		if err != nil {
			logger.Error("log export query failed", "service", service, "error", err)
			http.Error(w, "failed to query log index", http.StatusInternalServerError)
			return
		}

		switch {
		case strings.HasSuffix(r.URL.Path, ".csv"):
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", `attachment; filename="`+service+`_requests.csv"`)
			if err := ExportCSV(w, records); err != nil {
				logger.Error("csv export failed", "service", service, "error", err)
			}
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Disposition", `attachment; filename="`+service+`_requests.json"`)
			if err := ExportJSON(w, records); err != nil {
				logger.Error("json export failed", "service", service, "error", err)
			}
		}
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

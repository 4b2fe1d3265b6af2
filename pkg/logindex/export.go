package logindex

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// ExportCSV writes records to w in CSV form, one row per record, for the
// out-of-scope web UI's "export logs" affordance.
func ExportCSV(w io.Writer, records []*IndexedRecord) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"id", "service", "timestamp", "client_method", "client_path", "config_name",
		"status_code", "duration_ms", "blocked", "blocked_by",
		"usage_input", "usage_cached_create", "usage_cached_read", "usage_output", "usage_reasoning", "usage_total",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("logindex: export csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.ID, r.Service, r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			r.ClientMethod, r.ClientPath, r.ConfigName,
			strconv.Itoa(r.StatusCode), strconv.FormatInt(r.DurationMS, 10), strconv.FormatBool(r.Blocked), r.BlockedBy,
			strconv.FormatInt(r.UsageInput, 10), strconv.FormatInt(r.UsageCachedCreate, 10),
			strconv.FormatInt(r.UsageCachedRead, 10), strconv.FormatInt(r.UsageOutput, 10),
			strconv.FormatInt(r.UsageReasoning, 10), strconv.FormatInt(r.UsageTotal, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("logindex: export csv row %s: %w", r.ID, err)
		}
	}

	return nil
}

// ExportJSON writes records to w as a JSON array.
func ExportJSON(w io.Writer, records []*IndexedRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("logindex: export json: %w", err)
	}
	return nil
}

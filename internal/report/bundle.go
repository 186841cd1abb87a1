// Package report implements the Report Dispatcher (C13): it always
// persists the evidence bundle first, then renders either a final report
// or an insufficient-evidence report depending on the gate decision, and
// optionally a draft report when the run is configured to fail soft.
package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlevien/research-agent/internal/gate"
	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/model"
)

var logger = logging.GetLogger("report")

const evidenceDirName = "evidence"

// PersistBundle writes the evidence bundle (final cards, sources CSV,
// metrics snapshot) into runDir/evidence/. Dispatch calls it before
// rendering either report, so a run never loses collected work even if
// rendering fails (spec §4.13: "Always persist the evidence bundle first").
func PersistBundle(runDir string, evs []model.Evidence, metrics model.RunMetrics) error {
	dir := filepath.Join(runDir, evidenceDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create evidence dir: %w", err)
	}

	ordered := gate.OrderForWriting(evs)

	if err := writeCardsJSONL(filepath.Join(dir, "final_cards.jsonl"), ordered); err != nil {
		return fmt.Errorf("write final cards: %w", err)
	}
	if err := writeSourcesCSV(filepath.Join(dir, "sources.csv"), ordered); err != nil {
		return fmt.Errorf("write sources csv: %w", err)
	}
	if err := writeMetricsSnapshot(filepath.Join(dir, "metrics_snapshot.json"), metrics); err != nil {
		return fmt.Errorf("write metrics snapshot: %w", err)
	}

	logger.Info("persisted evidence bundle: %d cards to %s", len(ordered), dir)
	return nil
}

func writeCardsJSONL(path string, evs []model.Evidence) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	enc := json.NewEncoder(w)
	for _, ev := range evs {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

func writeSourcesCSV(path string, evs []model.Evidence) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"id", "source_domain", "url", "provider", "credibility_score", "is_primary_source", "is_triangulated"}); err != nil {
		return err
	}
	for _, ev := range evs {
		row := []string{
			ev.ID,
			ev.SourceDomain,
			ev.URL,
			string(ev.Provider),
			fmt.Sprintf("%.3f", ev.CredibilityScore),
			fmt.Sprintf("%t", ev.IsPrimarySource),
			fmt.Sprintf("%t", ev.IsTriangulated),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeMetricsSnapshot(path string, metrics model.RunMetrics) error {
	b, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlevien/research-agent/internal/model"
)

// Kind names which report state Dispatch actually reached, for callers
// that need to branch on the outcome (CLI exit-message, tests).
type Kind string

const (
	KindFinal        Kind = "final"
	KindInsufficient Kind = "insufficient"
)

// Outcome is the result of one Report Dispatcher pass: which report was
// written, whether a draft was additionally emitted, and any rendering
// error that was caught and recorded rather than propagated.
type Outcome struct {
	Kind         Kind
	DraftWritten bool
	RenderErr    error
}

// DispatchInput is everything the Report Dispatcher needs for one run. The
// evidence bundle is always persisted from Evidence/Metrics regardless of
// Decision's outcome.
type DispatchInput struct {
	RunDir            string
	Topic             string
	Intent            model.Intent
	Evidence          []model.Evidence
	Rejected          []model.RejectedEvidence
	Metrics           model.RunMetrics
	Decision          model.GateDecision
	Clusters          []model.Cluster
	StructuredTris    map[string][]model.StructuredClaim
	PreliminaryOnFail bool
}

// Dispatch runs the C13 state machine: persist the evidence bundle first,
// then write either the final report or the insufficient-evidence report
// depending on the gate decision, and additionally write a draft report
// when PreliminaryOnFail is set and the gate failed (spec §4.13).
//
// Rendering errors are caught and recorded in the written file as an error
// note in place of the report body — the evidence bundle is never
// discarded even if report rendering fails.
func Dispatch(in DispatchInput) (Outcome, error) {
	if err := PersistBundle(in.RunDir, in.Evidence, in.Metrics); err != nil {
		return Outcome{}, fmt.Errorf("persist evidence bundle: %w", err)
	}
	if err := writeCoreArtifacts(in.RunDir, in.Evidence, in.Rejected, in.Clusters, in.StructuredTris); err != nil {
		return Outcome{}, fmt.Errorf("write core artifacts: %w", err)
	}

	if in.Decision.AllowFinalReport {
		body, renderErr := safeRenderFinal(in)
		if err := writeReport(in.RunDir, "final_report.md", body); err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: KindFinal, RenderErr: renderErr}, nil
	}

	body, renderErr := safeRenderInsufficient(in)
	if err := writeReport(in.RunDir, "insufficient_evidence_report.md", body); err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Kind: KindInsufficient, RenderErr: renderErr}
	if in.PreliminaryOnFail {
		draft := RenderDraftReport(in.Topic, in.Evidence)
		if err := writeReport(in.RunDir, "draft_degraded.md", draft); err != nil {
			return outcome, err
		}
		outcome.DraftWritten = true
	}
	return outcome, nil
}

func safeRenderFinal(in DispatchInput) (body string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic rendering final report: %v", r)
			body = fmt.Sprintf("# Research Report: %s\n\nReport rendering failed: %v\n", in.Topic, r)
		}
	}()
	body = RenderFinalReport(FinalReportInput{
		Topic:          in.Topic,
		Evidence:       in.Evidence,
		Clusters:       in.Clusters,
		StructuredTris: in.StructuredTris,
		Decision:       in.Decision,
	})
	return body, nil
}

func safeRenderInsufficient(in DispatchInput) (body string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic rendering insufficient-evidence report: %v", r)
			body = fmt.Sprintf("# Insufficient Evidence: %s\n\nReport rendering failed: %v\n", in.Topic, r)
		}
	}()
	body = RenderInsufficientReport(InsufficientReportInput{
		Topic:    in.Topic,
		Intent:   in.Intent,
		Decision: in.Decision,
	})
	return body, nil
}

func writeReport(runDir, filename, body string) error {
	path := filepath.Join(runDir, filename)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	logger.Info("wrote %s", path)
	return nil
}

package domain

import (
	"encoding/json"
	"fmt"
)

// OutputMode selects how agent output is normalized
type OutputMode string

const (
	OutputModeStructured OutputMode = "structured"
	OutputModeNarrative  OutputMode = "narrative"
)

// IsValid checks if the output mode is known
func (m OutputMode) IsValid() bool {
	return m == OutputModeStructured || m == OutputModeNarrative
}

// FailurePolicy decides what analysis does when the agent run fails
type FailurePolicy string

const (
	// FailurePolicyFallback returns a fixed result instead of an error
	FailurePolicyFallback FailurePolicy = "fallback"
	// FailurePolicyError surfaces the run's last error to the caller
	FailurePolicyError FailurePolicy = "error"
)

// IsValid checks if the failure policy is known
func (p FailurePolicy) IsValid() bool {
	return p == FailurePolicyFallback || p == FailurePolicyError
}

// DefaultFailurePolicy returns the policy used when none is configured
func DefaultFailurePolicy(mode OutputMode) FailurePolicy {
	if mode == OutputModeNarrative {
		return FailurePolicyError
	}
	return FailurePolicyFallback
}

// MetricStatus classifies a reading against its reference range
type MetricStatus string

const (
	MetricStatusLow          MetricStatus = "low"
	MetricStatusNormal       MetricStatus = "normal"
	MetricStatusHigh         MetricStatus = "high"
	MetricStatusCriticalLow  MetricStatus = "critical-low"
	MetricStatusCriticalHigh MetricStatus = "critical-high"
	MetricStatusUnknown      MetricStatus = "unknown"
)

// Fixed texts of the structured fallback payload
const (
	Disclaimer       = "Information only; not medical advice."
	RunFailedSummary = "LLM analysis failed to run."
	NoOutputSummary  = "No LLM output available."

	// FallbackSummaryLimit bounds how much raw agent text becomes the fallback summary
	FallbackSummaryLimit = 600
)

// NarrativeSections are the headings a narrative analysis must contain, in order
var NarrativeSections = []string{
	"Summary",
	"Potential Concerns",
	"Key Readings (as reported)",
	"Recommendations (non-diagnostic)",
	"Follow-Up & Monitoring",
	"Limitations",
	"Disclaimer",
}

// Metric is a single lab reading as reported in the document
type Metric struct {
	Name           string       `json:"name"`
	Value          float64      `json:"value"`
	Unit           string       `json:"unit"`
	ReferenceRange *string      `json:"reference_range,omitempty"`
	Status         MetricStatus `json:"status"`
}

// Flag highlights a metric that needs attention
type Flag struct {
	Metric string       `json:"metric"`
	Status MetricStatus `json:"status"`
	Reason string       `json:"reason"`
}

// StructuredAnalysis is the JSON-shaped analysis variant
type StructuredAnalysis struct {
	Summary         string   `json:"summary"`
	Metrics         []Metric `json:"metrics"`
	Flags           []Flag   `json:"flags"`
	Recommendations []string `json:"recommendations"`
	Disclaimer      string   `json:"disclaimer"`
}

// AnalysisResult is a tagged variant: structured JSON or narrative Markdown.
type AnalysisResult struct {
	Mode       OutputMode
	Structured *StructuredAnalysis
	// Raw holds the agent's JSON object exactly as parsed, when there was one
	Raw       json.RawMessage
	Narrative string
	// Degraded is set when the result is a fallback rather than agent output
	Degraded bool
}

// NewFallbackAnalysis builds the fixed structured payload with empty collections
func NewFallbackAnalysis(summary string) *AnalysisResult {
	return &AnalysisResult{
		Mode: OutputModeStructured,
		Structured: &StructuredAnalysis{
			Summary:         summary,
			Metrics:         []Metric{},
			Flags:           []Flag{},
			Recommendations: []string{},
			Disclaimer:      Disclaimer,
		},
		Degraded: true,
	}
}

// NewNarrativeAnalysis wraps agent Markdown unchanged
func NewNarrativeAnalysis(markdown string) *AnalysisResult {
	return &AnalysisResult{Mode: OutputModeNarrative, Narrative: markdown}
}

// MarshalJSON encodes the structured variant as an object and the narrative one as a string
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	switch r.Mode {
	case OutputModeNarrative:
		return json.Marshal(r.Narrative)
	case OutputModeStructured:
		if len(r.Raw) > 0 {
			return r.Raw, nil
		}
		if r.Structured == nil {
			return json.Marshal(NewFallbackAnalysis(NoOutputSummary).Structured)
		}
		return json.Marshal(r.Structured)
	default:
		return nil, fmt.Errorf("unknown output mode %q", r.Mode)
	}
}

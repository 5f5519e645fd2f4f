package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

const (
	// MaxReportChars caps the report text sent to the agent, counted in runes
	MaxReportChars = 120_000

	// TruncationMarker is appended to report text cut at MaxReportChars
	TruncationMarker = "\n...[truncated]..."

	reportTextBegin = "--- LAB REPORT TEXT BEGIN ---"
	reportTextEnd   = "--- LAB REPORT TEXT END ---"
)

const structuredInstructions = `Return JSON ONLY (no prose, no markdown). Schema:
{
  "summary": "2–4 sentences on key findings",
  "metrics": [
    {"name":"Hemoglobin","value":6.5,"unit":"g/dL","reference_range":"14.0-18.0","status":"low"}
  ],
  "flags": [
    {"metric":"Hemoglobin","status":"critical-low","reason":"below lab critical mark"}
  ],
  "recommendations": [
    "Increase iron-rich foods and discuss iron studies with a clinician.",
    "Prioritize sleep, hydration, and 150–300 min/wk moderate activity."
  ],
  "disclaimer": "Information only; not medical advice."
}
Rules:
- status ∈ {"low","normal","high","critical-low","critical-high","unknown"}
- Include reference_range only when present in the text.
- Do NOT invent values. Omit metrics that aren't clearly present.
- Use cautious, non-diagnostic language.`

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// AnalysisConfig holds dependencies for AnalysisService
type AnalysisConfig struct {
	Agent   driven.AgentClient
	Threads *ThreadRegistry
	Mode    domain.OutputMode

	// OnRunFailure defaults to domain.DefaultFailurePolicy(Mode)
	OnRunFailure domain.FailurePolicy
	Logger       *zerolog.Logger
}

// AnalysisService sends extracted report text to the user's agent thread and
// interprets the reply in the configured output mode.
type AnalysisService struct {
	agent   driven.AgentClient
	threads *ThreadRegistry
	mode    domain.OutputMode
	policy  domain.FailurePolicy
	logger  zerolog.Logger
}

// NewAnalysisService creates an AnalysisService
func NewAnalysisService(cfg AnalysisConfig) (*AnalysisService, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = domain.OutputModeStructured
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown analysis mode %q", domain.ErrConfiguration, mode)
	}
	policy := cfg.OnRunFailure
	if policy == "" {
		policy = domain.DefaultFailurePolicy(mode)
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("%w: unknown run failure policy %q", domain.ErrConfiguration, policy)
	}
	if cfg.Agent == nil || cfg.Threads == nil {
		return nil, fmt.Errorf("%w: analysis needs an agent and a thread registry", domain.ErrConfiguration)
	}

	return &AnalysisService{
		agent:   cfg.Agent,
		threads: cfg.Threads,
		mode:    mode,
		policy:  policy,
		logger:  loggerOrNop(cfg.Logger).With().Str("component", "analysis").Str("mode", string(mode)).Logger(),
	}, nil
}

// Mode returns the configured output mode
func (s *AnalysisService) Mode() domain.OutputMode {
	return s.mode
}

// Analyze posts the report to the user's thread, runs the agent and returns
// its interpretation. In structured mode an unparseable reply is not an error.
func (s *AnalysisService) Analyze(ctx context.Context, userID string, doc *domain.ExtractedDocument) (*domain.AnalysisResult, error) {
	threadID, err := s.threads.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	content := ""
	if doc != nil {
		content = doc.Content
	}
	if err := s.agent.CreateMessage(ctx, threadID, domain.MessageRoleUser, BuildAnalysisPrompt(s.mode, content)); err != nil {
		return s.agentFailed(ctx, threadID, fmt.Errorf("post analysis prompt: %w", err))
	}

	run, err := s.agent.CreateAndProcessRun(ctx, threadID, driven.RunOptions{
		AdditionalInstructions: runInstructions(s.mode),
	})
	if err != nil {
		return s.runFailed(threadID, err.Error())
	}
	if !run.Succeeded() {
		return s.runFailed(threadID, run.FailureDetail())
	}

	msgs, err := s.agent.ListMessages(ctx, threadID, domain.SortDescending)
	if err != nil {
		return s.agentFailed(ctx, threadID, fmt.Errorf("list thread messages: %w", err))
	}
	reply, found := latestAssistantText(msgs)
	reply = strings.TrimSpace(reply)

	if s.mode == domain.OutputModeNarrative {
		if !found {
			return s.runFailed(threadID, "agent produced no reply")
		}
		if missing := MissingNarrativeSections(reply); len(missing) > 0 {
			s.logger.Warn().Str("thread_id", threadID).Strs("missing_sections", missing).Msg("narrative analysis is missing sections")
		}
		return domain.NewNarrativeAnalysis(reply), nil
	}

	result := ParseStructuredReply(reply)
	if result.Degraded {
		s.logger.Warn().Str("thread_id", threadID).Bool("reply_found", found).Msg("agent reply is not a JSON object, using fallback")
	}
	return result, nil
}

// agentFailed applies the failure policy to an agent call that failed around
// the run. Cancellation is returned as is.
func (s *AnalysisService) agentFailed(ctx context.Context, threadID string, err error) (*domain.AnalysisResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return s.runFailed(threadID, err.Error())
}

func (s *AnalysisService) runFailed(threadID, detail string) (*domain.AnalysisResult, error) {
	s.logger.Error().Str("thread_id", threadID).Str("policy", string(s.policy)).Str("detail", detail).Msg("analysis run failed")

	if s.policy == domain.FailurePolicyError {
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentRun, detail)
	}
	if s.mode == domain.OutputModeNarrative {
		return narrativeFailure(), nil
	}
	return domain.NewFallbackAnalysis(domain.RunFailedSummary), nil
}

// BuildAnalysisPrompt frames report text for the agent. Text longer than
// MaxReportChars is cut and marked.
func BuildAnalysisPrompt(mode domain.OutputMode, content string) string {
	var b strings.Builder
	if mode == domain.OutputModeNarrative {
		b.WriteString("MODE: ANALYZE_MARKDOWN\n")
		b.WriteString("You are a Health Insights assistant. Analyze this lab report text and respond in Markdown using exactly these level-2 headings, in order:\n")
		for _, section := range domain.NarrativeSections {
			b.WriteString("## " + section + "\n")
		}
		b.WriteString("Quote readings as reported. Do NOT invent values. Use cautious, non-diagnostic language.")
	} else {
		b.WriteString("MODE: ANALYZE_JSON\n")
		b.WriteString("You are a Health Insights assistant. Analyze this lab report text and return JSON ONLY per the schema.\n")
		b.WriteString(structuredInstructions)
	}
	b.WriteString("\n\n" + reportTextBegin + "\n")
	b.WriteString(truncateReport(content))
	b.WriteString("\n" + reportTextEnd)
	return b.String()
}

func truncateReport(content string) string {
	runes := []rune(content)
	if len(runes) <= MaxReportChars {
		return content
	}
	return string(runes[:MaxReportChars]) + TruncationMarker
}

func runInstructions(mode domain.OutputMode) string {
	if mode == domain.OutputModeNarrative {
		return "MODE: ANALYZE_MARKDOWN. Reply in Markdown with the level-2 headings listed in the latest user message, in that order. No JSON."
	}
	return "MODE: ANALYZE_JSON. Reply with a single JSON object matching the schema in the latest user message. No prose."
}

// ParseStructuredReply extracts a JSON object from an agent reply, first from a
// fenced code block, then from the whole trimmed text. Anything else yields
// the degraded fallback carrying the start of the raw reply.
func ParseStructuredReply(reply string) *domain.AnalysisResult {
	raw, ok := extractJSONObject(reply)
	if !ok {
		summary := domain.NoOutputSummary
		if trimmed := strings.TrimSpace(reply); trimmed != "" {
			summary = firstRunes(trimmed, domain.FallbackSummaryLimit)
		}
		return domain.NewFallbackAnalysis(summary)
	}

	result := &domain.AnalysisResult{Mode: domain.OutputModeStructured, Raw: raw}
	var structured domain.StructuredAnalysis
	if err := json.Unmarshal(raw, &structured); err == nil {
		result.Structured = &structured
	}
	return result
}

func extractJSONObject(reply string) (json.RawMessage, bool) {
	if m := jsonFence.FindStringSubmatch(reply); m != nil {
		if raw, ok := decodeObject(m[1]); ok {
			return raw, true
		}
	}
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return decodeObject(trimmed)
	}
	return nil, false
}

func decodeObject(s string) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// latestAssistantText returns the text of the first assistant message with
// non-blank text, scanning msgs in the order given. The text is not trimmed.
func latestAssistantText(msgs []domain.ThreadMessage) (string, bool) {
	for _, msg := range msgs {
		if msg.Role != domain.MessageRoleAssistant {
			continue
		}
		if strings.TrimSpace(msg.Text) != "" {
			return msg.Text, true
		}
	}
	return "", false
}

// MissingNarrativeSections lists the required headings absent from markdown.
// Headings match case-insensitively at any level.
func MissingNarrativeSections(markdown string) []string {
	src := []byte(markdown)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	present := make(map[string]bool)
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			present[normalizeHeading(inlineText(h, src))] = true
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	var missing []string
	for _, section := range domain.NarrativeSections {
		if !present[normalizeHeading(section)] {
			missing = append(missing, section)
		}
	}
	return missing
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}

func normalizeHeading(h string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(h), ":"))
}

func narrativeFailure() *domain.AnalysisResult {
	var b strings.Builder
	for i, section := range domain.NarrativeSections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## " + section + "\n")
		switch section {
		case "Summary":
			b.WriteString(domain.RunFailedSummary)
		case "Disclaimer":
			b.WriteString(domain.Disclaimer)
		default:
			b.WriteString("Not available.")
		}
	}
	result := domain.NewNarrativeAnalysis(b.String())
	result.Degraded = true
	return result
}

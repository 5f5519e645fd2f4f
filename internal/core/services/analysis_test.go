package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven/mocks"
)

func newTestAnalysis(t *testing.T, mode domain.OutputMode, policy domain.FailurePolicy, reply string) (*mocks.MockAgentClient, *AnalysisService) {
	t.Helper()
	agent := mocks.NewMockAgentClient(reply)
	svc, err := NewAnalysisService(AnalysisConfig{
		Agent:        agent,
		Threads:      NewThreadRegistry(agent, mocks.NewMockThreadStore(), nil),
		Mode:         mode,
		OnRunFailure: policy,
	})
	require.NoError(t, err)
	return agent, svc
}

func TestAnalysisService_StructuredFencedJSON(t *testing.T) {
	object := `{"summary":"Mild anemia.","metrics":[{"name":"Hemoglobin","value":11.2,"unit":"g/dL","reference_range":"13.5-17.5","status":"low"}],"flags":[],"recommendations":["Discuss iron studies."],"disclaimer":"Information only; not medical advice."}`
	reply := "Here you go:\n```json\n" + object + "\n```\nThanks."
	agent, svc := newTestAnalysis(t, domain.OutputModeStructured, "", reply)

	result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "Hemoglobin 11.2"})
	require.NoError(t, err)

	assert.False(t, result.Degraded)
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, object, string(data))

	require.NotNil(t, result.Structured)
	require.Len(t, result.Structured.Metrics, 1)
	assert.Equal(t, domain.MetricStatusLow, result.Structured.Metrics[0].Status)

	runs := agent.Runs()
	require.Len(t, runs, 1)
	assert.True(t, strings.HasPrefix(runs[0].AdditionalInstructions, "MODE: ANALYZE_JSON"))
}

func TestAnalysisService_StructuredNoJSON(t *testing.T) {
	_, svc := newTestAnalysis(t, domain.OutputModeStructured, "", "no json here")

	result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, "no json here", result.Structured.Summary)
	assert.Empty(t, result.Structured.Metrics)
	assert.Empty(t, result.Structured.Flags)
	assert.Empty(t, result.Structured.Recommendations)
	assert.Equal(t, domain.Disclaimer, result.Structured.Disclaimer)
}

func TestAnalysisService_StructuredNoReply(t *testing.T) {
	_, svc := newTestAnalysis(t, domain.OutputModeStructured, "", "")

	result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.NoOutputSummary, result.Structured.Summary)
}

func TestAnalysisService_RunFailed(t *testing.T) {
	t.Run("structured fallback", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeStructured, domain.FailurePolicyFallback, "")
		agent.RunStatus = domain.RunStatusFailed
		agent.RunLastError = "boom"

		result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.Equal(t, domain.RunFailedSummary, result.Structured.Summary)
	})

	t.Run("transport error falls back too", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeStructured, domain.FailurePolicyFallback, "")
		agent.RunErr = errors.New("connection reset")

		result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
		require.NoError(t, err)
		assert.Equal(t, domain.RunFailedSummary, result.Structured.Summary)
	})

	t.Run("error policy", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeStructured, domain.FailurePolicyError, "")
		agent.RunStatus = domain.RunStatusFailed
		agent.RunLastError = "boom"

		_, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
		assert.ErrorIs(t, err, domain.ErrAgentRun)
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("narrative default is error", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeNarrative, "", "")
		agent.RunStatus = domain.RunStatusExpired

		_, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
		assert.ErrorIs(t, err, domain.ErrAgentRun)
	})

	t.Run("narrative fallback", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeNarrative, domain.FailurePolicyFallback, "")
		agent.RunStatus = domain.RunStatusFailed

		result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.Contains(t, result.Narrative, domain.RunFailedSummary)
		assert.Empty(t, MissingNarrativeSections(result.Narrative))
	})
}

func TestAnalysisService_Narrative(t *testing.T) {
	markdown := "## Summary\nAll readings as reported.\n\n## Disclaimer\nInformation only."
	agent, svc := newTestAnalysis(t, domain.OutputModeNarrative, "", markdown)

	result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutputModeNarrative, result.Mode)
	assert.Equal(t, markdown, result.Narrative)

	runs := agent.Runs()
	require.Len(t, runs, 1)
	assert.True(t, strings.HasPrefix(runs[0].AdditionalInstructions, "MODE: ANALYZE_MARKDOWN"))
}

func TestAnalysisService_PostsPromptOnUserThread(t *testing.T) {
	agent, svc := newTestAnalysis(t, domain.OutputModeStructured, "", "{}")

	_, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "Glucose 92 mg/dL"})
	require.NoError(t, err)

	msgs := agent.Messages("thread-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageRoleUser, msgs[0].Role)
	assert.Contains(t, msgs[0].Text, "--- LAB REPORT TEXT BEGIN ---\nGlucose 92 mg/dL\n--- LAB REPORT TEXT END ---")
	assert.Equal(t, domain.MessageRoleAssistant, msgs[1].Role)
}

func TestAnalysisService_PromptPostFails(t *testing.T) {
	t.Run("structured fallback", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeStructured, domain.FailurePolicyFallback, "{}")
		agent.CreateMessageErr = errors.New("thread locked")

		result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.Equal(t, domain.RunFailedSummary, result.Structured.Summary)
		assert.Empty(t, agent.Runs())
	})

	t.Run("error policy", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeStructured, domain.FailurePolicyError, "{}")
		agent.CreateMessageErr = errors.New("thread locked")

		_, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
		assert.ErrorIs(t, err, domain.ErrAgentRun)
		assert.ErrorContains(t, err, "thread locked")
		assert.Empty(t, agent.Runs())
	})

	t.Run("cancelled context is returned", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeStructured, domain.FailurePolicyFallback, "{}")
		ctx, cancel := context.WithCancel(context.Background())
		_, err := svc.threads.GetOrCreate(ctx, "user-1")
		require.NoError(t, err)
		agent.CreateMessageErr = errors.New("request aborted")
		cancel()

		_, err = svc.Analyze(ctx, "user-1", &domain.ExtractedDocument{Content: "x"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAnalysisService_ListFails(t *testing.T) {
	t.Run("structured fallback", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeStructured, domain.FailurePolicyFallback, "{}")
		agent.ListErr = errors.New("forbidden")

		result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.Equal(t, domain.RunFailedSummary, result.Structured.Summary)
	})

	t.Run("narrative default is error", func(t *testing.T) {
		agent, svc := newTestAnalysis(t, domain.OutputModeNarrative, "", "## Summary\nok")
		agent.ListErr = errors.New("forbidden")

		_, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
		assert.ErrorIs(t, err, domain.ErrAgentRun)
		assert.ErrorContains(t, err, "forbidden")
	})
}

func TestAnalysisService_TrimsReplyBeforeParsing(t *testing.T) {
	_, svc := newTestAnalysis(t, domain.OutputModeNarrative, "", "\n  ## Summary\nAll good.  \n")

	result, err := svc.Analyze(context.Background(), "user-1", &domain.ExtractedDocument{Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, "## Summary\nAll good.", result.Narrative)
}

func TestNewAnalysisService_Validation(t *testing.T) {
	agent := mocks.NewMockAgentClient("")
	threads := NewThreadRegistry(agent, mocks.NewMockThreadStore(), nil)

	_, err := NewAnalysisService(AnalysisConfig{Agent: agent, Threads: threads, Mode: "html"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewAnalysisService(AnalysisConfig{Agent: agent, Threads: threads, OnRunFailure: "retry"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewAnalysisService(AnalysisConfig{Threads: threads})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	svc, err := NewAnalysisService(AnalysisConfig{Agent: agent, Threads: threads})
	require.NoError(t, err)
	assert.Equal(t, domain.OutputModeStructured, svc.Mode())
}

func TestBuildAnalysisPrompt_Truncation(t *testing.T) {
	content := strings.Repeat("a", 130_000)

	prompt := BuildAnalysisPrompt(domain.OutputModeStructured, content)

	begin := strings.Index(prompt, "--- LAB REPORT TEXT BEGIN ---\n") + len("--- LAB REPORT TEXT BEGIN ---\n")
	end := strings.Index(prompt, "\n--- LAB REPORT TEXT END ---")
	body := prompt[begin:end]

	assert.Equal(t, strings.Repeat("a", 120_000)+"\n...[truncated]...", body)
}

func TestBuildAnalysisPrompt_CountsRunes(t *testing.T) {
	content := strings.Repeat("é", 120_000)

	prompt := BuildAnalysisPrompt(domain.OutputModeStructured, content)
	assert.NotContains(t, prompt, "[truncated]")
}

func TestBuildAnalysisPrompt_Modes(t *testing.T) {
	structured := BuildAnalysisPrompt(domain.OutputModeStructured, "x")
	assert.True(t, strings.HasPrefix(structured, "MODE: ANALYZE_JSON\n"))
	assert.Contains(t, structured, "return JSON ONLY per the schema")

	narrative := BuildAnalysisPrompt(domain.OutputModeNarrative, "x")
	assert.True(t, strings.HasPrefix(narrative, "MODE: ANALYZE_MARKDOWN\n"))
	for _, section := range domain.NarrativeSections {
		assert.Contains(t, narrative, "## "+section)
	}
}

func TestParseStructuredReply(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantRaw  string
		degraded bool
		summary  string
	}{
		{"fenced json", "```json\n{\"summary\":\"a\"}\n```", `{"summary":"a"}`, false, ""},
		{"fenced plain", "text ``` {\"summary\":\"b\"} ``` more", `{"summary":"b"}`, false, ""},
		{"bare object", "  {\"summary\":\"c\"}  ", `{"summary":"c"}`, false, ""},
		{"array is not an object", "[1,2]", "", true, "[1,2]"},
		{"broken json", "{\"summary\":", "", true, "{\"summary\":"},
		{"empty", "   ", "", true, domain.NoOutputSummary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseStructuredReply(tt.reply)
			assert.Equal(t, tt.degraded, result.Degraded)
			if tt.degraded {
				assert.Equal(t, tt.summary, result.Structured.Summary)
				return
			}
			assert.Equal(t, tt.wantRaw, string(result.Raw))
		})
	}
}

func TestParseStructuredReply_SummaryLimit(t *testing.T) {
	reply := strings.Repeat("x", 1000)

	result := ParseStructuredReply(reply)
	assert.Equal(t, strings.Repeat("x", 600), result.Structured.Summary)
}

func TestMissingNarrativeSections(t *testing.T) {
	var b strings.Builder
	for _, section := range domain.NarrativeSections {
		b.WriteString("## " + section + "\ncontent\n\n")
	}
	assert.Empty(t, MissingNarrativeSections(b.String()))

	partial := "# **Summary**\nok\n\n### limitations:\nnone\n\nDisclaimer\n"
	missing := MissingNarrativeSections(partial)
	assert.NotContains(t, missing, "Summary")
	assert.NotContains(t, missing, "Limitations")
	assert.Contains(t, missing, "Disclaimer", "plain paragraphs are not headings")
	assert.Contains(t, missing, "Follow-Up & Monitoring")
}

package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven/mocks"
)

// MockAgent is a testify mock of driven.AgentClient
type MockAgent struct {
	mock.Mock
}

func (m *MockAgent) CreateThread(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockAgent) CreateMessage(ctx context.Context, threadID string, role domain.MessageRole, content string) error {
	args := m.Called(ctx, threadID, role, content)
	return args.Error(0)
}

func (m *MockAgent) CreateAndProcessRun(ctx context.Context, threadID string, opts driven.RunOptions) (*domain.Run, error) {
	args := m.Called(ctx, threadID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockAgent) ListMessages(ctx context.Context, threadID string, order domain.SortOrder) ([]domain.ThreadMessage, error) {
	args := m.Called(ctx, threadID, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ThreadMessage), args.Error(1)
}

type reportFixture struct {
	signer    *mocks.MockBlobSigner
	extractor *mocks.MockDocumentExtractor
	svc       *reportService
}

func newReportFixture(t *testing.T, agent driven.AgentClient) *reportFixture {
	t.Helper()
	signer := mocks.NewMockBlobSigner(testAccountURL, "reports")
	extractor := mocks.NewMockDocumentExtractor(&domain.ExtractedDocument{Content: "Hemoglobin 14.1 g/dL"})

	analysis, err := NewAnalysisService(AnalysisConfig{
		Agent:   agent,
		Threads: NewThreadRegistry(agent, mocks.NewMockThreadStore(), nil),
	})
	require.NoError(t, err)

	svc := NewReportService(ReportServiceConfig{
		Issuer:     NewCredentialIssuer(CredentialIssuerConfig{Signer: signer}),
		Extraction: NewExtractionService(extractor, nil),
		Analysis:   analysis,
		NewID:      func() string { return "report-1" },
	}).(*reportService)

	return &reportFixture{signer: signer, extractor: extractor, svc: svc}
}

func TestReportService_UploadURL(t *testing.T) {
	f := newReportFixture(t, mocks.NewMockAgentClient("{}"))

	resp, err := f.svc.UploadURL(context.Background(), domain.UploadURLRequest{
		Filename:    "cbc.pdf",
		ContentType: domain.MIMETypePDF,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.BlobURL, testAccountURL+"/reports/uploads/"))
	assert.True(t, strings.HasPrefix(resp.SASURL, resp.BlobURL+"?"))
	assert.False(t, resp.ExpiresAt.IsZero())
}

func TestReportService_UploadURL_Validation(t *testing.T) {
	f := newReportFixture(t, mocks.NewMockAgentClient("{}"))

	_, err := f.svc.UploadURL(context.Background(), domain.UploadURLRequest{Filename: "a.zip", ContentType: "application/zip"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)

	_, err = f.svc.UploadURL(context.Background(), domain.UploadURLRequest{Filename: " ", ContentType: domain.MIMETypePDF})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Empty(t, f.signer.Requests(), "no grant may be minted for rejected requests")
}

func TestReportService_Analyze(t *testing.T) {
	f := newReportFixture(t, mocks.NewMockAgentClient(`{"summary":"Normal CBC."}`))
	blobURL := testAccountURL + "/reports/uploads/20250314/092653_cbc.pdf"

	resp, err := f.svc.Analyze(context.Background(), "user-1", domain.AnalyzeRequest{
		BlobURL:  blobURL,
		FileName: "cbc.pdf",
		MimeType: domain.MIMETypePDF,
	})
	require.NoError(t, err)

	assert.Equal(t, "report-1", resp.ReportID)
	assert.Equal(t, blobURL, resp.BlobURL)
	assert.Equal(t, "Hemoglobin 14.1 g/dL", resp.Extracted.Content)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"analysis":{"summary":"Normal CBC."}`)

	urls := f.extractor.URLs()
	require.Len(t, urls, 1)
	assert.True(t, strings.HasPrefix(urls[0], blobURL+"?"), "extractor reads through a fresh grant")
	assert.Contains(t, urls[0], "sp=r")
}

func TestReportService_Analyze_RejectsBeforeRemoteCalls(t *testing.T) {
	agent := new(MockAgent)
	f := newReportFixture(t, agent)

	_, err := f.svc.Analyze(context.Background(), "user-1", domain.AnalyzeRequest{
		BlobURL:  testAccountURL + "/reports/a.zip",
		MimeType: "application/zip",
	})
	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)

	agent.AssertNotCalled(t, "CreateThread", mock.Anything)
	agent.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.signer.Requests())
	assert.Empty(t, f.extractor.URLs())
}

func TestReportService_Analyze_InvalidBlobURL(t *testing.T) {
	agent := new(MockAgent)
	f := newReportFixture(t, agent)

	for _, raw := range []string{"", "https://acct.blob.core.windows.net/only-container"} {
		_, err := f.svc.Analyze(context.Background(), "user-1", domain.AnalyzeRequest{BlobURL: raw})
		assert.ErrorIs(t, err, domain.ErrInvalidURL)
	}
	agent.AssertNotCalled(t, "CreateThread", mock.Anything)
	assert.Empty(t, f.extractor.URLs())
}

func TestReportService_Analyze_ExtractionFailure(t *testing.T) {
	agent := new(MockAgent)
	f := newReportFixture(t, agent)
	f.extractor.Err = assert.AnError

	_, err := f.svc.Analyze(context.Background(), "user-1", domain.AnalyzeRequest{
		BlobURL: testAccountURL + "/reports/a.pdf",
	})
	assert.ErrorIs(t, err, domain.ErrExtraction)
	agent.AssertNotCalled(t, "CreateThread", mock.Anything)
}

func TestReportService_Analyze_RunFailedError(t *testing.T) {
	agent := new(MockAgent)
	agent.On("CreateThread", mock.Anything).Return("thread-9", nil).Once()
	agent.On("CreateMessage", mock.Anything, "thread-9", domain.MessageRoleUser, mock.AnythingOfType("string")).Return(nil)
	agent.On("CreateAndProcessRun", mock.Anything, "thread-9", mock.Anything).
		Return(&domain.Run{ID: "run-1", Status: domain.RunStatusFailed, LastError: "rate limited"}, nil)

	f := newReportFixture(t, agent)

	resp, err := f.svc.Analyze(context.Background(), "user-1", domain.AnalyzeRequest{
		BlobURL: testAccountURL + "/reports/a.pdf",
	})
	require.NoError(t, err)
	assert.True(t, resp.Analysis.Degraded)
	assert.Equal(t, domain.RunFailedSummary, resp.Analysis.Structured.Summary)

	agent.AssertExpectations(t)
	agent.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything)
}

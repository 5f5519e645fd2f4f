package domain

import "time"

// UploadURLRequest asks for a browser upload grant
type UploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// UploadURLResponse is returned to the browser before a direct upload
type UploadURLResponse struct {
	SASURL    string    `json:"sasUrl"`
	BlobURL   string    `json:"blobUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AnalyzeRequest asks for extraction and analysis of an uploaded blob
type AnalyzeRequest struct {
	BlobURL  string `json:"blobUrl"`
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// AnalyzeResponse carries everything produced for one report
type AnalyzeResponse struct {
	ReportID  string             `json:"reportId"`
	BlobURL   string             `json:"blobUrl"`
	Extracted *ExtractedDocument `json:"extracted"`
	Analysis  *AnalysisResult    `json:"analysis"`
}

// ChatRequest is a free-form user turn
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatReply is the agent's verbatim answer on the user's thread
type ChatReply struct {
	ThreadID string `json:"thread_id"`
	Reply    string `json:"agent_reply"`
}

// MessageItem is a thread message as shown to clients
type MessageItem struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// MessagesResponse lists a user's thread history, oldest first
type MessagesResponse struct {
	Messages []MessageItem `json:"messages"`
}

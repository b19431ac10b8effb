package entities

import "time"

// StoredFile is an uploaded blob
type StoredFile struct {
	ID          string    `json:"id" db:"id"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	UploadedBy  string    `json:"uploaded_by" db:"uploaded_by"`
	Content     []byte    `json:"-" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// LLMRequest is the InvokeLLM integration input
type LLMRequest struct {
	Prompt                 string         `json:"prompt"`
	ResponseJSONSchema     map[string]any `json:"response_json_schema,omitempty"`
	AddContextFromInternet bool           `json:"add_context_from_internet,omitempty"`
	FileURLs               []string       `json:"file_urls,omitempty"`
}

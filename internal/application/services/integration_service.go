package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// DefaultMaxUploadBytes is used when no upload limit is configured
const DefaultMaxUploadBytes = 10 << 20

const structuredSystemPrompt = `You are the assistant of a consumer healthcare platform.
Answer with a single JSON object only, no markdown and no commentary.
The object must conform to this JSON schema:
%s`

const textSystemPrompt = `You are the assistant of a consumer healthcare platform. Be accurate and concise.
You do not replace a medical professional; say so when giving medical guidance.`

// UploadResult is returned by UploadFile
type UploadResult struct {
	FileURL string `json:"file_url"`
}

// IntegrationService implements InvokeLLM and UploadFile
type IntegrationService struct {
	llm            providers.LLMProvider
	files          repositories.FileRepository
	publicBaseURL  string
	maxUploadBytes int64
}

// NewIntegrationService creates a new integration service. llm may be nil when
// no model is configured.
func NewIntegrationService(llm providers.LLMProvider, files repositories.FileRepository, publicBaseURL string, maxUploadBytes int64) *IntegrationService {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &IntegrationService{
		llm:            llm,
		files:          files,
		publicBaseURL:  strings.TrimRight(publicBaseURL, "/"),
		maxUploadBytes: maxUploadBytes,
	}
}

// MaxUploadBytes returns the largest accepted upload
func (s *IntegrationService) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// InvokeLLM sends the prompt to the model. With a response schema the reply is
// parsed as JSON and its required top-level keys are checked; otherwise the
// text comes back as {"response": text}.
func (s *IntegrationService) InvokeLLM(ctx context.Context, req entities.LLMRequest) (map[string]any, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperrors.NewValidationError("prompt is required")
	}
	if s.llm == nil {
		return nil, apperrors.NewExternalError("llm integration not configured", nil)
	}

	if len(req.FileURLs) > 0 {
		prompt += "\n\nAttached files:\n- " + strings.Join(req.FileURLs, "\n- ")
	}

	completion := providers.CompletionRequest{
		SystemPrompt: textSystemPrompt,
		UserPrompt:   prompt,
		WebSearch:    req.AddContextFromInternet,
	}
	if len(req.ResponseJSONSchema) > 0 {
		schema, err := json.MarshalIndent(req.ResponseJSONSchema, "", "  ")
		if err != nil {
			return nil, apperrors.NewValidationError("response_json_schema is not valid JSON")
		}
		completion.SystemPrompt = fmt.Sprintf(structuredSystemPrompt, schema)
		completion.JSON = true
	}

	text, err := s.llm.Complete(ctx, completion)
	if errors.Is(err, providers.ErrLLMUnavailable) {
		return nil, apperrors.NewExternalError("llm temporarily unavailable", err)
	}
	if err != nil {
		return nil, apperrors.NewExternalError("llm request failed", err)
	}

	if !completion.JSON {
		return map[string]any{"response": strings.TrimSpace(text)}, nil
	}

	result, err := parseJSONObject(text)
	if err != nil {
		log.Warn().Err(err).Int("length", len(text)).Msg("llm returned unparseable JSON")
		return nil, apperrors.NewExternalError("llm returned invalid JSON", err)
	}
	if missing := missingRequired(req.ResponseJSONSchema, result); len(missing) > 0 {
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("llm response is missing required fields: %s", strings.Join(missing, ", ")), nil)
	}
	return result, nil
}

// parseJSONObject decodes a model reply, tolerating markdown fences and
// surrounding prose
func parseJSONObject(text string) (map[string]any, error) {
	text = stripCodeFences(text)

	var result map[string]any
	err := json.Unmarshal([]byte(text), &result)
	if err == nil {
		return result, nil
	}

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, err
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.Index(text, "\n"); nl >= 0 {
		// drop the language tag line
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func missingRequired(schema, result map[string]any) []string {
	var required []string
	switch r := schema["required"].(type) {
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	case []string:
		required = r
	}

	var missing []string
	for _, key := range required {
		if _, ok := result[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// UploadFile stores the bytes and returns the URL they are served from
func (s *IntegrationService) UploadFile(ctx context.Context, p *entities.Principal, filename string, content []byte) (*UploadResult, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, apperrors.NewValidationError("file is empty")
	}
	if int64(len(content)) > s.maxUploadBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("file exceeds the %d byte limit", s.maxUploadBytes))
	}

	contentType, err := sniffContentType(content)
	if err != nil {
		return nil, err
	}

	file := &entities.StoredFile{
		Filename:    filepath.Base(filename),
		ContentType: contentType,
		UploadedBy:  strings.ToLower(p.Email),
		Content:     content,
	}
	if err := s.files.Save(ctx, file); err != nil {
		return nil, err
	}

	log.Info().Str("file_id", file.ID).Str("content_type", contentType).Int64("size", file.Size).Msg("file uploaded")
	return &UploadResult{FileURL: fmt.Sprintf("%s/files/%s", s.publicBaseURL, file.ID)}, nil
}

func sniffContentType(content []byte) (string, error) {
	detected := http.DetectContentType(content)
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		mediaType = detected
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"), mediaType == "application/pdf":
		return mediaType, nil
	case mediaType == "text/plain":
		return detected, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("file type %s is not allowed", mediaType))
}

// GetFile returns a stored file
func (s *IntegrationService) GetFile(ctx context.Context, id string) (*entities.StoredFile, error) {
	return s.files.Get(ctx, id)
}

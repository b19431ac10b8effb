package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

const (
	maxMatchedDoctors  = 5
	insightRecordLimit = 20
)

var symptomSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"possible_conditions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"probability": map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
				},
			},
		},
		"urgency_level":           map[string]any{"type": "string", "enum": []string{"low", "medium", "high", "emergency"}},
		"recommended_specialties": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"advice":                  map[string]any{"type": "string"},
	},
	"required": []string{"possible_conditions", "urgency_level", "recommended_specialties", "advice"},
}

var insightSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"summary":         map[string]any{"type": "string"},
		"risk_factors":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"recommendations": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"health_score":    map[string]any{"type": "number"},
	},
	"required": []string{"summary", "risk_factors", "recommendations", "health_score"},
}

// SymptomCheckRequest is the input to HealthAIService.Analyze
type SymptomCheckRequest struct {
	Symptoms []string `json:"symptoms"`
	Age      int      `json:"age"`
	Gender   string   `json:"gender"`
	Duration string   `json:"duration"`
}

// SymptomCheckResult is a stored symptom session plus doctors who can help
type SymptomCheckResult struct {
	Session *entities.SymptomSession `json:"session"`
	Doctors []*entities.Doctor       `json:"doctors"`
}

type symptomAnalysis struct {
	PossibleConditions     []entities.PossibleCondition `json:"possible_conditions"`
	UrgencyLevel           entities.UrgencyLevel        `json:"urgency_level"`
	RecommendedSpecialties []string                     `json:"recommended_specialties"`
	Advice                 string                       `json:"advice"`
}

type insightAnalysis struct {
	Summary         string   `json:"summary"`
	RiskFactors     []string `json:"risk_factors"`
	Recommendations []string `json:"recommendations"`
	HealthScore     float64  `json:"health_score"`
}

// HealthAIService runs the AI symptom checker and health insight generation
type HealthAIService struct {
	entities      *EntityService
	integrations  *IntegrationService
	notifications *NotificationService
}

// NewHealthAIService creates a new health AI service
func NewHealthAIService(entitySvc *EntityService, integrations *IntegrationService, notifications *NotificationService) *HealthAIService {
	return &HealthAIService{entities: entitySvc, integrations: integrations, notifications: notifications}
}

// decodeResult converts an InvokeLLM object into a typed view
func decodeResult(result map[string]any, v any) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return apperrors.NewExternalError("llm returned an unexpected response", err)
	}
	return nil
}

// Analyze asks the model about the caller's symptoms, stores the session and
// suggests verified doctors in the recommended specialties
func (s *HealthAIService) Analyze(ctx context.Context, p *entities.Principal, req SymptomCheckRequest) (*SymptomCheckResult, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	symptoms := make([]string, 0, len(req.Symptoms))
	for _, sym := range req.Symptoms {
		if sym = strings.TrimSpace(sym); sym != "" {
			symptoms = append(symptoms, sym)
		}
	}
	if len(symptoms) == 0 {
		return nil, apperrors.NewValidationError("describe at least one symptom")
	}
	if req.Age < 0 || req.Age > 130 {
		return nil, apperrors.NewValidationError("age is out of range")
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "A patient reports the following symptoms: %s.\n", strings.Join(symptoms, ", "))
	if req.Age > 0 {
		fmt.Fprintf(&prompt, "Age: %d.\n", req.Age)
	}
	if req.Gender != "" {
		fmt.Fprintf(&prompt, "Gender: %s.\n", req.Gender)
	}
	if req.Duration != "" {
		fmt.Fprintf(&prompt, "Duration: %s.\n", req.Duration)
	}
	prompt.WriteString("List possible conditions with a probability of high, medium or low, " +
		"an urgency level, the medical specialties the patient should see, and short advice. " +
		"This is not a diagnosis.")

	result, err := s.integrations.InvokeLLM(ctx, entities.LLMRequest{
		Prompt:             prompt.String(),
		ResponseJSONSchema: symptomSchema,
	})
	if err != nil {
		return nil, err
	}
	analysis := &symptomAnalysis{}
	if err := decodeResult(result, analysis); err != nil {
		return nil, err
	}
	if !analysis.UrgencyLevel.Valid() {
		analysis.UrgencyLevel = entities.UrgencyMedium
	}

	doctors, err := s.matchDoctors(ctx, analysis.RecommendedSpecialties)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to match doctors")
	}
	matchedIDs := make([]string, 0, len(doctors))
	for _, d := range doctors {
		matchedIDs = append(matchedIDs, d.ID)
	}

	session := &entities.SymptomSession{
		UserEmail:              strings.ToLower(p.Email),
		Symptoms:               symptoms,
		Age:                    req.Age,
		Gender:                 req.Gender,
		Duration:               req.Duration,
		PossibleConditions:     analysis.PossibleConditions,
		UrgencyLevel:           analysis.UrgencyLevel,
		RecommendedSpecialties: analysis.RecommendedSpecialties,
		Advice:                 analysis.Advice,
		EmergencyAdvised:       analysis.UrgencyLevel == entities.UrgencyEmergency,
		MatchedDoctorIDs:       matchedIDs,
	}
	data, err := entities.ToData(session)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode symptom session", err)
	}
	rec, err := s.entities.CreateAs(ctx, SystemActor, entities.EntitySymptomSession, data)
	if err != nil {
		return nil, err
	}
	if err := rec.Decode(session); err != nil {
		return nil, apperrors.NewInternalError("failed to decode symptom session", err)
	}

	return &SymptomCheckResult{Session: session, Doctors: doctors}, nil
}

func (s *HealthAIService) matchDoctors(ctx context.Context, specialties []string) ([]*entities.Doctor, error) {
	doctors := make([]*entities.Doctor, 0, maxMatchedDoctors)
	if len(specialties) == 0 {
		return doctors, nil
	}
	records, err := s.entities.List(ctx, entities.EntityDoctor, repositories.EntityQuery{
		Match: map[string]any{"verification_status": string(entities.VerificationVerified)},
		Sort:  "-rating",
		Limit: repositories.MaxEntityLimit,
	})
	if err != nil {
		return doctors, err
	}

	for _, rec := range records {
		d := &entities.Doctor{}
		if err := rec.Decode(d); err != nil {
			continue
		}
		for _, specialty := range specialties {
			if strings.EqualFold(strings.TrimSpace(specialty), d.Specialization) {
				doctors = append(doctors, d)
				break
			}
		}
		if len(doctors) == maxMatchedDoctors {
			break
		}
	}
	return doctors, nil
}

// GenerateInsights summarises the caller's latest health records
func (s *HealthAIService) GenerateInsights(ctx context.Context, p *entities.Principal) (*entities.HealthInsight, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	records, err := s.entities.Filter(ctx, p, entities.EntityHealthRecord, repositories.EntityQuery{
		Match: map[string]any{"created_by": strings.ToLower(p.Email)},
		Sort:  "-created_date",
		Limit: insightRecordLimit,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NewValidationError("add some health records before generating insights")
	}

	summaries := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, rec.Data)
	}
	payload, err := json.Marshal(summaries)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode health records", err)
	}

	result, err := s.integrations.InvokeLLM(ctx, entities.LLMRequest{
		Prompt: "Review these health records and give a short summary, risk factors, " +
			"practical recommendations and an overall health score from 0 to 100.\n\nRecords:\n" + string(payload),
		ResponseJSONSchema: insightSchema,
	})
	if err != nil {
		return nil, err
	}
	analysis := &insightAnalysis{}
	if err := decodeResult(result, analysis); err != nil {
		return nil, err
	}

	score := analysis.HealthScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	insight := &entities.HealthInsight{
		UserEmail:       strings.ToLower(p.Email),
		Summary:         analysis.Summary,
		RiskFactors:     nonNil(analysis.RiskFactors),
		Recommendations: nonNil(analysis.Recommendations),
		HealthScore:     score,
		RecordCount:     len(records),
	}
	data, err := entities.ToData(insight)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode health insight", err)
	}
	rec, err := s.entities.CreateAs(ctx, SystemActor, entities.EntityHealthInsight, data)
	if err != nil {
		return nil, err
	}
	if err := rec.Decode(insight); err != nil {
		return nil, apperrors.NewInternalError("failed to decode health insight", err)
	}

	s.notifications.notifyQuietly(ctx, insight.UserEmail, "Your health insights are ready",
		fmt.Sprintf("Health score: %.0f/100.", insight.HealthScore),
		entities.NotificationInsight, "/health-insights")
	return insight, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

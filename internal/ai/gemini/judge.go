package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/ai"
	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/profile"
	"github.com/spigell/hh-matcher/internal/textutil"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

//go:embed judge_prompt.md
var judgePromptTemplate string

const (
	defaultMaxLogLength     = 200
	maxUserInstructionRunes = 500
	// maxProfileRunes bounds the document text placed in a prompt.
	maxProfileRunes = 6000
	// maxJudgeScore is the top of the 0-100 scale the prompt asks for.
	maxJudgeScore = 100.0

	judgeSystemInstruction = "You evaluate candidate fit for job postings and reply only with JSON."
)

// PromptOverrides are operator preferences rendered into the judge prompt.
type PromptOverrides struct {
	Criteria         string
	MustHave         string
	UserInstructions string
}

// Judge asks a Gemini model to score a job/candidate pair.
type Judge struct {
	generator contentGenerator
	overrides PromptOverrides
	logger    *zap.Logger
	maxLogLen int
}

func NewJudge(generator contentGenerator, maxLogLength int, log *zap.Logger) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Judge{
		generator: generator,
		logger:    logger.WithCommonFields(log, providerName, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (j *Judge) SetPromptOverrides(overrides PromptOverrides) {
	j.overrides = overrides
}

func (j *Judge) Evaluate(ctx context.Context, job, candidate *profile.Profile) (*ai.Assessment, error) {
	if job == nil {
		return nil, errors.New("job profile is required")
	}
	if candidate == nil {
		return nil, errors.New("candidate profile is required")
	}

	jobJSON, err := profilePayload(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	candidateJSON, err := profilePayload(candidate)
	if err != nil {
		return nil, fmt.Errorf("marshal candidate payload: %w", err)
	}

	prompt := buildJudgePrompt(jobJSON, candidateJSON, j.overrides)

	j.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, j.maxLogLen)),
	)

	raw, err := j.generator.GenerateContent(ctx, judgeSystemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	j.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, j.maxLogLen)),
	)

	assessment, err := parseAssessment(raw)
	if err != nil {
		return nil, err
	}
	assessment.Raw = raw
	return assessment, nil
}

func profilePayload(p *profile.Profile) (string, error) {
	text := p.RawText
	if strings.TrimSpace(text) == "" {
		text = p.Text
	}
	payload := map[string]any{
		"kind":   p.Kind,
		"skills": p.Skills.Slice(),
		"text":   textutil.Truncate(text, maxProfileRunes),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func buildJudgePrompt(jobJSON, candidateJSON string, overrides PromptOverrides) string {
	template := judgePromptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job:\n{{JOB_JSON}}\n\nCandidate:\n{{CANDIDATE_JSON}}\n\nJSON Response:"
	}
	replacer := strings.NewReplacer(
		"{{CRITERIA}}", sanitizeLine(overrides.Criteria),
		"{{MUST_HAVE}}", sanitizeLine(overrides.MustHave),
		"{{USER_INSTRUCTIONS}}", sanitizeInstructions(overrides.UserInstructions),
		"{{JOB_JSON}}", jobJSON,
		"{{CANDIDATE_JSON}}", candidateJSON,
	)
	return replacer.Replace(template)
}

var bracketReplacer = strings.NewReplacer("[", "(", "]", ")")

// sanitizeLine flattens a free-form override into one line that cannot open
// a new prompt section.
func sanitizeLine(value string) string {
	value = strings.Join(strings.Fields(bracketReplacer.Replace(value)), " ")
	if value == "" {
		return "none"
	}
	return value
}

func sanitizeInstructions(value string) string {
	budget := maxUserInstructionRunes
	var lines []string
	for _, line := range strings.Split(value, "\n") {
		line = strings.Join(strings.Fields(bracketReplacer.Replace(line)), " ")
		if line == "" || budget <= 0 {
			continue
		}
		line = textutil.Truncate(line, budget)
		budget -= utf8.RuneCountInString(line)
		lines = append(lines, "  - "+line)
	}
	if len(lines) == 0 {
		return "  - none"
	}
	return strings.Join(lines, "\n")
}

func parseAssessment(raw string) (*ai.Assessment, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, errors.New("gemini response has no usable score")
	}

	feedback := coerceString(data["feedback"])
	if feedback == "" {
		feedback = coerceString(data["reason"])
	}

	return &ai.Assessment{
		Score:    ai.NormalizeScore(score / maxJudgeScore),
		Feedback: feedback,
	}, nil
}

func decodeObject(raw string) (map[string]any, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	return data, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Models occasionally wrap the object in prose.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

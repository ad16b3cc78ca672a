package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/hh-matcher/internal/ai"
	"github.com/spigell/hh-matcher/internal/logger"
	"github.com/spigell/hh-matcher/internal/profile"
	"github.com/spigell/hh-matcher/internal/textutil"
)

//go:embed parser_prompt.md
var parserPromptTemplate string

const parserSystemInstruction = "You extract structured entities from documents and reply only with JSON."

// Parser extracts skills and other entities from documents with a Gemini model.
type Parser struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewParser(generator contentGenerator, maxLogLength int, log *zap.Logger) *Parser {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Parser{
		generator: generator,
		logger:    logger.WithCommonFields(log, providerName, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (p *Parser) Parse(ctx context.Context, text string, kind profile.Kind) (*ai.Entities, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text to parse is empty")
	}

	prompt := strings.NewReplacer(
		"{{KIND}}", string(kind),
		"{{TEXT}}", textutil.Truncate(text, maxProfileRunes),
	).Replace(parserPromptTemplate)

	p.logger.Debug("gemini parse request",
		zap.String("kind", string(kind)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
	)

	raw, err := p.generator.GenerateContent(ctx, parserSystemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("gemini parse response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, p.maxLogLen)),
	)

	return parseEntities(raw)
}

func parseEntities(raw string) (*ai.Entities, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	var entities ai.Entities
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           &entities,
	})
	if err != nil {
		return nil, fmt.Errorf("create entities decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}

	entities.Skills = cleanEntries(entities.Skills, true)
	entities.Keywords = cleanEntries(entities.Keywords, true)
	entities.Experience = cleanEntries(entities.Experience, false)
	entities.Education = cleanEntries(entities.Education, false)
	return &entities, nil
}

// cleanEntries trims and dedupes entries. With split set, comma-joined
// answers such as "Go, Docker" are broken apart first.
func cleanEntries(values []string, split bool) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		parts := []string{value}
		if split {
			parts = strings.Split(value, ",")
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			key := strings.ToLower(part)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, part)
		}
	}
	return result
}

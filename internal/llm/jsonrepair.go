package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/daybreak-hq/daybreak/internal/schema"
)

const repairSystemPrompt = `You are a strict JSON formatter. You receive text that was supposed to be a JSON object but is not valid or does not match the required schema. Output ONLY the corrected JSON object, with no markdown fences, no commentary and no additional text.`

// ExtractAndValidate coerces a free-text LLM reply into a value conforming
// to the schema. Stages, stopping at the first success:
//
//  1. parse the raw text directly
//  2. strip markdown code fences and parse
//  3. extract the first balanced {...} substring and parse
//  4. ask the provider to reformat its own output at temperature 0,
//     then run stages 1-3 once more on that output
//
// Exhausting every stage is a hard error; callers must not fall back to a
// default value, since accepting invalid structure risks corrupting
// planner state.
func ExtractAndValidate(ctx context.Context, raw string, s *schema.Schema, repairer Provider) (map[string]interface{}, error) {
	if v, ok := tryStages(raw, s); ok {
		return v, nil
	}
	if repairer == nil {
		return nil, fmt.Errorf("%w: no repair provider available", ErrInvalidStructure)
	}
	schemaJSON, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	prompt := fmt.Sprintf("REQUIRED SCHEMA:\n%s\n\nORIGINAL OUTPUT:\n%s", schemaJSON, raw)
	repaired, err := repairer.Complete(ctx, repairSystemPrompt, prompt, Options{Temperature: 0, MaxTokens: 4096, JSONMode: true})
	if err != nil {
		return nil, fmt.Errorf("repair call failed: %w", err)
	}
	if v, ok := tryStages(repaired, s); ok {
		return v, nil
	}
	return nil, ErrInvalidStructure
}

func tryStages(raw string, s *schema.Schema) (map[string]interface{}, bool) {
	for _, candidate := range []string{raw, stripFences(raw), ExtractBalancedJSON(raw)} {
		if candidate == "" {
			continue
		}
		var v map[string]interface{}
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			continue
		}
		if err := s.Validate(v); err != nil {
			continue
		}
		return v, true
	}
	return nil, false
}

// stripFences removes markdown code-fence markers around a reply.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	// drop a language tag like "json" on the opening fence
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		first := strings.TrimSpace(trimmed[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}") {
			trimmed = trimmed[idx+1:]
		}
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// ExtractBalancedJSON scans for the first '{' and returns the minimal
// balanced object substring, tracking nesting depth while respecting
// quoted strings and escape characters. Returns "" when no balanced object
// exists.
func ExtractBalancedJSON(raw string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return raw[start : i+1]
				}
			}
		}
	}
	return ""
}

// Package codec decodes provider completions and image references.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

var (
	fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	fenceMarkerPattern = regexp.MustCompile("```(?:json)?\\n?")
)

// ErrNoJSONObject is returned when a completion contains no decodable object.
var ErrNoJSONObject = errors.New("no JSON object in completion")

// Extract decodes the JSON object embedded in a model completion. Models
// often wrap their answer in a markdown fence or surround it with prose, so
// the fenced block is tried first, then the body with fence markers removed,
// then the first balanced {...} block.
func Extract[T any](completion string) (T, error) {
	var out T

	candidates := make([]string, 0, 3)
	if m := fencedBlockPattern.FindStringSubmatch(completion); m != nil {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, strings.TrimSpace(fenceMarkerPattern.ReplaceAllString(completion, "")))
	if block, ok := firstObject(completion); ok {
		candidates = append(candidates, block)
	}

	var lastErr error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(c), &v); err != nil {
			lastErr = err
			continue
		}
		return v, nil
	}

	if lastErr != nil {
		return out, fmt.Errorf("%w: %v", ErrNoJSONObject, lastErr)
	}
	return out, ErrNoJSONObject
}

// firstObject returns the first brace-balanced object in s, skipping braces
// that appear inside JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// analysisPayload mirrors domain.AnalysisResult with presence tracking so a
// completion that omits isSafe is rejected instead of silently read as unsafe.
type analysisPayload struct {
	IsSafe         *bool    `json:"isSafe"`
	Concerns       []string `json:"concerns"`
	Severity       string   `json:"severity"`
	DetailedReason string   `json:"detailedReason"`
}

// ParseAnalysis decodes a moderation completion into an AnalysisResult.
// Unknown severities on unsafe results are read as medium.
func ParseAnalysis(p domain.Provider, completion string) (domain.AnalysisResult, error) {
	payload, err := Extract[analysisPayload](completion)
	if err != nil {
		return domain.AnalysisResult{}, domain.ErrInvalidResponse(p, "completion is not a JSON analysis").WithCause(err)
	}
	if payload.IsSafe == nil {
		return domain.AnalysisResult{}, domain.ErrInvalidResponse(p, "analysis is missing isSafe")
	}

	result := domain.AnalysisResult{
		IsSafe:         *payload.IsSafe,
		Concerns:       payload.Concerns,
		Severity:       domain.Severity(strings.ToLower(strings.TrimSpace(payload.Severity))),
		DetailedReason: payload.DetailedReason,
	}
	if result.Concerns == nil {
		result.Concerns = []string{}
	}
	switch result.Severity {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh:
	default:
		if result.IsSafe {
			result.Severity = domain.SeverityLow
		} else {
			result.Severity = domain.SeverityMedium
		}
	}
	return result, nil
}

package verify

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"
)

const defaultFeedback = "No feedback provided"

// Verdict is the judge's structured answer.
type Verdict struct {
	IsValid  bool    `json:"is_valid"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// ParseVerdict extracts a Verdict from the judge's raw text.
//
// The whole trimmed text is tried as a JSON object first. Failing that, the
// first balanced {...} region that decodes as an object is used. Missing or
// null keys take their defaults (invalid, 0.0, "No feedback provided"). The
// score is returned as given, without clamping, but NaN and infinite scores
// are rejected.
func ParseVerdict(raw string) (Verdict, error) {
	text := strings.TrimSpace(raw)

	obj, err := decodeObject(text)
	if err != nil {
		var ok bool
		obj, ok = firstObject(text)
		if !ok {
			return Verdict{}, &UnparsableVerdictError{Raw: raw}
		}
	}

	v, err := fromObject(obj)
	if err != nil {
		return Verdict{}, &UnparsableVerdictError{Raw: raw, Err: err}
	}
	return v, nil
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("not an object")
	}
	return obj, nil
}

// firstObject scans for balanced brace regions left to right and returns the
// first one that decodes as a JSON object. Braces inside string literals are
// ignored.
func firstObject(s string) (map[string]any, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > start {
			if obj, err := decodeObject(s[start : end+1]); err == nil {
				return obj, true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchBrace returns the index of the '}' closing the '{' at open, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(s); i++ {
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
				return i
			}
		}
	}
	return -1
}

func fromObject(obj map[string]any) (Verdict, error) {
	v := Verdict{Feedback: defaultFeedback}

	if raw, ok := obj["is_valid"]; ok && raw != nil {
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return Verdict{}, fmt.Errorf("is_valid: %w", err)
		}
		v.IsValid = b
	}
	if raw, ok := obj["score"]; ok && raw != nil {
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return Verdict{}, fmt.Errorf("score: %w", err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Verdict{}, fmt.Errorf("score: not a finite number: %v", raw)
		}
		v.Score = f
	}
	if raw, ok := obj["feedback"]; ok && raw != nil {
		s, err := cast.ToStringE(raw)
		if err != nil {
			return Verdict{}, fmt.Errorf("feedback: %w", err)
		}
		v.Feedback = s
	}
	return v, nil
}

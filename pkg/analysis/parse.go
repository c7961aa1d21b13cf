package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/kaptinlin/jsonrepair"
)

// Field queries tolerate capitalized keys, which some models emit.
var (
	questionsQuery = mustParse(".questions // .Questions")
	answersQuery   = mustParse(".answers // .Answers")
)

func mustParse(expr string) *gojq.Query {
	q, err := gojq.Parse(expr)
	if err != nil {
		panic(fmt.Sprintf("analysis: invalid jq expression %q: %v", expr, err))
	}
	return q
}

// ParseResult parses an analysis reply. Surrounding code fences are
// removed and malformed JSON is repaired before decoding. The reply must
// be a JSON object; each array is then read independently, and a missing
// or mistyped array is empty. Non-string elements become "" so answers
// stay aligned with their questions.
func ParseResult(reply string) (Result, error) {
	var v any
	if err := unmarshalJSON([]byte(stripFences(reply)), &v); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if _, ok := v.(map[string]any); !ok {
		return Result{}, fmt.Errorf("%w: want object, got %T", ErrMalformedResponse, v)
	}
	return Result{
		Questions: stringsAt(questionsQuery, v),
		Answers:   stringsAt(answersQuery, v),
	}, nil
}

// unmarshalJSON unmarshals data into v, repairing it first when the
// initial attempt fails with a syntax error.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

func stringsAt(q *gojq.Query, input any) []string {
	iter := q.Run(input)
	v, ok := iter.Next()
	if !ok {
		return nil
	}
	if _, ok := v.(error); ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		if s, ok := e.(string); ok {
			out[i] = s
		}
	}
	return out
}

// stripFences removes a surrounding markdown code fence such as ```json.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

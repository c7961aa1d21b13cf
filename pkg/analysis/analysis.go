// Package analysis turns transcripts into translations and question/answer
// pairs with a remote language model.
//
// Both stages are single chat completions through an [llm.Client]. Blank
// input never reaches the network. Analysis replies are parsed leniently
// by [ParseResult]: code fences are stripped, broken JSON is repaired and
// each array is extracted on its own, so one bad field does not discard
// the other.
package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/haivivi/loopscribe/pkg/llm"
)

const (
	// DefaultLanguage is the translation target.
	DefaultLanguage = "Russian"

	// DefaultTranslatePrompt is the translation system prompt. {language}
	// is replaced by the target language.
	DefaultTranslatePrompt = "Translate the following text to {language}."

	// DefaultAnalyzePrompt is the analysis system prompt. {language} is
	// replaced by the answer language.
	DefaultAnalyzePrompt = "You are developer on interview. Analyze the text. " +
		"Extract questions asked by the speaker. " +
		"For each question, provide a short answer 3-5 sentences in English " +
		"and then the same answer in {language}. " +
		`Return the result in JSON format: { "questions": ["q1", "q2"], "answers": ["a1", "a2"] } ` +
		"where a1 corresponds to q1."
)

// ErrMalformedResponse is returned when an analysis reply is not a JSON
// object.
var ErrMalformedResponse = errors.New("analysis: malformed response")

// Result is the raw analysis of one context window.
type Result struct {
	Questions []string `json:"questions"`
	Answers   []string `json:"answers"`
}

// Pair is one extracted question with its answer.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`

	// Seq is the chunk whose analysis produced the pair.
	Seq int64 `json:"seq"`
}

// Pairs zips questions with answers by index. A missing answer is empty
// and answers without a question are dropped, as are blank questions.
func (r Result) Pairs(seq int64) []Pair {
	var out []Pair
	for i, q := range r.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		var a string
		if i < len(r.Answers) {
			a = strings.TrimSpace(r.Answers[i])
		}
		out = append(out, Pair{Question: q, Answer: a, Seq: seq})
	}
	return out
}

// Translator translates text into a target language.
type Translator struct {
	Client llm.Client

	// Model overrides the client default when non-empty.
	Model string

	// Language defaults to DefaultLanguage.
	Language string

	// Prompt defaults to DefaultTranslatePrompt.
	Prompt string
}

// SystemPrompt returns the prompt with the target language filled in.
func (t *Translator) SystemPrompt() string {
	p, lang := t.Prompt, t.Language
	if p == "" {
		p = DefaultTranslatePrompt
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	return strings.ReplaceAll(p, "{language}", lang)
}

// Translate returns the translation of text. Blank text returns "" without
// a remote call.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	out, err := t.Client.Complete(ctx, &llm.Request{
		Model:    t.Model,
		Messages: []llm.Message{llm.System(t.SystemPrompt()), llm.User(text)},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Analyzer extracts questions and answers from text.
type Analyzer struct {
	Client llm.Client

	// Model overrides the client default when non-empty.
	Model string

	// Language is the second answer language. Defaults to DefaultLanguage.
	Language string

	// Prompt defaults to DefaultAnalyzePrompt.
	Prompt string
}

// SystemPrompt returns the prompt with the answer language filled in.
func (a *Analyzer) SystemPrompt() string {
	p, lang := a.Prompt, a.Language
	if p == "" {
		p = DefaultAnalyzePrompt
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	return strings.ReplaceAll(p, "{language}", lang)
}

// Analyze asks the model for questions and answers found in text. Blank
// text returns an empty result without a remote call. A reply that cannot
// be parsed yields an empty result and an error wrapping
// ErrMalformedResponse.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, nil
	}
	out, err := a.Client.Complete(ctx, &llm.Request{
		Model:    a.Model,
		Messages: []llm.Message{llm.System(a.SystemPrompt()), llm.User(text)},
		JSON:     true,
	})
	if err != nil {
		return Result{}, err
	}
	return ParseResult(out)
}

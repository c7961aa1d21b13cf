package analysis

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/haivivi/loopscribe/pkg/llm"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		questions []string
		answers   []string
	}{
		{
			name:      "plain",
			reply:     `{"questions":["What is Rust ownership?"],"answers":["Each value has one owner."]}`,
			questions: []string{"What is Rust ownership?"},
			answers:   []string{"Each value has one owner."},
		},
		{
			name:      "code fence",
			reply:     "```json\n{\"questions\":[\"q1\"],\"answers\":[\"a1\"]}\n```",
			questions: []string{"q1"},
			answers:   []string{"a1"},
		},
		{
			name:      "truncated",
			reply:     `{"questions":["q1","q2"],"answers":["a1"`,
			questions: []string{"q1", "q2"},
			answers:   []string{"a1"},
		},
		{
			name:      "trailing comma",
			reply:     `{"questions":["q1",],"answers":["a1",],}`,
			questions: []string{"q1"},
			answers:   []string{"a1"},
		},
		{
			name:      "missing answers",
			reply:     `{"questions":["q1"]}`,
			questions: []string{"q1"},
		},
		{
			name:    "mistyped questions",
			reply:   `{"questions":"q1","answers":["a1"]}`,
			answers: []string{"a1"},
		},
		{
			name:      "non-string element keeps alignment",
			reply:     `{"questions":[42,"q2"],"answers":["a1","a2"]}`,
			questions: []string{"", "q2"},
			answers:   []string{"a1", "a2"},
		},
		{
			name:      "capitalized keys",
			reply:     `{"Questions":["q1"],"Answers":["a1"]}`,
			questions: []string{"q1"},
			answers:   []string{"a1"},
		},
		{
			name:  "empty object",
			reply: `{}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult(tt.reply)
			if err != nil {
				t.Fatalf("ParseResult: %v", err)
			}
			if !slices.Equal(got.Questions, tt.questions) {
				t.Errorf("Questions = %q, want %q", got.Questions, tt.questions)
			}
			if !slices.Equal(got.Answers, tt.answers) {
				t.Errorf("Answers = %q, want %q", got.Answers, tt.answers)
			}
		})
	}
}

func TestParseResult_Malformed(t *testing.T) {
	for _, reply := range []string{
		`["q1","q2"]`,
		`"just a string"`,
		`42`,
		``,
	} {
		got, err := ParseResult(reply)
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("ParseResult(%q) error = %v, want ErrMalformedResponse", reply, err)
		}
		if len(got.Questions) != 0 || len(got.Answers) != 0 {
			t.Errorf("ParseResult(%q) = %+v, want empty", reply, got)
		}
	}
}

func TestResult_Pairs(t *testing.T) {
	r := Result{
		Questions: []string{" q1 ", "", "q3"},
		Answers:   []string{"a1", "a2"},
	}
	got := r.Pairs(7)
	want := []Pair{
		{Question: "q1", Answer: "a1", Seq: 7},
		{Question: "q3", Answer: "", Seq: 7},
	}
	if !slices.Equal(got, want) {
		t.Errorf("Pairs = %+v, want %+v", got, want)
	}
}

// recorder is a fake llm.Client that records requests.
type recorder struct {
	reply string
	err   error
	reqs  []*llm.Request
}

func (r *recorder) Complete(_ context.Context, req *llm.Request) (string, error) {
	r.reqs = append(r.reqs, req)
	return r.reply, r.err
}

func TestTranslator(t *testing.T) {
	rec := &recorder{reply: " Привет \n"}
	tr := &Translator{Client: rec}

	got, err := tr.Translate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Привет" {
		t.Errorf("Translate = %q", got)
	}
	if len(rec.reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(rec.reqs))
	}
	req := rec.reqs[0]
	if req.JSON {
		t.Error("translation must not request JSON")
	}
	if req.Messages[0].Content != "Translate the following text to Russian." {
		t.Errorf("system prompt = %q", req.Messages[0].Content)
	}
	if req.Messages[1] != llm.User("Hello") {
		t.Errorf("user message = %+v", req.Messages[1])
	}

	tr.Language = "German"
	if got := tr.SystemPrompt(); got != "Translate the following text to German." {
		t.Errorf("SystemPrompt = %q", got)
	}
}

func TestBlankInputSkipsRemote(t *testing.T) {
	rec := &recorder{err: errors.New("must not be called")}
	ctx := context.Background()

	if got, err := (&Translator{Client: rec}).Translate(ctx, "  \n\t"); err != nil || got != "" {
		t.Errorf("Translate(blank) = %q, %v", got, err)
	}
	if got, err := (&Analyzer{Client: rec}).Analyze(ctx, ""); err != nil || len(got.Questions) != 0 {
		t.Errorf("Analyze(blank) = %+v, %v", got, err)
	}
	if len(rec.reqs) != 0 {
		t.Errorf("requests = %d, want 0", len(rec.reqs))
	}
}

func TestAnalyzer(t *testing.T) {
	rec := &recorder{reply: `{"questions":["What is a goroutine?"],"answers":["A lightweight thread."]}`}
	a := &Analyzer{Client: rec, Model: "m"}

	got, err := a.Analyze(context.Background(), "So, what is a goroutine?")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !slices.Equal(got.Questions, []string{"What is a goroutine?"}) {
		t.Errorf("Questions = %q", got.Questions)
	}
	req := rec.reqs[0]
	if !req.JSON || req.Model != "m" {
		t.Errorf("request = %+v, want JSON with model m", req)
	}
	want := "For each question, provide a short answer 3-5 sentences in English and then the same answer in Russian."
	if p := req.Messages[0].Content; !strings.Contains(p, want) || strings.Contains(p, "{language}") {
		t.Errorf("system prompt = %q", p)
	}
}

func TestAnalyzer_SystemPrompt(t *testing.T) {
	tests := []struct {
		a    Analyzer
		want string
	}{
		{Analyzer{Language: "German"}, "the same answer in German."},
		{Analyzer{}, "the same answer in Russian."},
		{Analyzer{Prompt: "Answer in {language}.", Language: "French"}, "Answer in French."},
		{Analyzer{Prompt: "List questions."}, "List questions."},
	}
	for _, tt := range tests {
		if got := tt.a.SystemPrompt(); !strings.Contains(got, tt.want) {
			t.Errorf("SystemPrompt() = %q, want it to contain %q", got, tt.want)
		}
	}
}

func TestAnalyzer_Errors(t *testing.T) {
	ctx := context.Background()

	remote := &recorder{err: llm.ErrRemoteCall}
	if _, err := (&Analyzer{Client: remote}).Analyze(ctx, "text"); !errors.Is(err, llm.ErrRemoteCall) {
		t.Errorf("remote failure error = %v, want ErrRemoteCall", err)
	}

	bad := &recorder{reply: `["not","an","object"]`}
	got, err := (&Analyzer{Client: bad}).Analyze(ctx, "text")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("malformed error = %v, want ErrMalformedResponse", err)
	}
	if len(got.Questions) != 0 {
		t.Errorf("malformed result = %+v, want empty", got)
	}
}

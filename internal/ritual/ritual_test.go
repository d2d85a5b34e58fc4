package ritual

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/necromancer/internal/observe"
	"github.com/MrWong99/necromancer/pkg/provider/llm"
	"github.com/MrWong99/necromancer/pkg/provider/llm/mock"
)

func newTestPerformer(t *testing.T, p llm.Provider) *Performer {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return New(p, WithMetrics(m), WithProviderName("mock"))
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeResurrect, false},
		{"autopsy", ModeAutopsy, false},
		{"FULL_RITUAL", ModeFullRitual, false},
		{"seance", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = (%q, %v), want (%q, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestPrompt(t *testing.T) {
	t.Parallel()
	tests := []struct {
		mode     Mode
		src      string
		contains []string
	}{
		{ModeAutopsy, "", []string{"Source Language: Unknown Corpse", "CAUSE OF DEATH", "DO NOT translate"}},
		{ModeResurrect, "", []string{"Source Language: Auto-detect", "Target Language: Go", "faithfully to Go"}},
		{ModeResurrect, "COBOL", []string{"Source Language: COBOL"}},
		{ModeCurseRemoval, "", []string{"Source Language: Unknown", "PURIFIED"}},
		{ModeSoulBinding, "COBOL", []string{"Language: Go", "unit test suite"}},
	}
	for _, tt := range tests {
		got, err := Prompt(tt.mode, tt.src, "Go", "10 GOTO 10")
		if err != nil {
			t.Fatalf("Prompt(%s): %v", tt.mode, err)
		}
		if !strings.Contains(got, "```\n10 GOTO 10\n```") {
			t.Errorf("Prompt(%s) does not embed the fenced code", tt.mode)
		}
		for _, want := range tt.contains {
			if !strings.Contains(got, want) {
				t.Errorf("Prompt(%s) missing %q", tt.mode, want)
			}
		}
	}

	var me *ModeError
	if _, err := Prompt(ModeFullRitual, "", "Go", "x"); !errors.As(err, &me) {
		t.Errorf("Prompt(FULL_RITUAL) error = %v, want *ModeError", err)
	}
}

func TestClean(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"```go\nfunc main() {}\n```", "func main() {}"},
		{"```Python\nprint(1)\n```", "print(1)"},
		{"```\nraw\n```", "raw"},
		{"  plain text \n", "plain text"},
		{"inner ``` stays", "inner ``` stays"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPerform(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Replies: []string{"```rust\nfn main() {}\n```"}}
	perf := newTestPerformer(t, p)

	got, err := perf.Perform(context.Background(), Request{SourceLang: "BASIC", TargetLang: "Rust", Code: "10 END", Mode: ModeResurrect})
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if got != "fn main() {}" {
		t.Errorf("Perform = %q, want %q", got, "fn main() {}")
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if req.Temperature != 0.4 || req.TopP != 0.95 || req.TopK != 64 {
		t.Errorf("sampling = %v/%v/%v, want 0.4/0.95/64", req.Temperature, req.TopP, req.TopK)
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "10 END") {
		t.Errorf("messages = %+v, want one prompt embedding the code", req.Messages)
	}
}

func TestPerformer_SetSettings(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Replies: []string{"a", "b"}}
	perf := newTestPerformer(t, p)

	want := Settings{Temperature: 0.9, TopP: 0.5, TopK: 10}
	perf.SetSettings(want)
	if got := perf.Settings(); got != want {
		t.Errorf("Settings() = %+v, want %+v", got, want)
	}
	if _, err := perf.Perform(context.Background(), Request{TargetLang: "Go", Code: "x"}); err != nil {
		t.Fatalf("Perform: %v", err)
	}
	req := p.Calls()[0].Req
	if req.Temperature != 0.9 || req.TopP != 0.5 || req.TopK != 10 {
		t.Errorf("sampling = %v/%v/%v, want 0.9/0.5/10", req.Temperature, req.TopP, req.TopK)
	}
}

func TestPerform_DefaultsToResurrect(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Replies: []string{"ok"}}
	if _, err := newTestPerformer(t, p).Perform(context.Background(), Request{TargetLang: "Go", Code: "x"}); err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if !strings.Contains(p.Calls()[0].Req.Messages[0].Content, "programming necromancer") {
		t.Error("empty mode did not use the resurrect prompt")
	}
}

func TestPerform_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		p    *mock.Provider
	}{
		{"provider error", &mock.Provider{CompleteErr: errors.New("quota exceeded")}},
		{"empty reply", &mock.Provider{Replies: []string{"```\n\n```"}}},
		{"nil response", &mock.Provider{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestPerformer(t, tt.p).Perform(context.Background(), Request{TargetLang: "Go", Code: "x", Mode: ModeAutopsy})
			if !errors.Is(err, ErrRitualFailed) {
				t.Errorf("err = %v, want ErrRitualFailed", err)
			}
		})
	}
}

func TestFullRitual_ChainsStages(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Replies: []string{"report", "resurrected", "purified", "bound"}}
	var stages []Mode

	a, err := newTestPerformer(t, p).FullRitual(context.Background(),
		Request{SourceLang: "COBOL", TargetLang: "Go", Code: "STOP RUN."},
		func(m Mode) { stages = append(stages, m) })
	if err != nil {
		t.Fatalf("FullRitual: %v", err)
	}

	want := Artifacts{Autopsy: "report", Resurrected: "resurrected", Purified: "purified", Bound: "bound"}
	if a != want {
		t.Errorf("artifacts = %+v, want %+v", a, want)
	}
	wantStages := []Mode{ModeAutopsy, ModeResurrect, ModeCurseRemoval, ModeSoulBinding}
	if len(stages) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", stages, wantStages)
	}
	for i := range stages {
		if stages[i] != wantStages[i] {
			t.Errorf("stage %d = %s, want %s", i, stages[i], wantStages[i])
		}
	}

	calls := p.Calls()
	prompts := make([]string, len(calls))
	for i, c := range calls {
		prompts[i] = c.Req.Messages[0].Content
	}
	if !strings.Contains(prompts[1], "STOP RUN.") || !strings.Contains(prompts[1], "Source Language: COBOL") {
		t.Error("resurrect stage did not receive the source code")
	}
	if !strings.Contains(prompts[2], "```\nresurrected\n```") || !strings.Contains(prompts[2], "Source Language: Go") {
		t.Error("curse removal stage did not receive the resurrected code")
	}
	if !strings.Contains(prompts[3], "```\npurified\n```") {
		t.Error("soul binding stage did not receive the purified code")
	}
}

func TestFullRitual_AbortsOnFailure(t *testing.T) {
	t.Parallel()
	calls := 0
	p := &mock.Provider{CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("the veil is closed")
		}
		return &llm.CompletionResponse{Content: "ok"}, nil
	}}

	a, err := newTestPerformer(t, p).FullRitual(context.Background(), Request{TargetLang: "Go", Code: "x"}, nil)
	if !errors.Is(err, ErrRitualFailed) {
		t.Fatalf("err = %v, want ErrRitualFailed", err)
	}
	if calls != 2 {
		t.Errorf("provider called %d times, want 2", calls)
	}
	if a.Autopsy != "ok" || a.Resurrected != "" {
		t.Errorf("artifacts = %+v, want only the autopsy", a)
	}
}

func TestFullRitual_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &mock.Provider{}
	if _, err := newTestPerformer(t, p).FullRitual(ctx, Request{TargetLang: "Go", Code: "x"}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if n := len(p.Calls()); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestArtifacts_Combined(t *testing.T) {
	t.Parallel()
	a := Artifacts{Autopsy: "dead", Bound: "alive"}
	got := a.Combined()
	if !strings.HasPrefix(got, "dead\n\n") || !strings.HasSuffix(got, "\n\nalive") {
		t.Errorf("Combined() = %q", got)
	}
	if got := (Artifacts{Bound: "alive"}).Combined(); got != "alive" {
		t.Errorf("Combined() without autopsy = %q, want %q", got, "alive")
	}
	if a.Result() != "alive" {
		t.Errorf("Result() = %q, want alive", a.Result())
	}
}

func TestBundle(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	a := Artifacts{Autopsy: "report", Resurrected: "r", Purified: "p", Bound: "b"}
	if err := Bundle(&buf, Request{TargetLang: "Python"}, a); err != nil {
		t.Fatalf("Bundle: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	want := map[string]string{
		"necromancer_ritual_output/1_autopsy_report.md": "report",
		"necromancer_ritual_output/2_resurrected.py":    "r",
		"necromancer_ritual_output/3_purified.py":       "p",
		"necromancer_ritual_output/4_bound_soul.py":     "b",
		"necromancer_ritual_output/README.txt":          bundleReadme,
	}
	if len(zr.File) != len(want) {
		t.Fatalf("zip has %d files, want %d", len(zr.File), len(want))
	}
	for _, f := range zr.File {
		body, ok := want[f.Name]
		if !ok {
			t.Errorf("unexpected file %q", f.Name)
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if string(got) != body {
			t.Errorf("%s = %q, want %q", f.Name, got, body)
		}
	}
}

func TestBundle_SkipsEmptyArtifacts(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := Bundle(&buf, Request{TargetLang: "Go"}, Artifacts{Bound: "b"}); err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Errorf("zip has %d files, want 2", len(zr.File))
	}
}

func TestExtension(t *testing.T) {
	t.Parallel()
	tests := []struct {
		lang, want string
	}{
		{"Python", "py"},
		{"TypeScript", "ts"},
		{"javascript", "js"},
		{"Rust", "rs"},
		{"Go", "go"},
		{"C", "c"},
		{"C++", "cpp"},
		{"Java", "java"},
		{" rust ", "rs"},
		{"Pyhton", "py"},
		{"Typscript", "ts"},
		{"Brainfuck", "txt"},
		{"Zig", "txt"},
		{"", "txt"},
	}
	for _, tt := range tests {
		if got := Extension(tt.lang); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.lang, got, tt.want)
		}
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()
	if got := FileName(ModeResurrect, "Rust"); got != "resurrected_code.rs" {
		t.Errorf("FileName(RESURRECT) = %q", got)
	}
	if got := FileName(ModeAutopsy, "Rust"); got != "autopsy_report.txt" {
		t.Errorf("FileName(AUTOPSY) = %q", got)
	}
	if got := FileName(ModeFullRitual, "Rust"); got != BundleName {
		t.Errorf("FileName(FULL_RITUAL) = %q", got)
	}
}

func TestFindExample(t *testing.T) {
	t.Parallel()
	e, ok := FindExample("basic_loop")
	if !ok || e.SourceLang != "BASIC" {
		t.Errorf("FindExample(basic_loop) = (%+v, %v)", e, ok)
	}
	if _, ok := FindExample("missing"); ok {
		t.Error("FindExample(missing) found something")
	}
}

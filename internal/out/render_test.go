package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/agentkit/internal/config"
	"github.com/ggonzalez94/agentkit/internal/model"
)

func TestRenderJSONSelectResultsOnly(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []map[string]any{{"a": 1, "b": 2}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"a"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(out) != 1 || out[0]["a"].(float64) != 1 {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if _, ok := out[0]["b"]; ok {
		t.Fatalf("field projection failed: %s", buf.String())
	}
}

func TestRenderPlain(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []map[string]any{{"name": "x", "score": 42}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "name=x") {
		t.Fatalf("unexpected plain output: %s", buf.String())
	}
}

type greeting struct{ Name string }

func (g greeting) PlainText() string { return "hello " + g.Name + "\n" }

func TestRenderPlainText(t *testing.T) {
	env := model.Envelope{Version: "v1", Success: true, Data: greeting{Name: "ann"}}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "hello ann\n" {
		t.Fatalf("unexpected plain output: %q", buf.String())
	}
}

func TestTable(t *testing.T) {
	got := Table("GPUs:", [][]string{{"h100", "$2.00"}, {"a100-sxm", "$1.20"}})
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 3 || lines[0] != "GPUs:" || !strings.HasPrefix(lines[1], "h100") {
		t.Fatalf("unexpected table: %q", got)
	}
	if strings.Index(lines[1], "$") != strings.Index(lines[2], "$") {
		t.Fatalf("expected aligned columns: %q", got)
	}
	if Table("GPUs:", nil) != "GPUs:\n(none)" {
		t.Fatalf("expected empty marker, got %q", Table("GPUs:", nil))
	}
}

package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoaderLoadEmbedded(t *testing.T) {
	loader := NewLoader() // No override dirs
	data := map[string]string{"Request": "r", "Instructions": "i", "WorkingDir": "d"}

	for _, name := range []string{productOwnerTemplate, engineerTemplate} {
		p, err := loader.Execute(name, data)
		if err != nil {
			t.Fatalf("failed to load %s: %v", name, err)
		}
		if p.SystemPrompt == "" {
			t.Fatalf("%s: expected frontmatter with a system prompt", name)
		}
		if p.Source != SourceEmbedded {
			t.Errorf("%s: Source = %q, want %q", name, p.Source, SourceEmbedded)
		}
	}
}

func TestBuildProductOwnerPrompt(t *testing.T) {
	loader := NewLoader()

	p, err := loader.BuildProductOwnerPrompt(ProductOwnerData{Request: "say Hello instead of Hey"})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(p.Text, "Request: say Hello instead of Hey") {
		t.Errorf("prompt should start with the request, got %q", p.Text)
	}
	if !strings.Contains(p.Text, "single line") {
		t.Error("prompt should ask for a single-line instruction")
	}
	if p.MaxTurns != 3 {
		t.Errorf("MaxTurns = %d, want 3", p.MaxTurns)
	}
	if p.SystemPrompt == "" {
		t.Error("SystemPrompt should come from frontmatter")
	}
	if p.Source != SourceEmbedded {
		t.Errorf("Source = %q, want embedded", p.Source)
	}
}

func TestBuildEngineerPrompt(t *testing.T) {
	loader := NewLoader()

	p, err := loader.BuildEngineerPrompt(EngineerData{
		Instructions: "Rename Foo to Bar in main.go",
		WorkingDir:   "/repo/worktrees/t-abcd1234",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(p.Text, "Rename Foo to Bar in main.go") {
		t.Errorf("prompt should start with instructions, got %q", p.Text)
	}
	if !strings.Contains(p.Text, "Working directory: /repo/worktrees/t-abcd1234") {
		t.Error("prompt should name the working directory")
	}
	if p.MaxTurns != 0 {
		t.Errorf("engineer MaxTurns = %d, want 0 (caller decides)", p.MaxTurns)
	}
}

func TestLoaderOverride(t *testing.T) {
	tmpDir := t.TempDir()

	agentsDir := filepath.Join(tmpDir, "agents")
	if err := os.MkdirAll(agentsDir, 0755); err != nil {
		t.Fatalf("failed to create agents dir: %v", err)
	}

	customContent := `---
system_prompt: "custom owner"
max_turns: 7
---
CUSTOM: {{.Request}}
`
	if err := os.WriteFile(filepath.Join(agentsDir, "product_owner.md"), []byte(customContent), 0644); err != nil {
		t.Fatalf("failed to write override file: %v", err)
	}

	loader := NewLoader(tmpDir)

	p, err := loader.BuildProductOwnerPrompt(ProductOwnerData{Request: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Text != "CUSTOM: x" {
		t.Errorf("Text = %q, want override", p.Text)
	}
	if p.SystemPrompt != "custom owner" || p.MaxTurns != 7 {
		t.Errorf("override frontmatter not applied: %+v", p)
	}
	if p.Source != filepath.Join(agentsDir, "product_owner.md") {
		t.Errorf("Source = %q, want the override file", p.Source)
	}

	// The engineer template is not overridden and still comes from the embedded FS
	if _, err := loader.BuildEngineerPrompt(EngineerData{Instructions: "i", WorkingDir: "d"}); err != nil {
		t.Errorf("embedded fallback failed: %v", err)
	}
}

func TestLoaderCache(t *testing.T) {
	tmpDir := t.TempDir()
	agentsDir := filepath.Join(tmpDir, "agents")
	os.MkdirAll(agentsDir, 0755)
	path := filepath.Join(agentsDir, "product_owner.md")
	os.WriteFile(path, []byte("first {{.Request}}"), 0644)

	loader := NewLoader(tmpDir)
	p, _ := loader.BuildProductOwnerPrompt(ProductOwnerData{Request: "r"})
	if p.Text != "first r" {
		t.Fatalf("Text = %q", p.Text)
	}

	os.WriteFile(path, []byte("second {{.Request}}"), 0644)
	p, _ = loader.BuildProductOwnerPrompt(ProductOwnerData{Request: "r"})
	if p.Text != "first r" {
		t.Errorf("cached template should be reused, got %q", p.Text)
	}

	fresh := NewLoader(tmpDir)
	p, _ = fresh.BuildProductOwnerPrompt(ProductOwnerData{Request: "r"})
	if p.Text != "second r" {
		t.Errorf("new loader got %q, want second r", p.Text)
	}
}

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantMeta bool
		wantBody string
		wantErr  bool
	}{
		{"none", "plain body", false, "plain body", false},
		{"valid", "---\nid: x\nmax_turns: 2\n---\nbody", true, "body", false},
		{"unterminated", "---\nid: x\nbody", false, "---\nid: x\nbody", false},
		{"bad yaml", "---\nid: [unclosed\n---\nbody", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, body, err := parseFrontmatter([]byte(tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (meta != nil) != tt.wantMeta {
				t.Errorf("meta = %+v, wantMeta %v", meta, tt.wantMeta)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestMissingTemplateVariable(t *testing.T) {
	tmpDir := t.TempDir()
	os.MkdirAll(filepath.Join(tmpDir, "agents"), 0755)
	os.WriteFile(filepath.Join(tmpDir, "agents", "engineer.md"), []byte("{{.Nope}}"), 0644)

	loader := NewLoader(tmpDir)
	if _, err := loader.BuildEngineerPrompt(EngineerData{}); err == nil {
		t.Error("unknown field should fail template execution")
	}
}

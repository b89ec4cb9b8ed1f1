package prompts

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

const (
	productOwnerTemplate = "agents/product_owner.md"
	engineerTemplate     = "agents/engineer.md"

	// SourceEmbedded marks a template compiled into the binary
	SourceEmbedded = "embedded"

	frontmatterDelim = "---\n"
)

// TemplateMeta is the YAML frontmatter of an agent template
type TemplateMeta struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Role         string `yaml:"role"`
	SystemPrompt string `yaml:"system_prompt"`
	MaxTurns     int    `yaml:"max_turns"`
}

// Prompt is a rendered template with the agent settings from its frontmatter
type Prompt struct {
	Text         string
	SystemPrompt string
	MaxTurns     int
	Source       string // override file path or SourceEmbedded
}

type compiled struct {
	tmpl   *template.Template
	meta   *TemplateMeta
	source string
}

// Loader renders agent prompts. Files in the override directories shadow the
// embedded templates; the first directory containing a template wins.
type Loader struct {
	dirs []string

	mu    sync.RWMutex
	cache map[string]*compiled
}

func NewLoader(overrideDirs ...string) *Loader {
	return &Loader{
		dirs:  overrideDirs,
		cache: make(map[string]*compiled),
	}
}

// DefaultLoader looks for overrides in <repo>/.multi-engineer/prompts and then
// ~/.config/multi-engineer/prompts
func DefaultLoader(repoRoot string) *Loader {
	var dirs []string
	if repoRoot != "" {
		dirs = append(dirs, filepath.Join(repoRoot, ".multi-engineer", "prompts"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "multi-engineer", "prompts"))
	}
	return NewLoader(dirs...)
}

// read returns the template text and where it came from
func (l *Loader) read(name string) ([]byte, string, error) {
	for _, dir := range l.dirs {
		p := filepath.Join(dir, filepath.FromSlash(name))
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p, nil
		}
	}
	data, err := fs.ReadFile(embeddedFS, path.Clean(name))
	return data, SourceEmbedded, err
}

// parseFrontmatter splits a leading YAML block from the template body.
// Content without a complete block is returned unchanged with nil meta.
func parseFrontmatter(content []byte) (*TemplateMeta, string, error) {
	text := string(content)
	rest, ok := strings.CutPrefix(text, frontmatterDelim)
	if !ok {
		return nil, text, nil
	}
	header, body, ok := strings.Cut(rest, "\n"+frontmatterDelim)
	if !ok {
		return nil, text, nil
	}

	var meta TemplateMeta
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return &meta, body, nil
}

func (l *Loader) compile(name string) (*compiled, error) {
	l.mu.RLock()
	c, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return c, nil
	}

	content, source, err := l.read(name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	meta, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", source, err)
	}

	c = &compiled{tmpl: tmpl, meta: meta, source: source}
	l.mu.Lock()
	l.cache[name] = c
	l.mu.Unlock()
	return c, nil
}

// Execute renders the template name with data. The text is trimmed.
func (l *Loader) Execute(name string, data any) (Prompt, error) {
	c, err := l.compile(name)
	if err != nil {
		return Prompt{}, err
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("render %s: %w", name, err)
	}

	p := Prompt{Text: strings.TrimSpace(buf.String()), Source: c.source}
	if c.meta != nil {
		p.SystemPrompt = c.meta.SystemPrompt
		p.MaxTurns = c.meta.MaxTurns
	}
	return p, nil
}

// ProductOwnerData feeds agents/product_owner.md
type ProductOwnerData struct {
	Request string
}

// EngineerData feeds agents/engineer.md
type EngineerData struct {
	Instructions string
	WorkingDir   string
}

// BuildProductOwnerPrompt renders the prompt that turns a request into instructions
func (l *Loader) BuildProductOwnerPrompt(data ProductOwnerData) (Prompt, error) {
	return l.Execute(productOwnerTemplate, data)
}

// BuildEngineerPrompt renders the prompt that asks the engineer to edit the worktree
func (l *Loader) BuildEngineerPrompt(data EngineerData) (Prompt, error) {
	return l.Execute(engineerTemplate, data)
}

package agent

import (
	_ "embed"
	"fmt"
	"strings"

	"whatsapp_sdr_backend/internal/funnel/domain"

	"gopkg.in/yaml.v3"
)

//go:embed default_playbook.yaml
var defaultPlaybookYAML []byte

// Playbook is the natural-language guidance the agent follows. Personas may replace
// it with free text; the built-in one is structured YAML.
type Playbook struct {
	Name     string            `yaml:"name"`
	Tone     string            `yaml:"tone"`
	Language string            `yaml:"language"`
	Rules    []string          `yaml:"rules"`
	Stages   map[string]string `yaml:"stages"`
}

// ParsePlaybook decodes a YAML playbook and checks that it only names known stages.
func ParsePlaybook(data []byte) (Playbook, error) {
	var p Playbook
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Playbook{}, fmt.Errorf("decode playbook: %w", err)
	}
	for name := range p.Stages {
		if _, ok := domain.ResolveStage(name); !ok {
			return Playbook{}, fmt.Errorf("playbook references unknown stage %q", name)
		}
	}
	return p, nil
}

// DefaultPlaybook returns the embedded playbook. It panics only if the embedded
// document is broken, which the package tests rule out.
func DefaultPlaybook() Playbook {
	p, err := ParsePlaybook(defaultPlaybookYAML)
	if err != nil {
		panic(err)
	}
	return p
}

// Render turns the playbook into prompt text, listing stage guidance in funnel order.
func (p Playbook) Render() string {
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "Playbook: %s\n", p.Name)
	}
	if p.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", p.Tone)
	}
	if p.Language != "" {
		fmt.Fprintf(&b, "Reply language: %s\n", p.Language)
	}
	if len(p.Rules) > 0 {
		b.WriteString("Rules:\n")
		for _, rule := range p.Rules {
			fmt.Fprintf(&b, "- %s\n", strings.TrimSpace(rule))
		}
	}
	if len(p.Stages) > 0 {
		b.WriteString("Stage guidance:\n")
		for _, s := range domain.Stages() {
			guidance, ok := p.Stages[string(s.Name)]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", s.Name, strings.TrimSpace(guidance))
		}
	}
	return strings.TrimSpace(b.String())
}

// playbookText picks the persona's playbook when set and the default otherwise.
func playbookText(custom *string) string {
	if custom != nil && strings.TrimSpace(*custom) != "" {
		return strings.TrimSpace(*custom)
	}
	return DefaultPlaybook().Render()
}

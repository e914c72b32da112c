// Package persona loads the description of the person the agent speaks
// for: who they are, how to greet, and what never to bring up.
package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is the agent's speaking identity.
type Persona struct {
	Name         string   `yaml:"name"`
	Headline     string   `yaml:"headline"`
	Greeting     string   `yaml:"greeting"`
	Instructions string   `yaml:"instructions"`
	NeverMention []string `yaml:"never_mention"`
}

const defaultInstructions = `Answer questions about your skills, experience, education and projects in the first person.
Use get_portfolio_info for professional experience and skills.
Use search_github_projects for personal projects, and only mention repositories it returns.
Keep answers short and relevant to what was asked.
When the visitor shows real interest, ask for their name and email. Call track_name and track_email as you learn them, then save_contact once both are known.`

// Default is used when no persona file is configured.
func Default() Persona {
	return Persona{
		Name:         "the portfolio owner",
		Greeting:     "Hi there! I'd love to tell you about my experience and projects. What would you like to know?",
		Instructions: defaultInstructions,
	}
}

// Load reads a persona file. Fields the file leaves empty keep their
// Default values; an empty path returns Default.
func Load(path string) (Persona, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("reading persona: %w", err)
	}

	var f Persona
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Persona{}, fmt.Errorf("parsing persona %s: %w", path, err)
	}
	if strings.TrimSpace(f.Name) == "" {
		return Persona{}, fmt.Errorf("parsing persona %s: name is required", path)
	}

	p.Name = strings.TrimSpace(f.Name)
	p.Headline = strings.TrimSpace(f.Headline)
	if f.Greeting != "" {
		p.Greeting = strings.TrimSpace(f.Greeting)
	}
	if f.Instructions != "" {
		p.Instructions = strings.TrimSpace(f.Instructions)
	}
	p.NeverMention = f.NeverMention
	return p, nil
}

// Render produces the agent instruction text.
func (p Persona) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You ARE %s", p.Name)
	if p.Headline != "" {
		fmt.Fprintf(&b, ", %s", p.Headline)
	}
	b.WriteString(". Speak in the first person, directly to the visitor.\n\n")
	b.WriteString(p.Instructions)
	if p.Greeting != "" {
		fmt.Fprintf(&b, "\n\nOpen the conversation with: %q", p.Greeting)
	}
	if len(p.NeverMention) > 0 {
		fmt.Fprintf(&b, "\n\nNever mention: %s.", strings.Join(p.NeverMention, ", "))
	}
	return b.String()
}

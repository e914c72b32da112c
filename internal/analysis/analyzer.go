// Package analysis turns a conversation transcript into an annotation:
// topics, sentiment, summary and interest level.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/folio/internal/engine"
	"github.com/kalambet/folio/internal/record"
)

const (
	defaultTimeout = 30 * time.Second
	defaultSubject = "the subject"

	summaryNoModel   = "Conversation logged without AI analysis"
	summaryMissing   = "No summary available"
	topicGeneral     = "General Inquiry"
	topicSkills      = "Skills & Experience"
	topicOpportunity = "Job Opportunity"
	topicFollowUp    = "Follow-up"
)

// Analyzer annotates transcripts with a language model, falling back to
// keyword rules when the model is missing or misbehaves.
type Analyzer struct {
	gen     engine.Generator
	timeout time.Duration
	subject string
	logger  *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithSubject names the person the portfolio belongs to in the prompt.
func WithSubject(name string) Option {
	return func(a *Analyzer) {
		if name != "" {
			a.subject = name
		}
	}
}

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// New creates an Analyzer. A nil gen means no model credential is
// configured and every call returns the no-model annotation.
func New(gen engine.Generator, opts ...Option) *Analyzer {
	a := &Analyzer{
		gen:     gen,
		timeout: defaultTimeout,
		subject: defaultSubject,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze always returns a fully populated annotation. Model failures are
// logged and replaced by the keyword heuristic.
func (a *Analyzer) Analyze(ctx context.Context, turns []record.Turn) record.Annotation {
	text := Render(turns)

	if a.gen == nil {
		return record.Annotation{
			Topics:        []string{},
			Sentiment:     record.SentimentNeutral,
			Summary:       summaryNoModel,
			InterestLevel: record.InterestMedium,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.gen.GenerateText(ctx, BuildPrompt(a.subject, text))
	if err != nil {
		a.logger.Warn("analysis degraded: model call failed", "error", err)
		return heuristic(text, len(turns))
	}

	ann, err := parse(raw)
	if err != nil {
		a.logger.Warn("analysis degraded: malformed model output", "error", err, "response", raw)
		return heuristic(text, len(turns))
	}
	return ann
}

// Render writes one "ROLE: content" block per turn, blank line between.
func Render(turns []record.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		role := t.Role
		if role == "" {
			role = record.RoleVisitor
		}
		fmt.Fprintf(&b, "%s: %s\n\n", strings.ToUpper(string(role)), t.Content)
	}
	return b.String()
}

// parse decodes the model reply. A reply that is not a JSON object is an
// error; a missing or mistyped key takes its default.
func parse(raw string) (record.Annotation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &fields); err != nil {
		return record.Annotation{}, fmt.Errorf("decoding annotation: %w", err)
	}
	if fields == nil {
		return record.Annotation{}, fmt.Errorf("decoding annotation: not an object")
	}

	ann := record.Annotation{
		Topics:        []string{},
		Sentiment:     record.SentimentNeutral,
		Summary:       summaryMissing,
		InterestLevel: record.InterestMedium,
	}

	var topics []string
	if json.Unmarshal(fields["topics"], &topics) == nil {
		ann.Topics = dedupe(topics)
	}
	var s string
	if json.Unmarshal(fields["sentiment"], &s) == nil {
		if v, ok := record.ParseSentiment(s); ok {
			ann.Sentiment = v
		}
	}
	s = ""
	if json.Unmarshal(fields["summary"], &s) == nil && strings.TrimSpace(s) != "" {
		ann.Summary = strings.TrimSpace(s)
	}
	s = ""
	if json.Unmarshal(fields["interest_level"], &s) == nil {
		if v, ok := record.ParseInterestLevel(s); ok {
			ann.InterestLevel = v
		}
	}
	return ann, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func dedupe(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

var keywordTopics = []struct {
	topic    string
	keywords []string
}{
	{topicSkills, []string{"skill", "experience", "project"}},
	{topicOpportunity, []string{"hire", "job", "position", "role"}},
	{topicFollowUp, []string{"contact", "email", "reach out"}},
}

func heuristic(text string, turns int) record.Annotation {
	lower := strings.ToLower(text)
	var topics []string
	for _, kt := range keywordTopics {
		for _, kw := range kt.keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, kt.topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		topics = []string{topicGeneral}
	}
	return record.Annotation{
		Topics:        topics,
		Sentiment:     record.SentimentNeutral,
		Summary:       fmt.Sprintf("Conversation with %d messages", turns),
		InterestLevel: record.InterestMedium,
	}
}

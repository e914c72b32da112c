package content

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/folio/internal/record"
)

const (
	maxSkills            = 20
	knowledgeExperience  = 300
	infoExperience       = 200
	personalInterestsTag = "Personal Interests"
	bioUnavailable       = "Not available"
)

// snapshot is one concurrent read of the record types the summaries use.
type snapshot struct {
	bios       []record.PortfolioRecord
	experience []record.PortfolioRecord
	education  []record.PortfolioRecord
	skills     []record.PortfolioRecord
	contacts   []record.PortfolioRecord
}

func (c *Client) snapshot(ctx context.Context) (snapshot, error) {
	var s snapshot
	g, gctx := errgroup.WithContext(ctx)

	load := func(t record.RecordType, dst *[]record.PortfolioRecord) {
		g.Go(func() error {
			recs, err := c.ListRecords(gctx, t)
			if err != nil {
				return err
			}
			*dst = recs
			return nil
		})
	}
	load(record.TypeBio, &s.bios)
	load(record.TypeExperience, &s.experience)
	load(record.TypeEducation, &s.education)
	load(record.TypeSkill, &s.skills)
	load(record.TypeContact, &s.contacts)

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return s, nil
}

// bio returns the main bio text with any personal-interests bio appended.
func (s snapshot) bio() (string, bool) {
	if len(s.bios) == 0 {
		return "", false
	}
	text := s.bios[0].Content
	for _, b := range s.bios {
		if strings.Contains(b.Name, personalInterestsTag) {
			text += "\n\nPersonal Info:\n" + b.Content
			break
		}
	}
	return text, true
}

func (s snapshot) skillNames() string {
	n := min(len(s.skills), maxSkills)
	names := make([]string, 0, n)
	for _, r := range s.skills[:n] {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}

// BuildKnowledgeSummary renders the profile, experience, education, skills
// and contact records as one text block with section headers. Empty sections
// are left out.
func (c *Client) BuildKnowledgeSummary(ctx context.Context) (string, error) {
	s, err := c.snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("building knowledge summary: %w", err)
	}

	var sections []string
	if bio, ok := s.bio(); ok {
		sections = append(sections, "PROFILE:\n"+bio)
	}
	if len(s.experience) > 0 {
		sections = append(sections, "\nEXPERIENCE:")
		for _, r := range s.experience {
			sections = append(sections, fmt.Sprintf("- %s: %s...", r.Name, truncate(r.Content, knowledgeExperience)))
		}
	}
	if len(s.education) > 0 {
		sections = append(sections, "\nEDUCATION:")
		for _, r := range s.education {
			sections = append(sections, fmt.Sprintf("- %s: %s", r.Name, r.Content))
		}
	}
	if len(s.skills) > 0 {
		sections = append(sections, "\nSKILLS:", s.skillNames())
	}
	if len(s.contacts) > 0 {
		sections = append(sections, "\nCONTACT:")
		for _, r := range s.contacts {
			sections = append(sections, fmt.Sprintf("- %s: %s", r.Name, r.URL))
		}
	}
	return strings.Join(sections, "\n"), nil
}

// Info is the structured portfolio overview handed to the agent.
type Info struct {
	Bio               string `json:"bio"`
	Skills            string `json:"skills"`
	ExperienceSummary string `json:"experience_summary"`
	Education         string `json:"education"`
	ContactInfo       string `json:"contact_info"`
}

// PortfolioInfo gathers the overview the agent's portfolio tool returns.
func (c *Client) PortfolioInfo(ctx context.Context) (Info, error) {
	s, err := c.snapshot(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("loading portfolio info: %w", err)
	}

	bio, ok := s.bio()
	if !ok {
		bio = bioUnavailable
	}

	lines := func(recs []record.PortfolioRecord, line func(record.PortfolioRecord) string) string {
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			out = append(out, line(r))
		}
		return strings.Join(out, "\n")
	}

	return Info{
		Bio:    bio,
		Skills: s.skillNames(),
		ExperienceSummary: lines(s.experience, func(r record.PortfolioRecord) string {
			return fmt.Sprintf("%s: %s...", r.Name, truncate(r.Content, infoExperience))
		}),
		Education: lines(s.education, func(r record.PortfolioRecord) string {
			return fmt.Sprintf("%s: %s", r.Name, r.Content)
		}),
		ContactInfo: lines(s.contacts, func(r record.PortfolioRecord) string {
			return fmt.Sprintf("%s: %s", r.Name, r.URL)
		}),
	}, nil
}

// String renders the overview as the agent-facing text block.
func (i Info) String() string {
	var b strings.Builder
	b.WriteString("Portfolio Information:\n\n")
	fmt.Fprintf(&b, "BIO:\n%s\n\n", i.Bio)
	fmt.Fprintf(&b, "SKILLS:\n%s\n\n", i.Skills)
	fmt.Fprintf(&b, "EXPERIENCE:\n%s\n\n", i.ExperienceSummary)
	fmt.Fprintf(&b, "EDUCATION:\n%s\n\n", i.Education)
	fmt.Fprintf(&b, "CONTACT:\n%s\n", i.ContactInfo)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

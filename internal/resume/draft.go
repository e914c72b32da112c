package resume

import (
	"regexp"
	"strings"

	"github.com/kalambet/folio/internal/record"
)

var (
	emailRe    = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	linkedinRe = regexp.MustCompile(`(?i)linkedin\.com/in/[\w-]+`)
	githubRe   = regexp.MustCompile(`(?i)github\.com/[\w-]+`)
	skillSep   = regexp.MustCompile(`[,;|•\n]`)
)

// Contact is the contact data found anywhere in the resume.
type Contact struct {
	Email    string
	LinkedIn string
	GitHub   string
}

// FindContact scans the whole text for an email address and LinkedIn and
// GitHub profile links.
func FindContact(text string) Contact {
	var c Contact
	c.Email = emailRe.FindString(text)
	if m := linkedinRe.FindString(text); m != "" {
		c.LinkedIn = "https://" + strings.ToLower(m[:len("linkedin.com")]) + m[len("linkedin.com"):]
	}
	if m := githubRe.FindString(text); m != "" {
		c.GitHub = "https://" + strings.ToLower(m[:len("github.com")]) + m[len("github.com"):]
	}
	return c
}

// Draft builds Active records from parsed sections and the contact data.
// The result is meant for human review; names and categories are guesses.
func Draft(s Sections, c Contact) []record.PortfolioRecord {
	var out []record.PortfolioRecord
	add := func(r record.PortfolioRecord) {
		order := countType(out, r.Type) + 1
		r.DisplayOrder = &order
		out = append(out, r.WithDefaults())
	}

	if p := s[SectionPreamble]; p != "" {
		add(record.PortfolioRecord{Type: record.TypeBio, Name: "Profile", Content: p})
	}
	for _, e := range entries(s[SectionExperience]) {
		add(record.PortfolioRecord{Type: record.TypeExperience, Name: e.name, Content: e.body})
	}
	for _, e := range entries(s[SectionEducation]) {
		add(record.PortfolioRecord{Type: record.TypeEducation, Name: e.name, Content: e.body})
	}
	for _, e := range entries(s[SectionProjects]) {
		add(record.PortfolioRecord{Type: record.TypeProject, Name: e.name, Content: e.body})
	}
	for _, e := range entries(s[SectionCertifications]) {
		add(record.PortfolioRecord{Type: record.TypeCertification, Name: e.name, Content: e.body})
	}
	for _, skill := range SplitSkills(s[SectionSkills]) {
		add(record.PortfolioRecord{Type: record.TypeSkill, Name: skill})
	}
	if c.Email != "" {
		add(record.PortfolioRecord{Type: record.TypeContact, Name: "Email", URL: "mailto:" + c.Email})
	}
	if c.LinkedIn != "" {
		add(record.PortfolioRecord{Type: record.TypeContact, Name: "LinkedIn", URL: c.LinkedIn})
	}
	if c.GitHub != "" {
		add(record.PortfolioRecord{Type: record.TypeContact, Name: "GitHub", URL: c.GitHub})
	}
	return out
}

// SplitSkills splits a skills section on commas, semicolons, pipes, bullets
// and newlines, dropping blanks and duplicates.
func SplitSkills(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, part := range skillSep.Split(text, -1) {
		part = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(part), "-*"))
		key := strings.ToLower(part)
		if part == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, part)
	}
	return out
}

type entry struct {
	name string
	body string
}

// entries splits a section into blank-line separated blocks. A block's
// first line names it.
func entries(text string) []entry {
	var out []entry
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		name, body, _ := strings.Cut(block, "\n")
		out = append(out, entry{name: strings.TrimSpace(name), body: strings.TrimSpace(body)})
	}
	return out
}

func countType(recs []record.PortfolioRecord, t record.RecordType) int {
	n := 0
	for _, r := range recs {
		if r.Type == t {
			n++
		}
	}
	return n
}

package resume

import (
	"regexp"
	"strings"
)

type Section string

const (
	SectionPreamble       Section = "preamble"
	SectionExperience     Section = "experience"
	SectionEducation      Section = "education"
	SectionSkills         Section = "skills"
	SectionProjects       Section = "projects"
	SectionCertifications Section = "certifications"
	SectionLanguages      Section = "languages"
	SectionContact        Section = "contact"
)

// headers match a whole line, optionally followed by a colon.
var headers = []struct {
	section Section
	re      *regexp.Regexp
}{
	{SectionExperience, header(`experience|work\s*experience|employment(\s*history)?|professional\s*experience|work\s*history`)},
	{SectionEducation, header(`education|academic\s*background|qualifications`)},
	{SectionSkills, header(`skills|technical\s*skills|core\s*skills|competencies`)},
	{SectionProjects, header(`projects|key\s*projects|selected\s*projects|portfolio`)},
	{SectionCertifications, header(`certifications|certificates|licenses(\s*&\s*certifications)?`)},
	{SectionLanguages, header(`languages`)},
	{SectionContact, header(`contact(\s*info(rmation)?)?|get\s*in\s*touch`)},
}

func header(alt string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^(` + alt + `)\s*:?$`)
}

// Sections holds resume text by section. Text before the first header is
// the preamble, usually the name, headline and contact line.
type Sections map[Section]string

// ParseSections splits text at section header lines. Blank lines inside a
// section are kept as entry separators; a repeated header appends to the
// earlier section.
func ParseSections(text string) Sections {
	out := Sections{}
	current := SectionPreamble
	var buf []string

	flush := func() {
		body := strings.TrimSpace(collapseBlank(buf))
		if body != "" {
			if prev := out[current]; prev != "" {
				body = prev + "\n\n" + body
			}
			out[current] = body
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if s, ok := sectionOf(trimmed); ok {
			flush()
			current = s
			continue
		}
		buf = append(buf, trimmed)
	}
	flush()
	return out
}

func sectionOf(line string) (Section, bool) {
	if line == "" || len(line) > 40 {
		return "", false
	}
	for _, h := range headers {
		if h.re.MatchString(line) {
			return h.section, true
		}
	}
	return "", false
}

// collapseBlank joins lines, keeping at most one blank line in a row.
func collapseBlank(lines []string) string {
	var b strings.Builder
	blank := false
	for _, l := range lines {
		if l == "" {
			blank = true
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		blank = false
		b.WriteString(l)
	}
	return b.String()
}

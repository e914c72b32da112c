// Package record holds the portfolio and visitor record types and the
// mapping between them and the record store's typed properties.
package record

import (
	"strings"
	"time"
)

type RecordType string

const (
	TypeBio           RecordType = "Bio"
	TypeSkill         RecordType = "Skill"
	TypeExperience    RecordType = "Experience"
	TypeEducation     RecordType = "Education"
	TypeProject       RecordType = "Project"
	TypeCertification RecordType = "Certification"
	TypeContact       RecordType = "Contact"
)

// RecordTypes lists every record type in display order.
var RecordTypes = []RecordType{
	TypeBio, TypeSkill, TypeExperience, TypeEducation,
	TypeProject, TypeCertification, TypeContact,
}

// ParseRecordType matches s case-insensitively against the known types.
func ParseRecordType(s string) (RecordType, bool) {
	for _, t := range RecordTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

type Level string

const (
	LevelExpert       Level = "Expert"
	LevelAdvanced     Level = "Advanced"
	LevelIntermediate Level = "Intermediate"
	LevelBeginner     Level = "Beginner"
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusArchived Status = "Archived"
	StatusFeatured Status = "Featured"
)

// PortfolioRecord is one fact about the subject.
type PortfolioRecord struct {
	ID           string     `json:"id,omitempty" yaml:"id,omitempty"`
	Type         RecordType `json:"type" yaml:"type"`
	Category     string     `json:"category,omitempty" yaml:"category,omitempty"`
	Name         string     `json:"name" yaml:"name"`
	Content      string     `json:"content,omitempty" yaml:"content,omitempty"`
	Level        Level      `json:"level,omitempty" yaml:"level,omitempty"`
	Location     string     `json:"location,omitempty" yaml:"location,omitempty"`
	URL          string     `json:"url,omitempty" yaml:"url,omitempty"`
	TechStack    []string   `json:"tech_stack,omitempty" yaml:"tech_stack,omitempty"`
	Priority     Priority   `json:"priority,omitempty" yaml:"priority,omitempty"`
	Status       Status     `json:"status,omitempty" yaml:"status,omitempty"`
	DisplayOrder *int       `json:"display_order,omitempty" yaml:"display_order,omitempty"`
}

// WithDefaults fills Priority and Status when unset.
func (r PortfolioRecord) WithDefaults() PortfolioRecord {
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.Status == "" {
		r.Status = StatusActive
	}
	return r
}

type Role string

const (
	RoleVisitor Role = "user"
	RoleAgent   Role = "assistant"
)

// ParseRole accepts the wire roles and their visitor/agent aliases.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "visitor":
		return RoleVisitor, true
	case "assistant", "agent":
		return RoleAgent, true
	}
	return "", false
}

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Sentiment string

const (
	SentimentPositive       Sentiment = "Positive"
	SentimentNeutral        Sentiment = "Neutral"
	SentimentNegative       Sentiment = "Negative"
	SentimentVeryInterested Sentiment = "Very Interested"
)

// Sentiments lists every sentiment value.
var Sentiments = []Sentiment{
	SentimentPositive, SentimentNeutral, SentimentNegative, SentimentVeryInterested,
}

// ParseSentiment matches s case-insensitively, also accepting the
// unspaced "VeryInterested" spelling.
func ParseSentiment(s string) (Sentiment, bool) {
	norm := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	for _, v := range Sentiments {
		if strings.EqualFold(strings.ReplaceAll(string(v), " ", ""), norm) {
			return v, true
		}
	}
	return "", false
}

type InterestLevel string

const (
	InterestHigh   InterestLevel = "High"
	InterestMedium InterestLevel = "Medium"
	InterestLow    InterestLevel = "Low"
)

// ParseInterestLevel matches s case-insensitively.
func ParseInterestLevel(s string) (InterestLevel, bool) {
	for _, v := range []InterestLevel{InterestHigh, InterestMedium, InterestLow} {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, true
		}
	}
	return "", false
}

// Annotation is the derived classification of a transcript.
type Annotation struct {
	Topics        []string      `json:"topics"`
	Sentiment     Sentiment     `json:"sentiment"`
	Summary       string        `json:"summary"`
	InterestLevel InterestLevel `json:"interest_level"`
}

// FollowUpRequired reports whether the visitor warrants outreach.
func (a Annotation) FollowUpRequired() bool {
	return a.Sentiment == SentimentVeryInterested || a.Sentiment == SentimentPositive
}

// StatusNew is the status every freshly saved visitor record gets.
const StatusNew = "New"

// VisitorRecord is one saved interaction.
type VisitorRecord struct {
	ID               string     `json:"id,omitempty"`
	URL              string     `json:"url,omitempty"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone,omitempty"`
	Timestamp        time.Time  `json:"timestamp"`
	Transcript       string     `json:"transcript,omitempty"`
	Annotation       Annotation `json:"annotation"`
	FollowUpRequired bool       `json:"follow_up_required"`
	Status           string     `json:"status"`
}

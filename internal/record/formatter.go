package record

import (
	"math"
	"strings"
	"time"

	"github.com/kalambet/folio/internal/notion"
)

// Property names shared with the record store schema.
const (
	PropName         = "Name"
	PropType         = "Type"
	PropCategory     = "Category"
	PropContent      = "Content"
	PropLevel        = "Level"
	PropLocation     = "Location"
	PropURL          = "URL"
	PropTechStack    = "Tech Stack"
	PropPriority     = "Priority"
	PropStatus       = "Status"
	PropDisplayOrder = "Display Order"

	PropEmail            = "Email"
	PropPhone            = "Phone"
	PropDate             = "Date"
	PropTopics           = "Topics Discussed"
	PropSentiment        = "Sentiment"
	PropSummary          = "Conversation Summary"
	PropTranscript       = "Full Transcript"
	PropInterestLevel    = "Interest Level"
	PropFollowUpRequired = "Follow-up Required"
)

// maxSegment is the store's character limit for one rich text segment.
const maxSegment = 2000

// PortfolioProperties converts a record to store properties. Empty optional
// fields are omitted.
func PortfolioProperties(r PortfolioRecord) notion.Properties {
	props := notion.Properties{
		PropName: titleProp(r.Name),
	}
	setSelect(props, PropType, string(r.Type))
	setSelect(props, PropCategory, r.Category)
	setRichText(props, PropContent, r.Content)
	setSelect(props, PropLevel, string(r.Level))
	setRichText(props, PropLocation, r.Location)
	if r.URL != "" {
		u := r.URL
		props[PropURL] = notion.Property{Type: notion.TypeURL, URL: &u}
	}
	setMultiSelect(props, PropTechStack, r.TechStack)
	setSelect(props, PropPriority, string(r.Priority))
	setSelect(props, PropStatus, string(r.Status))
	if r.DisplayOrder != nil {
		n := float64(*r.DisplayOrder)
		props[PropDisplayOrder] = notion.Property{Type: notion.TypeNumber, Number: &n}
	}
	return props
}

// VisitorProperties converts a visitor record to store properties. Phone is
// always present and sent as an explicit null when empty.
func VisitorProperties(v VisitorRecord) notion.Properties {
	props := notion.Properties{
		PropName: titleProp(v.Name),
	}
	if v.Email != "" {
		e := v.Email
		props[PropEmail] = notion.Property{Type: notion.TypeEmail, Email: &e}
	}
	phone := notion.Property{Type: notion.TypePhoneNumber}
	if v.Phone != "" {
		p := v.Phone
		phone.PhoneNumber = &p
	}
	props[PropPhone] = phone

	if !v.Timestamp.IsZero() {
		props[PropDate] = notion.Property{
			Type: notion.TypeDate,
			Date: &notion.DateValue{Start: v.Timestamp.Format(time.RFC3339)},
		}
	}
	setMultiSelect(props, PropTopics, v.Annotation.Topics)
	setSelect(props, PropSentiment, string(v.Annotation.Sentiment))
	setRichText(props, PropSummary, v.Annotation.Summary)
	setRichText(props, PropTranscript, v.Transcript)
	setSelect(props, PropInterestLevel, string(v.Annotation.InterestLevel))

	follow := v.FollowUpRequired
	props[PropFollowUpRequired] = notion.Property{Type: notion.TypeCheckbox, Checkbox: &follow}

	status := v.Status
	if status == "" {
		status = StatusNew
	}
	setSelect(props, PropStatus, status)
	return props
}

// PortfolioFromPage converts a store page to a record. Missing or mistyped
// properties yield zero values.
func PortfolioFromPage(p notion.Page) PortfolioRecord {
	r := PortfolioRecord{
		ID:        p.ID,
		Type:      RecordType(Select(p.Properties, PropType)),
		Category:  Select(p.Properties, PropCategory),
		Name:      Title(p.Properties, PropName),
		Content:   RichText(p.Properties, PropContent),
		Level:     Level(Select(p.Properties, PropLevel)),
		Location:  RichText(p.Properties, PropLocation),
		URL:       URL(p.Properties, PropURL),
		TechStack: MultiSelect(p.Properties, PropTechStack),
		Priority:  Priority(Select(p.Properties, PropPriority)),
		Status:    Status(Select(p.Properties, PropStatus)),
	}
	if n := Number(p.Properties, PropDisplayOrder); n != nil && !math.IsNaN(*n) && !math.IsInf(*n, 0) {
		order := int(*n)
		r.DisplayOrder = &order
	}
	return r
}

// VisitorFromPage converts a store page to a visitor record. Timestamp falls
// back to the page creation time when the Date property is missing.
func VisitorFromPage(p notion.Page) VisitorRecord {
	v := VisitorRecord{
		ID:         p.ID,
		URL:        p.URL,
		Name:       Title(p.Properties, PropName),
		Email:      Email(p.Properties, PropEmail),
		Phone:      Phone(p.Properties, PropPhone),
		Timestamp:  Date(p.Properties, PropDate),
		Transcript: RichText(p.Properties, PropTranscript),
		Annotation: Annotation{
			Topics:        MultiSelect(p.Properties, PropTopics),
			Sentiment:     Sentiment(Select(p.Properties, PropSentiment)),
			Summary:       RichText(p.Properties, PropSummary),
			InterestLevel: InterestLevel(Select(p.Properties, PropInterestLevel)),
		},
		FollowUpRequired: Checkbox(p.Properties, PropFollowUpRequired),
		Status:           Select(p.Properties, PropStatus),
	}
	if v.Timestamp.IsZero() && p.CreatedTime != "" {
		if t, err := time.Parse(time.RFC3339Nano, p.CreatedTime); err == nil {
			v.Timestamp = t
		}
	}
	return v
}

func Title(props notion.Properties, name string) string {
	return joinText(props[name].Title)
}

func RichText(props notion.Properties, name string) string {
	return joinText(props[name].RichText)
}

func Select(props notion.Properties, name string) string {
	if s := props[name].Select; s != nil {
		return s.Name
	}
	return ""
}

// MultiSelect returns nil when the property is absent or has no options.
func MultiSelect(props notion.Properties, name string) []string {
	opts := props[name].MultiSelect
	if len(opts) == 0 {
		return nil
	}
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Name)
	}
	return out
}

func Number(props notion.Properties, name string) *float64 {
	return props[name].Number
}

func URL(props notion.Properties, name string) string {
	return deref(props[name].URL)
}

func Email(props notion.Properties, name string) string {
	return deref(props[name].Email)
}

func Phone(props notion.Properties, name string) string {
	return deref(props[name].PhoneNumber)
}

// Date parses the start of a date property, accepting full timestamps and
// plain dates. Anything else is the zero time.
func Date(props notion.Properties, name string) time.Time {
	d := props[name].Date
	if d == nil || d.Start == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02"} {
		if t, err := time.Parse(layout, d.Start); err == nil {
			return t
		}
	}
	return time.Time{}
}

func Checkbox(props notion.Properties, name string) bool {
	if c := props[name].Checkbox; c != nil {
		return *c
	}
	return false
}

func titleProp(s string) notion.Property {
	return notion.Property{Type: notion.TypeTitle, Title: segments(s)}
}

func setSelect(props notion.Properties, name, value string) {
	if value == "" {
		return
	}
	props[name] = notion.Property{Type: notion.TypeSelect, Select: &notion.SelectOption{Name: value}}
}

func setRichText(props notion.Properties, name, value string) {
	if value == "" {
		return
	}
	props[name] = notion.Property{Type: notion.TypeRichText, RichText: segments(value)}
}

// setMultiSelect replaces commas, which the store rejects in option names.
func setMultiSelect(props notion.Properties, name string, values []string) {
	if len(values) == 0 {
		return
	}
	opts := make([]notion.SelectOption, 0, len(values))
	for _, v := range values {
		opts = append(opts, notion.SelectOption{Name: strings.ReplaceAll(v, ",", " ")})
	}
	props[name] = notion.Property{Type: notion.TypeMultiSelect, MultiSelect: opts}
}

// segments splits s into rich text segments of at most maxSegment runes.
func segments(s string) []notion.RichText {
	runes := []rune(s)
	out := make([]notion.RichText, 0, len(runes)/maxSegment+1)
	for len(runes) > maxSegment {
		out = append(out, textSegment(string(runes[:maxSegment])))
		runes = runes[maxSegment:]
	}
	return append(out, textSegment(string(runes)))
}

func textSegment(s string) notion.RichText {
	return notion.RichText{Type: "text", Text: &notion.TextContent{Content: s}}
}

func joinText(rt []notion.RichText) string {
	var b strings.Builder
	for _, seg := range rt {
		b.WriteString(seg.String())
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package notion

import (
	"encoding/json"
	"fmt"
)

// PropertyType names the typed-property kinds the record store understands.
type PropertyType string

const (
	TypeTitle       PropertyType = "title"
	TypeRichText    PropertyType = "rich_text"
	TypeSelect      PropertyType = "select"
	TypeMultiSelect PropertyType = "multi_select"
	TypeNumber      PropertyType = "number"
	TypeURL         PropertyType = "url"
	TypeEmail       PropertyType = "email"
	TypePhoneNumber PropertyType = "phone_number"
	TypeDate        PropertyType = "date"
	TypeCheckbox    PropertyType = "checkbox"
)

// TextContent is the writable part of a rich text segment.
type TextContent struct {
	Content string `json:"content"`
}

// RichText is one segment of a title or rich_text property.
type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

// String returns the segment's text, preferring the store-rendered plain text.
func (r RichText) String() string {
	if r.PlainText != "" {
		return r.PlainText
	}
	if r.Text != nil {
		return r.Text.Content
	}
	return ""
}

// SelectOption is a single choice of a select or multi_select property.
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue is the payload of a date property.
type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

// Property is one typed value on a page. Only the field matching Type is
// meaningful. Pointer fields distinguish "absent" from zero values; on the
// wire a nil pointer for the active Type is sent as an explicit null, which
// is how the store clears a value.
type Property struct {
	Type        PropertyType
	Title       []RichText
	RichText    []RichText
	Select      *SelectOption
	MultiSelect []SelectOption
	Number      *float64
	URL         *string
	Email       *string
	PhoneNumber *string
	Date        *DateValue
	Checkbox    *bool
}

// Properties is a page's property map keyed by the store's property name.
type Properties map[string]Property

func (p Property) MarshalJSON() ([]byte, error) {
	var v any
	switch p.Type {
	case TypeTitle:
		v = nonNil(p.Title)
	case TypeRichText:
		v = nonNil(p.RichText)
	case TypeSelect:
		v = p.Select
	case TypeMultiSelect:
		if p.MultiSelect == nil {
			v = []SelectOption{}
		} else {
			v = p.MultiSelect
		}
	case TypeNumber:
		v = p.Number
	case TypeURL:
		v = p.URL
	case TypeEmail:
		v = p.Email
	case TypePhoneNumber:
		v = p.PhoneNumber
	case TypeDate:
		v = p.Date
	case TypeCheckbox:
		v = p.Checkbox
	default:
		return nil, fmt.Errorf("notion: unsupported property type %q", p.Type)
	}
	return json.Marshal(map[string]any{string(p.Type): v})
}

// UnmarshalJSON decodes each known field independently. A field that fails
// to decode is left at its zero value and never fails the enclosing page.
func (p *Property) UnmarshalJSON(data []byte) error {
	*p = Property{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	var typ string
	decodeField(raw, "type", &typ)
	p.Type = PropertyType(typ)

	decodeField(raw, string(TypeTitle), &p.Title)
	decodeField(raw, string(TypeRichText), &p.RichText)
	decodeField(raw, string(TypeSelect), &p.Select)
	decodeField(raw, string(TypeMultiSelect), &p.MultiSelect)
	decodeField(raw, string(TypeNumber), &p.Number)
	decodeField(raw, string(TypeURL), &p.URL)
	decodeField(raw, string(TypeEmail), &p.Email)
	decodeField(raw, string(TypePhoneNumber), &p.PhoneNumber)
	decodeField(raw, string(TypeDate), &p.Date)
	decodeField(raw, string(TypeCheckbox), &p.Checkbox)

	if p.Type == "" {
		p.Type = inferType(raw)
	}
	return nil
}

func decodeField[T any](raw map[string]json.RawMessage, key string, dst *T) {
	v, ok := raw[key]
	if !ok {
		return
	}
	var out T
	if err := json.Unmarshal(v, &out); err != nil {
		return
	}
	*dst = out
}

// inferType picks the type from the single value key of an outbound-shaped
// property, which carries no explicit "type" field.
func inferType(raw map[string]json.RawMessage) PropertyType {
	for k := range raw {
		switch PropertyType(k) {
		case TypeTitle, TypeRichText, TypeSelect, TypeMultiSelect, TypeNumber,
			TypeURL, TypeEmail, TypePhoneNumber, TypeDate, TypeCheckbox:
			return PropertyType(k)
		}
	}
	return ""
}

func nonNil(rt []RichText) []RichText {
	if rt == nil {
		return []RichText{}
	}
	return rt
}

// Page is a database row as returned by the store.
type Page struct {
	ID          string     `json:"id"`
	URL         string     `json:"url,omitempty"`
	CreatedTime string     `json:"created_time,omitempty"`
	Properties  Properties `json:"properties"`
}

// SelectCondition matches a select property by option name.
type SelectCondition struct {
	Equals string `json:"equals"`
}

// Filter is a query predicate: either a single property condition or a
// conjunction of nested filters.
type Filter struct {
	Property string           `json:"property,omitempty"`
	Select   *SelectCondition `json:"select,omitempty"`
	And      []Filter         `json:"and,omitempty"`
}

// SelectEquals builds an equality predicate on a select property.
func SelectEquals(property, value string) Filter {
	return Filter{Property: property, Select: &SelectCondition{Equals: value}}
}

// And builds a conjunction. A single filter is returned unchanged.
func And(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return Filter{And: filters}
}

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "ascending"
	Descending Direction = "descending"
)

// Sort orders query results by a named property.
type Sort struct {
	Property  string    `json:"property"`
	Direction Direction `json:"direction"`
}

// QueryRequest is the body of a database query.
type QueryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	Sorts       []Sort  `json:"sorts,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
}

// QueryResponse is one page of query results.
type QueryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type createPageRequest struct {
	Parent     parent     `json:"parent"`
	Properties Properties `json:"properties"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type errorBody struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

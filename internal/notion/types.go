// Package notion is a small client for the Notion database query API.
//
// Only the parts complaintsync needs are modelled: querying one database
// with a last-edited filter and sort, and decoding page property bags into
// typed containers the property extractor understands.
package notion

// Property types as reported in the "type" discriminator of a property value.
const (
	TypeSelect      = "select"
	TypeMultiSelect = "multi_select"
	TypeStatus      = "status"
	TypeRichText    = "rich_text"
	TypeTitle       = "title"
	TypeNumber      = "number"
	TypeUniqueID    = "unique_id"
	TypeDate        = "date"
)

// Page is one record of the queried database.
//
// Timestamps are kept as the raw strings the API returns; normalizing them
// is the timestamp package's job.
type Page struct {
	Object         string     `json:"object"`
	ID             string     `json:"id"`
	CreatedTime    string     `json:"created_time"`
	LastEditedTime string     `json:"last_edited_time"`
	Archived       bool       `json:"archived"`
	Properties     Properties `json:"properties"`
}

// Properties is the page's property bag keyed by property label.
type Properties map[string]PropertyValue

// PropertyValue is a tagged container: Type names which of the pointer
// fields is populated. Fields for other types stay nil.
type PropertyValue struct {
	ID          string     `json:"id,omitempty"`
	Type        string     `json:"type"`
	Select      *Option    `json:"select,omitempty"`
	Status      *Option    `json:"status,omitempty"`
	MultiSelect []Option   `json:"multi_select,omitempty"`
	RichText    []RichText `json:"rich_text,omitempty"`
	Title       []RichText `json:"title,omitempty"`
	Number      *float64   `json:"number,omitempty"`
	UniqueID    *UniqueID  `json:"unique_id,omitempty"`
	Date        *DateValue `json:"date,omitempty"`
}

// Option is a select, status or multi-select choice.
type Option struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// RichText is one segment of a rich text or title property.
type RichText struct {
	Type      string `json:"type,omitempty"`
	PlainText string `json:"plain_text"`
	Href      string `json:"href,omitempty"`
}

// UniqueID is the auto-increment identifier property ("CALL-123" shows as prefix CALL, number 123).
type UniqueID struct {
	Prefix *string `json:"prefix"`
	Number *int64  `json:"number"`
}

// DateValue is a date property.
type DateValue struct {
	Start    string  `json:"start"`
	End      *string `json:"end,omitempty"`
	TimeZone *string `json:"time_zone,omitempty"`
}

// SortDirection orders query results by last edit time.
type SortDirection string

const (
	Ascending  SortDirection = "ascending"
	Descending SortDirection = "descending"
)

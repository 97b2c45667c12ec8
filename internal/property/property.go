// Package property turns a page's loosely typed property bag into scalar strings.
package property

import (
	"fmt"
	"strconv"
	"strings"

	"complaintsync/internal/notion"
)

// Kind names how a property value is decoded. The set is closed: every Kind
// has an entry in decoders, and names outside it are rejected when a schema
// is loaded rather than silently extracting null at run time.
type Kind uint8

const (
	Select Kind = iota + 1
	MultiSelect
	Status
	RichText
	Number
	UniqueID
	Title
	Date
)

type decoder func(v notion.PropertyValue) (string, bool)

var decoders = [...]decoder{
	Select:      decodeSelect,
	MultiSelect: decodeMultiSelect,
	Status:      decodeStatus,
	RichText:    decodeRichText,
	Number:      decodeNumber,
	UniqueID:    decodeUniqueID,
	Title:       decodeTitle,
	Date:        decodeDate,
}

var names = [...]string{
	Select:      notion.TypeSelect,
	MultiSelect: notion.TypeMultiSelect,
	Status:      notion.TypeStatus,
	RichText:    notion.TypeRichText,
	Number:      notion.TypeNumber,
	UniqueID:    notion.TypeUniqueID,
	Title:       notion.TypeTitle,
	Date:        notion.TypeDate,
}

func (k Kind) String() string {
	if k.valid() {
		return names[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) valid() bool {
	return k > 0 && int(k) < len(decoders)
}

// ParseKind maps a property type name ("select", "multi_select", ...) to its Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for k := Select; k.valid(); k++ {
		if names[k] == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown property kind %q", s)
}

// UnmarshalText lets Kind be read straight from YAML or JSON schema files.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("invalid property kind %d", uint8(k))
	}
	return []byte(names[k]), nil
}

// Extract returns the scalar value of bag[label] decoded as kind.
//
// The boolean is false when the value is absent: missing label, unset
// value, empty selection or text, or an invalid kind. Extract never panics.
func Extract(bag notion.Properties, label string, kind Kind) (string, bool) {
	if !kind.valid() {
		return "", false
	}
	v, ok := bag[label]
	if !ok {
		return "", false
	}
	return decoders[kind](v)
}

func optionName(o *notion.Option) (string, bool) {
	if o == nil || o.Name == "" {
		return "", false
	}
	return o.Name, true
}

func decodeSelect(v notion.PropertyValue) (string, bool) { return optionName(v.Select) }

func decodeStatus(v notion.PropertyValue) (string, bool) { return optionName(v.Status) }

func decodeMultiSelect(v notion.PropertyValue) (string, bool) {
	if len(v.MultiSelect) == 0 {
		return "", false
	}
	parts := make([]string, len(v.MultiSelect))
	for i, o := range v.MultiSelect {
		parts[i] = o.Name
	}
	return strings.Join(parts, ", "), true
}

// firstSegment returns the first segment's text only; later segments (links,
// mentions, style runs) are ignored.
func firstSegment(segments []notion.RichText) (string, bool) {
	if len(segments) == 0 || segments[0].PlainText == "" {
		return "", false
	}
	return segments[0].PlainText, true
}

func decodeRichText(v notion.PropertyValue) (string, bool) { return firstSegment(v.RichText) }

func decodeTitle(v notion.PropertyValue) (string, bool) { return firstSegment(v.Title) }

func decodeNumber(v notion.PropertyValue) (string, bool) {
	if v.Number == nil {
		return "", false
	}
	return strconv.FormatFloat(*v.Number, 'f', -1, 64), true
}

func decodeUniqueID(v notion.PropertyValue) (string, bool) {
	if v.UniqueID == nil || v.UniqueID.Number == nil {
		return "", false
	}
	return strconv.FormatInt(*v.UniqueID.Number, 10), true
}

func decodeDate(v notion.PropertyValue) (string, bool) {
	if v.Date == nil || v.Date.Start == "" {
		return "", false
	}
	return v.Date.Start, true
}

// Package complaint defines the relational complaint row and maps source
// records onto it.
package complaint

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// IDPrefix is prepended to the numeric unique id of a live page.
	IDPrefix = "CALL-"

	// MissingID is the id a page gets when its unique id could not be read.
	// Records carrying it are never written.
	MissingID = IDPrefix + "null"
)

// Complaint is one row of the complaint table.
//
// A Complaint is built fresh for every reconciliation attempt and is never
// mutated across attempts.
type Complaint struct {
	ID            string
	ComplaintDate time.Time
	LastEditDate  time.Time

	TelNo      string
	TruckNo    string
	ConNo      string
	Service    string
	Terminal   string
	Status     string
	Receiver   string
	Handler    string
	Type       string
	DetailType string
	Title      string
	Content    string
	Processing string
	Handling   string
}

// Column describes one truncated string column.
type Column struct {
	Key  string // schema key, e.g. "tel"
	Name string // SQL column name
	Max  int    // maximum length in characters
	ref  func(*Complaint) *string
}

// Get returns the column's value on c.
func (col Column) Get(c *Complaint) string { return *col.ref(c) }

func (col Column) set(c *Complaint, v string) { *col.ref(c) = v }

// Key and timestamp column names.
const (
	ColumnID            = "complaint_id"
	ColumnComplaintDate = "complaint_date"
	ColumnLastEditDate  = "last_edit_date"
)

// Columns lists the string columns in table order.
var Columns = []Column{
	{"tel", "complainant_tel_no", 20, func(c *Complaint) *string { return &c.TelNo }},
	{"truck", "complainant_truck_no", 20, func(c *Complaint) *string { return &c.TruckNo }},
	{"con", "complainant_con_no", 20, func(c *Complaint) *string { return &c.ConNo }},
	{"service", "target_service", 100, func(c *Complaint) *string { return &c.Service }},
	{"terminal", "target_terminal", 100, func(c *Complaint) *string { return &c.Terminal }},
	{"status", "complaint_status", 50, func(c *Complaint) *string { return &c.Status }},
	{"receiver", "complaint_receiver", 50, func(c *Complaint) *string { return &c.Receiver }},
	{"handler", "complaint_handler", 50, func(c *Complaint) *string { return &c.Handler }},
	{"type", "complaint_type", 100, func(c *Complaint) *string { return &c.Type }},
	{"detail_type", "complaint_detail_type", 100, func(c *Complaint) *string { return &c.DetailType }},
	{"title", "complaint_title", 200, func(c *Complaint) *string { return &c.Title }},
	{"content", "complaint_content", 1000, func(c *Complaint) *string { return &c.Content }},
	{"processing", "complaint_processing", 1000, func(c *Complaint) *string { return &c.Processing }},
	{"handling", "complaint_handling", 1000, func(c *Complaint) *string { return &c.Handling }},
}

// IDMaxLen is the width of the key column.
const IDMaxLen = 50

// ColumnByKey looks a string column up by its schema key.
func ColumnByKey(key string) (Column, bool) {
	for _, col := range Columns {
		if col.Key == key {
			return col, true
		}
	}
	return Column{}, false
}

// ColumnNames returns every column name in table order, key first.
func ColumnNames() []string {
	names := make([]string, 0, len(Columns)+3)
	names = append(names, ColumnID, ColumnComplaintDate, ColumnLastEditDate)
	for _, col := range Columns {
		names = append(names, col.Name)
	}
	return names
}

// Values returns the row's values in ColumnNames order.
func (c *Complaint) Values() []any {
	vals := make([]any, 0, len(Columns)+3)
	vals = append(vals, c.ID, c.ComplaintDate, c.LastEditDate)
	for _, col := range Columns {
		vals = append(vals, col.Get(c))
	}
	return vals
}

// ScanTargets returns pointers to every field in ColumnNames order, for row scanning.
func (c *Complaint) ScanTargets() []any {
	dest := make([]any, 0, len(Columns)+3)
	dest = append(dest, &c.ID, &c.ComplaintDate, &c.LastEditDate)
	for _, col := range Columns {
		dest = append(dest, col.ref(c))
	}
	return dest
}

// Skippable reports whether the record lacks a usable key.
func (c *Complaint) Skippable() bool {
	return c.ID == "" || c.ID == MissingID
}

// Truncate cuts s to at most limit characters, repairing invalid UTF-8 first so
// a cut never lands inside a multi-byte sequence.
func Truncate(s string, limit int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}


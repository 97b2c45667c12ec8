package complaint

import (
	"complaintsync/internal/notion"
	"complaintsync/internal/property"
	"complaintsync/internal/timestamp"
)

// Mapper builds Complaints from live pages and export rows.
//
// Output depends only on the input and the schema, except that unparseable
// or empty timestamps resolve to the current time.
type Mapper struct {
	schema *Schema
	dates  *timestamp.Normalizer
}

func NewMapper(schema *Schema, dates *timestamp.Normalizer) *Mapper {
	return &Mapper{schema: schema, dates: dates}
}

// FromPage maps a page. A page whose id property cannot be read gets MissingID.
func (m *Mapper) FromPage(p notion.Page) Complaint {
	prof := m.schema.Page

	c := Complaint{ID: MissingID}
	if id, ok := property.Extract(p.Properties, prof.ID.Label, prof.ID.Kind); ok {
		c.ID = prof.ID.Prefix + id
	}
	c.ComplaintDate = m.dates.Normalize(p.CreatedTime)
	c.LastEditDate = m.dates.Normalize(p.LastEditedTime)

	for _, col := range Columns {
		f, ok := prof.Fields[col.Key]
		if !ok {
			continue
		}
		v, _ := property.Extract(p.Properties, f.Label, f.Kind)
		col.set(&c, v)
	}
	return finish(c)
}

// FromRow maps one CSV export row keyed by header.
func (m *Mapper) FromRow(row map[string]string) Complaint {
	prof := m.schema.Export

	c := Complaint{
		ID:            row[prof.ID],
		ComplaintDate: m.dates.Normalize(row[prof.Created]),
		LastEditDate:  m.dates.Normalize(row[prof.Edited]),
	}
	for _, col := range Columns {
		if header, ok := prof.Fields[col.Key]; ok {
			col.set(&c, row[header])
		}
	}
	return finish(c)
}

func finish(c Complaint) Complaint {
	c.ID = Truncate(c.ID, IDMaxLen)
	for _, col := range Columns {
		col.set(&c, Truncate(col.Get(&c), col.Max))
	}
	return c
}

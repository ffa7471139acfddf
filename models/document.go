package models

import (
	"fmt"
	"time"
)

// DocumentKind identifies the unit a raw document was read as.
type DocumentKind string

const (
	// KindTableRow is a single row of a tabular file (CSV, XLSX).
	KindTableRow DocumentKind = "tablerow"
	// KindPage is a page-like unit of a paginated file (PDF).
	KindPage DocumentKind = "page"
)

// Document is one retrievable unit read from the document store during
// ingestion: a table row or a page. Immutable once read; a source is
// retired only by re-ingesting the file it came from.
type Document struct {
	Source     string       `json:"source" bson:"source"`
	Unit       int          `json:"unit" bson:"unit"`
	Kind       DocumentKind `json:"kind" bson:"kind"`
	Text       string       `json:"text" bson:"text"`
	IngestedAt time.Time    `json:"ingested_at,omitempty" bson:"ingested_at,omitempty"`
}

// UnitID returns the stable identifier of this unit within its source,
// e.g. "faq.csv_row3" or "handbook.pdf_page12".
func (d Document) UnitID() string {
	switch d.Kind {
	case KindTableRow:
		return fmt.Sprintf("%s_row%d", d.Source, d.Unit)
	case KindPage:
		return fmt.Sprintf("%s_page%d", d.Source, d.Unit)
	default:
		return fmt.Sprintf("%s_unit%d", d.Source, d.Unit)
	}
}

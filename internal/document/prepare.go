package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Section markers rendered into prepared text. The bracketed labels survive
// cleaning and give the embedding model a hint about field roles.
const (
	titlePrefix = "[Title]: "
	linksHeader = "[Links]:"

	// recordSeparator joins per-record texts inside an aggregate document.
	recordSeparator = "\n\n---\n\n"
)

// Prepare formats parallel title, content, and link fragments into a title
// block and a full text block. Empty fragment lists omit their section
// entirely; sections always appear in order title, content, links.
func Prepare(titles, contents, links []string) (titleText, fullText string) {
	var b strings.Builder

	if len(titles) > 0 {
		titleText = titlePrefix + strings.Join(titles, " - ")
		b.WriteString(titleText)
		b.WriteString("\n\n")
	}

	if len(contents) > 0 {
		b.WriteString(strings.Join(contents, "\n\n"))
		b.WriteString("\n\n")
	}

	if len(links) > 0 {
		b.WriteString(linksHeader)
		for _, link := range links {
			b.WriteString("\n- ")
			b.WriteString(link)
		}
	}

	return titleText, strings.TrimSpace(b.String())
}

// Aggregate combines several records of one category into a single Document.
//
// The aggregate ID is deterministic: "agg_" plus the sorted contributing IDs
// joined by "_". When no record carries an ID the ID falls back to a stable
// content hash, so repeated runs over identical input produce the same ID.
// UpdatedAt is the maximum of the per-record timestamps; records without a
// timestamp are excluded, and the field stays nil when none have one.
//
// Returns ErrInvalidInput when records is empty.
func Aggregate(records []Record, category string) (Document, error) {
	if len(records) == 0 {
		return Document{}, fmt.Errorf("%w: no records to aggregate for category %q", ErrInvalidInput, category)
	}

	ids := make([]string, 0, len(records))
	var updatedAt *time.Time
	texts := make([]string, 0, len(records))

	for _, rec := range records {
		if rec.ID != "" {
			ids = append(ids, rec.ID)
		}
		if rec.UpdatedAt != nil && (updatedAt == nil || rec.UpdatedAt.After(*updatedAt)) {
			t := *rec.UpdatedAt
			updatedAt = &t
		}

		_, text := Prepare(rec.Titles, rec.Contents, rec.Links)
		texts = append(texts, text)
	}

	fullText := strings.Join(texts, recordSeparator)

	var id string
	if len(ids) > 0 {
		sort.Strings(ids)
		id = "agg_" + strings.Join(ids, "_")
	} else {
		// Unsalted sha256 keeps the fallback ID stable across runs.
		sum := sha256.Sum256([]byte(fullText))
		id = "agg_" + hex.EncodeToString(sum[:16])
	}

	return Document{
		ID:        id,
		Title:     category,
		Text:      fullText,
		UpdatedAt: updatedAt,
		Category:  category,
	}, nil
}

// FromRecord builds a single non-aggregated Document from one record.
func FromRecord(rec Record, category string) Document {
	title, text := Prepare(rec.Titles, rec.Contents, rec.Links)
	return Document{
		ID:        rec.ID,
		Title:     title,
		Text:      text,
		UpdatedAt: rec.UpdatedAt,
		Category:  category,
	}
}

package opguide

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"opguide/internal/domain"
)

const (
	DocumentContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	documentTitle      = "Azure Operational Guide"
	documentSubtitle   = "Azure Resource Summaries by Type:"
	fileNamePrefix     = "Azure_OpGuide_"
	fileNameExtension  = ".docx"
	generatedAtLayout  = "2006-01-02 15:04:05 MST"
	fileNameDateLayout = "2006-01-02"
)

// Document is a generated OpGuide ready for download.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// DocumentGenerator turns group summaries into a downloadable document.
type DocumentGenerator interface {
	Generate(ctx context.Context, summaries map[string]domain.GroupSummary) (Document, error)
}

// PlaceholderGenerator emits a plain text OpGuide under a .docx file name.
// It stands in until a real document backend exists.
type PlaceholderGenerator struct {
	now func() time.Time
}

func NewPlaceholderGenerator() *PlaceholderGenerator {
	return &PlaceholderGenerator{now: time.Now}
}

func (g *PlaceholderGenerator) Generate(
	_ context.Context,
	summaries map[string]domain.GroupSummary,
) (Document, error) {
	now := g.now()

	return Document{
		FileName:    FileName(now),
		ContentType: DocumentContentType,
		Data:        AssembleDocument(summaries, now),
	}, nil
}

// FileName returns the dated OpGuide file name, e.g. Azure_OpGuide_2024-06-01.docx.
func FileName(now time.Time) string {
	return fileNamePrefix + now.Format(fileNameDateLayout) + fileNameExtension
}

// AssembleDocument renders summaries as text, one section per type in
// sorted order. A group that was never processed gets only its header.
func AssembleDocument(summaries map[string]domain.GroupSummary, generatedAt time.Time) []byte {
	var b strings.Builder

	b.WriteString(documentTitle)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", generatedAt.Format(generatedAtLayout))

	if len(summaries) > 0 {
		b.WriteString(documentSubtitle)
		b.WriteString("\n\n")
	}

	for _, resourceType := range slices.Sorted(maps.Keys(summaries)) {
		s := summaries[resourceType]

		b.WriteString(SectionHeader(resourceType, s.Count))
		b.WriteString("\n")

		switch {
		case s.Summary != "":
			b.WriteString(s.Summary)
			b.WriteString("\n")
		case s.Error != "":
			fmt.Fprintf(&b, "Error summarizing: %s\n", s.Error)
		}

		b.WriteString("\n\n")
	}

	return []byte(b.String())
}

func SectionHeader(resourceType string, count int) string {
	return fmt.Sprintf("--- %s (%d) ---", resourceType, count)
}

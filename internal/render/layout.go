package render

import (
	"fmt"
	"strings"

	"github.com/videorecap/api/internal/model"
)

type blockKind int

const (
	blockTitle blockKind = iota
	blockMeta
	blockHeadline
	blockHeading
	blockBullet
	blockConcept
	blockParagraph
)

// block is one format-neutral element of a summary document
type block struct {
	kind blockKind
	text string
	term string // concepts only
}

const (
	headingKeyPoints = "Key Points"
	headingConcepts  = "Key Concepts"
	headingSummary   = "Summary"
)

// layout orders the summary into the sections every format renders
func layout(s *model.SummaryResult, meta model.Metadata) []block {
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = "Video Summary: " + meta.VideoID
	}

	blocks := []block{
		{kind: blockTitle, text: title},
		{kind: blockMeta, text: metaLine(meta)},
		{kind: blockHeadline, text: strings.TrimSpace(s.Headline)},
	}

	if points := nonEmpty(s.KeyPoints); len(points) > 0 {
		blocks = append(blocks, block{kind: blockHeading, text: headingKeyPoints})
		for _, p := range points {
			blocks = append(blocks, block{kind: blockBullet, text: p})
		}
	}

	var concepts []model.Concept
	for _, c := range s.Concepts {
		if strings.TrimSpace(c.Term) != "" {
			concepts = append(concepts, c)
		}
	}
	if len(concepts) > 0 {
		blocks = append(blocks, block{kind: blockHeading, text: headingConcepts})
		for _, c := range concepts {
			blocks = append(blocks, block{kind: blockConcept, term: strings.TrimSpace(c.Term), text: strings.TrimSpace(c.Definition)})
		}
	}

	if paragraphs := nonEmpty(s.Narrative); len(paragraphs) > 0 {
		blocks = append(blocks, block{kind: blockHeading, text: headingSummary})
		for _, p := range paragraphs {
			blocks = append(blocks, block{kind: blockParagraph, text: p})
		}
	}
	return blocks
}

func metaLine(meta model.Metadata) string {
	parts := []string{"Video " + meta.VideoID}
	if meta.Channel != "" {
		parts = append(parts, meta.Channel)
	}
	if meta.Duration > 0 {
		parts = append(parts, meta.HumanDuration())
	}
	if !meta.TranscribedAt.IsZero() {
		parts = append(parts, "Transcribed "+meta.TranscribedAt.Format("2006-01-02"))
	}
	if !meta.GeneratedAt.IsZero() {
		parts = append(parts, fmt.Sprintf("Generated %s", meta.GeneratedAt.Format("2006-01-02 15:04")))
	}
	return strings.Join(parts, " | ")
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if t := strings.TrimSpace(it); t != "" {
			out = append(out, t)
		}
	}
	return out
}

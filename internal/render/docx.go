package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/videorecap/api/internal/model"
)

const (
	docxMediaType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	docxFont      = "Calibri"
	docxSize      = 11
)

// DOCXRenderer renders summaries as Word documents
type DOCXRenderer struct {
	workDir string
}

// NewDOCXRenderer creates a DOCX renderer that stages files in workDir
func NewDOCXRenderer(workDir string) *DOCXRenderer {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &DOCXRenderer{workDir: workDir}
}

// Render builds the document and returns its bytes. The staging file is
// removed before returning.
func (r *DOCXRenderer) Render(ctx context.Context, summary *model.SummaryResult, meta model.Metadata) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("render docx: nil summary")
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("render docx: %w", err)
	}

	for _, b := range layout(summary, meta) {
		switch b.kind {
		case blockTitle:
			addRun(doc.AddParagraph(""), b.text, true, false, 20, "000000")
		case blockMeta:
			addRun(doc.AddParagraph(""), b.text, false, false, 9, "6E6E6E")
		case blockHeadline:
			addRun(doc.AddParagraph(""), b.text, false, true, 13, "000000")
		case blockHeading:
			addRun(doc.AddParagraph(""), b.text, true, false, 14, "000000")
		case blockBullet:
			addRun(doc.AddParagraph(""), "• "+b.text, false, false, docxSize, "000000")
		case blockConcept:
			p := doc.AddParagraph("")
			addRun(p, b.term+": ", true, false, docxSize, "000000")
			addRun(p, b.text, false, false, docxSize, "000000")
		case blockParagraph:
			addRun(doc.AddParagraph(""), b.text, false, false, docxSize, "000000")
		}
	}

	dir, err := os.MkdirTemp(r.workDir, "render-*")
	if err != nil {
		return nil, fmt.Errorf("render docx: %w", err)
	}
	defer os.RemoveAll(dir)

	filename := model.ArtifactFilename(meta.VideoID, "docx")
	path := filepath.Join(dir, filename)
	if err := doc.SaveTo(path); err != nil {
		return nil, fmt.Errorf("render docx: save: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render docx: read back: %w", err)
	}

	return &model.Artifact{
		Bytes:     data,
		Filename:  filename,
		MediaType: docxMediaType,
	}, nil
}

func addRun(p *docx.Paragraph, text string, bold, italic bool, size uint64, color string) {
	run := p.AddText(text).Font(docxFont).Size(size).Color(color)
	if bold {
		run.Bold(true)
	}
	if italic {
		run.Italic(true)
	}
}

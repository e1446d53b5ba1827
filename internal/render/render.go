// Package render turns structured summaries into downloadable documents.
package render

import (
	"context"
	"fmt"

	"github.com/videorecap/api/internal/model"
)

// Renderer renders a summary into a binary document
type Renderer interface {
	Render(ctx context.Context, summary *model.SummaryResult, meta model.Metadata) (*model.Artifact, error)
}

// New returns the renderer for format ("pdf" or "docx"). fonts only
// applies to PDF output.
func New(format, workDir string, fonts Fonts) (Renderer, error) {
	switch format {
	case "", "pdf":
		return NewPDFRenderer(fonts)
	case "docx":
		return NewDOCXRenderer(workDir), nil
	default:
		return nil, fmt.Errorf("unknown render format %q", format)
	}
}

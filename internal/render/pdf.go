package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/videorecap/api/internal/model"
)

const (
	pdfMediaType = "application/pdf"
	pdfFont      = "body"
	pdfLine      = 6.0
)

// PDFRenderer renders summaries with embedded UTF-8 TrueType fonts
type PDFRenderer struct {
	fonts    Fonts
	compress bool
}

// NewPDFRenderer creates a PDF renderer. Zero-valued fonts use the bundled faces.
func NewPDFRenderer(fonts Fonts) (*PDFRenderer, error) {
	fonts, err := fonts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &PDFRenderer{fonts: fonts, compress: true}, nil
}

// Render lays the summary out on A4 pages
func (r *PDFRenderer) Render(ctx context.Context, summary *model.SummaryResult, meta model.Metadata) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("render pdf: nil summary")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.AddUTF8FontFromBytes(pdfFont, "", r.fonts.Regular)
	pdf.AddUTF8FontFromBytes(pdfFont, "B", r.fonts.Bold)
	pdf.AddUTF8FontFromBytes(pdfFont, "I", r.fonts.Italic)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(bmp(meta.Title), true)
	pdf.SetCreator("videorecap", true)
	pdf.AddPage()

	for _, b := range layout(summary, meta) {
		switch b.kind {
		case blockTitle:
			pdf.SetFont(pdfFont, "B", 18)
			pdf.MultiCell(0, 9, bmp(b.text), "", "L", false)
		case blockMeta:
			pdf.SetFont(pdfFont, "", 9)
			pdf.SetTextColor(110, 110, 110)
			pdf.MultiCell(0, 5, bmp(b.text), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
			pdf.Ln(4)
		case blockHeadline:
			pdf.SetFont(pdfFont, "I", 13)
			pdf.MultiCell(0, 7, bmp(b.text), "", "L", false)
		case blockHeading:
			pdf.Ln(4)
			pdf.SetFont(pdfFont, "B", 14)
			pdf.MultiCell(0, 8, bmp(b.text), "", "L", false)
			pdf.Ln(1)
		case blockBullet:
			pdf.SetFont(pdfFont, "", 11)
			pdf.MultiCell(0, pdfLine, "- "+bmp(b.text), "", "L", false)
			pdf.Ln(1)
		case blockConcept:
			pdf.SetFont(pdfFont, "B", 11)
			pdf.Write(pdfLine, bmp(b.term)+": ")
			pdf.SetFont(pdfFont, "", 11)
			pdf.Write(pdfLine, bmp(b.text))
			pdf.Ln(pdfLine + 1)
		case blockParagraph:
			pdf.SetFont(pdfFont, "", 11)
			pdf.MultiCell(0, pdfLine, bmp(b.text), "", "J", false)
			pdf.Ln(2)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return &model.Artifact{
		Bytes:     buf.Bytes(),
		Filename:  model.ArtifactFilename(meta.VideoID, "pdf"),
		MediaType: pdfMediaType,
	}, nil
}

// bmp drops runes above U+FFFF, such as emoji. fpdf indexes its UTF-8
// width tables by rune and those tables stop at the Basic Multilingual Plane.
func bmp(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return -1
		}
		return r
	}, s)
}

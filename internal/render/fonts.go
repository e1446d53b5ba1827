package render

import (
	"embed"
	"fmt"
	"os"
)

//go:embed fonts/*.ttf
var bundled embed.FS

// Fonts holds the TrueType faces used by the PDF renderer. Empty faces fall
// back to the bundled DejaVu Sans, which covers Latin, Greek and Cyrillic.
// Scripts outside that range need a configured font that covers them.
type Fonts struct {
	Regular []byte
	Bold    []byte
	Italic  []byte
}

// LoadFonts reads the faces at regularPath and boldPath. The regular face
// doubles as bold and italic when no other file is given.
func LoadFonts(regularPath, boldPath string) (Fonts, error) {
	if regularPath == "" {
		return Fonts{}, nil
	}

	regular, err := os.ReadFile(regularPath)
	if err != nil {
		return Fonts{}, fmt.Errorf("read font: %w", err)
	}
	fonts := Fonts{Regular: regular, Bold: regular, Italic: regular}

	if boldPath != "" {
		if fonts.Bold, err = os.ReadFile(boldPath); err != nil {
			return Fonts{}, fmt.Errorf("read bold font: %w", err)
		}
	}
	return fonts, nil
}

func (f Fonts) withDefaults() (Fonts, error) {
	faces := []struct {
		face *[]byte
		file string
	}{
		{&f.Regular, "fonts/DejaVuSansCondensed.ttf"},
		{&f.Bold, "fonts/DejaVuSansCondensed-Bold.ttf"},
		{&f.Italic, "fonts/DejaVuSansCondensed-Oblique.ttf"},
	}
	for _, fc := range faces {
		if len(*fc.face) > 0 {
			continue
		}
		data, err := bundled.ReadFile(fc.file)
		if err != nil {
			return Fonts{}, fmt.Errorf("bundled font %s: %w", fc.file, err)
		}
		*fc.face = data
	}
	return f, nil
}

package preprocess

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToPPM rasterizes PDFs using the pdftoppm CLI tool from poppler.
type PdfToPPM struct {
	binPath string
	dpi     int
}

// NewPdfToPPM creates a PdfToPPM renderer. If binPath is empty, "pdftoppm"
// is used; if dpi is zero, 150 is used.
func NewPdfToPPM(binPath string, dpi int) *PdfToPPM {
	if binPath == "" {
		binPath = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &PdfToPPM{binPath: binPath, dpi: dpi}
}

// Render runs pdftoppm -png on the given PDF and returns one Page per
// rendered image, in page order.
func (p *PdfToPPM) Render(ctx context.Context, pdfPath string) ([]Page, error) {
	tmpDir, err := os.MkdirTemp("", "intake-pdf-*")
	if err != nil {
		return nil, eris.Wrap(err, "preprocess: create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, p.binPath, "-png", "-r", strconv.Itoa(p.dpi), pdfPath, prefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "preprocess: pdftoppm failed for %s: %s", pdfPath, stderr.String())
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, eris.Wrap(err, "preprocess: read rendered pages")
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".png") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, eris.Errorf("preprocess: pdftoppm produced no pages for %s", pdfPath)
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(names)

	pages := make([]Page, 0, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			return nil, eris.Wrapf(err, "preprocess: read page %s", name)
		}
		pages = append(pages, Page{Number: i + 1, Image: data, MediaType: "image/png"})
	}

	return pages, nil
}

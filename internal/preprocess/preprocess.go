// Package preprocess converts source documents into model-consumable
// pages. Spreadsheets are rendered to text natively; raster images pass
// through; PDF rasterization is delegated to an injected renderer.
package preprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Page is one renderable unit of a document, either an inline image or a
// plain-text rendition.
type Page struct {
	Number    int
	Text      string // set for text pages
	Image     []byte // set for image pages
	MediaType string // e.g. "image/png", for image pages
}

// IsImage reports whether the page carries image data.
func (p Page) IsImage() bool { return len(p.Image) > 0 }

// Preprocessor converts a document path into pages.
type Preprocessor interface {
	Preprocess(ctx context.Context, path string) ([]Page, error)
}

// FailureError reports a document that could not be converted. It is
// document-scoped; the batch continues past it.
type FailureError struct {
	Path  string
	Cause error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("preprocess failed for %s: %v", e.Path, e.Cause)
}

func (e *FailureError) Unwrap() error { return e.Cause }

// PDFRenderer rasterizes a PDF into image pages. Rendering is done by an
// external tool; this interface is its boundary.
type PDFRenderer interface {
	Render(ctx context.Context, path string) ([]Page, error)
}

var imageMediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// Router dispatches documents to a converter by file extension.
type Router struct {
	pdf PDFRenderer
}

// NewRouter creates a Router. pdf may be nil when no renderer is wired;
// PDF inputs then fail with a FailureError instead of panicking.
func NewRouter(pdf PDFRenderer) *Router {
	return &Router{pdf: pdf}
}

// Preprocess converts one document into pages.
func (r *Router) Preprocess(ctx context.Context, path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case ext == ".xlsx" || ext == ".xls":
		return renderWorkbook(path)

	case ext == ".pdf":
		if r.pdf == nil {
			return nil, &FailureError{Path: path, Cause: eris.New("no PDF renderer configured")}
		}
		pages, err := r.pdf.Render(ctx, path)
		if err != nil {
			return nil, &FailureError{Path: path, Cause: err}
		}
		return pages, nil

	default:
		if mediaType, ok := imageMediaTypes[ext]; ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, &FailureError{Path: path, Cause: err}
			}
			return []Page{{Number: 1, Image: data, MediaType: mediaType}}, nil
		}
		return nil, &FailureError{Path: path, Cause: eris.Errorf("unsupported document type %q", ext)}
	}
}

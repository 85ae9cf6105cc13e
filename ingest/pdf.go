package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"

	"docuLearn/core"
)

// A page with less text than this is treated as scanned/visual and routed
// through OCR and image extraction.
const minTextThreshold = 50

const imageDPI = 150

// OCRFunc recognizes text in an image file. Implementations return an empty
// string (not an error) when no OCR backend is available.
type OCRFunc func(ctx context.Context, imagePath string) (string, error)

// TesseractOCR shells out to the tesseract CLI when it is installed.
func TesseractOCR(ctx context.Context, imagePath string) (string, error) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", nil
	}
	cmd := exec.CommandContext(ctx, "tesseract", imagePath, "stdout")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract %s: %w", imagePath, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// SavePDF stores an uploaded PDF under <storageRoot>/pdfs with a timestamped
// name and returns its path.
func SavePDF(storageRoot, filename string, r io.Reader) (string, error) {
	dir := filepath.Join(storageRoot, "pdfs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%d_%s", time.Now().Unix(), filepath.Base(filename)))
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", err
	}
	return path, nil
}

// DocumentID derives an opaque document identifier from a stored PDF path.
func DocumentID(pdfPath string) string {
	base := filepath.Base(pdfPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, base)
	return fmt.Sprintf("doc_%d_%s", time.Now().Unix(), base)
}

// Extractor pulls text and images out of PDFs via go-fitz, with an OCR
// fallback for scanned pages.
type Extractor struct {
	OCR OCRFunc
}

func NewExtractor() *Extractor { return &Extractor{OCR: TesseractOCR} }

// ExtractText returns the concatenated document text and the per-page texts.
// Pages whose embedded text is below the scanned-page threshold are rendered
// and OCRed instead.
func (e *Extractor) ExtractText(ctx context.Context, pdfPath string) (string, []string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", nil, fmt.Errorf("open pdf %s: %w", pdfPath, err)
	}
	defer doc.Close()

	var full strings.Builder
	pages := make([]string, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		text, err := doc.Text(n)
		if err != nil {
			return "", nil, fmt.Errorf("extract text from page %d: %w", n+1, err)
		}
		if len(strings.TrimSpace(text)) < minTextThreshold {
			if ocrText, err := e.ocrPage(ctx, doc, n); err == nil && ocrText != "" {
				text = ocrText
			}
		}
		pages = append(pages, text)
		fmt.Fprintf(&full, "\n\n--- Page %d ---\n%s", n+1, text)
	}
	return full.String(), pages, nil
}

func (e *Extractor) ocrPage(ctx context.Context, doc *fitz.Document, page int) (string, error) {
	if e.OCR == nil {
		return "", nil
	}
	png, err := doc.ImagePNG(page, imageDPI)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp("", "doculearn-ocr-*.png")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		return "", err
	}
	tmp.Close()
	return e.OCR(ctx, tmp.Name())
}

// ExtractImages renders the visual pages of a document into
// <storageRoot>/images and returns their raw image chunks. go-fitz exposes
// page rasters rather than embedded figure streams, so pages that are mostly
// imagery stand in for individual figures.
func (e *Extractor) ExtractImages(ctx context.Context, pdfPath, storageRoot, documentID string) ([]core.ImageChunk, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", pdfPath, err)
	}
	defer doc.Close()

	dir := filepath.Join(storageRoot, "images")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var images []core.ImageChunk
	for n := 0; n < doc.NumPage(); n++ {
		text, err := doc.Text(n)
		if err != nil {
			continue
		}
		if len(strings.TrimSpace(text)) >= minTextThreshold {
			continue
		}
		png, err := doc.ImagePNG(n, imageDPI)
		if err != nil {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_p%d_img0.png", documentID, n))
		if err := os.WriteFile(path, png, 0644); err != nil {
			return nil, err
		}
		images = append(images, core.ImageChunk{
			ID:         fmt.Sprintf("%s_image_%d_0", documentID, n),
			Path:       path,
			Page:       n,
			DocumentID: documentID,
		})
	}
	return images, nil
}

// lastUploaded records the most recent upload so the notes endpoints can fall
// back to it when no text is supplied.
type lastUploaded struct {
	Path       string  `json:"path"`
	DocumentID string  `json:"document_id"`
	Timestamp  float64 `json:"timestamp"`
}

func lastUploadedPath(storageRoot string) string {
	return filepath.Join(storageRoot, "last_uploaded.json")
}

// RecordLastUploaded persists the path and ID of the most recent upload.
func RecordLastUploaded(storageRoot, pdfPath, documentID string) error {
	data, err := json.Marshal(lastUploaded{
		Path:       pdfPath,
		DocumentID: documentID,
		Timestamp:  float64(time.Now().UnixNano()) / 1e9,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(lastUploadedPath(storageRoot), data, 0644)
}

// LastUploaded returns the most recently uploaded PDF path and document ID,
// or empty strings when none is recorded.
func LastUploaded(storageRoot string) (pdfPath, documentID string) {
	data, err := os.ReadFile(lastUploadedPath(storageRoot))
	if err != nil {
		return "", ""
	}
	var rec lastUploaded
	if err := json.Unmarshal(data, &rec); err != nil || rec.Path == "" {
		return "", ""
	}
	return rec.Path, rec.DocumentID
}

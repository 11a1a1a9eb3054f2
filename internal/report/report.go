package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/go-pdf/fpdf"
)

// Payload carries everything the report needs; the caller assembles it from
// a prior inference result.
type Payload struct {
	Filename      string `json:"filename"`
	Diagnosis     string `json:"diagnosis"`
	Confidence    string `json:"confidence"`
	OriginalImage string `json:"original_image"`
	HeatmapImage  string `json:"heatmap_image"`
}

// ImageEmbedError reports that one image block could not be embedded. The
// renderer logs it and keeps going; a single bad image never aborts the
// whole document.
type ImageEmbedError struct {
	Caption string
	Err     error
}

func (e *ImageEmbedError) Error() string {
	return fmt.Sprintf("could not embed %q image: %v", e.Caption, e.Err)
}

func (e *ImageEmbedError) Unwrap() error { return e.Err }

// Renderer assembles the diagnostic report PDF. The clock is injectable so
// identical payloads render byte-identically under a fixed render time.
type Renderer struct {
	Title      string
	ImageWidth float64
	Now        func() time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{
		Title:      "AuraSight AI Diagnostic Report",
		ImageWidth: 150,
		Now:        time.Now,
	}
}

// Render serializes the report to PDF bytes: title header and page-number
// footer on every page, the summary fields, then the original scan and the
// heatmap overlay under their captions.
func (r *Renderer) Render(payload *Payload) ([]byte, error) {
	now := r.Now()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 15)
		pdf.CellFormat(0, 10, r.Title, "", 1, "C", false, 0, "")
		pdf.Ln(10)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, fmt.Sprintf("Report Date: %s", now.Format("2006-01-02 15:04:05")), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 10, fmt.Sprintf("Patient File: %s", payload.Filename), "", 1, "", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Diagnosis Result", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 10, fmt.Sprintf("Condition: %s", payload.Diagnosis), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 10, fmt.Sprintf("Confidence: %s", payload.Confidence), "", 1, "", false, 0, "")
	pdf.Ln(10)

	blocks := []struct {
		caption string
		encoded string
	}{
		{"Original Scan", payload.OriginalImage},
		{"Model Focus Heatmap", payload.HeatmapImage},
	}
	for _, block := range blocks {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, block.caption, "", 1, "", false, 0, "")
		if err := r.embedImage(pdf, block.caption, block.encoded); err != nil {
			log.Printf("Could not process image for PDF: %v", err)
			continue
		}
		pdf.Ln(10)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// embedImage places one base64-encoded image at the fixed display width with
// proportional height.
func (r *Renderer) embedImage(pdf *fpdf.Fpdf, caption, encoded string) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return &ImageEmbedError{Caption: caption, Err: err}
	}

	imageType, err := sniffImageType(raw)
	if err != nil {
		return &ImageEmbedError{Caption: caption, Err: err}
	}

	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(caption, opts, bytes.NewReader(raw))
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return &ImageEmbedError{Caption: caption, Err: err}
	}
	pdf.ImageOptions(caption, pdf.GetX(), pdf.GetY(), r.ImageWidth, 0, true, opts, 0, "")
	return nil
}

func sniffImageType(raw []byte) (string, error) {
	switch {
	case len(raw) > 3 && raw[0] == 0xff && raw[1] == 0xd8:
		return "JPG", nil
	case len(raw) > 8 && bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")):
		return "PNG", nil
	default:
		return "", fmt.Errorf("unsupported image format")
	}
}

package newsletter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"

	"github.com/gridpulse/gridpulse/internal/flow"
)

// ExportError is the failure signal from the PDF exporter. Export problems
// never crash the caller; they come back as this typed error and an empty
// path.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("pdf export failed: %v", e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// ExportPDF renders the document's markdown into a paginated PDF at path,
// mapping heading levels, bullet items and separators to distinct styles,
// then appends a per-route mean/max/min data table (up to 10 rows) derived
// from the same flow records. On failure it returns an empty path and an
// *ExportError.
func ExportPDF(doc *Document, flows []flow.Record, path string) (outPath string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outPath = ""
			err = &ExportError{Err: fmt.Errorf("exporter panic: %v", r)}
			log.Error().Err(err).Msg("PDF export failed")
		}
	}()

	if dir := filepath.Dir(path); dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return "", &ExportError{Err: mkErr}
		}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "ELECTRICITY INTERCONNECTION REPORT", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Generated: "+doc.GeneratedAt.Format("2006-01-02 15:04:05 UTC"), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range strings.Split(doc.Markdown, "\n") {
		line = sanitizeLatin1(line)
		switch {
		case strings.HasPrefix(line, "# "):
			pdf.SetFont("Helvetica", "B", 14)
			pdf.MultiCell(0, 8, strings.TrimPrefix(line, "# "), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
		case strings.HasPrefix(line, "## "):
			pdf.SetFont("Helvetica", "B", 12)
			pdf.MultiCell(0, 7, strings.TrimPrefix(line, "## "), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
		case strings.HasPrefix(line, "### "):
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, 6, strings.TrimPrefix(line, "### "), "", "L", false)
			pdf.SetFont("Helvetica", "", 11)
		case strings.HasPrefix(line, "- "):
			pdf.MultiCell(0, 6, "* "+strings.TrimPrefix(line, "- "), "", "L", false)
		case line == "---":
			pdf.Ln(3)
		case line == "":
			pdf.Ln(2)
		default:
			pdf.MultiCell(0, 5, line, "", "L", false)
		}
	}

	if len(flows) > 0 {
		writeRouteTable(pdf, flows)
	}

	if pdfErr := pdf.Error(); pdfErr != nil {
		return "", &ExportError{Err: pdfErr}
	}
	if outErr := pdf.OutputFileAndClose(path); outErr != nil {
		return "", &ExportError{Err: outErr}
	}

	log.Info().Str("path", path).Msg("Exported newsletter to PDF")
	return path, nil
}

func writeRouteTable(pdf *fpdf.Fpdf, flows []flow.Record) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 10, "Detailed Data Tables", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(60, 8, "Route", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "Avg (MW)", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Max (MW)", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Min (MW)", "1", 1, "R", false, 0, "")

	summaries := SummarizeRoutes(flows)
	if len(summaries) > maxTrendRows {
		summaries = summaries[:maxTrendRows]
	}

	pdf.SetFont("Helvetica", "", 8)
	for _, s := range summaries {
		route := truncateRunes(sanitizeLatin1(s.Route), 28)
		pdf.CellFormat(60, 8, route, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.0f", s.MeanMW), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.0f", s.MaxMW), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.0f", s.MinMW), "1", 1, "R", false, 0, "")
	}
}

// truncateRunes caps s at n runes; cutting on bytes could split a multi-byte
// character and garble the cp1252 text stream.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// sanitizeLatin1 drops characters the core PDF fonts cannot encode and strips
// markdown bold markers.
func sanitizeLatin1(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= 0xFF {
			b.WriteRune(r)
		}
	}
	return b.String()
}

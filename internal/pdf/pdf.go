// Package pdf renders a one-page purchase-order summary as PDF 1.4 using the
// built-in Helvetica font.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"

	"podocs/internal/model"
)

const (
	pageWidth  = 612 // US Letter, points
	pageHeight = 792
	margin     = 72
	fontSize   = 12
	leading    = 18
)

// Generator produces PDF bytes for a purchase order.
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a Generator stamped with the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Generate renders po as a document of the given type.
func (g *Generator) Generate(ctx context.Context, po model.PurchaseOrder, documentType string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Casers are stateful; one per call keeps Generate safe for concurrent use.
	heading := cases.Title(language.English).String(strings.ReplaceAll(documentType, "_", " "))
	lines := []string{
		heading,
		"",
		"Purchase order: " + po.Number,
		fmt.Sprintf("Purchase order id: %d", po.ID),
		"Status: " + po.Status,
		"Generated: " + g.now().UTC().Format(time.RFC3339),
	}

	content, err := contentStream(lines)
	if err != nil {
		return nil, err
	}
	return assemble(content), nil
}

// contentStream lays lines out top-down in WinAnsi-encoded string operands.
func contentStream(lines []string) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())

	var b bytes.Buffer
	fmt.Fprintf(&b, "BT\n/F1 %d Tf\n%d TL\n%d %d Td\n", fontSize, leading, margin, pageHeight-margin)
	for i, line := range lines {
		encoded, err := enc.String(line)
		if err != nil {
			return nil, fmt.Errorf("encode line %d: %w", i+1, err)
		}
		if i > 0 {
			b.WriteString("T*\n")
		}
		b.WriteString("(")
		b.WriteString(escape(encoded))
		b.WriteString(") Tj\n")
	}
	b.WriteString("ET\n")
	return b.Bytes(), nil
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", `\r`, "\n", `\n`)
	return r.Replace(s)
}

// assemble writes the five objects and a cross-reference table with exact
// byte offsets.
func assemble(content []byte) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>", pageWidth, pageHeight),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content),
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

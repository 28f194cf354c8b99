// Package pdfgen renders the printable prescription document. Downloading
// this document is the action that permanently closes the QR channel, so the
// footer states the token and a DISABLED notice in the rendered artifact.
package pdfgen

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

var ErrNoItems = errors.New("document has no medication items")

// Item is one medication block in the rendered document.
type Item struct {
	Name         string
	Dosage       string
	Frequency    string
	Quantity     string
	Duration     string
	Instructions string
}

// Document is the input to Render.
type Document struct {
	PrescriptionID string
	IssuedAt       time.Time
	Items          []Item
	Token          string
}

// Renderer produces the printable artifact for a prescription.
type Renderer interface {
	Render(doc Document) ([]byte, error)
}

// PDFRenderer renders Documents as PDF bytes.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) Render(doc Document) ([]byte, error) {
	if len(doc.Items) == 0 {
		return nil, ErrNoItems
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 10, "PRESCRIPTION", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 6, strings.Repeat("=", 60), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Prescription ID: %s", doc.PrescriptionID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s", doc.IssuedAt.Format("2006-01-02")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "BU", 14)
	pdf.CellFormat(0, 8, "PRESCRIPTION ITEMS:", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for i, item := range doc.Items {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 6, fmt.Sprintf("%d. %s", i+1, item.Name), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 5, fmt.Sprintf("   Dosage: %s", item.Dosage), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("   Frequency: %s", item.Frequency), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("   Quantity: %s", item.Quantity), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("   Duration: %s", item.Duration), "", 1, "L", false, 0, "")
		if item.Instructions != "" {
			pdf.CellFormat(0, 5, fmt.Sprintf("   Instructions: %s", item.Instructions), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 6, strings.Repeat("=", 60), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	token := doc.Token
	if token == "" {
		token = "N/A"
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("QR Code: %s", token), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetTextColor(200, 0, 0)
	pdf.CellFormat(0, 6, "Status: DISABLED (PDF Downloaded)", "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.MultiCell(0, 5,
		"Note: The QR code for this prescription has been disabled upon PDF download for security purposes.",
		"", "C", false)
	pdf.SetTextColor(0, 0, 0)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render prescription pdf: %w", err)
	}
	return buf.Bytes(), nil
}

package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"village-registry/internal/core/domain"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

// DocumentTitle heads every proof of address
const DocumentTitle = "PROOF OF ADDRESS"

// PDFRenderer renders single page proof-of-address PDFs. Content streams are
// left uncompressed so the printed text can be searched in the raw bytes.
type PDFRenderer struct {
	issuer string
}

// NewPDFRenderer creates a renderer; issuer is printed in the footer
func NewPDFRenderer(issuer string) *PDFRenderer {
	if issuer == "" {
		issuer = "Village Registry Office"
	}
	return &PDFRenderer{issuer: issuer}
}

// Render produces the PDF bytes
func (r *PDFRenderer) Render(ctx context.Context, resident domain.ResidentSnapshot, address domain.AddressSnapshot, meta domain.RenderMeta) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate(resident, address, meta); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(meta.IssuedAt)
	pdf.SetModificationDate(meta.IssuedAt)
	pdf.SetTitle(DocumentTitle, false)
	pdf.SetAuthor(r.issuer, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 14, DocumentTitle, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(0, 6, "This is to certify that the person named below resides at the address shown.", "", "L", false)
	pdf.Ln(4)

	field := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(50, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, value, "", 1, "L", false, 0, "")
	}

	field("Full name:", resident.FullName)
	field("ID number:", resident.IDNumber)
	if resident.DateOfBirth != nil {
		field("Date of birth:", resident.DateOfBirth.Format("2006-01-02"))
	}
	for i, line := range address.Lines() {
		label := ""
		if i == 0 {
			label = "Address:"
		}
		field(label, line)
	}
	pdf.Ln(6)

	field("Reference number:", meta.ReferenceNumber)
	field("Verification code:", meta.VerificationCode)
	field("Date of issue:", meta.IssuedAt.UTC().Format("2006-01-02"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf(
		"Issued by %s. Verify this document by presenting its reference number and verification code to the issuing office.",
		r.issuer), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrapf(domain.ErrRender, "write pdf: %v", err)
	}
	return buf.Bytes(), nil
}

func validate(resident domain.ResidentSnapshot, address domain.AddressSnapshot, meta domain.RenderMeta) error {
	var missing []string
	if strings.TrimSpace(resident.FullName) == "" {
		missing = append(missing, "full name")
	}
	if strings.TrimSpace(resident.IDNumber) == "" {
		missing = append(missing, "id number")
	}
	if len(address.Lines()) == 0 {
		missing = append(missing, "address")
	}
	if meta.ReferenceNumber == "" {
		missing = append(missing, "reference number")
	}
	if meta.VerificationCode == "" {
		missing = append(missing, "verification code")
	}
	if len(missing) > 0 {
		return errors.Wrapf(domain.ErrRender, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

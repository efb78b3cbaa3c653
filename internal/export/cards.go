package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/piwi3910/arcflow/internal/format"
	"github.com/piwi3910/arcflow/internal/model"
	qrcode "github.com/skip2/go-qrcode"
)

// CardInfo holds the data encoded into each pattern card's QR code.
type CardInfo struct {
	BinType  int             `json:"bin_type"` // 1-based
	Capacity []int           `json:"capacity"`
	Pattern  int             `json:"pattern"` // 1-based within the bin type
	Count    int             `json:"count"`
	Items    []model.ItemRef `json:"items"`
	Load     []int           `json:"load"`
}

// Card layout constants for Avery 5160-compatible labels (3 columns, 10 rows per page).
// Each card is approximately 66.7mm x 25.4mm on US Letter paper.
const (
	cardPageWidth  = 215.9 // US Letter width in mm
	cardPageHeight = 279.4 // US Letter height in mm
	cardMarginTop  = 12.7
	cardMarginLeft = 4.8
	cardWidth      = 66.7
	cardHeight     = 25.4
	cardCols       = 3
	cardRows       = 10
	cardsPerPage   = cardCols * cardRows
	qrSize         = 20.0
	cardPadding    = 2.0
)

// ExportCards generates a PDF with one QR-coded card per pattern. Each
// card shows the bin type, multiplicity and packed items and encodes the
// pattern as JSON, so that operators can scan which pattern a bin holds.
func ExportCards(path string, inst *model.Instance, sol *model.Solution) error {
	cards := CollectCardInfos(inst, sol)
	if len(cards) == 0 {
		return fmt.Errorf("no patterns to generate cards for")
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, card := range cards {
		if i%cardsPerPage == 0 {
			pdf.AddPage()
		}

		posOnPage := i % cardsPerPage
		col := posOnPage % cardCols
		row := posOnPage / cardCols

		x := cardMarginLeft + float64(col)*cardWidth
		y := cardMarginTop + float64(row)*cardHeight

		if err := renderCard(pdf, x, y, card); err != nil {
			return fmt.Errorf("failed to render card for pattern %d of bin type %d: %w", card.Pattern, card.BinType, err)
		}
	}

	return pdf.OutputFileAndClose(path)
}

// renderCard draws a single card at the given position.
func renderCard(pdf *fpdf.Fpdf, x, y float64, info CardInfo) error {
	// Light border for cutting guide
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.1)
	pdf.Rect(x, y, cardWidth, cardHeight, "D")

	qrData, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal card info: %w", err)
	}

	qrPNG, err := qrcode.Encode(string(qrData), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}

	imgName := fmt.Sprintf("qr_%d_%d", info.BinType, info.Pattern)
	pdf.RegisterImageOptionsReader(imgName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))

	qrX := x + cardWidth - qrSize - cardPadding
	qrY := y + (cardHeight-qrSize)/2
	pdf.ImageOptions(imgName, qrX, qrY, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	textX := x + cardPadding
	textW := cardWidth - qrSize - 3*cardPadding

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(textX, y+cardPadding)
	title := fmt.Sprintf("Bin %d / Pattern %d", info.BinType, info.Pattern)
	pdf.CellFormat(textW, 4.5, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	pdf.SetXY(textX, y+cardPadding+5)
	pdf.CellFormat(textW, 3.5, fmt.Sprintf("%d bins, load %s", info.Count, joinInts(info.Load, "/")), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 6)
	pdf.SetTextColor(100, 100, 100)
	pdf.SetXY(textX, y+cardPadding+9)
	pdf.CellFormat(textW, 3, truncate(pdf, format.FormatItems(info.Items), textW), "", 1, "L", false, 0, "")

	pdf.SetTextColor(0, 0, 0)

	return pdf.Error()
}

// CollectCardInfos lists one card per pattern of the solution, in bin
// type order.
func CollectCardInfos(inst *model.Instance, sol *model.Solution) []CardInfo {
	var cards []CardInfo
	for t, pats := range sol.Patterns {
		for i, p := range pats {
			cards = append(cards, CardInfo{
				BinType:  t + 1,
				Capacity: inst.Bins[t].W,
				Pattern:  i + 1,
				Count:    p.Count,
				Items:    p.Items,
				Load:     p.Load(inst),
			})
		}
	}
	return cards
}

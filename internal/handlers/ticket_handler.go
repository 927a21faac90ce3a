package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/JACT-22/cobranza-funeraria/config"
	"github.com/JACT-22/cobranza-funeraria/models"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
	"github.com/redis/go-redis/v9"
)

// Ticket page geometry, ~80mm thermal paper in points.
const (
	ticketPageWidth  = 226.77
	ticketPageHeight = 600
	ticketMargin     = 10
)

// ticketHeader is the printed header/footer block of a series, cached per
// series because it is re-read on every print.
type ticketHeader struct {
	Name         string `json:"name"`
	Web          string `json:"web"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	FooterLegend string `json:"footer_legend"`
}

func seriesHeader(series string) ticketHeader {
	header := ticketHeader{
		Name:         "FUNERALES CÁRDENAS",
		FooterLegend: "Gracias por su preferencia",
	}

	cacheKey := "tickets:header:" + series
	if config.RDB != nil {
		cached, err := config.RDB.Get(config.Ctx, cacheKey).Result()
		if err == nil {
			if json.Unmarshal([]byte(cached), &header) == nil {
				return header
			}
		} else if err != redis.Nil {
			slog.Error("Redis GET command failed", "error", err, "key", cacheKey)
		}
	}

	var cfg models.TicketConfig
	if err := config.DB.Where("series = ?", series).First(&cfg).Error; err != nil {
		// Print with the defaults rather than refusing the ticket.
		slog.Warn("Ticket header config not found", "series", series, "error", err)
		return header
	}
	if cfg.HeaderName != "" {
		header.Name = cfg.HeaderName
	}
	// HeaderRFC carries the web site line on current tickets.
	header.Web = cfg.HeaderRFC
	header.Address = cfg.HeaderAddress
	header.Phone = cfg.HeaderPhone
	if cfg.FooterLegend != "" {
		header.FooterLegend = cfg.FooterLegend
	}

	if config.RDB != nil {
		if data, err := json.Marshal(header); err == nil {
			if err := config.RDB.Set(config.Ctx, cacheKey, data, 10*time.Minute).Err(); err != nil {
				slog.Error("Failed to cache ticket header", "error", err, "key", cacheKey)
			}
		}
	}
	return header
}

// TicketPDFHandler renders the stored payment at (series, folio) as a
// printable ticket.
func TicketPDFHandler(c *gin.Context) {
	series := c.Param("series")
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid folio number")
		return
	}

	var payment models.Payment
	if err := config.DB.Where("ticket_series = ? AND ticket_number = ?", series, number).First(&payment).Error; err != nil {
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found")
		return
	}

	var client models.Client
	if err := config.DB.First(&client, payment.ClientID).Error; err != nil {
		slog.Error("Ticket client lookup failed", "error", err, "payment", payment.UUID)
	}
	var collector models.User
	if err := config.DB.First(&collector, payment.CollectorID).Error; err != nil {
		slog.Error("Ticket collector lookup failed", "error", err, "payment", payment.UUID)
	}
	collectorName := collector.Name
	if collectorName == "" {
		collectorName = collector.Username
	}

	header := seriesHeader(series)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: ticketPageWidth, Ht: ticketPageHeight},
	})
	pdf.SetMargins(ticketMargin, ticketMargin, ticketMargin)
	pdf.SetAutoPageBreak(true, ticketMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	contentW := ticketPageWidth - 2*ticketMargin

	hr := func() {
		y := pdf.GetY() + 2
		pdf.SetLineWidth(0.7)
		pdf.Line(ticketMargin, y, ticketMargin+contentW, y)
		pdf.SetY(y + 6)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 12, tr(header.Name), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	if header.Web != "" {
		pdf.CellFormat(contentW, 10, tr(header.Web), "", 1, "C", false, 0, "")
	}
	if header.Phone != "" {
		pdf.CellFormat(contentW, 10, tr("Tel: "+header.Phone), "", 1, "C", false, 0, "")
	}
	if header.Address != "" {
		pdf.MultiCell(contentW, 10, tr(header.Address), "", "C", false)
	}
	pdf.Ln(4)

	pdf.CellFormat(contentW, 10, tr(fmt.Sprintf("Serie/Folio: %s-%06d", series, payment.TicketNumber)), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 10, tr("Fecha: "+payment.ServerTS.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 10, tr("Cobrador: "+collectorName), "", 1, "L", false, 0, "")
	if client.Name != "" {
		pdf.CellFormat(contentW, 10, tr("Cliente: "+client.Name), "", 1, "L", false, 0, "")
	}
	if client.ContractNumber != "" {
		pdf.CellFormat(contentW, 10, tr("Contrato: "+client.ContractNumber), "", 1, "L", false, 0, "")
	}

	hr()
	pdf.CellFormat(contentW*0.65, 10, tr("Abono"), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.35, 10, fmt.Sprintf("%.2f", payment.Amount), "", 1, "R", false, 0, "")
	hr()

	pdf.CellFormat(contentW, 10, fmt.Sprintf("Subtotal: %.2f", payment.Amount), "", 1, "R", false, 0, "")
	pdf.CellFormat(contentW, 10, fmt.Sprintf("Total: %.2f", payment.Amount), "", 1, "R", false, 0, "")
	pdf.Ln(4)
	pdf.CellFormat(contentW, 10, tr("Forma de pago: Efectivo"), "", 1, "L", false, 0, "")
	pdf.Ln(6)
	pdf.CellFormat(contentW, 10, tr(header.FooterLegend), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		slog.Error("Ticket PDF generation failed", "error", err, "series", series, "number", number)
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected error")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="ticket-%s-%06d.pdf"`, series, payment.TicketNumber))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

const printPage = `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>Imprimiendo ticket %s-%s</title>
  <style>
    html,body { height:100%%; margin:0; }
    iframe { width:100%%; height:100%%; border:0; }
  </style>
</head>
<body>
  <iframe id="pdf" src="%s" onload="
    setTimeout(() => {
      try { window.frames[0].focus(); } catch(e) {}
      window.print();
      setTimeout(() => { window.close(); }, 1500);
    }, 350);
  "></iframe>
</body>
</html>`

// TicketPrintHandler serves a page that embeds the ticket PDF and triggers
// the browser print dialog as soon as it loads.
func TicketPrintHandler(c *gin.Context) {
	series := c.Param("series")
	number := c.Param("number")
	pdfURL := fmt.Sprintf("/api/v1/tickets/folio/%s/%s/pdf", series, number)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(printPage, series, number, pdfURL)))
}

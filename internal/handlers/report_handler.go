package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JACT-22/cobranza-funeraria/config"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type paymentExportRow struct {
	TicketSeries   string    `json:"ticket_series"`
	TicketNumber   int       `json:"ticket_number"`
	ServerTS       time.Time `json:"server_ts"`
	ClientName     string    `json:"client_name"`
	ContractNumber string    `json:"contract_number"`
	CollectorName  string    `json:"collector_name"`
	Amount         float64   `json:"amount"`
	Notes          string    `json:"notes"`
}

// ExportPaymentsHandler streams the registered payments as an xlsx file.
// Admin only.
func ExportPaymentsHandler(c *gin.Context) {
	query := config.DB.Table("payments p").
		Select(`
			p.ticket_series,
			p.ticket_number,
			p.server_ts,
			cl.name as client_name,
			cl.contract_number,
			u.name as collector_name,
			p.amount,
			p.notes
		`).
		Joins("LEFT JOIN clients cl ON p.client_id = cl.id").
		Joins("LEFT JOIN users u ON p.collector_id = u.id").
		Where("p.deleted_at IS NULL").
		Order("p.ticket_series ASC, p.ticket_number ASC")

	if dateFrom := c.Query("date_from"); dateFrom != "" {
		query = query.Where("p.server_ts >= ?", dateFrom)
	}
	if dateTo := c.Query("date_to"); dateTo != "" {
		query = query.Where("p.server_ts < ?", dateTo)
	}
	if collectorID := c.Query("collector_id"); collectorID != "" {
		query = query.Where("p.collector_id = ?", collectorID)
	}
	if series := c.Query("series"); series != "" {
		query = query.Where("p.ticket_series = ?", series)
	}

	var rows []paymentExportRow
	if err := query.Scan(&rows).Error; err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch data for export")
		return
	}

	f := excelize.NewFile()
	sheetName := "Cobranza"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Folio", "Fecha", "Cliente", "Contrato", "Cobrador", "Monto", "Notas"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, p := range rows {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("%s-%d", p.TicketSeries, p.TicketNumber))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), p.ServerTS.Format("02.01.2006 15:04"))
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), p.ClientName)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), p.ContractNumber)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), p.CollectorName)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), p.Amount)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), p.Notes)
	}

	fileName := fmt.Sprintf("cobranza_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to write Excel file")
	}
}

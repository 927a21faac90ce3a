package models

import "gorm.io/gorm"

// TicketConfig holds the folio counter and the printed header for one ticket
// series. CurrentNumber is the last folio issued; it only ever grows and is
// mutated exclusively under a row lock inside the payment transaction.
type TicketConfig struct {
	gorm.Model
	UUID          string `json:"uuid" gorm:"size:36;not null"`
	Series        string `json:"series" gorm:"uniqueIndex;size:8;not null"`
	CurrentNumber int    `json:"current_number" gorm:"not null;default:0"`
	HeaderName    string `json:"header_name"`
	HeaderRFC     string `json:"header_rfc"`
	HeaderAddress string `json:"header_address"`
	HeaderPhone   string `json:"header_phone"`
	FooterLegend  string `json:"footer_legend"`
}

func (TicketConfig) TableName() string { return "tickets_config" }

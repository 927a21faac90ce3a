package models

import "gorm.io/gorm"

// Client is a contract holder. Each client is assigned to the collector who
// visits them; payments always resolve the collector through the client.
type Client struct {
	gorm.Model
	UUID           string `json:"uuid" gorm:"uniqueIndex;size:36;not null"`
	Name           string `json:"name" gorm:"not null"`
	ContractNumber string `json:"contract_number"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	CollectorID    uint   `json:"collector_id" gorm:"not null;index"`
	Collector      User   `json:"-" gorm:"foreignKey:CollectorID"`
}

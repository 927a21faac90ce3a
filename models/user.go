package models

import "gorm.io/gorm"

// User is a staff account. Collectors register payments for their assigned
// clients; admins additionally see reports.
type User struct {
	gorm.Model
	UUID         string `json:"uuid" gorm:"uniqueIndex;size:36;not null"`
	Username     string `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"not null"`
	Name         string `json:"name"`
	Role         string `json:"role" gorm:"default:collector"`
	Active       bool   `json:"active" gorm:"default:true"`
}

package handlers

import (
	"net/http"

	"github.com/JACT-22/cobranza-funeraria/config"
	"github.com/JACT-22/cobranza-funeraria/models"

	"github.com/gin-gonic/gin"
)

// ListClientsHandler returns the client directory. With ?mine=true only the
// clients assigned to the calling collector are returned.
func ListClientsHandler(c *gin.Context) {
	query := config.DB.Model(&models.Client{})

	if c.Query("mine") == "true" {
		query = query.Where("collector_id = ?", c.GetUint("collector_id"))
	}

	var clients []models.Client
	if err := query.Order("name ASC").Find(&clients).Error; err != nil {
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch clients")
		return
	}

	c.JSON(http.StatusOK, clients)
}

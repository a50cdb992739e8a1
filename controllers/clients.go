package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"prometeo-backend/config"
	"prometeo-backend/models"
	"prometeo-backend/utils"
)

// Priority cut-offs on the predicted probability.
const (
	highPriorityAbove   = 0.7
	mediumPriorityAbove = 0.4
)

// ClientPriority is one row of the contact priority list.
type ClientPriority struct {
	UserID      string  `json:"user_id"`
	Age         int     `json:"age"`
	IncomeRange string  `json:"income_range"`
	RiskProfile string  `json:"risk_profile"`
	Occupation  string  `json:"occupation"`
	Status      string  `json:"status"`
	Probability float64 `json:"probability"`
	PredBin     *int    `json:"pred_bin"`
	Priority    string  `json:"priority"`
}

// UpdateStatusInput is the body of a status change.
type UpdateStatusInput struct {
	NewStatus string `json:"new_status" binding:"required"`
	Channel   string `json:"channel"`
	Notes     string `json:"notes"`
}

// ClientDetail is a client with its latest score and contact history.
type ClientDetail struct {
	models.Client
	Prediction *models.Prediction `json:"prediction"`
	Contacts   []models.Contact   `json:"contacts"`
}

func priorityFor(probability float64) string {
	switch {
	case probability > highPriorityAbove:
		return "high"
	case probability > mediumPriorityAbove:
		return "medium"
	default:
		return "low"
	}
}

// GetPriorityList returns clients ordered by predicted probability, highest first.
// Clients that were never scored sort last with probability 0.
func GetPriorityList(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid page")
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid size")
		return
	}
	offset, limit := utils.Pagination(page, size)

	rows := []ClientPriority{}
	err = config.DB.WithContext(c.Request.Context()).
		Table("demographics AS d").
		Select(`d.user_id, d.age, d.income_range, d.risk_profile, d.occupation, d.status,
			COALESCE(p.probability, 0) AS probability, p.pred_bin`).
		Joins("LEFT JOIN prediction_results p ON p.user_id = d.user_id").
		Order("probability DESC, d.user_id").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve priority list")
		return
	}

	for i := range rows {
		if rows[i].Status == "" {
			rows[i].Status = models.StatusPending
		}
		rows[i].Priority = priorityFor(rows[i].Probability)
	}
	c.JSON(http.StatusOK, rows)
}

// GetClient retrieves one client with its prediction and contact history
func GetClient(c *gin.Context) {
	db := config.DB.WithContext(c.Request.Context())
	userID := c.Param("id")

	var detail ClientDetail
	if err := db.First(&detail.Client, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Client not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	var prediction models.Prediction
	err := db.First(&prediction, "user_id = ?", userID).Error
	switch {
	case err == nil:
		detail.Prediction = &prediction
	case !errors.Is(err, gorm.ErrRecordNotFound):
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}

	detail.Contacts = []models.Contact{}
	if err := db.Where("user_id = ?", userID).Order("contacted_at DESC").Find(&detail.Contacts).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// UpdateClientStatus moves a client through the contact funnel. Moving to contacted also
// appends a contact history row.
func UpdateClientStatus(c *gin.Context) {
	var input UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	status, ok := utils.NormalizeStatus(input.NewStatus)
	if !ok {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid status: "+input.NewStatus)
		return
	}

	userID := c.Param("id")
	var client models.Client
	err := config.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&client, "user_id = ?", userID).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		client.Status = status
		client.LastContactDate = &now
		if err := tx.Save(&client).Error; err != nil {
			return err
		}
		if status != models.StatusContacted {
			return nil
		}
		channel := input.Channel
		if channel == "" {
			channel = "app"
		}
		notes := input.Notes
		if notes == "" {
			notes = "Status updated via API"
		}
		return tx.Create(&models.Contact{
			UserID:      client.UserID,
			Channel:     channel,
			Status:      status,
			Notes:       notes,
			ContactedAt: now,
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Client not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update client status")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": client.UserID,
		"status":  client.Status,
		"success": true,
	})
}

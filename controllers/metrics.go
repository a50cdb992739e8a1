// controllers/metrics.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"prometeo-backend/config"
	"prometeo-backend/models"
	"prometeo-backend/utils"
)

// MetricsController serves the dashboard KPIs
type MetricsController struct {
	Threshold float64
}

// KPISummary represents the headline numbers of the dashboard
type KPISummary struct {
	TotalClients    int64   `json:"total_clients"`
	ScoredClients   int64   `json:"scored_clients"`
	MeanProbability float64 `json:"mean_probability"`
	Contacted       int64   `json:"contacted"`
	AtRiskCount     int64   `json:"at_risk_count"`
	ConversionRate  float64 `json:"conversion_rate"`
	Threshold       float64 `json:"threshold"`
}

// GetSummary returns the KPI summary
func (mc *MetricsController) GetSummary(c *gin.Context) {
	db := config.DB.WithContext(c.Request.Context())
	summary := KPISummary{Threshold: mc.Threshold}

	if err := db.Model(&models.Client{}).Count(&summary.TotalClients).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to count clients")
		return
	}
	if err := db.Model(&models.Prediction{}).Count(&summary.ScoredClients).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to count predictions")
		return
	}
	if err := db.Model(&models.Prediction{}).
		Select("COALESCE(AVG(probability), 0)").
		Scan(&summary.MeanProbability).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to average probabilities")
		return
	}
	if err := db.Model(&models.Contact{}).Count(&summary.Contacted).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to count contacts")
		return
	}
	if err := db.Model(&models.Prediction{}).
		Where("probability >= ?", mc.Threshold).
		Count(&summary.AtRiskCount).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to count at-risk clients")
		return
	}

	var converted int64
	if err := db.Model(&models.Client{}).Where("status = ?", models.StatusConverted).Count(&converted).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to count conversions")
		return
	}
	if summary.TotalClients > 0 {
		summary.ConversionRate = float64(converted) / float64(summary.TotalClients)
	}

	c.JSON(http.StatusOK, summary)
}

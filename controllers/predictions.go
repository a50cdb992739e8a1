package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"prometeo-backend/config"
	"prometeo-backend/models"
	"prometeo-backend/services"
	"prometeo-backend/utils"
)

// PredictionController exposes stored scores and triggers scoring runs
type PredictionController struct {
	Scoring *services.ScoringService
}

// GetPrediction returns the latest prediction of a client
func (pc *PredictionController) GetPrediction(c *gin.Context) {
	var prediction models.Prediction
	if err := config.DB.WithContext(c.Request.Context()).
		First(&prediction, "user_id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Prediction not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}
	c.JSON(http.StatusOK, prediction)
}

// RunScoring scores every client from the configured source and waits for the result
func (pc *PredictionController) RunScoring(c *gin.Context) {
	run, err := pc.Scoring.ScoreSource(c.Request.Context(), services.TriggerAPI)
	if err != nil {
		if errors.Is(err, services.ErrRunInProgress) {
			utils.RespondWithError(c, http.StatusConflict, err.Error())
			return
		}
		if run != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Scoring run failed", "run": run})
			return
		}
		utils.RespondWithError(c, http.StatusInternalServerError, "Scoring run failed")
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetRun returns a recorded scoring run
func (pc *PredictionController) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid run ID format")
		return
	}
	run, err := pc.Scoring.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Run not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}
	c.JSON(http.StatusOK, run)
}

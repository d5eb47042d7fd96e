package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/postgen/postgen/models"
	"github.com/postgen/postgen/utils"
)

// StatsController provides aggregate counts for the dashboard.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns post, edit and linked account counts.
func (s *StatsController) GetStats(ctx *gin.Context) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	var edits, linked int64

	db := s.db.WithContext(ctx.Request.Context())
	if err := db.Model(&models.Post{}).Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		utils.Fail(ctx, err, nil)
		return
	}
	if err := db.Model(&models.PostHistory{}).Count(&edits).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		utils.Sugar.Warnw("stats: counting post history failed", "err", err)
		edits = 0
	}
	if err := db.Model(&models.LinkedAccount{}).Count(&linked).Error; err != nil {
		utils.Sugar.Warnw("stats: counting linked accounts failed", "err", err)
		linked = 0
	}

	byStatus := map[string]int64{models.PostStatusActive: 0, models.PostStatusDeleted: 0}
	var total int64
	for _, r := range rows {
		byStatus[r.Status] = r.Count
		total += r.Count
	}
	ctx.JSON(http.StatusOK, gin.H{
		"post_count":           total,
		"active_post_count":    byStatus[models.PostStatusActive],
		"deleted_post_count":   byStatus[models.PostStatusDeleted],
		"edit_count":           edits,
		"linked_account_count": linked,
	})
}

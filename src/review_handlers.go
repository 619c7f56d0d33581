package main

import (
	"errors"
	"log"
	"net/http"
	"yrp/src/db"
	"yrp/src/models"
	"yrp/src/types"
	"yrp/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func reviewHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/reviews", func(ctx *gin.Context) {
			var body types.CreateReviewRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			review := models.Review{
				RetreatID:     body.RetreatID,
				UserID:        userId,
				Rating:        body.Rating,
				Location:      body.Location,
				Accommodation: body.Accommodation,
				Food:          body.Food,
				Instructor:    body.Instructor,
				Value:         body.Value,
				Atmosphere:    body.Atmosphere,
				Comment:       body.Comment,
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var retreat models.Retreat
				if err := tx.
					Where(&models.Retreat{ID: body.RetreatID}).
					Select("id").
					First(&retreat).
					Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return utils.ErrRetreatNotFound
					}
					return err
				}
				var existing int64
				if err := tx.
					Model(&models.Review{}).
					Where(&models.Review{RetreatID: body.RetreatID, UserID: userId}).
					Count(&existing).
					Error; err != nil {
					return err
				}
				if existing > 0 {
					return utils.ErrDuplicateReview
				}
				if bookingId := utils.CompletedBookingFor(tx, userId, body.RetreatID); bookingId != nil {
					review.BookingID = bookingId
					review.Verified = true
				}
				if err := tx.Create(&review).Error; err != nil {
					return err
				}
				return utils.RecomputeRetreatRating(tx, body.RetreatID)
			})
			if err != nil {
				log.Printf("Could not create review for retreat [%d]: %s\n", body.RetreatID, err.Error())
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"success": true, "data": review})
		}).
		PUT("/reviews/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateReviewRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			var review models.Review
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Where(&models.Review{ID: params.ID}).
					First(&review).
					Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return utils.ErrReviewNotFound
					}
					return err
				}
				if review.UserID != userId {
					return utils.ErrNotOwner
				}
				updates := map[string]any{}
				if body.Rating != nil {
					updates["rating"] = *body.Rating
				}
				if body.Location != nil {
					updates["location"] = *body.Location
				}
				if body.Accommodation != nil {
					updates["accommodation"] = *body.Accommodation
				}
				if body.Food != nil {
					updates["food"] = *body.Food
				}
				if body.Instructor != nil {
					updates["instructor"] = *body.Instructor
				}
				if body.Value != nil {
					updates["value"] = *body.Value
				}
				if body.Atmosphere != nil {
					updates["atmosphere"] = *body.Atmosphere
				}
				if body.Comment != nil {
					updates["comment"] = *body.Comment
				}
				if len(updates) == 0 {
					return nil
				}
				if err := tx.
					Model(&models.Review{}).
					Where(&models.Review{ID: params.ID}).
					Updates(updates).
					Error; err != nil {
					return err
				}
				if err := tx.Where(&models.Review{ID: params.ID}).First(&review).Error; err != nil {
					return err
				}
				return utils.RecomputeRetreatRating(tx, review.RetreatID)
			})
			if err != nil {
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": review})
		}).
		DELETE("/reviews/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			role := ctx.GetString("role")
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var review models.Review
				if err := tx.
					Where(&models.Review{ID: params.ID}).
					First(&review).
					Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return utils.ErrReviewNotFound
					}
					return err
				}
				if review.UserID != userId && role != types.ROLE_ADMIN {
					return utils.ErrNotOwner
				}
				if err := tx.Unscoped().Delete(&models.Review{}, params.ID).Error; err != nil {
					return err
				}
				return utils.RecomputeRetreatRating(tx, review.RetreatID)
			})
			if err != nil {
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

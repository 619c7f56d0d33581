package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
	"yrp/src/config"
	"yrp/src/db"
	"yrp/src/lib"
	"yrp/src/models"
	"yrp/src/models/scopes"
	"yrp/src/types"
	"yrp/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var retreatSortable = []string{"created_at", "start_date", "price_per_person", "average_rating"}
var retreatSearchable = []string{"title", "location", "style"}

func retreatCacheKey(slug string) string {
	return fmt.Sprintf("retreat:%s", slug)
}

func invalidateRetreatCache(slug string) {
	rd := lib.GetRedisClient()
	if err := rd.Del(context.Background(), retreatCacheKey(slug)).Err(); err != nil {
		log.Printf("[redis] Error invalidating cache for retreat [%s]: %s\n", slug, err.Error())
	}
}

// publicRetreatRoutes serves the browse surface. Only published retreats are
// visible here regardless of query params.
func publicRetreatRoutes(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/retreats", func(ctx *gin.Context) {
			var query types.ListQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			query.Status = string(types.RETREAT_PUBLISHED)
			db := db.GetDb()
			var retreats []models.Retreat
			var total int64
			if err := db.
				Model(&models.Retreat{}).
				Scopes(scopes.WithStatus(query.Status), scopes.WithCategory(query.Category), scopes.Search(query.Search, retreatSearchable...)).
				Count(&total).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			if err := db.
				Model(&models.Retreat{}).
				Scopes(scopes.Listed(&query, retreatSortable, retreatSearchable)).
				Preload("Category").
				Find(&retreats).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"success":    true,
				"data":       retreats,
				"pagination": types.NewPagination(query.Page, query.Limit, total),
			})
		}).
		GET("/retreats/:slug", func(ctx *gin.Context) {
			var params types.SlugRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			rd := lib.GetRedisClient()
			cacheKey := retreatCacheKey(params.Slug)
			cached := rd.JSONGet(context.Background(), cacheKey).Val()
			if cached != "" {
				var retreat models.Retreat
				if err := json.Unmarshal([]byte(cached), &retreat); err == nil {
					ctx.JSON(http.StatusOK, gin.H{"success": true, "data": retreat})
					return
				}
			}
			db := db.GetDb()
			var retreat models.Retreat
			if err := db.
				Where(&models.Retreat{Slug: params.Slug, Status: types.RETREAT_PUBLISHED}).
				Preload("Host").
				Preload("Category").
				First(&retreat).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": utils.ErrRetreatNotFound.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			go func() {
				rd := lib.GetRedisClient()
				if _, err := rd.JSONSet(context.Background(), cacheKey, "$", &retreat).Result(); err != nil {
					log.Printf("[redis] Error caching retreat [%s]: %s\n", params.Slug, err.Error())
					return
				}
				rd.Expire(context.Background(), cacheKey, 10*time.Minute)
			}()
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": retreat})
		}).
		GET("/retreats/:slug/reviews", func(ctx *gin.Context) {
			var params types.SlugRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var query types.ListQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			db := db.GetDb()
			var retreat models.Retreat
			if err := db.
				Where(&models.Retreat{Slug: params.Slug}).
				Select("id").
				First(&retreat).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": utils.ErrRetreatNotFound.Error()})
				return
			}
			var reviews []models.Review
			var total int64
			if err := db.
				Model(&models.Review{}).
				Where(&models.Review{RetreatID: retreat.ID}).
				Count(&total).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			if err := db.
				Model(&models.Review{}).
				Where(&models.Review{RetreatID: retreat.ID}).
				Scopes(scopes.Paginate(query.Page, query.Limit), scopes.Sorted(query.Sort, query.Dir, "created_at", "rating")).
				Preload("User").
				Find(&reviews).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"success":    true,
				"data":       reviews,
				"pagination": types.NewPagination(query.Page, query.Limit, total),
			})
		}).
		GET("/categories", func(ctx *gin.Context) {
			kind := ctx.DefaultQuery("kind", string(types.CATEGORY_RETREAT))
			db := db.GetDb()
			var categories []models.Category
			if err := db.
				Where("kind = ?", kind).
				Order("name asc").
				Find(&categories).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": categories})
		})
	return g
}

func parseRetreatDates(body *types.CreateRetreatRequestBody) (start, end time.Time, deadline *time.Time, err error) {
	start, err = time.Parse(config.TIME_PARSE_FORMAT, body.StartDate)
	if err != nil {
		return
	}
	end, err = time.Parse(config.TIME_PARSE_FORMAT, body.EndDate)
	if err != nil {
		return
	}
	if body.BookingDeadline != nil {
		var d time.Time
		d, err = time.Parse(config.TIME_PARSE_FORMAT, *body.BookingDeadline)
		if err != nil {
			return
		}
		deadline = &d
	}
	return
}

// retreatHandlers carries the host-facing management routes.
func retreatHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/hosting/retreats", func(ctx *gin.Context) {
			hostId := ctx.GetUint("id")
			var query types.ListQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			db := db.GetDb()
			var retreats []models.Retreat
			var total int64
			base := db.
				Model(&models.Retreat{}).
				Where(&models.Retreat{HostID: hostId})
			if err := base.Session(&gorm.Session{}).
				Scopes(scopes.WithStatus(query.Status)).
				Count(&total).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			if err := base.Session(&gorm.Session{}).
				Scopes(scopes.WithStatus(query.Status), scopes.Paginate(query.Page, query.Limit), scopes.Sorted(query.Sort, query.Dir, retreatSortable...)).
				Find(&retreats).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"success":    true,
				"data":       retreats,
				"pagination": types.NewPagination(query.Page, query.Limit, total),
			})
		}).
		POST("/retreats", func(ctx *gin.Context) {
			var body types.CreateRetreatRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			start, end, deadline, err := parseRetreatDates(&body)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			hostId := ctx.GetUint("id")
			status := types.RETREAT_DRAFT
			if body.Publish {
				status = types.RETREAT_PUBLISHED
			}
			currency := body.Currency
			if currency == "" {
				currency = "usd"
			}
			var about *string
			if body.About != "" {
				about = &body.About
			}
			retreat := models.Retreat{
				Title:           body.Title,
				About:           about,
				Location:        body.Location,
				Style:           body.Style,
				CategoryID:      body.CategoryID,
				PricePerPerson:  body.PricePerPerson,
				Currency:        currency,
				MaxParticipants: body.MaxParticipants,
				StartDate:       start,
				EndDate:         end,
				BookingDeadline: deadline,
				Status:          status,
				HostID:          hostId,
			}
			db := db.GetDb()
			err = db.Transaction(func(tx *gorm.DB) error {
				retreat.Slug = utils.UniqueSlug(tx, &models.Retreat{}, body.Title)
				return tx.Create(&retreat).Error
			})
			if err != nil {
				log.Printf("Error creating retreat: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"success": true, "data": retreat})
		}).
		PUT("/retreats/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateRetreatRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			hostId := ctx.GetUint("id")
			var retreat models.Retreat
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Where(&models.Retreat{ID: params.ID}).
					First(&retreat).
					Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return utils.ErrRetreatNotFound
					}
					return err
				}
				if retreat.HostID != hostId {
					return utils.ErrNotOwner
				}
				updates := map[string]any{}
				if body.Title != nil {
					updates["title"] = *body.Title
				}
				if body.About != nil {
					updates["about"] = *body.About
				}
				if body.Location != nil {
					updates["location"] = *body.Location
				}
				if body.Style != nil {
					updates["style"] = *body.Style
				}
				if body.CategoryID != nil {
					updates["category_id"] = *body.CategoryID
				}
				if body.PricePerPerson != nil {
					updates["price_per_person"] = *body.PricePerPerson
				}
				if body.MaxParticipants != nil {
					// Capacity can never shrink below seats already sold.
					if *body.MaxParticipants < retreat.CurrentParticipants {
						return utils.ErrSoldOut
					}
					updates["max_participants"] = *body.MaxParticipants
				}
				if body.BookingDeadline != nil {
					deadline, err := time.Parse(config.TIME_PARSE_FORMAT, *body.BookingDeadline)
					if err != nil {
						return err
					}
					updates["booking_deadline"] = deadline
				}
				if len(updates) == 0 {
					return nil
				}
				if err := tx.
					Model(&models.Retreat{}).
					Where(&models.Retreat{ID: params.ID}).
					Updates(updates).
					Error; err != nil {
					return err
				}
				return tx.Where(&models.Retreat{ID: params.ID}).First(&retreat).Error
			})
			if err != nil {
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			go invalidateRetreatCache(retreat.Slug)
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": retreat})
		}).
		PUT("/retreats/:id/publish", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			hostId := ctx.GetUint("id")
			var retreat models.Retreat
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Where(&models.Retreat{ID: params.ID}).
					First(&retreat).
					Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return utils.ErrRetreatNotFound
					}
					return err
				}
				if retreat.HostID != hostId {
					return utils.ErrNotOwner
				}
				if retreat.Status != types.RETREAT_DRAFT {
					return utils.ErrRetreatNotBookable
				}
				retreat.Status = types.RETREAT_PUBLISHED
				return tx.
					Model(&models.Retreat{}).
					Where(&models.Retreat{ID: params.ID}).
					Update("status", types.RETREAT_PUBLISHED).
					Error
			})
			if err != nil {
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": retreat})
		}).
		POST("/retreats/:id/photos", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			hostId := ctx.GetUint("id")
			var retreat models.Retreat
			db := db.GetDb()
			if err := db.
				Where(&models.Retreat{ID: params.ID}).
				First(&retreat).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": utils.ErrRetreatNotFound.Error()})
				return
			}
			if retreat.HostID != hostId {
				ctx.Status(http.StatusForbidden)
				return
			}
			fh, err := ctx.FormFile("photo")
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			f, err := fh.Open()
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			defer f.Close()
			key := fmt.Sprintf("retreats/%d/%s", retreat.ID, uuid.NewString())
			url, err := lib.S3UploadPhoto(key, f, fh.Header.Get("Content-Type"))
			if err != nil {
				ctx.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "could not store photo"})
				return
			}
			photos := append(retreat.Photos, *url)
			if err := db.
				Model(&models.Retreat{}).
				Where(&models.Retreat{ID: retreat.ID}).
				Update("photos", photos).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			go invalidateRetreatCache(retreat.Slug)
			ctx.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"url": url}})
		}).
		DELETE("/retreats/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			hostId := ctx.GetUint("id")
			var slug string
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var retreat models.Retreat
				if err := tx.
					Where(&models.Retreat{ID: params.ID}).
					First(&retreat).
					Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return utils.ErrRetreatNotFound
					}
					return err
				}
				if retreat.HostID != hostId {
					return utils.ErrNotOwner
				}
				var live int64
				if err := tx.
					Model(&models.Booking{}).
					Where("retreat_id = ? AND status IN (?)", retreat.ID, []types.BookingStatus{types.BOOKING_PENDING, types.BOOKING_CONFIRMED}).
					Count(&live).
					Error; err != nil {
					return err
				}
				if live > 0 {
					return utils.ErrRetreatHasBookings
				}
				slug = retreat.Slug
				if err := tx.
					Model(&models.Retreat{}).
					Where(&models.Retreat{ID: retreat.ID}).
					Update("status", types.RETREAT_ARCHIVED).
					Error; err != nil {
					return err
				}
				return tx.Delete(&models.Retreat{}, retreat.ID).Error
			})
			if err != nil {
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			go invalidateRetreatCache(slug)
			ctx.Status(http.StatusNoContent)
		}).
		POST("/categories", func(ctx *gin.Context) {
			var body types.CreateCategoryRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			category := models.Category{
				Name: body.Name,
				Slug: utils.MakeSlug(body.Name),
				Kind: body.Kind,
			}
			db := db.GetDb()
			if err := db.Create(&category).Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"success": true, "data": category})
		})
	return g
}

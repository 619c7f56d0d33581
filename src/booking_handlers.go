package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"yrp/src/db"
	"yrp/src/middlewares"
	"yrp/src/models"
	"yrp/src/models/scopes"
	"yrp/src/types"
	"yrp/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/yeqown/go-qrcode"
)

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			booking, err := utils.CreateNewBooking(userId, &body)
			if err != nil {
				log.Printf("Could not create booking for user [%d]: %s\n", userId, err.Error())
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"success": true, "data": booking})
		}).
		GET("/bookings", func(ctx *gin.Context) {
			var query types.ListQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var bookings []models.Booking
			var total int64
			if err := db.
				Model(&models.Booking{}).
				Where(&models.Booking{UserID: userId}).
				Scopes(scopes.WithStatus(query.Status)).
				Count(&total).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			if err := db.
				Model(&models.Booking{}).
				Where(&models.Booking{UserID: userId}).
				Scopes(scopes.WithStatus(query.Status), scopes.Paginate(query.Page, query.Limit), scopes.Sorted(query.Sort, query.Dir, "created_at", "status")).
				Preload("Retreat").
				Find(&bookings).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"success":    true,
				"data":       bookings,
				"pagination": types.NewPagination(query.Page, query.Limit, total),
			})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Where(&models.Booking{ID: params.ID, UserID: userId}).
				Preload("Retreat").
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": utils.ErrBookingNotFound.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": booking})
		}).
		PUT("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			booking, err := utils.UpdateBookingStatus(params.ID, userId, types.BOOKING_CANCELED)
			if err != nil {
				log.Printf("Could not cancel booking [%d]: %s\n", params.ID, err.Error())
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": booking})
		}).
		GET("/bookings/:id/qr", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Where(&models.Booking{ID: params.ID, UserID: userId}).
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": utils.ErrBookingNotFound.Error()})
				return
			}
			if booking.Status != types.BOOKING_CONFIRMED && booking.Status != types.BOOKING_COMPLETED {
				ctx.JSON(http.StatusConflict, gin.H{"success": false, "error": "booking has no valid pass"})
				return
			}
			qrc, err := qrcode.New(booking.Reference)
			if err != nil {
				log.Printf("Could not build qrcode for booking [%d]: %s\n", booking.ID, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			tempdir := os.Getenv("TEMP_DIR")
			filepath := path.Join(tempdir, fmt.Sprintf("%s.jpeg", booking.Reference))
			if err := qrc.Save(filepath); err != nil {
				log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.FileAttachment(filepath, "booking-pass.jpeg")
		})

	// Status transitions other than self-cancel are a host concern.
	hosting := g.Group("/hosting", middlewares.HostOnly)
	hosting.
		GET("/retreats/:id/bookings", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			hostId := ctx.GetUint("id")
			db := db.GetDb()
			var retreat models.Retreat
			if err := db.
				Where(&models.Retreat{ID: params.ID}).
				Select("id", "host_id").
				First(&retreat).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": utils.ErrRetreatNotFound.Error()})
				return
			}
			if retreat.HostID != hostId {
				ctx.Status(http.StatusForbidden)
				return
			}
			var bookings []models.Booking
			if err := db.
				Where(&models.Booking{RetreatID: retreat.ID}).
				Preload("User").
				Order("created_at desc").
				Find(&bookings).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": bookings, "count": len(bookings)})
		}).
		PUT("/bookings/:id/status", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateBookingStatusRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			hostId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Where(&models.Booking{ID: params.ID}).
				Preload("Retreat").
				First(&booking).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": utils.ErrBookingNotFound.Error()})
				return
			}
			if booking.Retreat == nil || booking.Retreat.HostID != hostId {
				ctx.Status(http.StatusForbidden)
				return
			}
			updated, err := utils.UpdateBookingStatus(params.ID, 0, body.NewStatus)
			if err != nil {
				log.Printf("Could not update booking [%d] status: %s\n", params.ID, err.Error())
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": updated})
		})
	return g
}

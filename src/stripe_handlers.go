package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"yrp/src/db"
	"yrp/src/lib"
	"yrp/src/models"
	"yrp/src/types"
	"yrp/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

// minorUnits converts a decimal amount into the integer representation
// Stripe expects.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "payment_intent.succeeded":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			log.Printf("[PaymentIntent] ID: %s %s\n", pi.ID, pi.Status)
			bookingId, err := strconv.Atoi(pi.Metadata["booking_id"])
			if err != nil {
				log.Printf("Could not read booking id for PaymentIntent %s: %s\n", pi.ID, err.Error())
				break
			}
			if _, err := utils.ConfirmBooking(uint(bookingId), pi.ID); err != nil {
				log.Printf("Error confirming booking [%d] from webhook: %s\n", bookingId, err.Error())
			}
		case "payment_intent.payment_failed":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			// The booking stays pending; the payment window sweep releases
			// the seats if no retry succeeds.
			log.Printf("[PaymentIntent] payment failed for %s (booking %s)\n", pi.ID, pi.Metadata["booking_id"])
		case "charge.refunded":
			var ch stripe.Charge
			if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
				log.Printf("[Stripe] Error parsing Charge: %s\n", err.Error())
				break
			}
			if ch.PaymentIntent == nil {
				break
			}
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Where("payment_intent_id = ?", ch.PaymentIntent.ID).
				First(&booking).
				Error; err != nil {
				log.Printf("No booking found for refunded PaymentIntent %s\n", ch.PaymentIntent.ID)
				break
			}
			if booking.Status == types.BOOKING_REFUNDED {
				break
			}
			if _, err := utils.UpdateBookingStatus(booking.ID, 0, types.BOOKING_REFUNDED); err != nil {
				log.Printf("Error marking booking [%d] refunded: %s\n", booking.ID, err.Error())
			}
		}
		ctx.Status(http.StatusNoContent)
	})
	return apiv1
}

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings/:id/payment-intent", func(ctx *gin.Context) {
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
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"success": false, "error": utils.ErrBookingNotFound.Error()})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			if booking.Status != types.BOOKING_PENDING {
				ctx.JSON(http.StatusConflict, gin.H{"success": false, "error": "booking is not awaiting payment"})
				return
			}
			if booking.PaymentIntentId != nil {
				// Reuse the open intent instead of minting a new one.
				pi, err := lib.RetrievePaymentIntent(*booking.PaymentIntentId)
				if err == nil && pi.Status != stripe.PaymentIntentStatusCanceled {
					ctx.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
						"payment_intent_id": pi.ID,
						"client_secret":     pi.ClientSecret,
					}})
					return
				}
			}
			pi, err := lib.CreatePaymentIntent(minorUnits(booking.NetAmount), booking.Currency, map[string]string{
				"booking_id": fmt.Sprint(booking.ID),
				"reference":  booking.Reference,
			})
			if err != nil {
				log.Printf("Error creating PaymentIntent for booking [%d]: %s\n", booking.ID, err.Error())
				ctx.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "could not initialize payment"})
				return
			}
			if err := db.
				Model(&models.Booking{}).
				Where(&models.Booking{ID: booking.ID}).
				Update("payment_intent_id", pi.ID).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{
				"payment_intent_id": pi.ID,
				"client_secret":     pi.ClientSecret,
			}})
		}).
		POST("/bookings/:id/confirm", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.ConfirmBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
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
			// Never trust the client's word for it. The intent is re-read
			// from Stripe and must be terminal and tied to this booking.
			pi, err := lib.RetrievePaymentIntent(body.PaymentIntentID)
			if err != nil {
				log.Printf("Error retrieving PaymentIntent %s: %s\n", body.PaymentIntentID, err.Error())
				ctx.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "could not verify payment"})
				return
			}
			if pi.Metadata["booking_id"] != fmt.Sprint(booking.ID) {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": utils.ErrPaymentMismatch.Error()})
				return
			}
			if pi.Status != stripe.PaymentIntentStatusSucceeded {
				ctx.JSON(http.StatusConflict, gin.H{"success": false, "error": utils.ErrPaymentNotSucceeded.Error()})
				return
			}
			confirmed, err := utils.ConfirmBooking(booking.ID, pi.ID)
			if err != nil {
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": confirmed})
		}).
		POST("/bookings/:id/refund", func(ctx *gin.Context) {
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
			if booking.Status != types.BOOKING_CANCELED || booking.PaymentIntentId == nil {
				ctx.JSON(http.StatusConflict, gin.H{"success": false, "error": "booking is not eligible for a refund"})
				return
			}
			refund, err := lib.RefundPaymentIntent(*booking.PaymentIntentId)
			if err != nil {
				log.Printf("Error refunding booking [%d]: %s\n", booking.ID, err.Error())
				ctx.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "could not process refund"})
				return
			}
			updated, err := utils.UpdateBookingStatus(booking.ID, userId, types.BOOKING_REFUNDED)
			if err != nil {
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
				"booking": updated,
				"refund":  refund.ID,
			}})
		})
	return g
}

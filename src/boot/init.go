package boot

import (
	"log"
	"time"
	"yrp/src/db"
	"yrp/src/lib"
	"yrp/src/models"
	"yrp/src/utils"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Retreat{},
		&models.Booking{},
		&models.Review{},
		&models.BlogPost{},
		&models.Coupon{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler registers the recurring sweeps: releasing seats held by
// bookings that never paid, and closing out retreats that have ended.
func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	if id, err := lib.CreateCronJob(utils.ExpirePendingBookings, 5*time.Minute); err != nil {
		log.Printf("Error scheduling booking expiry sweep: %s\n", err.Error())
	} else {
		log.Printf("Scheduled booking expiry sweep: %s\n", *id)
	}
	if id, err := lib.CreateCronJob(utils.CompleteFinishedRetreats, time.Hour); err != nil {
		log.Printf("Error scheduling retreat completion sweep: %s\n", err.Error())
	} else {
		log.Printf("Scheduled retreat completion sweep: %s\n", *id)
	}
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
	"yrp/src/db"
	"yrp/src/middlewares"
	"yrp/src/types"
	"yrp/src/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB        *gorm.DB
	Mock      sqlmock.Sqlmock
	Token     string
	HostToken string
}

var testJwtKey = []byte(os.Getenv("JWT_SECRET"))

// authMiddleware trusts the token claims directly so handler tests never
// need a user row in the mock database.
func authMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	reqToken := strings.Split(bearerToken, " ")[1]
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return testJwtKey, nil
	})
	if err != nil || !tkn.Valid {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	uid, err := strconv.Atoi(claims.Subject)
	if err != nil {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	ctx.Set("id", uint(uid))
	ctx.Set("email", claims.Email)
	ctx.Set("role", claims.Role)
}

func NewMockDB() (*gorm.DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}

	return gormDB, mock
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	registerValidators()

	d, mock := NewMockDB()
	db.NewDB(d)
	s.DB = d
	s.Mock = mock

	token, err := utils.GenerateJWT("member@example.com", 7, types.ROLE_MEMBER)
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	s.Token = token

	hostToken, err := utils.GenerateJWT("host@example.com", 3, types.ROLE_HOST)
	if err != nil {
		log.Fatalf("Error generating JWT token: %s\n", err.Error())
	}
	s.HostToken = hostToken
}

func (s *TestSuite) TestPingRoute() {
	router := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Setenv("MAINTENANCE_MODE", "false")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestUnauthorized() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(middlewares.AuthMiddleware)
	bookingHandlers(apiv1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/bookings", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 401, w.Code)
}

func (s *TestSuite) TestListRetreats() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	publicRetreatRoutes(apiv1)

	s.Mock.ExpectQuery(`SELECT count\(\*\) FROM "retreats"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	s.Mock.ExpectQuery(`SELECT \* FROM "retreats"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/retreats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	rbytes, err := io.ReadAll(w.Body)
	assert.Nil(s.T(), err)
	sjson := string(rbytes)
	assert.True(s.T(), gjson.Get(sjson, "success").Bool())
	assert.Equal(s.T(), int64(0), gjson.Get(sjson, "pagination.total").Int())
}

func (s *TestSuite) TestCreateBookingValidation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	bookingHandlers(apiv1)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(`{}`))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
	rbytes, _ := io.ReadAll(w.Body)
	assert.NotEmpty(s.T(), gjson.Get(string(rbytes), "error").String())
}

func retreatRow(maxParticipants, currentParticipants uint, start, end time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "slug", "price_per_person", "currency",
		"max_participants", "current_participants", "start_date", "end_date", "status", "host_id",
	}).AddRow(
		1, "Sunrise Vinyasa Week", "sunrise-vinyasa-week", 900.0, "usd",
		maxParticipants, currentParticipants, start, end, "published", 3,
	)
}

func (s *TestSuite) TestCreateBookingSoldOut() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	bookingHandlers(apiv1)

	start := time.Now().Add(30 * 24 * time.Hour)
	end := start.Add(7 * 24 * time.Hour)
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT \* FROM "retreats"`).
		WillReturnRows(retreatRow(10, 10, start, end))
	s.Mock.ExpectRollback()

	body := `{"retreat":1,"participants":2}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 409, w.Code)
	rbytes, _ := io.ReadAll(w.Body)
	sjson := string(rbytes)
	assert.False(s.T(), gjson.Get(sjson, "success").Bool())
	assert.Contains(s.T(), gjson.Get(sjson, "error").String(), "not enough seats")
}

func (s *TestSuite) TestCreateBookingSuccess() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	bookingHandlers(apiv1)

	start := time.Now().Add(30 * 24 * time.Hour)
	end := start.Add(7 * 24 * time.Hour)
	// Exact fill: 8 of 10 seats taken, the last 2 requested.
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT \* FROM "retreats"`).
		WillReturnRows(retreatRow(10, 8, start, end))
	s.Mock.ExpectExec(`UPDATE "retreats"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectQuery(`INSERT INTO "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	s.Mock.ExpectCommit()

	body := `{"retreat":1,"participants":2}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 201, w.Code)
	rbytes, _ := io.ReadAll(w.Body)
	sjson := string(rbytes)
	assert.True(s.T(), gjson.Get(sjson, "success").Bool())
	assert.Equal(s.T(), "pending", gjson.Get(sjson, "data.status").String())
	assert.Equal(s.T(), int64(2), gjson.Get(sjson, "data.participants").Int())
	assert.Equal(s.T(), 1800.0, gjson.Get(sjson, "data.net_amount").Float())
	assert.NotEmpty(s.T(), gjson.Get(sjson, "data.reference").String())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestCreateBookingSoldOutRace() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	bookingHandlers(apiv1)

	start := time.Now().Add(30 * 24 * time.Hour)
	end := start.Add(7 * 24 * time.Hour)
	// The snapshot shows free seats but the guarded increment matches no
	// row, as when a concurrent booking takes them first.
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT \* FROM "retreats"`).
		WillReturnRows(retreatRow(10, 8, start, end))
	s.Mock.ExpectExec(`UPDATE "retreats"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.Mock.ExpectRollback()

	body := `{"retreat":1,"participants":2}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 409, w.Code)
	rbytes, _ := io.ReadAll(w.Body)
	sjson := string(rbytes)
	assert.False(s.T(), gjson.Get(sjson, "success").Bool())
	assert.Contains(s.T(), gjson.Get(sjson, "error").String(), "not enough seats")
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func bookingRow(status string, participants uint) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reference", "retreat_id", "user_id", "participants",
		"gross_amount", "discount_amount", "net_amount", "currency", "status",
	}).AddRow(
		1, "9c1f2c1e-booking-ref", 1, 7, participants,
		1800.0, 0.0, 1800.0, "usd", status,
	)
}

func (s *TestSuite) TestCancelBookingReleasesSeats() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	bookingHandlers(apiv1)

	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(bookingRow("confirmed", 2))
	s.Mock.ExpectExec(`UPDATE "retreats"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/bookings/1/cancel", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	rbytes, _ := io.ReadAll(w.Body)
	sjson := string(rbytes)
	assert.True(s.T(), gjson.Get(sjson, "success").Bool())
	assert.Equal(s.T(), "cancelled", gjson.Get(sjson, "data.status").String())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestCancelBookingAlreadyCancelled() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	bookingHandlers(apiv1)

	// A repeated cancel commits without touching the seat counter.
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT \* FROM "bookings"`).
		WillReturnRows(bookingRow("cancelled", 2))
	s.Mock.ExpectCommit()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/v1/bookings/1/cancel", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 200, w.Code)
	rbytes, _ := io.ReadAll(w.Body)
	sjson := string(rbytes)
	assert.True(s.T(), gjson.Get(sjson, "success").Bool())
	assert.Equal(s.T(), "cancelled", gjson.Get(sjson, "data.status").String())
	assert.Nil(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *TestSuite) TestCreateBookingDeadlinePassed() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	bookingHandlers(apiv1)

	start := time.Now().Add(-24 * time.Hour)
	end := start.Add(7 * 24 * time.Hour)
	s.Mock.ExpectBegin()
	s.Mock.ExpectQuery(`SELECT \* FROM "retreats"`).
		WillReturnRows(retreatRow(10, 0, start, end))
	s.Mock.ExpectRollback()

	body := `{"retreat":1,"participants":1}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 409, w.Code)
	rbytes, _ := io.ReadAll(w.Body)
	assert.Contains(s.T(), gjson.Get(string(rbytes), "error").String(), "deadline")
}

func (s *TestSuite) TestCreateRetreatValidation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	host := apiv1.Group("", middlewares.HostOnly)
	retreatHandlers(host)

	s.Run("rejects past start date", func() {
		body := map[string]any{
			"title":            "Mountain Hatha Escape",
			"location":         "Rishikesh, India",
			"price_per_person": 750,
			"max_participants": 12,
			"start_date":       time.Now().Add(-48 * time.Hour).Format("2006-01-02 15:04:05 -07:00"),
			"end_date":         time.Now().Add(72 * time.Hour).Format("2006-01-02 15:04:05 -07:00"),
		}
		rbytes, _ := json.Marshal(&body)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/retreats", strings.NewReader(string(rbytes)))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.HostToken))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("rejects end date before start date", func() {
		body := map[string]any{
			"title":            "Mountain Hatha Escape",
			"location":         "Rishikesh, India",
			"price_per_person": 750,
			"max_participants": 12,
			"start_date":       time.Now().Add(96 * time.Hour).Format("2006-01-02 15:04:05 -07:00"),
			"end_date":         time.Now().Add(48 * time.Hour).Format("2006-01-02 15:04:05 -07:00"),
		}
		rbytes, _ := json.Marshal(&body)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/retreats", strings.NewReader(string(rbytes)))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.HostToken))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 400, w.Code)
	})

	s.Run("forbids non-hosts", func() {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/retreats", strings.NewReader(`{}`))
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
		router.ServeHTTP(w, req)

		assert.Equal(s.T(), 403, w.Code)
	})
}

func (s *TestSuite) TestCreateReviewValidation() {
	router := setupRouter()
	apiv1 := apiv1Group(router)
	apiv1.Use(authMiddleware)
	reviewHandlers(apiv1)

	body := `{"retreat":1,"rating":6}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/reviews", strings.NewReader(body))
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.Token))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
	rbytes, _ := io.ReadAll(w.Body)
	assert.NotEmpty(s.T(), gjson.Get(string(rbytes), "error").String())
}

func (s *TestSuite) TestWebhookRejectsUnsignedPayload() {
	router := setupRouter()
	stripeWebhookRoute(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/webhook/stripe", strings.NewReader(`{"type":"payment_intent.succeeded"}`))
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 400, w.Code)
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}

package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
	"yrp/src/db"
	"yrp/src/lib"
	"yrp/src/models"
	"yrp/src/types"
	"yrp/src/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type googleProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func googleOauthConfig(redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = os.Getenv("GOOGLE_REDIRECT_URL")
	}
	return &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  redirectURI,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

func fetchGoogleProfile(ctx context.Context, conf *oauth2.Config, code string) (*googleProfile, error) {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Printf("Error exchanging authorization code: %s\n", err.Error())
		return nil, err
	}
	client := conf.Client(ctx, tok)
	res, err := client.Get(googleUserInfoURL)
	if err != nil {
		log.Printf("Error fetching user info: %s\n", err.Error())
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", res.StatusCode)
	}
	var profile googleProfile
	if err := json.NewDecoder(res.Body).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// AuthLogin exchanges a Google authorization code for a local session token.
// First login provisions the local user row.
func AuthLogin(ctx *gin.Context) (token *string, status int, err error) {
	var body types.GoogleLoginRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	conf := googleOauthConfig(body.RedirectURI)
	profile, err := fetchGoogleProfile(ctx.Request.Context(), conf, body.Code)
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}

	db := db.GetDb()
	var muser models.User
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where(&models.User{Email: profile.Email}).
			Attrs(&models.User{
				Name:        profile.Name,
				Provider:    "google",
				ProviderUID: profile.ID,
				AvatarURL:   &profile.Picture,
				Role:        types.ROLE_MEMBER,
			}).
			FirstOrCreate(&muser).
			Error; err != nil {
			log.Printf("Error provisioning user %s: %s\n", profile.Email, err.Error())
			return err
		}
		return tx.
			Model(&models.User{}).
			Where("id", muser.ID).
			Update("last_active", time.Now()).
			Error
	})
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	jwt, err := utils.GenerateJWT(muser.Email, muser.ID, muser.Role)
	if err != nil {
		log.Printf("Error signing token for user [%d]: %s\n", muser.ID, err.Error())
		return nil, http.StatusInternalServerError, err
	}

	rd := lib.GetRedisClient()
	if _, err := rd.JSONSet(ctx, fmt.Sprintf("%d:user", muser.ID), "$", &muser).Result(); err != nil {
		log.Printf("[redis] Error updating user cache: %s\n", err.Error())
	}

	return &jwt, http.StatusOK, nil
}

// AuthProfile returns the session user, served from the redis cache when warm.
func AuthProfile(ctx *gin.Context) (*models.User, int, error) {
	id := ctx.GetUint("id")
	rd := lib.GetRedisClient()
	cached := rd.JSONGet(ctx, fmt.Sprintf("%d:user", id), "$").Val()
	if cached != "" {
		var users []models.User
		if err := json.Unmarshal([]byte(cached), &users); err == nil && len(users) > 0 {
			return &users[0], http.StatusOK, nil
		}
	}
	db := db.GetDb()
	var user models.User
	if err := db.
		Where(&models.User{ID: id}).
		First(&user).
		Error; err != nil {
		return nil, http.StatusNotFound, err
	}
	if _, err := rd.JSONSet(ctx, fmt.Sprintf("%d:user", id), "$", &user).Result(); err != nil {
		log.Printf("[redis] Error updating user cache: %s\n", err.Error())
	}
	return &user, http.StatusOK, nil
}

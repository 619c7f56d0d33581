package main

import (
	"errors"
	"log"
	"net/http"
	"time"
	"yrp/src/db"
	"yrp/src/models"
	"yrp/src/models/scopes"
	"yrp/src/types"
	"yrp/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var blogSortable = []string{"created_at", "published_at", "title"}
var blogSearchable = []string{"title", "excerpt"}

func publicBlogRoutes(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/blog", func(ctx *gin.Context) {
			var query types.ListQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			db := db.GetDb()
			var posts []models.BlogPost
			var total int64
			if err := db.
				Model(&models.BlogPost{}).
				Where("published = ?", true).
				Scopes(scopes.WithCategory(query.Category), scopes.Search(query.Search, blogSearchable...)).
				Count(&total).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			if err := db.
				Model(&models.BlogPost{}).
				Where("published = ?", true).
				Scopes(scopes.WithCategory(query.Category), scopes.Search(query.Search, blogSearchable...), scopes.Sorted(query.Sort, query.Dir, blogSortable...), scopes.Paginate(query.Page, query.Limit)).
				Select("id", "title", "slug", "excerpt", "category_id", "author_id", "published_at", "created_at").
				Preload("Author").
				Preload("Category").
				Find(&posts).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"success":    true,
				"data":       posts,
				"pagination": types.NewPagination(query.Page, query.Limit, total),
			})
		}).
		GET("/blog/:slug", func(ctx *gin.Context) {
			var params types.SlugRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var post models.BlogPost
			if err := db.
				Where("slug = ? AND published = ?", params.Slug, true).
				Preload("Author").
				Preload("Category").
				First(&post).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": post})
		})
	return g
}

func blogHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/blog", func(ctx *gin.Context) {
			var body types.CreateBlogPostRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			authorId := ctx.GetUint("id")
			post := models.BlogPost{
				Title:      body.Title,
				Excerpt:    body.Excerpt,
				Body:       body.Body,
				CategoryID: body.CategoryID,
				AuthorID:   authorId,
				Published:  body.Publish,
			}
			if body.Publish {
				now := time.Now()
				post.PublishedAt = &now
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				post.Slug = utils.UniqueSlug(tx, &models.BlogPost{}, body.Title)
				return tx.Create(&post).Error
			})
			if err != nil {
				log.Printf("Error creating blog post: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"success": true, "data": post})
		}).
		PUT("/blog/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateBlogPostRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
				return
			}
			authorId := ctx.GetUint("id")
			role := ctx.GetString("role")
			var post models.BlogPost
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.
					Where(&models.BlogPost{ID: params.ID}).
					First(&post).
					Error; err != nil {
					return err
				}
				if post.AuthorID != authorId && role != types.ROLE_ADMIN {
					return utils.ErrNotOwner
				}
				updates := map[string]any{}
				if body.Title != nil {
					updates["title"] = *body.Title
				}
				if body.Excerpt != nil {
					updates["excerpt"] = *body.Excerpt
				}
				if body.Body != nil {
					updates["body"] = *body.Body
				}
				if body.CategoryID != nil {
					updates["category_id"] = *body.CategoryID
				}
				if body.Publish != nil {
					updates["published"] = *body.Publish
					if *body.Publish && post.PublishedAt == nil {
						updates["published_at"] = time.Now()
					}
				}
				if len(updates) == 0 {
					return nil
				}
				if err := tx.
					Model(&models.BlogPost{}).
					Where(&models.BlogPost{ID: params.ID}).
					Updates(updates).
					Error; err != nil {
					return err
				}
				return tx.Where(&models.BlogPost{ID: params.ID}).First(&post).Error
			})
			if err != nil {
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"success": true, "data": post})
		}).
		DELETE("/blog/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			authorId := ctx.GetUint("id")
			role := ctx.GetString("role")
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				var post models.BlogPost
				if err := tx.
					Where(&models.BlogPost{ID: params.ID}).
					First(&post).
					Error; err != nil {
					return err
				}
				if post.AuthorID != authorId && role != types.ROLE_ADMIN {
					return utils.ErrNotOwner
				}
				return tx.Delete(&models.BlogPost{}, params.ID).Error
			})
			if err != nil {
				ctx.JSON(utils.ErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

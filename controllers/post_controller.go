package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postgen/postgen/models"
	"github.com/postgen/postgen/services"
	"github.com/postgen/postgen/utils"
)

// PostController exposes post generation, listing, editing and soft delete.
type PostController struct {
	posts *services.PostService
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *services.PostService) *PostController {
	return &PostController{posts: posts}
}

// Generate asks the AI provider for a new post and stores it.
func (p *PostController) Generate(ctx *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
		Title  string `json:"title"`
	}
	if err := bindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err, nil)
		return
	}

	post, err := p.posts.Generate(ctx.Request.Context(), req.Prompt, req.Title)
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"title": post.Title, "post": post.Content, "id": post.ID})
}

func postView(post models.Post) gin.H {
	return gin.H{
		"id":         post.ID,
		"prompt":     post.Prompt,
		"title":      post.Title,
		"content":    post.Content,
		"status":     post.Status,
		"created_at": post.CreatedAt.Format(timeLayout),
	}
}

// ListPosts returns posts newest first. ?status=active hides soft deleted posts.
func (p *PostController) ListPosts(ctx *gin.Context) {
	filter, err := services.ParseStatusFilter(ctx.Query("status"))
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}

	posts, err := p.posts.List(ctx.Request.Context(), filter)
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}
	items := make([]gin.H, 0, len(posts))
	for _, post := range posts {
		items = append(items, postView(post))
	}
	ctx.JSON(http.StatusOK, gin.H{"posts": items})
}

// EditPost replaces title and content, recording the previous content in history.
func (p *PostController) EditPost(ctx *gin.Context) {
	failed := gin.H{"success": false}
	id, err := postID(ctx)
	if err != nil {
		utils.Fail(ctx, err, failed)
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := bindJSON(ctx, &req); err != nil {
		utils.Fail(ctx, err, failed)
		return
	}

	post, err := p.posts.Edit(ctx.Request.Context(), id, req.Title, req.Content)
	if err != nil {
		utils.Fail(ctx, err, failed)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Post updated!",
		"new_title":   post.Title,
		"new_content": post.Content,
	})
}

// PostHistory lists the previous versions of a post, newest first.
func (p *PostController) PostHistory(ctx *gin.Context) {
	id, err := postID(ctx)
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}

	entries, err := p.posts.History(ctx.Request.Context(), id)
	if err != nil {
		utils.Fail(ctx, err, nil)
		return
	}
	history := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		history = append(history, gin.H{
			"edited_at":        e.EditedAt.Format(timeLayout),
			"previous_content": e.PreviousContent,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"history": history})
}

// DeletePost soft deletes a post.
func (p *PostController) DeletePost(ctx *gin.Context) {
	p.setStatus(ctx, p.posts.SoftDelete)
}

// RestorePost undoes a soft delete.
func (p *PostController) RestorePost(ctx *gin.Context) {
	p.setStatus(ctx, p.posts.Restore)
}

func (p *PostController) setStatus(ctx *gin.Context, op func(ctx context.Context, id uint) (*models.Post, error)) {
	failed := gin.H{"success": false}
	id, err := postID(ctx)
	if err != nil {
		utils.Fail(ctx, err, failed)
		return
	}
	post, err := op(ctx.Request.Context(), id)
	if err != nil {
		utils.Fail(ctx, err, failed)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "status": post.Status})
}

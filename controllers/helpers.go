package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/postgen/postgen/common"
)

const timeLayout = "2006-01-02 15:04:05"

var errInvalidJSON = common.Validation("Invalid JSON payload")

// bindJSON decodes the request body, mapping any decode failure to errInvalidJSON.
func bindJSON(ctx *gin.Context, v interface{}) error {
	if err := ctx.ShouldBindJSON(v); err != nil {
		return errInvalidJSON
	}
	return nil
}

// postID parses the :id path parameter. Malformed ids can never match a post.
func postID(ctx *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("id")), 10, 64)
	if err != nil || id == 0 {
		return 0, common.NotFound("Post not found")
	}
	return uint(id), nil
}

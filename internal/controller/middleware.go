package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tdhoang/prepwise/internal/dto"
	"github.com/tdhoang/prepwise/internal/service"
)

const callerKey = "caller"

// CallerMiddleware turns the authenticated user header into an explicit
// Caller object. Upstream auth is expected to have verified the identity;
// this service only requires that it is present and well-formed.
func CallerMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := ctx.GetHeader("X-User-ID")
		if raw == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Missing X-User-ID header"})
			return
		}
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Invalid X-User-ID header"})
			return
		}
		ctx.Set(callerKey, service.Caller{UserID: uint(id)})
		ctx.Next()
	}
}

func callerFrom(ctx *gin.Context) service.Caller {
	v, _ := ctx.Get(callerKey)
	caller, _ := v.(service.Caller)
	return caller
}

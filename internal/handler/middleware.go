package handler

import (
	"errors"
	"net/http"

	"pickup-service/internal/model"
	"pickup-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const actorKey = "actor"

// ActorMiddleware trusts the identity headers set by the auth gateway and
// stashes the resulting actor in the request context.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		role := c.GetHeader("X-User-Role")

		if userID == "" || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized"))
			return
		}

		id, err := uuid.Parse(userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("invalid user ID"))
			return
		}

		switch model.Role(role) {
		case model.RoleResident, model.RoleCollector, model.RoleAdmin:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("invalid role"))
			return
		}

		c.Set(actorKey, service.Actor{ID: id, Role: model.Role(role)})
		c.Next()
	}
}

// RequireRole rejects requests whose actor is not one of the given roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse("access denied"))
	}
}

func GetActor(c *gin.Context) service.Actor {
	actor, _ := c.MustGet(actorKey).(service.Actor)
	return actor
}

func successResponse(message string, data gin.H) gin.H {
	resp := gin.H{"success": true}
	if message != "" {
		resp["message"] = message
	}
	if data != nil {
		resp["data"] = data
	}
	return resp
}

func errorResponse(message string) gin.H {
	return gin.H{"success": false, "message": message}
}

// writeServiceError maps a lifecycle error kind to a response code with the
// precondition message intact.
func writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Server error"

	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, service.ErrCollectorUnavailable):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
		message = err.Error()
	}

	c.JSON(status, errorResponse(message))
}

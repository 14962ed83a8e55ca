package handler

import (
	"errors"
	"log"
	"net/http"

	"pickup-service/internal/messaging"
	"pickup-service/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks happen at the gateway.
		return true
	},
}

// WSHandler upgrades authenticated clients onto the socket hub. Browsers
// cannot set headers on websocket connects, so the token rides a query
// param.
type WSHandler struct {
	hub       *messaging.Hub
	jwtSecret string
}

func NewWSHandler(hub *messaging.Hub, jwtSecret string) *WSHandler {
	return &WSHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// Handles GET /ws?token=<jwt>.
func (h *WSHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	userID, role, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse("invalid token"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	h.hub.Register(conn, userID, role)
}

func (h *WSHandler) validateToken(tokenString string) (uuid.UUID, model.Role, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", errors.New("invalid claims")
	}

	userIDStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, "", errors.New("invalid user_id claim")
	}

	roleStr, _ := claims["role"].(string)
	role := model.Role(roleStr)
	switch role {
	case model.RoleResident, model.RoleCollector, model.RoleAdmin:
	default:
		return uuid.Nil, "", errors.New("invalid role claim")
	}

	return userID, role, nil
}

package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
)

type ChatController struct {
	Chat *services.ChatService
}

func NewChatController(chat *services.ChatService) *ChatController {
	return &ChatController{Chat: chat}
}

type chatSendRequest struct {
	UserID     interface{} `json:"userId"`
	ReceiverID interface{} `json:"receiverId"`
	Message    string      `json:"message"`
}

type chatUserRequest struct {
	UserID interface{} `json:"userId"`
}

func (cc *ChatController) requireUser(c *gin.Context, fromBody interface{}) (int64, bool) {
	id, ok := currentUserID(c, fromBody)
	if !ok {
		utils.RespondError(c, http.StatusBadRequest, services.ErrMissingUser)
	}
	return id, ok
}

// otherUser parses the :otherUserId path parameter.
func otherUser(c *gin.Context) (int64, bool) {
	id, ok := utils.ParseID(c.Param("otherUserId"))
	if !ok {
		utils.RespondError(c, http.StatusBadRequest, errInvalidUserID)
	}
	return id, ok
}

func (cc *ChatController) AvailableUsers(c *gin.Context) {
	userID, ok := cc.requireUser(c, nil)
	if !ok {
		return
	}

	users, err := cc.Chat.AvailableUsers(c.Request.Context(), userID)
	if err != nil {
		utils.RespondInternal(c, "chat", "Error al obtener usuarios", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (cc *ChatController) Conversations(c *gin.Context) {
	userID, ok := cc.requireUser(c, nil)
	if !ok {
		return
	}

	convs, err := cc.Chat.Conversations(c.Request.Context(), userID)
	if err != nil {
		utils.RespondInternal(c, "chat", "Error al obtener conversaciones", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// Messages returns the thread with :otherUserId, optionally after ?since=<id>.
func (cc *ChatController) Messages(c *gin.Context) {
	userID, ok := cc.requireUser(c, nil)
	if !ok {
		return
	}
	otherID, ok := otherUser(c)
	if !ok {
		return
	}

	var since int64
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, _ = strconv.ParseInt(raw, 10, 64)
	}

	msgs, err := cc.Chat.Messages(c.Request.Context(), userID, otherID, since)
	if err != nil {
		utils.RespondInternal(c, "chat", "Error al obtener mensajes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (cc *ChatController) Send(c *gin.Context) {
	var req chatSendRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errInvalidJSON)
		return
	}
	userID, ok := cc.requireUser(c, req.UserID)
	if !ok {
		return
	}

	var receiverID int64
	if f, ok := utils.ToFloat(req.ReceiverID); ok {
		receiverID = int64(f)
	}

	msg, err := cc.Chat.Send(c.Request.Context(), userID, receiverID, req.Message)
	if verr, ok := isValidation(err); ok {
		utils.RespondError(c, http.StatusBadRequest, verr)
		return
	}
	if err != nil {
		utils.RespondInternal(c, "chat", "Error al enviar mensaje", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (cc *ChatController) MarkAsRead(c *gin.Context) {
	var req chatUserRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errInvalidJSON)
		return
	}
	userID, ok := cc.requireUser(c, req.UserID)
	if !ok {
		return
	}
	otherID, ok := otherUser(c)
	if !ok {
		return
	}

	n, err := cc.Chat.MarkAsRead(c.Request.Context(), userID, otherID)
	if err != nil {
		utils.RespondInternal(c, "chat", "Error al marcar mensajes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

// Unread lists unread messages, newer than ?since=<epoch ms> when given.
func (cc *ChatController) Unread(c *gin.Context) {
	userID, ok := cc.requireUser(c, nil)
	if !ok {
		return
	}

	var since int64
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, _ = strconv.ParseInt(raw, 10, 64)
	}

	out, err := cc.Chat.Unread(c.Request.Context(), userID, since)
	if err != nil {
		utils.RespondInternal(c, "chat", "Error al obtener mensajes no leidos", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

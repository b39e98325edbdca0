package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/backoffice/services"
	"github.com/yeremiapane/backoffice/utils"
)

type AuthController struct {
	Users *services.UserService
}

func NewAuthController(users *services.UserService) *AuthController {
	return &AuthController{Users: users}
}

type loginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

// Login checks the credentials and returns the user, plus a token when
// signing is configured.
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.RespondResult(c, http.StatusBadRequest, "Email y senha son requeridos")
		return
	}

	email := strings.TrimSpace(req.Email)
	utils.InfoLogger.Printf("[auth] login attempt email=%s ip=%s", email, c.ClientIP())
	if email == "" || req.Senha == "" {
		utils.RespondResult(c, http.StatusBadRequest, "Email y senha son requeridos")
		return
	}

	user, err := ac.Users.Authenticate(c.Request.Context(), email, req.Senha)
	if errors.Is(err, services.ErrInvalidCredentials) {
		utils.RespondResult(c, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		utils.RespondInternal(c, "auth", "Error al iniciar sesion", err)
		return
	}

	token, err := ac.Users.IssueToken(user)
	if err != nil {
		utils.RespondInternal(c, "auth", "Error al iniciar sesion", err)
		return
	}

	resp := gin.H{"result": true, "user": user}
	if token != "" {
		resp["token"] = token
	}
	c.JSON(http.StatusOK, resp)
}

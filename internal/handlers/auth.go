package handlers

import (
	"net/http"

	"mood/internal/middleware"
	"mood/internal/models"
	"mood/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const captchaSessionKey = "captcha_answer"

type AuthHandler struct {
	auth           *services.AuthService
	captchaService *services.CaptchaService
	logger         *zap.SugaredLogger
}

func NewAuthHandler(auth *services.AuthService, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		auth:           auth,
		captchaService: services.NewCaptchaService(),
		logger:         logger,
	}
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.SessionUserKey, user.ID)
	return session.Save()
}

// renderRegister issues a fresh captcha with every rendering of the form.
func (h *AuthHandler) renderRegister(c *gin.Context, code int, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	question, answer := h.captchaService.GenerateMathProblem()
	session := sessions.Default(c)
	session.Set(captchaSessionKey, answer)
	if err := session.Save(); err != nil {
		h.logger.Warnw("failed to save session", "error", err)
	}

	open, err := h.auth.CanRegister(c.Request.Context())
	if err != nil {
		PageError(c, h.logger, err)
		return
	}
	data["Captcha"] = question
	data["FirstUser"] = open
	data["Title"] = "Inscription"
	Render(c, code, "auth/register.html", data)
}

func (h *AuthHandler) ShowRegister(c *gin.Context) {
	h.renderRegister(c, http.StatusOK, nil)
}

func (h *AuthHandler) Register(c *gin.Context) {
	in := services.RegisterInput{
		Email:         c.PostForm("email"),
		Username:      c.PostForm("username"),
		Password:      c.PostForm("password"),
		InvitationKey: c.PostForm("invitation_key"),
	}
	form := gin.H{"Email": in.Email, "Username": in.Username}

	// Validate Captcha
	session := sessions.Default(c)
	expected := session.Get(captchaSessionKey)
	session.Delete(captchaSessionKey)
	if !h.captchaService.Check(expected, c.PostForm("captcha")) {
		form["Error"] = "Captcha incorrect"
		h.renderRegister(c, http.StatusBadRequest, form)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		code, se := describe(c, h.logger, err)
		if code == http.StatusInternalServerError {
			PageError(c, h.logger, err)
			return
		}
		form["Error"] = se.Message
		h.renderRegister(c, code, form)
		return
	}

	if err := h.startSession(c, user); err != nil {
		PageError(c, h.logger, services.Internal("save session", err))
		return
	}
	c.Redirect(http.StatusFound, "/admin")
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	if middleware.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/admin")
		return
	}
	Render(c, http.StatusOK, "auth/login.html", gin.H{"Title": "Connexion"})
}

func (h *AuthHandler) Login(c *gin.Context) {
	email := c.PostForm("email")
	user, err := h.auth.Login(c.Request.Context(), email, c.PostForm("password"))
	if err != nil {
		code, se := describe(c, h.logger, err)
		if code == http.StatusInternalServerError {
			PageError(c, h.logger, err)
			return
		}
		Render(c, code, "auth/login.html", gin.H{"Error": se.Message, "Email": email, "Title": "Connexion"})
		return
	}

	if err := h.startSession(c, user); err != nil {
		PageError(c, h.logger, services.Internal("save session", err))
		return
	}
	c.Redirect(http.StatusFound, "/admin")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.Redirect(http.StatusFound, "/login")
}

// CanRegister handles GET /api/auth/can-register
func (h *AuthHandler) CanRegister(c *gin.Context) {
	open, err := h.auth.CanRegister(c.Request.Context())
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"canRegister": open})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func userJSON(u *models.User) gin.H {
	return gin.H{"id": u.ID, "email": u.Email, "username": u.Username}
}

// APILogin handles POST /api/auth/login
func (h *AuthHandler) APILogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, h.logger, services.BadRequest("Requête invalide"))
		return
	}
	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	if err := h.startSession(c, user); err != nil {
		JSONError(c, h.logger, services.Internal("save session", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userJSON(user)})
}

// APIRegister handles POST /api/auth/register
func (h *AuthHandler) APIRegister(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		JSONError(c, h.logger, services.BadRequest("Requête invalide"))
		return
	}
	user, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		JSONError(c, h.logger, err)
		return
	}
	if err := h.startSession(c, user); err != nil {
		JSONError(c, h.logger, services.Internal("save session", err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": userJSON(user)})
}

// APILogout handles POST /api/auth/logout
func (h *AuthHandler) APILogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pybroo/pybroo/internal/models"
	"github.com/pybroo/pybroo/internal/service"
	"github.com/pybroo/pybroo/internal/session"
	"github.com/pybroo/pybroo/pkg/response"
)

type AuthHandler struct {
	app          *service.App
	tokenTTLDays int
}

func NewAuthHandler(app *service.App, tokenTTLDays int) *AuthHandler {
	return &AuthHandler{app: app, tokenTTLDays: tokenTTLDays}
}

func setAuthCookie(c *fiber.Ctx, token string, ttlDays int) {
	c.Cookie(&fiber.Cookie{
		Name:     authTokenCookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
		Path:     "/",
		MaxAge:   ttlDays * 86400,
	})
}

func clearAuthCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     authTokenCookieName,
		Value:    "",
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
		Path:     "/",
		MaxAge:   -1,
	})
}

// Register creates an account and starts the session.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req session.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	result, err := h.app.Register(req)
	if err != nil {
		return translateError(c, err)
	}

	setAuthCookie(c, result.Token, h.tokenTTLDays)
	return response.Success(c, result)
}

// Login starts a session for the given identity.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req session.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	result, err := h.app.Login(req)
	if err != nil {
		return translateError(c, err)
	}

	setAuthCookie(c, result.Token, h.tokenTTLDays)
	return response.Success(c, result)
}

// Logout ends the session and drops all persisted session state.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.app.Logout(); err != nil {
		return translateError(c, err)
	}

	clearAuthCookie(c)
	return response.Success(c, fiber.Map{"message": "logged out"})
}

// GetMe returns the signed-in user's record and remaining downloads.
func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	user := h.app.CurrentUser()
	if user == nil {
		return response.Unauthorized(c, "not logged in")
	}

	return response.Success(c, fiber.Map{
		"user":      user,
		"remaining": user.Remaining(),
	})
}

// Levels returns the fixed tier ladder for the upgrade screen.
func (h *AuthHandler) Levels(c *fiber.Ctx) error {
	return response.Success(c, models.Levels)
}

type UpgradeRequest struct {
	Level int    `json:"level"`
	UTR   string `json:"utr"`
}

// Upgrade moves the signed-in user to a strictly higher tier.
func (h *AuthHandler) Upgrade(c *fiber.Ctx) error {
	var req UpgradeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	user, err := h.app.Upgrade(req.Level, req.UTR)
	if err != nil {
		return translateError(c, err)
	}

	RecordLevelUpgrade(strconv.Itoa(user.Level))
	return response.Success(c, fiber.Map{
		"user":      user,
		"remaining": user.Remaining(),
	})
}

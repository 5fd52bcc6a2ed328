package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/middleware"
	"github.com/iliyamo/bike-sales-counter/internal/service"
)

// AuthHandler serves staff login and token rotation.
type AuthHandler struct {
	Accounts *service.Accounts
	Log      *zap.Logger
}

func NewAuthHandler(a *service.Accounts, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Accounts: a, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type staffPart struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type authResp struct {
	Staff   staffPart `json:"staff"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func sessionResp(s service.Session) authResp {
	return authResp{
		Staff:   staffPart{ID: s.StaffID, Username: s.Username},
		Access:  tokenPart{Token: s.AccessToken.Token, Expires: s.AccessToken.Exp},
		Refresh: tokenPart{Token: s.RefreshToken.Raw, Expires: s.RefreshToken.Exp},
	}
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Accounts.Login(ctx, req.Username, []byte(req.Password))
	if err != nil {
		return fail(c, h.Log, err)
	}
	s, err := h.Accounts.IssueSession(ctx, st)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Refresh spends a refresh token and rotates it.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Accounts.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Logout revokes the given refresh token. It answers 204 for unknown tokens too.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Accounts.Logout(ctx, req.RefreshToken); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me echoes the identity carried by the access token.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.StaffID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	return c.JSON(http.StatusOK, staffPart{ID: id, Username: middleware.Username(c)})
}

package handler

import (
	"net/http"
	"time"

	"warden/config"
	"warden/internal/delivery/api/response"
	deliverycontext "warden/internal/delivery/context"
	"warden/internal/domain/constants"
	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
	"warden/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
	Config *config.Config
}

// AuthHandler serves the /auth routes.
type AuthHandler struct {
	authUC           usecase.AuthUsecase
	cookiePath       string
	cookieMaxAge     int
	secureCookie     bool
	exposeVerifToken bool
	metaSource
}

func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	cfg := params.Config

	return &AuthHandler{
		authUC:           params.AuthUC,
		cookiePath:       cfg.Token.CookiePath,
		cookieMaxAge:     cfg.Token.CookieExpiryDays * int((24 * time.Hour).Seconds()),
		secureCookie:     cfg.IsProduction(),
		exposeVerifToken: cfg.Env.Env == constants.EnvDevelop,
		metaSource:       newMetaSource(cfg),
	}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"omitempty,min=3,max=50"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type RegisterResponse struct {
	User *entity.User `json:"user"`
	// VerificationToken is only returned outside production-like environments.
	VerificationToken string `json:"verificationToken,omitempty"`
	Message           string `json:"message"`
}

type TokenResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        *entity.User `json:"user,omitempty"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	out, err := h.authUC.Register(c.Request().Context(), usecase.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Meta:     h.meta(c),
	})
	if err != nil {
		return err
	}

	res := RegisterResponse{User: out.User, Message: "Registration successful"}
	if out.VerificationToken != "" {
		res.Message = "Registration successful, please verify your email"
		if h.exposeVerifToken {
			res.VerificationToken = out.VerificationToken
		}
	}

	return response.Success(c, http.StatusCreated, res)
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authUC.VerifyEmail(c.Request().Context(), usecase.VerifyEmailInput{
		Token: req.Token,
		Meta:  h.meta(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, user)
}

// ResendVerification answers the same way whether or not the email is known.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req ResendVerificationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	out, err := h.authUC.ResendVerification(c.Request().Context(), usecase.ResendVerificationInput{
		Email: req.Email,
		Meta:  h.meta(c),
	})
	if err != nil {
		return err
	}

	res := map[string]string{"message": "If the account exists and is unverified, a new verification link has been issued"}
	if h.exposeVerifToken && out != nil && out.VerificationToken != "" {
		res["verificationToken"] = out.VerificationToken
	}

	return response.Success(c, http.StatusOK, res)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	out, err := h.authUC.Login(c.Request().Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     h.meta(c),
	})
	if err != nil {
		return err
	}

	c.SetCookie(h.refreshCookie(out.RefreshToken, h.cookieMaxAge))

	return response.Success(c, http.StatusOK, TokenResponse{
		AccessToken: out.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   out.AccessExpiresAt,
		User:        out.User,
	})
}

// RefreshToken mints a new access token from the refresh cookie. The refresh token is not rotated.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	token := ""
	if cookie, err := c.Cookie(RefreshCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		return domainerrors.ErrTokenMissing
	}

	out, err := h.authUC.Refresh(c.Request().Context(), usecase.RefreshInput{
		RefreshToken: token,
		Meta:         h.meta(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, TokenResponse{
		AccessToken: out.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   out.AccessExpiresAt,
	})
}

// Logout revokes the presented tokens and expires the refresh cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	refreshToken := ""
	if cookie, err := c.Cookie(RefreshCookieName); err == nil {
		refreshToken = cookie.Value
	}

	if err := h.authUC.Logout(c.Request().Context(), usecase.LogoutInput{
		Principal:    caller,
		RefreshToken: refreshToken,
		Meta:         h.meta(c),
	}); err != nil {
		return err
	}

	// A negative MaxAge is emitted as Max-Age=0.
	c.SetCookie(h.refreshCookie("", -1))

	return response.Message(c, "Logged out successfully")
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	if scope := deliverycontext.GetAuditScope(c.Request().Context()); scope != nil {
		scope.SetResource("user", caller.UserID.String())
	}

	user, err := h.authUC.Me(c.Request().Context(), caller.UserID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, user)
}

func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     h.cookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge > 0 {
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	} else {
		cookie.Expires = time.Unix(0, 0)
	}

	return cookie
}

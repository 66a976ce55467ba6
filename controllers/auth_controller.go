package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	config "github.com/phillip/event-finder-go/config"
	"github.com/phillip/event-finder-go/logger"
	"github.com/phillip/event-finder-go/middleware"
	models "github.com/phillip/event-finder-go/models"
	"github.com/phillip/event-finder-go/services"
	"github.com/phillip/event-finder-go/utils"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 10 * time.Minute
)

// IdentityProvider is the external login the session is bootstrapped from.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (models.Identity, error)
}

func setCookie(c *gin.Context, cfg *config.Config, name, value string, maxAge int) {
	if cfg.IsProduction() {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(name, value, maxAge, "/", "", cfg.IsProduction(), true)
}

// ---------------- LOGIN ----------------
func GoogleLogin(provider IdentityProvider, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := uuid.NewString()
		setCookie(c, cfg, stateCookie, state, int(stateTTL.Seconds()))
		c.Redirect(http.StatusFound, provider.AuthCodeURL(state))
	}
}

// ---------------- CALLBACK ----------------
// GoogleCallback always ends on the frontend; failures simply arrive there
// without a session.
func GoogleCallback(provider IdentityProvider, users *services.UserService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromGin(c)
		fail := func(reason string, fields ...zap.Field) {
			log.Warn("login failed: "+reason, fields...)
			c.Redirect(http.StatusFound, cfg.FrontendURL)
		}

		expected, _ := c.Cookie(stateCookie)
		setCookie(c, cfg, stateCookie, "", -1)

		if e := c.Query("error"); e != "" {
			fail("provider error", zap.String("error", e))
			return
		}
		if expected == "" || c.Query("state") != expected {
			fail("state mismatch")
			return
		}

		identity, err := provider.Identify(c.Request.Context(), c.Query("code"))
		if err != nil {
			fail("identify", zap.Error(err))
			return
		}

		user, err := users.UpsertFromIdentity(c.Request.Context(), identity)
		if err != nil {
			fail("upsert user", zap.Error(err))
			return
		}

		token, err := utils.GenerateSessionToken(cfg.SessionSecret, user.ID, cfg.SessionTTL, time.Now())
		if err != nil {
			fail("sign session", zap.Error(err))
			return
		}
		setCookie(c, cfg, middleware.SessionCookie, token, int(cfg.SessionTTL.Seconds()))

		log.Info("user logged in", zap.String("user_id", user.ID.Hex()))
		c.Redirect(http.StatusFound, cfg.FrontendURL)
	}
}

// ---------------- CURRENT USER ----------------
// CurrentUser answers with the user document, or false when logged out.
func CurrentUser(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := middleware.CallerID(c)
		if caller == nil {
			c.JSON(http.StatusOK, false)
			return
		}

		user, err := users.Get(c.Request.Context(), *caller)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				c.JSON(http.StatusOK, false)
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// ---------------- LOGOUT ----------------
func Logout(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		setCookie(c, cfg, middleware.SessionCookie, "", -1)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
	}
}

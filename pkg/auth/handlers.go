package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/antibyte/chayakada/pkg/logger"
)

// SessionResponse is returned by the session endpoints
type SessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId,omitempty"`
	Token     string `json:"token,omitempty"`
	Message   string `json:"message"`
}

// OptionalSession validates a token when the request carries one and stores
// its claims in the request context. Requests without a valid token pass
// through unchanged.
func OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := ExtractTokenFromRequest(c.Request)
		if err != nil {
			if err != ErrNoToken {
				logger.AuthDebug("Ignoring malformed token: %v", err)
			}
			c.Next()
			return
		}

		claims, err := ValidateGuestToken(tokenString)
		if err != nil {
			logger.AuthWarn("Invalid token from %s: %v", c.ClientIP(), err)
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(AddClaimsToContext(c.Request.Context(), claims))
		c.Next()
	}
}

// HandleCreateSession creates a new guest session and returns its id and token
func HandleCreateSession(c *gin.Context) {
	sessionID := generateSessionID()

	token, err := GenerateGuestToken(sessionID)
	if err != nil {
		logger.AuthError("Failed to generate token for session %s: %v", sessionID, err)
		respondWithError(c, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookieName, token, int(getTokenExpiration().Seconds()), "/", "", c.Request.TLS != nil, true)

	logger.AuthInfo("New guest session created: %s for IP: %s", sessionID, c.ClientIP())
	c.JSON(http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: sessionID,
		Token:     token,
		Message:   "Session created successfully",
	})
}

// HandleTokenValidation reports whether the request carries a valid token.
// Claims already checked by OptionalSession are reused.
func HandleTokenValidation(c *gin.Context) {
	claims, ok := GetClaimsFromContext(c.Request.Context())
	if !ok {
		tokenString, err := ExtractTokenFromRequest(c.Request)
		if err != nil {
			logger.AuthWarn("No token found in validation request: %v", err)
			respondWithError(c, "Token not found", http.StatusUnauthorized)
			return
		}

		claims, err = ValidateGuestToken(tokenString)
		if err != nil {
			logger.AuthWarn("Token validation failed: %v", err)
			respondWithError(c, "Invalid token", http.StatusUnauthorized)
			return
		}
	}

	logger.AuthDebug("Token validated for session: %s", claims.SessionID)
	c.JSON(http.StatusOK, SessionResponse{
		Success:   true,
		SessionID: claims.SessionID,
		Message:   "Token valid",
	})
}

// HandleLogout clears the token cookie
func HandleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookieName, "", -1, "/", "", c.Request.TLS != nil, true)

	logger.AuthInfo("Session cookie cleared for IP: %s", c.ClientIP())
	c.JSON(http.StatusOK, SessionResponse{
		Success: true,
		Message: "Logout successful",
	})
}

// generateSessionID creates a unique session ID
func generateSessionID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return fmt.Sprintf("guest_%d", time.Now().UnixNano())
	}
	return "guest_" + hex.EncodeToString(bytes)
}

func respondWithError(c *gin.Context, message string, statusCode int) {
	c.AbortWithStatusJSON(statusCode, SessionResponse{
		Success: false,
		Message: message,
	})
}

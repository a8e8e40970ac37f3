package handlers

import (
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/shax201/mock-test-v1-sub003/internal/config"
	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
	"github.com/shax201/mock-test-v1-sub003/internal/utils"
)

// InitAuth configures the Casdoor SDK once at startup.
func InitAuth(cfg *config.Config) {
	casdoorsdk.InitConfig(
		cfg.CasdoorEndpoint,
		cfg.CasdoorClientID,
		cfg.CasdoorClientSecret,
		cfg.CasdoorCertificate,
		cfg.CasdoorOrganization,
		cfg.CasdoorApplication,
	)
}

// AuthMiddleware verifies the bearer token against Casdoor and resolves the
// local user record, provisioning a student account on first sight. Sets
// user_id and user_role in the request context.
func AuthMiddleware(repo repositories.Repository, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing authorization header",
			})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Authorization header must be a bearer token",
			})
			return
		}

		claims, err := casdoorsdk.ParseJwtToken(token)
		if err != nil {
			logger.Warn("Token verification failed", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid or expired token",
			})
			return
		}

		user, err := repo.User().GetByExternalID(c.Request.Context(), claims.Id)
		if err != nil {
			if !repositories.IsNotFoundError(err) {
				logger.LogError(err, "User lookup failed", "external_id", claims.Id)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal server error",
				})
				return
			}

			user = &models.User{
				Name:       claims.Name,
				Email:      claims.Email,
				Role:       models.RoleStudent,
				ExternalID: claims.Id,
			}
			if err := repo.User().Create(c.Request.Context(), user); err != nil {
				logger.LogError(err, "User provisioning failed", "external_id", claims.Id)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal server error",
				})
				return
			}
			logger.Info("Provisioned user from token", "user_id", user.ID, "external_id", claims.Id)
		}

		c.Set("user_id", user.ID)
		c.Set("user_role", user.Role)
		c.Next()
	}
}

// RequireRole rejects requests whose authenticated user lacks one of the
// given roles. Must run after AuthMiddleware.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user_role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}

		role, ok := value.(models.UserRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Message: "Insufficient permissions",
		})
	}
}

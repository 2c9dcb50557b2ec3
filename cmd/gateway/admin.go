package main

import (
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/indexbridge/z3950gateway/internal/config"
)

// adminClaims is the bearer token payload accepted by mutating catalog
// routes, following the teacher's authMiddleware shape.
type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func parseAdminToken(tokenString string) (*adminClaims, error) {
	claims := &adminClaims{}
	secret := os.Getenv("GATEWAY_JWT_SECRET")
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	return claims, nil
}

// adminAuthMiddleware accepts either a static API key (X-API-Key) or a
// bearer JWT with role "admin", mirroring the teacher's authMiddleware.
func adminAuthMiddleware() gin.HandlerFunc {
	requiredKey := os.Getenv("GATEWAY_API_KEY")
	return func(c *gin.Context) {
		if requiredKey != "" && c.GetHeader("X-API-Key") == requiredKey {
			c.Set("role", "admin")
			c.Next()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			claims, err := parseAdminToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err == nil && claims.Role == "admin" {
				c.Set("role", claims.Role)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}

// setupRouter builds the admin HTTP API: an unauthenticated read-only
// surface (spec's ambient "operability" concern, not a Non-goal feature)
// plus JWT/API-key-gated catalog mutation routes when a SQL-backed
// catalog store is configured.
func setupRouter(cfgPath string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("z3950gateway"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		if catalog == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no catalog store configured"})
			return
		}
		var creds struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&creds); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		role, ok, err := catalog.Authenticate(creds.Username, creds.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		claims := adminClaims{
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   creds.Username,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
			},
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(os.Getenv("GATEWAY_JWT_SECRET")))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": signed})
	})

	r.GET("/admin/databases", func(c *gin.Context) {
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		names := make([]string, 0, len(cfg.Databases))
		for name := range cfg.Databases {
			names = append(names, name)
		}
		sort.Strings(names)
		c.JSON(http.StatusOK, gin.H{"databases": names})
	})

	r.GET("/admin/sessions", func(c *gin.Context) {
		snap := activeSessions.snapshot()
		sessions := make([]gin.H, 0, len(snap))
		for id, start := range snap {
			sessions = append(sessions, gin.H{"conn_id": id, "age_seconds": time.Since(start).Seconds()})
		}
		c.JSON(http.StatusOK, gin.H{"count": len(snap), "sessions": sessions})
	})

	admin := r.Group("/admin")
	admin.Use(adminAuthMiddleware())

	admin.PUT("/databases/:name", func(c *gin.Context) {
		if catalog == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no catalog store configured"})
			return
		}
		var dc config.DatabaseConfig
		if err := c.ShouldBindJSON(&dc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		dc.Name = c.Param("name")
		if err := catalog.Put(dc); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin.DELETE("/databases/:name", func(c *gin.Context) {
		if catalog == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no catalog store configured"})
			return
		}
		if err := catalog.Delete(c.Param("name")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

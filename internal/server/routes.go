package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/ovsfront/internal/auth"
)

func (s *Server) registerRoutes(token string) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": Service,
			"version": Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ports := s.router.Group("/ports")
	if token != "" {
		ports.Use(auth.Middleware(auth.StaticToken{Token: token}))
	}
	ports.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ports": s.ports.Ports()})
	})
	ports.GET("/:name", func(c *gin.Context) {
		p, ok := s.ports.Port(c.Param("name"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "port not found"})
			return
		}
		c.JSON(http.StatusOK, p)
	})
}

// admin.go - password-gated dashboard for managing portfolio content
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mkamal-dev/portfolio/internal/auth"
	"github.com/mkamal-dev/portfolio/internal/config"
	"github.com/mkamal-dev/portfolio/internal/realtime"
	"github.com/mkamal-dev/portfolio/internal/store"
)

const recentVisitorsLimit = 20

type AdminStats struct {
	TotalVisitors  int64                   `json:"total_visitors"`
	TotalVisits    int64                   `json:"total_visits"`
	TotalProjects  int64                   `json:"total_projects"`
	Testimonials   store.TestimonialCounts `json:"testimonials"`
	RecentVisitors []string                `json:"recent_visitors"`
	GeneratedAt    time.Time               `json:"generated_at"`
}

var hashingSalt = generateSecret()

func generateSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate secret:", err)
	}
	return hex.EncodeToString(bytes)
}

// Hash IP address for privacy compliance (consistent per IP)
func hashIP(ip string) string {
	hash := sha256.New()
	hash.Write([]byte(ip + hashingSalt))
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

// initAdmin stores the configured dashboard account with a bcrypt hash.
func initAdmin(ctx context.Context, cfg *config.Config, st *store.Store, logger *zap.Logger) error {
	hash, err := auth.HashPassword(cfg.Admin.Password)
	if err != nil {
		return err
	}
	if err := st.UpsertUser(ctx, store.AdminUserID, store.User{Name: cfg.Admin.Username, PasswordHash: hash}); err != nil {
		return err
	}

	logger.Info("Admin access available at: /admin/login")
	if cfg.UsingDefaultCredentials() {
		logger.Warn("Using default admin credentials. Set ADMIN_USERNAME and ADMIN_PASSWORD.")
	}
	return nil
}

func (a *app) getAdminStats(ctx context.Context) (*AdminStats, error) {
	ledger, err := a.counter.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := a.store.CountProjects(ctx)
	if err != nil {
		return nil, err
	}
	testimonials, err := a.store.CountTestimonials(ctx)
	if err != nil {
		return nil, err
	}

	recent := ledger.Visitors
	if len(recent) > recentVisitorsLimit {
		recent = recent[len(recent)-recentVisitorsLimit:]
	}
	// Newest first
	rev := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		rev = append(rev, recent[i])
	}

	return &AdminStats{
		TotalVisitors:  ledger.TotalVisitors,
		TotalVisits:    ledger.TotalVisits,
		TotalProjects:  projects,
		Testimonials:   testimonials,
		RecentVisitors: rev,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

// Setup all admin routes
func setupAdminRoutes(r *gin.Engine, a *app) {
	r.GET("/admin/login", func(c *gin.Context) {
		if token, err := c.Cookie(auth.CookieName); err == nil {
			if _, err := a.sessions.Verify(token); err == nil {
				c.Redirect(http.StatusFound, "/admin/dashboard")
				return
			}
		}
		c.HTML(http.StatusOK, "admin-login.html", gin.H{"title": "Admin Login"})
	})

	r.POST("/admin/login", ratelimitedLogin(a), a.login)

	r.GET("/admin/logout", func(c *gin.Context) {
		a.sessions.ClearCookie(c)
		a.logger.Info("Admin logout", zap.String("ip", hashIP(c.ClientIP())))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	// Protected admin routes group
	adminGroup := r.Group("/admin", a.sessions.RequireSession("/admin/login"))

	adminGroup.GET("/dashboard", func(c *gin.Context) {
		ctx := c.Request.Context()
		stats, err := a.getAdminStats(ctx)
		if err != nil {
			a.logger.Error("Error loading admin stats", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Failed to load statistics"})
			return
		}
		projects, err := a.store.ListProjects(ctx)
		if err != nil {
			a.logger.Error("Error loading projects", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Failed to load projects"})
			return
		}
		testimonials, err := a.store.ListTestimonials(ctx, false)
		if err != nil {
			a.logger.Error("Error loading testimonials", zap.Error(err))
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Failed to load testimonials"})
			return
		}

		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"user":         c.GetString("user"),
			"stats":        stats,
			"projects":     projects,
			"testimonials": testimonials,
		})
	})

	// Admin API endpoints for HTMX/AJAX
	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := a.getAdminStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	adminGroup.POST("/projects", a.createProject)
	adminGroup.DELETE("/projects/:id", a.deleteProject)

	adminGroup.GET("/testimonials", func(c *gin.Context) {
		list, err := a.store.ListTestimonials(c.Request.Context(), false)
		if err != nil {
			a.logger.Error("Error listing testimonials", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load testimonials"})
			return
		}
		c.JSON(http.StatusOK, list)
	})
	adminGroup.POST("/testimonials/:id/approve", a.approveTestimonial)
	adminGroup.DELETE("/testimonials/:id", a.deleteTestimonial)

	adminGroup.GET("/ws", a.hub.Handler())

	// Admin statistics export (for backups or analysis)
	adminGroup.GET("/export/stats", func(c *gin.Context) {
		stats, err := a.getAdminStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		a.logger.Info("Admin stats exported", zap.String("ip", hashIP(c.ClientIP())))
		c.JSON(http.StatusOK, stats)
	})
}

func ratelimitedLogin(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.limiter.Get("login:" + c.ClientIP()).Allow() {
			c.Next()
			return
		}
		c.HTML(http.StatusTooManyRequests, "admin-login.html", gin.H{
			"error": "Too many attempts. Please wait a moment.",
		})
		c.Abort()
	}
}

func (a *app) login(c *gin.Context) {
	name := c.PostForm("name")
	password := c.PostForm("password")
	if name == "" || password == "" {
		c.HTML(http.StatusBadRequest, "admin-login.html", gin.H{"error": "Please enter both name and password"})
		return
	}

	user, err := a.store.GetUser(c.Request.Context(), store.AdminUserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		a.logger.Error("Login error", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "admin-login.html", gin.H{"error": "Something went wrong"})
		return
	}

	if err != nil || user.Name != name || !auth.CheckPassword(user.PasswordHash, password) {
		a.logger.Warn("Failed admin login attempt", zap.String("ip", hashIP(c.ClientIP())))
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{"error": "Invalid credentials"})
		return
	}

	if err := a.sessions.SetCookie(c, user.Name); err != nil {
		a.logger.Error("Failed to issue session", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "admin-login.html", gin.H{"error": "Something went wrong"})
		return
	}
	a.logger.Info("Admin login successful", zap.String("ip", hashIP(c.ClientIP())))
	c.Redirect(http.StatusFound, "/admin/dashboard")
}

type projectForm struct {
	Title       string `form:"title" json:"title"`
	Description string `form:"description" json:"description"`
	Demo        string `form:"demo" json:"demo"`
	Code        string `form:"code" json:"code"`
	Image       string `form:"image" json:"image"`
}

func (a *app) createProject(c *gin.Context) {
	var form projectForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project"})
		return
	}

	p, err := a.store.CreateProject(c.Request.Context(), store.Project{
		Title:       form.Title,
		Description: form.Description,
		Demo:        form.Demo,
		Code:        form.Code,
		Image:       form.Image,
	})
	if errors.Is(err, store.ErrInvalid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please fill in all fields."})
		return
	}
	if err != nil {
		a.logger.Error("Error adding project", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add project."})
		return
	}

	a.logger.Info("Project added", zap.String("id", p.ID))
	a.hub.Publish(realtime.EventProjects)
	c.JSON(http.StatusCreated, p)
}

func (a *app) deleteProject(c *gin.Context) {
	id := c.Param("id")
	err := a.store.DeleteProject(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}
	if err != nil {
		a.logger.Error("Error deleting project", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	a.logger.Info("Project deleted", zap.String("id", id), zap.String("ip", hashIP(c.ClientIP())))
	a.hub.Publish(realtime.EventProjects)
	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

func (a *app) approveTestimonial(c *gin.Context) {
	a.moderate(c, a.store.ApproveTestimonial, "Testimonial approved!")
}

func (a *app) deleteTestimonial(c *gin.Context) {
	a.moderate(c, a.store.DeleteTestimonial, "Testimonial deleted")
}

func (a *app) moderate(c *gin.Context, op func(context.Context, string) error, success string) {
	id := c.Param("id")
	err := op(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Testimonial not found"})
		return
	}
	if err != nil {
		a.logger.Error("Error moderating testimonial", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update testimonial"})
		return
	}

	a.hub.Publish(realtime.EventTestimonials)
	c.JSON(http.StatusOK, gin.H{"message": success})
}

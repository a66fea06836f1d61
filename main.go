package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mkamal-dev/portfolio/internal/auth"
	"github.com/mkamal-dev/portfolio/internal/config"
	"github.com/mkamal-dev/portfolio/internal/mail"
	"github.com/mkamal-dev/portfolio/internal/ratelimit"
	"github.com/mkamal-dev/portfolio/internal/realtime"
	"github.com/mkamal-dev/portfolio/internal/store"
	"github.com/mkamal-dev/portfolio/internal/visitors"
)

// app holds the collaborators shared by all handlers.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	store        *store.Store
	counter      *visitors.Counter
	tracker      *visitors.Tracker
	mailer       mail.Mailer
	sessions     *auth.Sessions
	hub          *realtime.Hub
	limiter      *ratelimit.Store
	visitLimiter *ratelimit.Store
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(cfg.Mode)

	logger, err := newLogger(cfg.Mode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Portfolio server listening", zap.String("addr", srv.Addr), zap.String("mode", cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	// Let in-flight visit tracking land before the store closes.
	a.tracker.Wait()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, func(), error) {
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { st.Close() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if err := st.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	ledger, closeLedger, err := openLedger(ctx, cfg, st)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if closeLedger != nil {
		closers = append(closers, closeLedger)
	}

	if err := initAdmin(ctx, cfg, st, logger); err != nil {
		cleanup()
		return nil, nil, err
	}

	secret := cfg.Admin.SessionSecret
	if secret == "" {
		secret = generateSecret()
		logger.Warn("SESSION_SECRET not set; admin sessions will not survive a restart")
	}

	mailer, err := mail.New(cfg.Mail)
	if err != nil {
		logger.Warn("Contact form email disabled", zap.Error(err))
		mailer = mail.Disabled{}
	}

	hub := realtime.NewHub(logger.Named("realtime"))
	counter := visitors.NewCounter(ledger)
	tracker := visitors.NewTracker(counter, logger.Named("visitors"),
		visitors.WithTimeout(cfg.TrackTimeout),
		visitors.OnRecorded(func() { hub.Publish(realtime.EventLedger) }),
	)

	limiter := ratelimit.NewStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	limiter.StartJanitor(ctx)
	visitLimiter := ratelimit.NewStore(cfg.VisitRateLimit.RPS, cfg.VisitRateLimit.Burst)
	visitLimiter.StartJanitor(ctx)

	logger.Info("Visitor tracking initialized", zap.String("backend", cfg.LedgerBackend))

	return &app{
		cfg:          cfg,
		logger:       logger,
		store:        st,
		counter:      counter,
		tracker:      tracker,
		mailer:       mailer,
		sessions:     auth.NewSessions(secret, cfg.Admin.SessionTTL, cfg.SecureCookies),
		hub:          hub,
		limiter:      limiter,
		visitLimiter: visitLimiter,
	}, cleanup, nil
}

func openLedger(ctx context.Context, cfg *config.Config, st *store.Store) (visitors.Store, func(), error) {
	switch cfg.LedgerBackend {
	case config.LedgerRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return visitors.NewRedisStore(rdb, visitors.WithRedisPrefix(cfg.Redis.Prefix)), func() { rdb.Close() }, nil
	case config.LedgerMemory:
		return visitors.NewMemoryStore(), nil, nil
	default:
		s := visitors.NewSQLStore(st.DB())
		if err := s.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
}

func newRouter(a *app) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(a.logger), gin.Recovery())
	r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	r.LoadHTMLGlob(a.cfg.TemplatesGlob)

	r.Static("/images", "./images")
	r.Static("/static", "./static")

	r.GET("/healthz", a.health)

	public := r.Group("/", visitors.Identify(a.cfg.SecureCookies))

	// Home page route
	public.GET("/", visitors.TrackPageView(a.tracker), a.home)
	public.GET("/projects/:id", a.projectDetails)

	// HTMX Contact form endpoint - returns just the form HTML
	public.GET("/contact-form", func(c *gin.Context) {
		c.HTML(http.StatusOK, "contact.html", gin.H{
			"title": "Contact Me",
			"intro": ContactIntro,
		})
	})

	limited := ratelimit.Middleware(a.limiter)
	public.POST("/contact", limited, a.contact)
	public.POST("/testimonials", limited, a.submitTestimonial)

	api := public.Group("/api", cors.New(corsConfig(a.cfg.AllowedOrigins)))
	api.GET("/projects", a.listProjects)
	api.GET("/testimonials", a.listApprovedTestimonials)
	// Beacons draw from their own bucket so page views cannot starve the forms.
	api.POST("/visit", ratelimit.Middleware(a.visitLimiter), visitors.BeaconHandler(a.tracker))

	setupAdminRoutes(r, a)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.AllowCredentials = true
	if len(origins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (a *app) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *app) home(c *gin.Context) {
	ctx := c.Request.Context()

	// A failing store must not take the landing page down.
	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		a.logger.Error("Error loading projects", zap.Error(err))
	}
	testimonials, err := a.store.ListTestimonials(ctx, true)
	if err != nil {
		a.logger.Error("Error loading testimonials", zap.Error(err))
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"heroName":     HeroName,
		"heroSubtitle": HeroSubtitle,
		"skills":       Skills,
		"aboutTitle":   AboutTitle,
		"aboutMe":      AboutMe,
		"contactIntro": ContactIntro,
		"projects":     projects,
		"testimonials": testimonials,
		"visitorId":    visitors.VisitorID(c),
	})
}

func (a *app) projectDetails(c *gin.Context) {
	p, err := a.store.GetProject(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.HTML(http.StatusNotFound, "error.html", gin.H{"error": "Project not found"})
		return
	}
	if err != nil {
		a.logger.Error("Error loading project", zap.String("id", c.Param("id")), zap.Error(err))
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"error": "Failed to load project"})
		return
	}
	c.HTML(http.StatusOK, "project.html", gin.H{"project": p})
}

func (a *app) listProjects(c *gin.Context) {
	projects, err := a.store.ListProjects(c.Request.Context())
	if err != nil {
		a.logger.Error("Error listing projects", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load projects"})
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (a *app) listApprovedTestimonials(c *gin.Context) {
	list, err := a.store.ListTestimonials(c.Request.Context(), true)
	if err != nil {
		a.logger.Error("Error listing testimonials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load testimonials"})
		return
	}
	c.JSON(http.StatusOK, list)
}

type contactForm struct {
	FullName string `form:"fullName" json:"fullName" binding:"required"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Message  string `form:"message" json:"message" binding:"required"`
}

// Handle contact form submission with HTMX
func (a *app) contact(c *gin.Context) {
	var form contactForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "form-error.html", gin.H{
			"error": "Please fill in your name, a valid email and a message.",
		})
		return
	}

	err := a.mailer.Send(c.Request.Context(), mail.Message{
		TemplateID: mail.ContactTemplate,
		ReplyTo:    form.Email,
		Fields: map[string]string{
			"name":    form.FullName,
			"email":   form.Email,
			"message": form.Message,
		},
	})
	if err != nil {
		a.logger.Error("Error sending email", zap.Error(err))
		c.HTML(http.StatusOK, "form-error.html", gin.H{
			"error": "Sorry, there was an error sending your message. Please try again later.",
		})
		return
	}

	a.logger.Info("Contact email sent")
	c.HTML(http.StatusOK, "form-success.html", gin.H{
		"success": "Thank you for your message! I'll get back to you soon.",
	})
}

type testimonialForm struct {
	Name     string `form:"name" json:"name" binding:"required"`
	Position string `form:"position" json:"position"`
	Content  string `form:"content" json:"content" binding:"required"`
	Rating   int    `form:"rating" json:"rating"`
}

func (a *app) submitTestimonial(c *gin.Context) {
	var form testimonialForm
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "form-error.html", gin.H{"error": "Please fill in your name and review."})
		return
	}

	_, err := a.store.CreateTestimonial(c.Request.Context(), store.Testimonial{
		Name:     form.Name,
		Position: form.Position,
		Content:  form.Content,
		Rating:   form.Rating,
	})
	if errors.Is(err, store.ErrInvalid) {
		c.HTML(http.StatusBadRequest, "form-error.html", gin.H{"error": "Please fill in your name and review."})
		return
	}
	if err != nil {
		a.logger.Error("Error submitting testimonial", zap.Error(err))
		c.HTML(http.StatusInternalServerError, "form-error.html", gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	a.hub.Publish(realtime.EventTestimonials)
	c.HTML(http.StatusCreated, "form-success.html", gin.H{
		"success": "Thanks for your review! It will appear once approved.",
	})
}

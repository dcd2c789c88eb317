package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/HammerMeetNail/campuslink/internal/config"
	"github.com/HammerMeetNail/campuslink/internal/database"
	"github.com/HammerMeetNail/campuslink/internal/handlers"
	"github.com/HammerMeetNail/campuslink/internal/logging"
	"github.com/HammerMeetNail/campuslink/internal/middleware"
	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{
			"env": cfg.Server.Environment,
		})
	}

	logger.Info("Starting CampusLink server...")

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.DefaultPoolSettings())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	// Object storage is optional; uploads answer 503 without it.
	var store services.ObjectStore
	if cfg.Storage.Enabled() {
		s3Store, err := services.NewS3Store(context.Background(), cfg.Storage)
		if err != nil {
			return fmt.Errorf("initializing object storage: %w", err)
		}
		store = s3Store
		logger.Info("Object storage enabled", map[string]interface{}{"bucket": cfg.Storage.Bucket})
	} else {
		logger.Warn("STORAGE_BUCKET not set; resource and certificate uploads are disabled")
	}

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	auditService := services.NewAuditService(dbAdapter)
	profileService := services.NewProfileService(dbAdapter)
	authService := services.NewAuthService(dbAdapter, redisAdapter, cfg.Server.SessionTTL)
	ssoService := services.NewSSOService(dbAdapter, cfg.Campus.EmailDomain)
	accountService := services.NewAccountService(dbAdapter)
	emailService := services.NewEmailService(&cfg.Email)
	notificationService := services.NewNotificationService(dbAdapter, emailService, cfg.Email.BaseURL)
	connectionService := services.NewConnectionService(dbAdapter)
	inviteService := services.NewConnectionInviteService(dbAdapter)
	mentoringService := services.NewMentoringService(dbAdapter)
	checkInService := services.NewCheckInService(dbAdapter, cfg.Campus.Location())
	scheduleService := services.NewScheduleService(dbAdapter)
	attendanceService := services.NewAttendanceService(dbAdapter)
	chatService := services.NewChatService(dbAdapter, redisAdapter)
	approvalService := services.NewApprovalService(dbAdapter, auditService)
	workService := services.NewWorkAssignmentService(dbAdapter, auditService)
	postService := services.NewPostService(dbAdapter)
	eventService := services.NewEventService(dbAdapter)
	resourceService := services.NewResourceService(dbAdapter, store, cfg.Storage.MaxUploadBytes)
	marketplaceService := services.NewMarketplaceService(dbAdapter)
	studyGroupService := services.NewStudyGroupService(dbAdapter)
	projectService := services.NewProjectService(dbAdapter)
	dashboardService := services.NewDashboardService(services.DashboardDeps{
		DB:          dbAdapter,
		CheckIn:     checkInService,
		Connections: connectionService,
		Mentoring:   mentoringService,
		Events:      eventService,
		Attendance:  attendanceService,
		Schedules:   scheduleService,
		Work:        workService,
		Approvals:   approvalService,
		Audit:       auditService,
	})

	profileService.SetAuditLogger(auditService)
	resourceService.SetAuditLogger(auditService)
	connectionService.SetNotificationService(notificationService)
	inviteService.SetNotificationService(notificationService)
	mentoringService.SetNotificationService(notificationService)
	approvalService.SetNotificationService(notificationService)
	workService.SetNotificationService(notificationService)

	var ssoProvider services.OAuthProvider
	if cfg.SSO.Enabled {
		oidcProvider, err := services.NewOIDCProvider(context.Background(), services.OIDCProviderConfig{
			Provider:     services.ProviderCampus,
			ClientID:     cfg.SSO.ClientID,
			ClientSecret: cfg.SSO.ClientSecret,
			RedirectURL:  cfg.SSO.RedirectURL,
			IssuerURL:    cfg.SSO.IssuerURL,
			Scopes:       cfg.SSO.Scopes,
		})
		if err != nil {
			return fmt.Errorf("initializing sso provider: %w", err)
		}
		ssoProvider = oidcProvider
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(authService, cfg.Server.Secure)
	ssoHandler := handlers.NewSSOHandler(ssoService, authService, ssoProvider, cfg.Server.Secure)
	accountHandler := handlers.NewAccountHandler(accountService, authService, cfg.Server.Secure)
	profileHandler := handlers.NewProfileHandler(profileService)
	connectionHandler := handlers.NewConnectionHandler(connectionService, inviteService)
	mentoringHandler := handlers.NewMentoringHandler(mentoringService)
	checkInHandler := handlers.NewCheckInHandler(checkInService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceService, func() time.Time {
		return time.Now().In(cfg.Campus.Location())
	})
	chatHandler := handlers.NewChatHandler(chatService)
	authorityHandler := handlers.NewAuthorityHandler(approvalService, workService, auditService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	postHandler := handlers.NewPostHandler(postService)
	eventHandler := handlers.NewEventHandler(eventService)
	resourceHandler := handlers.NewResourceHandler(resourceService, cfg.Storage.MaxUploadBytes)
	marketplaceHandler := handlers.NewMarketplaceHandler(marketplaceService)
	studyGroupHandler := handlers.NewStudyGroupHandler(studyGroupService)
	projectHandler := handlers.NewProjectHandler(projectService)

	if err := notificationService.CleanupOld(context.Background()); err != nil {
		logger.Warn("Notification cleanup failed", map[string]interface{}{"error": err.Error()})
	}
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go func() {
		interval := resolveCleanupInterval(logger, os.LookupEnv)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if err := notificationService.CleanupOld(cleanupCtx); err != nil {
					logger.Warn("Notification cleanup failed", map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	requestLogger := middleware.NewRequestLogger(logger)

	authRateLimit := resolveAuthRateLimit(cfg, logger, os.LookupEnv)
	authRateLimiter := middleware.NewRateLimiter(redisDB.Client, authRateLimit, time.Minute, "ratelimit:auth:", middleware.ByClientIP, true)
	uploadLimiter := middleware.NewUploadLimiter(30, time.Hour, 5)

	requireAuth := authMiddleware.RequireAuth
	requireAuthority := authMiddleware.RequireRole(models.RoleAuthority)
	authed := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }

	// Set up router
	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	// Auth endpoints
	mux.Handle("POST /api/auth/register", authRateLimiter.Middleware(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", authRateLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.HandleFunc("GET /api/auth/sso/start", ssoHandler.Start)
	mux.HandleFunc("GET /api/auth/sso/callback", ssoHandler.Callback)

	// Account endpoints
	mux.Handle("GET /api/account/export", authed(accountHandler.Export))
	mux.Handle("DELETE /api/account", authed(accountHandler.Delete))

	// Profile endpoints
	mux.Handle("GET /api/profiles/me", authed(profileHandler.GetMe))
	mux.Handle("PUT /api/profiles/me", authed(profileHandler.UpdateMe))
	mux.Handle("GET /api/profiles/search", authed(profileHandler.Search))
	mux.Handle("GET /api/profiles/export", requireAuthority(http.HandlerFunc(profileHandler.ExportUsers)))
	mux.Handle("GET /api/profiles/{id}", authed(profileHandler.Get))
	mux.Handle("GET /api/profiles/{id}/card.png", authed(profileHandler.Card))
	mux.Handle("PUT /api/profiles/{id}/role", requireAuthority(http.HandlerFunc(profileHandler.SetRole)))

	// Check-in and dashboard
	mux.Handle("POST /api/checkin", authed(checkInHandler.CheckIn))
	mux.Handle("GET /api/dashboard", authed(dashboardHandler.Get))

	// Connection endpoints
	mux.Handle("GET /api/connections", authed(connectionHandler.List))
	mux.Handle("GET /api/connections/requests/incoming", authed(connectionHandler.Incoming))
	mux.Handle("GET /api/connections/requests/outgoing", authed(connectionHandler.Outgoing))
	mux.Handle("POST /api/connections/requests", authed(connectionHandler.SendRequest))
	mux.Handle("PUT /api/connections/requests/{id}/accept", authed(connectionHandler.Accept))
	mux.Handle("PUT /api/connections/requests/{id}/reject", authed(connectionHandler.Reject))
	mux.Handle("DELETE /api/connections/requests/{id}", authed(connectionHandler.Cancel))
	mux.Handle("DELETE /api/connections/{id}", authed(connectionHandler.Remove))
	mux.Handle("GET /api/connections/{id}/status", authed(connectionHandler.Status))
	mux.Handle("POST /api/connections/invites", authed(connectionHandler.CreateInvite))
	mux.Handle("GET /api/connections/invites", authed(connectionHandler.ListInvites))
	mux.Handle("DELETE /api/connections/invites/{id}", authed(connectionHandler.RevokeInvite))
	mux.Handle("POST /api/connections/invites/accept", authed(connectionHandler.AcceptInvite))

	// Mentoring endpoints
	mux.Handle("POST /api/mentoring", authed(mentoringHandler.Request))
	mux.Handle("GET /api/mentoring/mentees", authed(mentoringHandler.Mentees))
	mux.Handle("GET /api/mentoring/mentors", authed(mentoringHandler.Mentors))
	mux.Handle("GET /api/mentoring/pending", authed(mentoringHandler.Pending))
	mux.Handle("PUT /api/mentoring/{id}/accept", authed(mentoringHandler.Accept))
	mux.Handle("PUT /api/mentoring/{id}/reject", authed(mentoringHandler.Reject))
	mux.Handle("DELETE /api/mentoring/{id}/cancel", authed(mentoringHandler.Cancel))
	mux.Handle("DELETE /api/mentoring/{id}", authed(mentoringHandler.End))

	// Schedule and attendance endpoints
	registerScheduleRoutes(mux, authMiddleware, scheduleHandler, attendanceHandler)

	// Messaging endpoints
	mux.Handle("POST /api/conversations", authed(chatHandler.Start))
	mux.Handle("GET /api/conversations", authed(chatHandler.ListConversations))
	mux.Handle("GET /api/conversations/{id}/messages", authed(chatHandler.ListMessages))
	mux.Handle("POST /api/conversations/{id}/messages", authed(chatHandler.Send))
	mux.Handle("POST /api/conversations/{id}/read", authed(chatHandler.MarkRead))
	mux.Handle("GET /api/conversations/{id}/stream", authed(chatHandler.Stream))

	// Authority administration
	mux.Handle("POST /api/approvals", authed(authorityHandler.SubmitApproval))
	mux.Handle("GET /api/approvals/mine", authed(authorityHandler.MyApprovals))
	mux.Handle("GET /api/approvals/pending", requireAuthority(http.HandlerFunc(authorityHandler.PendingApprovals)))
	mux.Handle("PUT /api/approvals/{id}/decision", requireAuthority(http.HandlerFunc(authorityHandler.DecideApproval)))
	mux.Handle("POST /api/work", requireAuthority(http.HandlerFunc(authorityHandler.AssignWork)))
	mux.Handle("GET /api/work/mine", authed(authorityHandler.MyWork))
	mux.Handle("GET /api/work/assigned", requireAuthority(http.HandlerFunc(authorityHandler.AssignedWork)))
	mux.Handle("PUT /api/work/{id}/status", authed(authorityHandler.UpdateWorkStatus))
	mux.Handle("GET /api/audit", requireAuthority(http.HandlerFunc(authorityHandler.AuditLog)))

	// Notification endpoints
	mux.Handle("GET /api/notifications", authed(notificationHandler.List))
	mux.Handle("GET /api/notifications/unread-count", authed(notificationHandler.UnreadCount))
	mux.Handle("POST /api/notifications/read-all", authed(notificationHandler.MarkAllRead))
	mux.Handle("POST /api/notifications/{id}/read", authed(notificationHandler.MarkRead))
	mux.Handle("DELETE /api/notifications/{id}", authed(notificationHandler.Delete))

	// Feed endpoints
	mux.Handle("POST /api/posts", authed(postHandler.Create))
	mux.Handle("GET /api/posts", authed(postHandler.Feed))
	mux.Handle("GET /api/posts/{id}", authed(postHandler.Get))
	mux.Handle("DELETE /api/posts/{id}", authed(postHandler.Delete))
	mux.Handle("POST /api/posts/{id}/like", authed(postHandler.Like))
	mux.Handle("DELETE /api/posts/{id}/like", authed(postHandler.Unlike))
	mux.Handle("POST /api/posts/{id}/comments", authed(postHandler.AddComment))
	mux.Handle("GET /api/posts/{id}/comments", authed(postHandler.ListComments))
	mux.Handle("DELETE /api/comments/{id}", authed(postHandler.DeleteComment))

	// Event endpoints
	mux.Handle("POST /api/events", authed(eventHandler.Create))
	mux.Handle("GET /api/events", authed(eventHandler.List))
	mux.Handle("GET /api/events/{id}", authed(eventHandler.Get))
	mux.Handle("DELETE /api/events/{id}", authed(eventHandler.Delete))
	mux.Handle("POST /api/events/{id}/register", authed(eventHandler.Register))
	mux.Handle("DELETE /api/events/{id}/register", authed(eventHandler.Unregister))

	// Resource and certificate endpoints
	mux.Handle("POST /api/resources", requireAuth(uploadLimiter.Middleware(http.HandlerFunc(resourceHandler.Upload))))
	mux.Handle("GET /api/resources", authed(resourceHandler.List))
	mux.Handle("DELETE /api/resources/{id}", authed(resourceHandler.Delete))
	mux.Handle("POST /api/certificates", requireAuth(uploadLimiter.Middleware(http.HandlerFunc(resourceHandler.UploadCertificate))))
	mux.Handle("GET /api/certificates", authed(resourceHandler.ListCertificates))
	mux.Handle("DELETE /api/certificates/{id}", authed(resourceHandler.DeleteCertificate))
	mux.Handle("PUT /api/certificates/{id}/verify", requireAuthority(http.HandlerFunc(resourceHandler.VerifyCertificate)))

	// Marketplace, study group and project endpoints
	mux.Handle("POST /api/marketplace", authed(marketplaceHandler.Create))
	mux.Handle("GET /api/marketplace", authed(marketplaceHandler.List))
	mux.Handle("PUT /api/marketplace/{id}/sold", authed(marketplaceHandler.MarkSold))
	mux.Handle("DELETE /api/marketplace/{id}", authed(marketplaceHandler.Delete))
	mux.Handle("POST /api/study-groups", authed(studyGroupHandler.Create))
	mux.Handle("GET /api/study-groups", authed(studyGroupHandler.List))
	mux.Handle("POST /api/study-groups/{id}/join", authed(studyGroupHandler.Join))
	mux.Handle("DELETE /api/study-groups/{id}/join", authed(studyGroupHandler.Leave))
	mux.Handle("DELETE /api/study-groups/{id}", authed(studyGroupHandler.Delete))
	mux.Handle("POST /api/projects", authed(projectHandler.Create))
	mux.Handle("GET /api/projects", authed(projectHandler.List))
	mux.Handle("DELETE /api/projects/{id}", authed(projectHandler.Delete))

	// Build middleware chain (order matters: outermost last)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Chat streams are long-lived; they rely on the request context rather
		// than a write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")
		cleanupCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

// registerScheduleRoutes mounts the timetable and attendance endpoints. Reads
// are open to any signed-in user; writes need a teacher or an authority.
func registerScheduleRoutes(mux *http.ServeMux, auth *middleware.AuthMiddleware, schedules *handlers.ScheduleHandler, attendance *handlers.AttendanceHandler) {
	requireStaff := auth.RequireRole(models.RoleTeacher, models.RoleAuthority)

	mux.Handle("GET /api/schedules", auth.RequireAuth(http.HandlerFunc(schedules.List)))
	mux.Handle("POST /api/schedules", requireStaff(http.HandlerFunc(schedules.Create)))
	mux.Handle("GET /api/schedules/export", requireStaff(http.HandlerFunc(schedules.Export)))
	mux.Handle("POST /api/schedules/import", requireStaff(http.HandlerFunc(schedules.Import)))
	mux.Handle("GET /api/schedules/{id}", auth.RequireAuth(http.HandlerFunc(schedules.Get)))
	mux.Handle("PUT /api/schedules/{id}", requireStaff(http.HandlerFunc(schedules.Update)))
	mux.Handle("DELETE /api/schedules/{id}", requireStaff(http.HandlerFunc(schedules.Delete)))
	mux.Handle("PUT /api/schedules/{id}/attendance", requireStaff(http.HandlerFunc(attendance.Save)))
	mux.Handle("GET /api/schedules/{id}/attendance", requireStaff(http.HandlerFunc(attendance.List)))
	mux.Handle("GET /api/attendance/me", auth.RequireAuth(http.HandlerFunc(attendance.MySummary)))
}

// resolveAuthRateLimit returns the per-minute login/register budget per client IP.
func resolveAuthRateLimit(cfg *config.Config, logger *logging.Logger, lookupEnv func(string) (string, bool)) int64 {
	limit := int64(10)
	if cfg.Server.Environment == "development" {
		limit = 100
		logger.Info("Using development auth rate limit", map[string]interface{}{"limit": limit})
	}
	if v, ok := lookupEnv("AUTH_RATE_LIMIT"); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			limit = parsed
			logger.Info("Using auth rate limit from env", map[string]interface{}{"limit": limit})
		} else {
			logger.Warn("Invalid AUTH_RATE_LIMIT; using default", map[string]interface{}{
				"value": v,
				"limit": limit,
			})
		}
	}
	return limit
}

func resolveCleanupInterval(logger *logging.Logger, lookupEnv func(string) (string, bool)) time.Duration {
	interval := 24 * time.Hour
	if value, ok := lookupEnv("NOTIFICATION_CLEANUP_INTERVAL"); ok && value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			logger.Warn("Invalid NOTIFICATION_CLEANUP_INTERVAL; using default", map[string]interface{}{
				"value":   value,
				"default": interval.String(),
			})
		} else {
			interval = parsed
			logger.Info("Using notification cleanup interval from env", map[string]interface{}{"interval": interval.String()})
		}
	}
	return interval
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"presence/internal/camera"
	"presence/internal/config"
	"presence/internal/console"
	"presence/internal/fault"
	"presence/internal/remote"
	"presence/internal/view"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := run(cfg, log); err != nil {
		log.Fatalw("console failed", "error", err)
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "production" || env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg config.App, log *zap.SugaredLogger) error {
	client := remote.New(cfg.APIBaseURL, cfg.RequestTimeout)

	var device camera.Device
	if cfg.CameraSkip {
		device = &camera.SyntheticDevice{}
		log.Infow("camera skipped, using synthetic frames")
	} else {
		device = camera.NewMJPEGDevice(cfg.CameraStreamURL)
	}
	cam := camera.NewManager(device, client)

	notifier := view.NewNotifier(clockwork.NewRealClock(), cfg.NotifyTTL)
	app := console.New(client, cam, notifier, log, cfg.ExportDir, cfg.PageSize)
	defer app.Shutdown()

	// Startup joint fetch of both rosters. Failure is not fatal, the
	// operator can refresh once the service is reachable.
	startCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := app.RefreshAll(startCtx); err != nil {
		log.Warnw("initial roster fetch failed", "error", err)
	}
	cancel()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "camera_handles": cam.Handles()})
	})

	api := r.Group("/api")

	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, app.State())
	})

	api.POST("/refresh", func(c *gin.Context) {
		if err := app.RefreshAll(c.Request.Context()); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, app.State())
	})

	api.GET("/professors", func(c *gin.Context) {
		applyListParams(c, app.SetProfessorQuery, app.SetProfessorPage)
		c.JSON(http.StatusOK, app.ProfessorPage())
	})

	api.POST("/professors", func(c *gin.Context) {
		var form console.ProfessorForm
		if err := c.ShouldBindJSON(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := app.CreateProfessor(c.Request.Context(), form); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, app.ProfessorPage())
	})

	api.DELETE("/professors/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		if err := app.RequestDeleteProfessor(id); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, app.State())
	})

	api.GET("/students", func(c *gin.Context) {
		applyListParams(c, app.SetStudentQuery, app.SetStudentPage)
		c.JSON(http.StatusOK, app.StudentPage())
	})

	api.DELETE("/students/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		if err := app.RequestDeleteStudent(id); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, app.State())
	})

	api.POST("/confirmation/confirm", func(c *gin.Context) {
		if !app.Confirm() {
			c.JSON(http.StatusConflict, gin.H{"error": "no confirmation pending"})
			return
		}
		c.JSON(http.StatusOK, app.State())
	})

	api.POST("/confirmation/cancel", func(c *gin.Context) {
		if !app.CancelConfirmation() {
			c.JSON(http.StatusConflict, gin.H{"error": "no confirmation pending"})
			return
		}
		c.JSON(http.StatusOK, app.State())
	})

	api.POST("/capture/open", func(c *gin.Context) {
		var body struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := app.OpenCapture(c.Request.Context(), body.FirstName, body.LastName); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, app.State())
	})

	api.POST("/capture/submit", func(c *gin.Context) {
		if err := app.CaptureAndSubmit(c.Request.Context()); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, app.State())
	})

	api.POST("/capture/cancel", func(c *gin.Context) {
		app.CancelCapture()
		c.JSON(http.StatusOK, app.State())
	})

	api.POST("/sessions/start", func(c *gin.Context) {
		var form console.SessionForm
		if err := c.ShouldBindJSON(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := app.StartSession(c.Request.Context(), form); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, app.State())
	})

	api.POST("/sessions/refresh", func(c *gin.Context) {
		if err := app.RefreshStats(c.Request.Context()); err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, app.State())
	})

	api.POST("/sessions/end", func(c *gin.Context) {
		if err := app.EndSession(); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, app.State())
	})

	api.GET("/sessions/attendance", func(c *gin.Context) {
		report, err := app.Attendance(c.Request.Context())
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	api.POST("/sessions/close", func(c *gin.Context) {
		app.CloseAttendance()
		c.JSON(http.StatusOK, app.State())
	})

	api.POST("/reports/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		path, err := app.DownloadReport(c.Request.Context(), id)
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"path": path})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("console listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("forced shutdown", "error", err)
	}
	log.Infow("console exited")
	return nil
}

// applyListParams applies optional ?query= and ?page= parameters before a
// roster list is rendered.
func applyListParams(c *gin.Context, setQuery func(string), setPage func(int)) {
	if query, ok := c.GetQuery("query"); ok {
		setQuery(query)
	}
	if v := c.Query("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil {
			setPage(page)
		}
	}
}

// statusOf maps the error taxonomy onto HTTP statuses for the facade.
func statusOf(err error) int {
	var validation *fault.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest
	}
	var notReady *fault.NotReadyError
	if errors.As(err, &notReady) {
		return http.StatusConflict
	}
	var device *fault.DeviceError
	if errors.As(err, &device) {
		return http.StatusServiceUnavailable
	}
	var encode *fault.EncodeError
	if errors.As(err, &encode) {
		return http.StatusInternalServerError
	}
	var remoteErr *fault.RemoteError
	if errors.As(err, &remoteErr) {
		return http.StatusBadGateway
	}
	var transport *fault.TransportError
	if errors.As(err, &transport) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

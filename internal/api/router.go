package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/timeclock/internal/api/handlers"
	"github.com/your-org/timeclock/internal/api/ws"
	"github.com/your-org/timeclock/internal/attendance"
	"github.com/your-org/timeclock/internal/enroll"
	"github.com/your-org/timeclock/internal/queue"
	"github.com/your-org/timeclock/internal/storage"
	"github.com/your-org/timeclock/internal/vision"
)

type RouterConfig struct {
	APIKey    string
	DB        *storage.PostgresStore
	MinIO     *storage.MinIOStore
	Bus       *queue.Bus
	Hub       *ws.Hub
	Recorder  *attendance.Recorder
	Validator *enroll.Validator
	Extractor handlers.DescriptorExtractor
	Readiness *vision.Readiness
	ReportLoc *time.Location
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Bus, cfg.Readiness)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(APIKeyMiddleware(cfg.APIKey))

	// WebSocket: live punch feed for kiosk screens and dashboards
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Employees & enrollment
	empH := handlers.NewEmployeeHandler(cfg.DB, cfg.MinIO, cfg.Validator)
	v1.POST("/employees", empH.Create)
	v1.GET("/employees", empH.List)
	v1.GET("/employees/:id", empH.Get)
	v1.GET("/employees/:id/photo", empH.Photo)
	v1.GET("/employees/:id/events", empH.Events)

	// Punches
	punchH := handlers.NewPunchHandler(cfg.Recorder, cfg.Extractor, cfg.MinIO, cfg.DB, cfg.Hub)
	v1.POST("/punch", punchH.Punch)
	v1.POST("/punch/manual", punchH.ManualPunch)
	v1.GET("/events/:id/snapshot", punchH.Snapshot)

	// Kiosk control
	kioskH := handlers.NewKioskHandler(cfg.Bus)
	v1.POST("/kiosks/:id/resume", kioskH.Resume)

	// Reports
	reportH := handlers.NewReportHandler(cfg.DB, cfg.MinIO, cfg.ReportLoc)
	v1.GET("/reports/attendance", reportH.Attendance)
	v1.GET("/reports/attendance.csv", reportH.AttendanceCSV)

	return r
}

package httpserver

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"journeytracker/internal/handler"
	"journeytracker/pkg/metrics"
	"journeytracker/pkg/mq"
	"journeytracker/pkg/trace"
)

func NewRouter(
	recommendationHandler *handler.RecommendationHandler,
	progressHandler *handler.ProgressHandler,
	arrangementHandler *handler.ArrangementHandler,
	jwtSecret string,
	logger *zap.Logger,
	db *pgxpool.Pool,
	consumer *mq.Consumer,
) *gin.Engine {
	r := gin.Default()

	r.Use(TraceMiddleware())

	// 添加请求日志中间件
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
		metrics.RecordHTTPRequestDuration(c.Request.Method, c.FullPath(), strconv.Itoa(c.Writer.Status()), latency)
	})

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if consumer != nil && !consumer.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/companies/:id/recommendations", recommendationHandler.GetRecommendations)
		auth.GET("/companies/:id/analytics", progressHandler.GetAnalytics)
		auth.GET("/companies/:id/milestones", progressHandler.GetMilestones)
		auth.PUT("/companies/:id/steps/:stepId/progress", progressHandler.UpdateProgress)

		auth.GET("/companies/:id/arrangements", arrangementHandler.List)
		auth.POST("/companies/:id/arrangements", arrangementHandler.Create)
		auth.GET("/arrangements/:id/entries", arrangementHandler.Entries)
		auth.POST("/arrangements/:id/entries", arrangementHandler.InsertEntry)
		auth.DELETE("/arrangements/:id/entries/:stepId", arrangementHandler.RemoveEntry)
		auth.POST("/arrangements/:id/move", arrangementHandler.Move)
	}

	return r
}

// TraceMiddleware propagates the caller's trace id, generating one when
// the header is absent.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}

		ctx := trace.WithContext(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(trace.HeaderName(), traceID)

		c.Next()
	}
}

package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ginKey          = "logger"
	RequestIDHeader = "X-Request-ID"
)

var log = zap.NewNop()

// Init builds the global logger. Production gets JSON output, everything
// else gets the colored development encoder.
func Init(level, environment, service string) error {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	var (
		l   *zap.Logger
		err error
	)
	if environment == "production" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err = cfg.Build(zap.Fields(
			zap.String("service", service),
			zap.String("environment", environment),
		))
	} else {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l, err = cfg.Build(zap.Fields(
			zap.String("service", service),
			zap.String("environment", environment),
		))
	}
	if err != nil {
		return err
	}

	log = l
	zap.ReplaceGlobals(l)
	return nil
}

func L() *zap.Logger {
	return log
}

func Sync() {
	_ = log.Sync()
}

// Middleware assigns a request id, stores a request-scoped logger on the gin
// context and writes one line per request.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLogger := log.With(zap.String("request_id", requestID))
		c.Set(ginKey, reqLogger)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if uid := c.GetString("user_id"); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}

		switch {
		case c.Writer.Status() >= 500:
			reqLogger.Error("HTTP Request", fields...)
		case c.Writer.Status() >= 400:
			reqLogger.Warn("HTTP Request", fields...)
		default:
			reqLogger.Info("HTTP Request", fields...)
		}
	}
}

// FromGin returns the request-scoped logger, or the global one outside a request.
func FromGin(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ginKey); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return log
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/hertz-contrib/cors"
	"github.com/sirupsen/logrus"

	"stockverse/internal/config"
)

const requestIDHeader = "X-Request-ID"

// AccessLog tags each request with an id (reusing the caller's X-Request-ID
// when present) and logs one line when the handler chain returns.
func AccessLog(log *logrus.Entry) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		id := string(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Response.Header.Set(requestIDHeader, id)

		c.Next(ctx)

		status := c.Response.StatusCode()
		entry := log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     string(c.Method()),
			"path":       string(c.Path()),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Warn("request failed")
		default:
			entry.Info("request served")
		}
	}
}

// CORS applies the frontend allow-list. A "*" entry opens every origin.
func CORS(cfg config.CORSConfig) app.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        time.Duration(cfg.MaxAgeSec) * time.Second,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			cc.AllowAllOrigins = true
		}
	}
	if !cc.AllowAllOrigins {
		cc.AllowOrigins = cfg.AllowOrigins
		cc.AllowCredentials = true
	}
	return cors.New(cc)
}

// setProxyCORS writes the permissive headers the quote proxy always returns,
// independent of the allow-list.
func setProxyCORS(c *app.RequestContext) {
	c.Response.Header.Set("Access-Control-Allow-Origin", "*")
	c.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Response.Header.Set("Access-Control-Allow-Headers", "*")
}

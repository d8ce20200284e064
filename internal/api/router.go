package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/sirupsen/logrus"

	"stockverse/internal/chat"
	"stockverse/internal/config"
	"stockverse/internal/logger"
	"stockverse/internal/quote"
	"stockverse/internal/replay"
)

type Deps struct {
	Replay *replay.Service
	Proxy  *quote.Proxy
	Bot    *chat.Bot
	Feed   config.FeedConfig
	CORS   config.CORSConfig
	Log    logrus.FieldLogger
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

// RegisterRoutes mounts the feed and chat routes behind the frontend CORS
// allow-list and the quote proxy on its own group, which answers every
// origin with permissive headers.
func RegisterRoutes(r *route.Engine, d Deps) {
	log := logger.Component(d.Log, "api")
	r.Use(AccessLog(log))

	defaultLimit := d.Feed.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 50
	}

	feed := r.Group("/", CORS(d.CORS))

	feed.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	feed.GET("/test", func(_ context.Context, c *app.RequestContext) {
		if d.Replay == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"detail": "replay service not configured"})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"status":      "Server is running!",
			"data_points": d.Replay.Len(),
		})
	})

	feed.GET("/api/stock-data", func(_ context.Context, c *app.RequestContext) {
		if d.Replay == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"detail": "replay service not configured"})
			return
		}
		limit, ok := parseLimit(c.Query("limit"), defaultLimit)
		if !ok {
			log.WithField("limit", c.Query("limit")).Debug("invalid limit, using default")
		}
		c.JSON(http.StatusOK, d.Replay.Window(limit))
	})

	feed.GET("/next_data", func(_ context.Context, c *app.RequestContext) {
		if d.Replay == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"detail": "replay service not configured"})
			return
		}
		c.JSON(http.StatusOK, d.Replay.Next())
	})

	feed.GET("/current_data", func(_ context.Context, c *app.RequestContext) {
		if d.Replay == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"detail": "replay service not configured"})
			return
		}
		c.JSON(http.StatusOK, d.Replay.Current())
	})

	feed.POST("/get_response", func(ctx context.Context, c *app.RequestContext) {
		var req ChatRequest
		if err := c.BindJSON(&req); err != nil {
			log.WithError(err).Debug("unreadable chat body, treating as empty message")
			req.Message = ""
		}
		c.JSON(http.StatusOK, ChatResponse{Response: d.Bot.Reply(ctx, req.Message)})
	})

	feed.GET("/api/chat/ping", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, d.Bot.Ping(ctx))
	})

	// The allow-list middleware only runs on matched routes, so preflights
	// need a route to land on. It answers them before this handler runs.
	for _, path := range []string{"/healthz", "/test", "/api/stock-data", "/next_data", "/current_data", "/get_response", "/api/chat/ping"} {
		feed.OPTIONS(path, func(_ context.Context, c *app.RequestContext) {
			c.Status(http.StatusNoContent)
		})
	}

	proxy := r.Group("/proxy")
	fetch := proxyHandler(d.Proxy)
	for _, path := range []string{"/:symbol", "/yahoo/:symbol"} {
		proxy.GET(path, fetch)
		proxy.OPTIONS(path, proxyPreflight)
	}
}

func proxyHandler(px *quote.Proxy) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		setProxyCORS(c)
		if px == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{"detail": "quote proxy not configured"})
			return
		}
		body, err := px.FetchQuote(ctx, c.Param("symbol"), c.Query("interval"), c.Query("range"))
		if err != nil {
			status, detail := quote.Status(err)
			c.JSON(status, map[string]any{"detail": detail})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

func proxyPreflight(_ context.Context, c *app.RequestContext) {
	setProxyCORS(c)
	c.Response.Header.Set("Access-Control-Max-Age", "3600")
	c.Status(http.StatusNoContent)
}

// parseLimit returns def when raw is missing or not an integer. Integers too
// large for int saturate; range clamping is left to the replay service,
// which knows the dataset size.
func parseLimit(raw string, def int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseInt(raw, 10, 0)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return def, false
	}
	return int(v), true
}

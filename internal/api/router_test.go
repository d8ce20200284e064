package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	hzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"stockverse/internal/chat"
	"stockverse/internal/config"
	"stockverse/internal/dataset"
	"stockverse/internal/logger"
	"stockverse/internal/quote"
	"stockverse/internal/replay"
)

type RouterTestSuite struct {
	suite.Suite
	upstream *httptest.Server
	engine   *route.Engine
	n        int
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	s.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v8/finance/chart/AAPL":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"chart":{"result":[{"meta":{"symbol":"AAPL","interval":%q}}],"error":null}}`, r.URL.Query().Get("interval"))
		case "/v8/finance/chart/SLOW":
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
		}
	}))

	recs := []dataset.Record{
		{Time: "2024-01-02", Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
		{Time: "2024-01-03", Open: 20, High: 22, Low: 19, Close: 21, Volume: 200},
		{Time: "2024-01-04", Open: 30, High: 32, Low: 29, Close: 31, Volume: 300},
	}
	s.n = len(recs)
	log := logger.Discard()

	px, err := quote.NewProxy(quote.Config{
		BaseURL:   s.upstream.URL,
		Timeout:   100 * time.Millisecond,
		UserAgent: "Mozilla/5.0 test",
	}, log)
	s.Require().NoError(err)

	s.engine = route.NewEngine(hzconfig.NewOptions([]hzconfig.Option{}))
	RegisterRoutes(s.engine, Deps{
		Replay: replay.NewService(dataset.New(recs), log),
		Proxy:  px,
		Bot:    chat.New(chat.Config{Enabled: false}, log),
		Feed:   config.FeedConfig{DefaultLimit: 50},
		CORS:   config.CORSConfig{AllowOrigins: []string{"*"}, MaxAgeSec: 3600},
		Log:    log,
	})
}

func (s *RouterTestSuite) TearDownTest() {
	s.upstream.Close()
}

func (s *RouterTestSuite) get(path string, headers ...ut.Header) *protocol.Response {
	return ut.PerformRequest(s.engine, http.MethodGet, path, nil, headers...).Result()
}

func (s *RouterTestSuite) decode(resp *protocol.Response, out any) {
	s.Require().NoError(json.Unmarshal(resp.Body(), out), string(resp.Body()))
}

func (s *RouterTestSuite) TestLiveness() {
	resp := s.get("/test")
	s.Equal(http.StatusOK, resp.StatusCode())

	var body map[string]any
	s.decode(resp, &body)
	s.Equal("Server is running!", body["status"])
	s.Equal(float64(s.n), body["data_points"])

	s.NotEmpty(resp.Header.Get(requestIDHeader))
	s.Equal("abc-123", s.get("/healthz", ut.Header{Key: requestIDHeader, Value: "abc-123"}).Header.Get(requestIDHeader))
}

func (s *RouterTestSuite) TestStockDataSlides() {
	var first, second []map[string]any
	s.decode(s.get("/api/stock-data"), &first)
	s.decode(s.get("/api/stock-data?limit=2"), &second)

	s.Require().Len(first, 3)
	s.Equal("2024-01-02", first[0]["time"])
	s.Equal(10.0, first[0]["open"])
	s.Equal(12.0, first[0]["high"])
	s.Equal(9.0, first[0]["low"])
	s.Equal(11.0, first[0]["close"])
	s.Equal(100.0, first[0]["volume"])

	s.Require().Len(second, 2)
	s.Equal("2024-01-03", second[0]["time"])
}

func (s *RouterTestSuite) TestStockDataHugeLimitClamps() {
	var out []map[string]any
	s.decode(s.get("/api/stock-data?limit=99999999999999999999"), &out)
	s.Len(out, 3)
}

func (s *RouterTestSuite) TestStockDataBadLimitFallsBack() {
	var out []map[string]any
	resp := s.get("/api/stock-data?limit=lots")
	s.Equal(http.StatusOK, resp.StatusCode())
	s.decode(resp, &out)
	s.Len(out, 3)

	s.decode(s.get("/api/stock-data?limit=0"), &out)
	s.Len(out, 1)
}

func (s *RouterTestSuite) TestSequentialEndpoints() {
	var cur map[string]any
	s.decode(s.get("/current_data"), &cur)
	s.Contains(cur, "time")
	s.Contains(cur, "value")
	s.Nil(cur["time"])
	s.Nil(cur["value"])

	wantTimes := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-02"}
	wantValues := []float64{10, 20, 30, 10}
	for i := range wantTimes {
		var p map[string]any
		s.decode(s.get("/next_data"), &p)
		s.Equal(wantTimes[i], p["time"])
		s.Equal(wantValues[i], p["value"])

		s.decode(s.get("/current_data"), &cur)
		s.Equal(p, cur)
	}
}

func (s *RouterTestSuite) TestProxySuccess() {
	resp := s.get("/proxy/AAPL?interval=5m&range=1d")
	s.Equal(http.StatusOK, resp.StatusCode())
	s.Equal("*", resp.Header.Get("Access-Control-Allow-Origin"))
	s.JSONEq(`{"chart":{"result":[{"meta":{"symbol":"AAPL","interval":"5m"}}],"error":null}}`, string(resp.Body()))

	resp = s.get("/proxy/yahoo/AAPL?interval=bogus")
	s.Equal(http.StatusOK, resp.StatusCode())
	s.Contains(string(resp.Body()), `"interval":"1m"`)
}

func (s *RouterTestSuite) TestProxyUpstreamNotFound() {
	resp := s.get("/proxy/ZZZZ")
	s.Equal(http.StatusNotFound, resp.StatusCode())

	var body map[string]string
	s.decode(resp, &body)
	s.Contains(body["detail"], "No data found")
}

func (s *RouterTestSuite) TestProxyTimeout() {
	resp := s.get("/proxy/SLOW")
	s.Equal(http.StatusGatewayTimeout, resp.StatusCode())
}

func (s *RouterTestSuite) TestProxyPreflight() {
	resp := ut.PerformRequest(s.engine, http.MethodOptions, "/proxy/AAPL", nil).Result()
	s.Equal(http.StatusNoContent, resp.StatusCode())
	s.Empty(resp.Body())
	s.Equal("*", resp.Header.Get("Access-Control-Allow-Origin"))
	s.Equal("3600", resp.Header.Get("Access-Control-Max-Age"))
}

func (s *RouterTestSuite) TestCORSAllowList() {
	resp := s.get("/test", ut.Header{Key: "Origin", Value: "https://stock-verse.example"})
	s.Equal("*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func (s *RouterTestSuite) TestChatAlwaysOK() {
	post := func(body string) map[string]string {
		resp := ut.PerformRequest(s.engine, http.MethodPost, "/get_response",
			&ut.Body{Body: bytes.NewBufferString(body), Len: len(body)},
			ut.Header{Key: "Content-Type", Value: "application/json"}).Result()
		s.Equal(http.StatusOK, resp.StatusCode())
		var out map[string]string
		s.decode(resp, &out)
		return out
	}

	s.Equal(chat.EmptyMessageReply, post(`{"message":"   "}`)["response"])
	s.Equal(chat.FallbackReply, post(`{"message":"Is AAPL a buy?"}`)["response"])
	s.Equal(chat.EmptyMessageReply, post(`not json`)["response"])
}

func (s *RouterTestSuite) TestChatPing() {
	var out map[string]any
	s.decode(s.get("/api/chat/ping"), &out)
	s.Equal("fallback", out["mode"])
}

func TestParseLimit(t *testing.T) {
	v, ok := parseLimit("", 50)
	assert.True(t, ok)
	assert.Equal(t, 50, v)

	v, ok = parseLimit(" 12 ", 50)
	assert.True(t, ok)
	assert.Equal(t, 12, v)

	v, ok = parseLimit("1e3", 50)
	assert.False(t, ok)
	assert.Equal(t, 50, v)

	v, ok = parseLimit("99999999999999999999", 50)
	assert.True(t, ok)
	assert.Equal(t, math.MaxInt, v)

	v, ok = parseLimit("-99999999999999999999", 50)
	assert.True(t, ok)
	assert.Equal(t, math.MinInt, v)
}

func TestRoutesWithoutServices(t *testing.T) {
	engine := route.NewEngine(hzconfig.NewOptions([]hzconfig.Option{}))
	RegisterRoutes(engine, Deps{CORS: config.CORSConfig{AllowOrigins: []string{"http://localhost:5173"}}})

	resp := ut.PerformRequest(engine, http.MethodGet, "/test", nil).Result()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())

	resp = ut.PerformRequest(engine, http.MethodGet, "/proxy/AAPL", nil).Result()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())

	body := `{"message":"hi"}`
	resp = ut.PerformRequest(engine, http.MethodPost, "/get_response",
		&ut.Body{Body: bytes.NewBufferString(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"}).Result()
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), chat.FallbackReply)
}

// newAllowListEngine wires the routes with the shipped CORS allow-list and an
// upstream that counts the chart requests it serves.
func newAllowListEngine(t *testing.T) (*route.Engine, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	}))
	t.Cleanup(upstream.Close)

	log := logger.Discard()
	px, err := quote.NewProxy(quote.Config{BaseURL: upstream.URL, Timeout: time.Second, UserAgent: "Mozilla/5.0 test"}, log)
	require.NoError(t, err)

	engine := route.NewEngine(hzconfig.NewOptions([]hzconfig.Option{}))
	RegisterRoutes(engine, Deps{
		Replay: replay.NewService(dataset.New([]dataset.Record{{Time: "2024-01-02", Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}}), log),
		Proxy:  px,
		Feed:   config.FeedConfig{DefaultLimit: 50},
		CORS:   config.Default().CORS,
		Log:    log,
	})
	return engine, &hits
}

func TestProxyBypassesAllowList(t *testing.T) {
	const unlisted = "https://other-frontend.example"
	listed := config.Default().CORS.AllowOrigins[0]

	engine, hits := newAllowListEngine(t)
	preflight := func(path, origin string) *protocol.Response {
		return ut.PerformRequest(engine, http.MethodOptions, path, nil,
			ut.Header{Key: "Origin", Value: origin},
			ut.Header{Key: "Access-Control-Request-Method", Value: http.MethodGet}).Result()
	}

	for _, path := range []string{"/proxy/AAPL", "/proxy/yahoo/AAPL"} {
		for _, origin := range []string{unlisted, listed} {
			resp := preflight(path, origin)
			assert.Equal(t, http.StatusNoContent, resp.StatusCode(), "%s from %s", path, origin)
			assert.Empty(t, resp.Body())
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Headers"))
			assert.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))
		}
	}

	for _, origin := range []string{unlisted, listed} {
		resp := ut.PerformRequest(engine, http.MethodGet, "/proxy/AAPL", nil, ut.Header{Key: "Origin", Value: origin}).Result()
		assert.Equal(t, http.StatusOK, resp.StatusCode(), origin)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestFeedKeepsAllowList(t *testing.T) {
	listed := config.Default().CORS.AllowOrigins[0]
	engine, _ := newAllowListEngine(t)

	resp := ut.PerformRequest(engine, http.MethodOptions, "/api/stock-data", nil,
		ut.Header{Key: "Origin", Value: listed},
		ut.Header{Key: "Access-Control-Request-Method", Value: http.MethodGet}).Result()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, listed, resp.Header.Get("Access-Control-Allow-Origin"))

	resp = ut.PerformRequest(engine, http.MethodGet, "/api/stock-data", nil,
		ut.Header{Key: "Origin", Value: listed}).Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, listed, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp = ut.PerformRequest(engine, http.MethodGet, "/api/stock-data", nil,
		ut.Header{Key: "Origin", Value: "https://other-frontend.example"}).Result()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

package chat

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"stockverse/internal/logger"
)

const (
	EmptyMessageReply = "Please enter a stock-related question."
	FallbackReply     = "Sorry, I couldn't process that. Please ask a stock-related question!"
)

const systemPrompt = `You are StockBot, an assistant for stock trading and investment questions.
Answer in 1-2 sentences: professional, clear, concise, and specific.
Cover stock market insights, trading strategies, portfolio management, or stock terminology.
For a specific ticker, give basic insights (recent performance, key metrics, news impact) and suggest checking real-time data or a financial advisor.
For trading strategies, give beginner-friendly tips and state risks and benefits briefly.
For portfolio questions, suggest allocation, rebalancing, or risk assessment approaches.
If the question is vague or not about stocks or investing, politely ask for a stock-related question.`

type Config struct {
	Enabled    bool
	Model      string
	APIKey     string
	BaseURL    string
	ByAzure    bool
	APIVersion string
	TimeoutMs  int
}

type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Bot answers chat messages through an OpenAI-compatible model. It never
// returns an error to its caller; failures become canned replies.
type Bot struct {
	gen            generator
	modelName      string
	timeout        time.Duration
	disabledReason string
	log            *logrus.Entry
}

func New(cfg Config, log logrus.FieldLogger) *Bot {
	entry := logger.Component(log, "chat")
	if !cfg.Enabled {
		return &Bot{disabledReason: "disabled by config", log: entry}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		entry.Warn("chat disabled: missing api key or model")
		return &Bot{disabledReason: "api_key or model missing", log: entry}
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cm, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		ByAzure:    cfg.ByAzure,
		APIVersion: cfg.APIVersion,
		Timeout:    timeout,
	})
	if err != nil {
		entry.WithError(err).Error("chat model init failed")
		return &Bot{disabledReason: "init failed", log: entry}
	}
	return &Bot{gen: cm, modelName: cfg.Model, timeout: timeout, log: entry}
}

func (b *Bot) Enabled() bool {
	return b != nil && b.gen != nil
}

// Reply answers one user message.
func (b *Bot) Reply(ctx context.Context, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return EmptyMessageReply
	}
	if !b.Enabled() {
		return FallbackReply
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	resp, err := b.gen.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(message),
	})
	if err != nil {
		b.logError(err)
		return FallbackReply
	}
	text := ""
	if resp != nil {
		text = strings.TrimSpace(resp.Content)
	}
	if text == "" {
		b.log.Warn("chat model returned empty content")
		return FallbackReply
	}
	return text
}

// Ping reports whether replies come from the model or the fallback.
func (b *Bot) Ping(ctx context.Context) map[string]any {
	if !b.Enabled() {
		reason := "not configured"
		if b != nil && b.disabledReason != "" {
			reason = b.disabledReason
		}
		return map[string]any{"ok": true, "mode": "fallback", "reason": reason}
	}
	start := time.Now()
	_, err := b.gen.Generate(ctx, []*schema.Message{
		schema.SystemMessage("Reply with the single word: pong."),
		schema.UserMessage("ping"),
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		b.logError(err)
		return map[string]any{"ok": true, "mode": "fallback", "reason": "llm error"}
	}
	return map[string]any{"ok": true, "mode": "llm", "model": b.modelName, "latency_ms": latency}
}

func (b *Bot) logError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		b.log.WithFields(logrus.Fields{"status": apiErr.HTTPStatusCode, "message": msg}).Error("chat api error")
		return
	}
	b.log.WithError(err).Error("chat model error")
}

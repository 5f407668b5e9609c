package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shortlinks/internal/service"
	"shortlinks/internal/types"

	tele "gopkg.in/telebot.v4"
)

const (
	requestTimeout = 5 * time.Second
	qrSize         = 256
)

type TelegramBot struct {
	tgBot     *tele.Bot
	shortener *service.Shortener
	analytics *service.Aggregator
}

func NewTelegramBot(tgToken string, shortener *service.Shortener, analytics *service.Aggregator) (*TelegramBot, error) {
	pref := tele.Settings{
		Token:  tgToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		slog.Error("failed to initialize telegram bot", "error", err)
		return nil, err
	}

	return &TelegramBot{
		tgBot:     bot,
		shortener: shortener,
		analytics: analytics,
	}, nil
}

func (b *TelegramBot) Start(ctx context.Context) error {
	slog.Info("Telegram bot started", "bot_username", b.tgBot.Me.Username)

	b.tgBot.Handle("/start", b.handleStart)
	b.tgBot.Handle("/stats", b.handleStats)
	b.tgBot.Handle(tele.OnText, b.handleMessage)

	go func() {
		<-ctx.Done()
		slog.Info("Telegram bot shutting down")
		b.tgBot.Stop()
	}()

	b.tgBot.Start()
	return nil
}

func (b *TelegramBot) handleStart(c tele.Context) error {
	slog.Debug("command /start received", "user_id", c.Sender().ID)
	return c.Send("Hi! Send me a long link and I will shorten it.\nUse /stats <code> to see how a short link is doing.")
}

func (b *TelegramBot) handleStats(c tele.Context) error {
	code := strings.TrimSpace(c.Message().Payload)
	if code == "" {
		return c.Send("Usage: /stats <code>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	link, err := b.shortener.Resolve(ctx, code)
	if err != nil {
		return c.Send(describe(err))
	}
	summary, err := b.analytics.Summarize(ctx, link.ID, service.DefaultWindowDays)
	if err != nil {
		slog.Error("failed to build stats", "code", code, "error", err)
		return c.Send("Could not load stats, please try again later.")
	}
	return c.Send(formatStats(b.shortener.ShortURL(link.ShortCode), summary))
}

func (b *TelegramBot) handleMessage(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	link, _, err := b.shortener.Create(ctx, service.CreateRequest{URL: c.Text()})
	if err != nil {
		slog.Warn("failed to create short link", "user_id", c.Sender().ID, "error", err)
		return c.Send(describe(err))
	}

	shortURL := b.shortener.ShortURL(link.ShortCode)
	png, err := b.shortener.QRCode(ctx, link.ID, qrSize)
	if err != nil {
		slog.Warn("failed to render qr code", "id", link.ID, "error", err)
		return c.Send("Here is your short link:\n" + shortURL)
	}
	photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(png)), Caption: shortURL}
	return c.Send(photo)
}

func describe(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		return "That does not look like a valid http(s) link."
	case errors.Is(err, service.ErrLinkExpired):
		return "That short link has expired."
	case errors.Is(err, service.ErrLinkNotFound):
		return "No such short link."
	default:
		slog.Error("bot request failed", "error", err)
		return "Something went wrong, please try again."
	}
}

func formatStats(shortURL string, s *types.AnalyticsSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\nClicks: %d\nUnique visitors: %d\n", shortURL, s.TotalClicks, s.UniqueVisitors)
	for _, d := range s.DeviceStats {
		fmt.Fprintf(&sb, "%s: %d\n", d.Device, d.Count)
	}
	if len(s.BrowserStats) > 0 {
		fmt.Fprintf(&sb, "Top browser: %s (%d)\n", s.BrowserStats[0].Browser, s.BrowserStats[0].Count)
	}
	if len(s.TopReferrers) > 0 {
		fmt.Fprintf(&sb, "Top referrer: %s (%d)\n", s.TopReferrers[0].Referrer, s.TopReferrers[0].Count)
	}
	return strings.TrimRight(sb.String(), "\n")
}

package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photo-styler/internal/apperr"
	"photo-styler/internal/media"
)

// Bot API limits, in bytes.
const (
	maxTextBytes    = 4096
	maxCaptionBytes = 1024
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool
}

// Client is the slice of the Bot API the styler needs: long polling,
// text and photo replies, and fetching photos users send.
type Client struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, redactToken(err, opts.Token)
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{bot: bot, httpClient: opts.HTTPClient, logger: logger}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

type Update = tgbotapi.Update

// Updates long-polls for messages until ctx is done, then closes the channel.
func (c *Client) Updates(ctx context.Context, pollTimeout time.Duration) tgbotapi.UpdatesChannel {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	if pollTimeout > 0 {
		cfg.Timeout = int(pollTimeout / time.Second)
	}
	cfg.AllowedUpdates = []string{"message"}

	ch := c.bot.GetUpdatesChan(cfg)
	go func() {
		<-ctx.Done()
		c.bot.StopReceivingUpdates()
	}()
	return ch
}

// SendTyping shows the "sending photo" indicator. Failures only matter for
// debugging.
func (c *Client) SendTyping(chatID int64) {
	if _, err := c.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadPhoto)); err != nil {
		c.logger.Debug("chat action failed", "chat_id", chatID, "err", err)
	}
}

// SendText delivers text in as many messages as the size limit requires,
// breaking at line ends where possible.
func (c *Client) SendText(chatID int64, text string) error {
	for _, chunk := range chunkText(text, maxTextBytes) {
		if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("send text: %w", err)
		}
	}
	return nil
}

// SendPhoto uploads an encoded image. name should carry the right extension
// so Telegram keeps the format.
func (c *Client) SendPhoto(chatID int64, img media.Encoded, name, caption string) error {
	data, err := img.Bytes()
	if err != nil {
		return err
	}
	if name == "" {
		name = "image" + img.Extension()
	}

	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	msg.Caption = clipText(caption, maxCaptionBytes)
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send photo %s: %w", name, err)
	}
	return nil
}

// DownloadFile fetches a file the user sent. Files Telegram already reports
// as oversized are refused before any byte is fetched; otherwise reading
// stops just past the upload limit so media.Validate can reject it.
func (c *Client) DownloadFile(ctx context.Context, fileID, name string) (media.Upload, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return media.Upload{}, fmt.Errorf("get file %s: %w", fileID, redactToken(err, c.bot.Token))
	}
	if int64(file.FileSize) > media.MaxUploadBytes {
		return media.Upload{}, apperr.New(apperr.KindValidation, "telegram.download",
			fmt.Sprintf("File is too large. Maximum size is %dMB.", media.MaxUploadMB))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(c.bot.Token), nil)
	if err != nil {
		return media.Upload{}, redactToken(err, c.bot.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return media.Upload{}, redactToken(err, c.bot.Token)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return media.Upload{}, fmt.Errorf("telegram file download %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if name == "" {
		name = file.FilePath
	}
	up, err := media.Read(resp.Body, name, resp.Header.Get("Content-Type"))
	if err != nil {
		return media.Upload{}, err
	}
	c.logger.Debug("file downloaded", "file_id", fileID, "bytes", up.Size(), "mime", up.MimeType, "took", time.Since(start))
	return up, nil
}

// redactToken keeps the bot token out of logs; Telegram embeds it in every
// file URL.
func redactToken(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}

// chunkText cuts text into pieces of at most limit bytes. A piece ends at
// the last newline that fits, or at a rune boundary when none does.
func chunkText(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := runeBoundary(text, limit)
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		if chunk := strings.TrimRight(text[:cut], "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// clipText shortens text to at most limit bytes without splitting a rune.
func clipText(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:runeBoundary(text, limit)]
}

// runeBoundary returns the largest n <= limit at which text[:n] ends on a
// whole rune. It never returns 0 for non-empty text.
func runeBoundary(text string, limit int) int {
	n := limit
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	if n == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return n
}

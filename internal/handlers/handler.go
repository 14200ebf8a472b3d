package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photo-styler/internal/apperr"
	"photo-styler/internal/media"
	"photo-styler/internal/mediagroup"
	"photo-styler/internal/session"
	"photo-styler/internal/style"
	"photo-styler/internal/telegram"
)

// Messenger is the subset of the Telegram client the handler talks through.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, img media.Encoded, name, caption string) error
	SendTyping(chatID int64)
	DownloadFile(ctx context.Context, fileID, name string) (media.Upload, error)
}

type Controller interface {
	Start(up media.Upload) (<-chan struct{}, error)
	Retry() (<-chan struct{}, error)
	Reset() error
	State() session.State
	Catalog() style.Catalog
	Subscribe(fn func(session.Event)) error
}

type Options struct {
	Telegram   Messenger
	Controller Controller
	Logger     *slog.Logger
}

// Handler binds one chat at a time to the controller: whoever starts a run
// receives its progress and images until the next run or reset.
type Handler struct {
	tg         Messenger
	ctrl       Controller
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
	events     chan queuedEvent

	// launchMu serializes starts; pending is the chat a starting run
	// belongs to, read when its started event is published.
	launchMu sync.Mutex
	mu       sync.Mutex
	pending  int64
}

func New(opts Options) (*Handler, error) {
	if opts.Telegram == nil || opts.Controller == nil {
		return nil, errors.New("handlers: telegram and controller are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := &Handler{
		tg:     opts.Telegram,
		ctrl:   opts.Controller,
		logger: logger,
		events: make(chan queuedEvent, eventBuffer),
	}
	if err := h.ctrl.Subscribe(h.enqueue); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		return h.handleCommand(chatID, msg)
	}

	fileID, name, ok := imageFile(msg)
	if !ok {
		if msg.Document != nil {
			return h.tg.SendText(chatID, "❌ "+apperr.MsgInvalidType)
		}
		if strings.TrimSpace(msg.Text) != "" {
			return h.tg.SendText(chatID, helpText)
		}
		return nil
	}

	if msg.Document != nil && int64(msg.Document.FileSize) > media.MaxUploadBytes {
		return h.tg.SendText(chatID, "❌ "+tooLargeText)
	}

	if msg.MediaGroupID != "" && h.aggregator != nil {
		var userID int64
		if msg.From != nil {
			userID = msg.From.ID
		}
		opened := h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			MediaGroupID: msg.MediaGroupID,
			FileID:       fileID,
			FileName:     name,
		})
		if opened {
			return h.tg.SendText(chatID, albumText)
		}
		return nil
	}

	return h.startRun(ctx, chatID, fileID, name)
}

// HandleMediaGroup starts a run with the first photo of an album.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	first := group.First()
	if first.FileID == "" {
		return
	}
	if err := h.startRun(ctx, group.ChatID, first.FileID, first.FileName); err != nil {
		h.logger.Error("media group processing failed", "chat_id", group.ChatID, "err", err)
	}
}

func (h *Handler) handleCommand(chatID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID, welcomeText)
	case "help":
		return h.tg.SendText(chatID, helpText)
	case "styles":
		if label := strings.TrimSpace(msg.CommandArguments()); label != "" {
			in, ok := h.ctrl.Catalog().Find(label)
			if !ok {
				return h.tg.SendText(chatID, fmt.Sprintf("❌ Unknown style %q. Use /styles to list them.", label))
			}
			return h.tg.SendText(chatID, styleText(in))
		}
		return h.tg.SendText(chatID, stylesText(h.ctrl.Catalog()))
	case "status":
		return h.tg.SendText(chatID, statusText(h.ctrl.State()))
	case "retry":
		return h.launch(chatID, h.ctrl.Retry)
	case "reset":
		if err := h.ctrl.Reset(); err != nil {
			return h.tg.SendText(chatID, busyText)
		}
		return h.tg.SendText(chatID, "✅ Cleared. Send a new photo whenever you are ready.")
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) startRun(ctx context.Context, chatID int64, fileID, name string) error {
	if h.ctrl.State().Phase == session.PhaseGenerating {
		return h.tg.SendText(chatID, busyText)
	}

	h.tg.SendTyping(chatID)
	up, err := h.tg.DownloadFile(ctx, fileID, name)
	if apperr.IsKind(err, apperr.KindValidation) {
		return h.tg.SendText(chatID, "❌ "+apperr.UserMessage(err))
	}
	if err != nil {
		h.logger.Error("photo download failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ Could not download the photo. Please send it again.")
	}

	return h.launch(chatID, func() (<-chan struct{}, error) {
		return h.ctrl.Start(up)
	})
}

// launch starts a run on behalf of chatID, which then receives its events.
func (h *Handler) launch(chatID int64, start func() (<-chan struct{}, error)) error {
	h.launchMu.Lock()
	h.mu.Lock()
	h.pending = chatID
	h.mu.Unlock()
	_, err := start()
	h.launchMu.Unlock()

	if err != nil {
		switch {
		case errors.Is(err, session.ErrRunInProgress):
			return h.tg.SendText(chatID, busyText)
		case errors.Is(err, session.ErrNoImage):
			return h.tg.SendText(chatID, "❌ There is no photo to retry. Send a new one.")
		case apperr.IsKind(err, apperr.KindValidation):
			return h.tg.SendText(chatID, "❌ "+apperr.UserMessage(err))
		default:
			h.logger.Error("start run failed", "chat_id", chatID, "err", err)
			return h.tg.SendText(chatID, "❌ Something went wrong. Please try again.")
		}
	}

	h.logger.Info("run launched", "chat_id", chatID)
	return nil
}

// imageFile picks the largest photo size, or an image sent as a document.
func imageFile(msg *tgbotapi.Message) (fileID, name string, ok bool) {
	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		return photo.FileID, "photo.jpg", true
	}
	if doc := msg.Document; doc != nil {
		switch media.NormalizeMime(doc.MimeType) {
		case media.MimeJPEG, media.MimePNG:
			return doc.FileID, doc.FileName, true
		}
	}
	return "", "", false
}

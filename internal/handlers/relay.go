package handlers

import (
	"context"
	"fmt"

	"photo-styler/internal/session"
)

const eventBuffer = 64

type queuedEvent struct {
	event  session.Event
	chatID int64
}

// relayState follows the run currently bound to a chat.
type relayState struct {
	chatID      int64
	runID       string
	sent        int
	lastMessage string
}

// enqueue runs on the controller's publishing goroutine. It never blocks;
// a started event is stamped with the chat that launched it.
func (h *Handler) enqueue(ev session.Event) {
	q := queuedEvent{event: ev}
	if ev.Type == session.EventStarted {
		h.mu.Lock()
		q.chatID = h.pending
		h.mu.Unlock()
	}

	select {
	case h.events <- q:
	default:
		h.logger.Warn("event relay full, dropping event", "type", ev.Type, "run_id", ev.State.RunID)
	}
}

// Run delivers controller events to Telegram until ctx is done.
func (h *Handler) Run(ctx context.Context) error {
	var r relayState
	for {
		select {
		case <-ctx.Done():
			return nil
		case q := <-h.events:
			r = h.relay(r, q)
		}
	}
}

func (h *Handler) relay(r relayState, q queuedEvent) relayState {
	st := q.event.State

	switch q.event.Type {
	case session.EventStarted:
		r = relayState{chatID: q.chatID, runID: st.RunID}
		if r.chatID != 0 {
			h.send(r.chatID, fmt.Sprintf("📸 Photo received! Generating %d styles, this can take a minute.", st.Total))
		}
		return r
	case session.EventReset:
		return relayState{}
	}

	if r.chatID == 0 || st.RunID != r.runID {
		return r
	}

	r = h.sendResults(r, st)

	switch q.event.Type {
	case session.EventProgress:
		if st.Message != "" && st.Message != r.lastMessage {
			r.lastMessage = st.Message
			h.tg.SendTyping(r.chatID)
			h.send(r.chatID, progressText(st))
		}
	case session.EventComplete:
		h.send(r.chatID, completeText(st))
	case session.EventFailed:
		h.send(r.chatID, failedText(st))
	}
	return r
}

func (h *Handler) sendResults(r relayState, st session.State) relayState {
	for ; r.sent < len(st.Results); r.sent++ {
		res := st.Results[r.sent]
		if err := h.tg.SendPhoto(r.chatID, res.Image, res.DownloadName(), "✨ "+res.Style); err != nil {
			h.logger.Error("send result failed", "chat_id", r.chatID, "style", res.Style, "err", err)
		}
	}
	return r
}

func (h *Handler) send(chatID int64, text string) {
	if err := h.tg.SendText(chatID, text); err != nil {
		h.logger.Error("send text failed", "chat_id", chatID, "err", err)
	}
}

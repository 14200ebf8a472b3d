package handlers

import (
	"fmt"
	"strings"

	"photo-styler/internal/media"
	"photo-styler/internal/session"
	"photo-styler/internal/style"
)

const (
	welcomeText = "📷 Photo Styler\n\n" +
		"Send me a portrait photo (JPG or PNG, up to 10MB) and I will turn it into a set of professional profile pictures.\n\n" +
		"Commands:\n" +
		"/styles [name] - List the styles, or show one\n" +
		"/status - Show the current run\n" +
		"/retry - Run the last photo again\n" +
		"/reset - Clear photo and results\n" +
		"/help - Help"

	helpText = "📷 Help\n\n" +
		"Send one photo (or a JPG/PNG file). Each style is generated in turn and sent as soon as it is ready.\n" +
		"If a style fails the run stops; the images you already got stay valid. Use /retry or send a different photo."

	albumText = "ℹ️ Albums are not supported, only the first photo will be styled."

	busyText = "⏳ A photo is being styled right now. Please wait until it finishes."
)

var tooLargeText = fmt.Sprintf("File is too large. Maximum size is %dMB.", media.MaxUploadMB)

func styleText(in style.Instruction) string {
	return fmt.Sprintf("🎨 %s\n\n%s", in.Style, in.Instruction)
}

func stylesText(c style.Catalog) string {
	if c.Len() == 0 {
		return "No styles are configured."
	}
	var b strings.Builder
	b.WriteString("🎨 Styles:\n")
	for i, entry := range c {
		fmt.Fprintf(&b, "%d. %s\n", i+1, entry.Style)
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusText(st session.State) string {
	switch st.Phase {
	case session.PhaseGenerating:
		msg := st.Message
		if msg == "" {
			msg = "Starting..."
		}
		return fmt.Sprintf("⏳ %s\n%d of %d styles done (%.0f%%).", msg, st.Completed, st.Total, st.Progress().Percent())
	case session.PhaseComplete:
		return fmt.Sprintf("✅ Last run finished: %d styles ready.", len(st.Results))
	case session.PhaseFailed:
		return fmt.Sprintf("❌ Last run stopped: %s\n%d of %d styles finished.", st.Error, len(st.Results), st.Total)
	default:
		return "💤 Idle. Send a photo to start."
	}
}

func progressText(st session.State) string {
	return fmt.Sprintf("⏳ %s (%d/%d)", st.Message, st.Completed+1, st.Total)
}

func completeText(st session.State) string {
	return fmt.Sprintf("✅ Done! %d styles ready. Send another photo, /retry or /reset.", len(st.Results))
}

func failedText(st session.State) string {
	return fmt.Sprintf("❌ %s\n%d of %d styles finished. Use /retry to try again or send a different photo.", st.Error, len(st.Results), st.Total)
}

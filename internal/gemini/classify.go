package gemini

import (
	"errors"
	"strings"

	"photo-styler/internal/apperr"
)

const opGenerate = "gemini.generate"

var errNoImage = errors.New("no response part carried inline image data")

// Reasons the API reports when a prompt or a candidate is withheld by policy.
var blockedReasons = map[string]struct{}{
	"SAFETY":             {},
	"IMAGE_SAFETY":       {},
	"PROHIBITED_CONTENT": {},
	"BLOCKLIST":          {},
	"SPII":               {},
}

func isBlockedReason(reason string) bool {
	reason = strings.ToUpper(strings.TrimSpace(reason))
	if reason == "" || strings.HasSuffix(reason, "_UNSPECIFIED") {
		return false
	}
	_, ok := blockedReasons[reason]
	return ok
}

func mentionsSafety(message string) bool {
	return strings.Contains(message, "SAFETY")
}

func blockedError(reason string) error {
	return apperr.Wrap(apperr.KindContentBlocked, opGenerate, errors.New("blocked: "+reason))
}

func noImageError() error {
	return apperr.Wrap(apperr.KindNoImageReturned, opGenerate, errNoImage)
}

// failure classifies a failed exchange: a safety marker in the error text
// means a policy block, anything else is a generic generation failure.
func failure(err error) error {
	if err == nil {
		return nil
	}
	if mentionsSafety(err.Error()) {
		return apperr.Wrap(apperr.KindContentBlocked, opGenerate, err)
	}
	return apperr.Wrap(apperr.KindGenerationFailed, opGenerate, err)
}

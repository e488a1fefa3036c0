package messages

import (
	"strings"
	"unicode/utf8"

	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/models"
)

const (
	maxTextLength = 4000
	maxTagLength  = 32
)

// Content is a message body: either text or a single media reference.
type Content struct {
	Text      string
	MediaURL  string
	MediaKind models.MediaKind
}

func (c Content) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && strings.TrimSpace(c.MediaURL) == ""
}

// Normalize trims the content and checks it is a well-formed message body.
func (c Content) Normalize() (Content, error) {
	c.Text = strings.TrimSpace(c.Text)
	c.MediaURL = strings.TrimSpace(c.MediaURL)
	c.MediaKind = models.MediaKind(strings.ToUpper(string(c.MediaKind)))

	if c.MediaURL == "" {
		if c.MediaKind != "" {
			return c, apperrors.Validation("mediaUrl is required with mediaKind")
		}
		if c.Text == "" {
			return c, apperrors.Validation("message is empty")
		}
		if utf8.RuneCountInString(c.Text) > maxTextLength {
			return c, apperrors.Validation("message is too long")
		}
		return c, nil
	}

	if c.Text != "" {
		return c, apperrors.Validation("a message carries text or media, not both")
	}
	if !c.MediaKind.Valid() {
		return c, apperrors.Validation("mediaKind must be one of IMAGE, VIDEO, AUDIO, FILE")
	}
	return c, nil
}

func (c Content) apply(msg *models.Message) {
	if c.MediaURL == "" {
		msg.MessageType = models.MessageText
		msg.Text = c.Text
		return
	}
	url, kind := c.MediaURL, c.MediaKind
	msg.MessageType = models.MessageMedia
	msg.MediaURL = &url
	msg.MediaKind = &kind
}

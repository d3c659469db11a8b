// Package notify delivers channel notifications via the Telegram Bot
// API.
package notify

import "context"

// Notifier posts media messages to a chat or channel.
type Notifier interface {
	// SendPhoto posts a photo with an HTML caption.
	SendPhoto(ctx context.Context, chatID, photoURL, caption string) error

	// SendAnimation posts a GIF with an HTML caption.
	SendAnimation(ctx context.Context, chatID, animationURL, caption string) error
}

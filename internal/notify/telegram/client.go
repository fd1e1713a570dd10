// Package telegram sends operator notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/oshokin/cry-relay/internal/notify"
)

// Client sends messages from one bot to one chat.
type Client struct {
	// api is the Bot API client. It never polls: Start is not called.
	api *bot.Bot
	// token is kept only to scrub it from error text.
	token string
	// chatID is the operator chat.
	chatID string
	// callTimeout bounds one Send call.
	callTimeout time.Duration
	// buttonsPerRow is the reply keyboard width.
	buttonsPerRow int
	// httpClient performs the requests.
	httpClient *http.Client
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets the timeout for a single Send.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

const (
	// DefaultCallTimeout bounds a Send when no option overrides it.
	DefaultCallTimeout = 5 * time.Second
	// defaultButtonsPerRow keeps labels readable on a phone screen.
	defaultButtonsPerRow = 2
	// redactedToken replaces the bot token in error text.
	redactedToken = "<redacted>"
)

var (
	// ErrTokenRequired is returned when the bot token is empty.
	ErrTokenRequired = errors.New("telegram token must be provided")
	// ErrChatRequired is returned when the chat id is empty.
	ErrChatRequired = errors.New("telegram chat id must be provided")
	// ErrSendFailed wraps every failed sendMessage call.
	ErrSendFailed = errors.New("telegram send failed")
)

// New builds a client for the bot token and operator chat at apiURL.
// It does not contact the API.
func New(apiURL, token, chatID string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	if chatID == "" {
		return nil, ErrChatRequired
	}

	c := &Client{
		token:         token,
		chatID:        chatID,
		callTimeout:   DefaultCallTimeout,
		buttonsPerRow: defaultButtonsPerRow,
		httpClient:    new(http.Client),
	}

	for _, opt := range opts {
		opt(c)
	}

	api, err := bot.New(token,
		bot.WithSkipGetMe(),
		bot.WithServerURL(strings.TrimRight(apiURL, "/")),
		bot.WithHTTPClient(c.callTimeout, c.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot client: %s", c.scrub(err))
	}

	c.api = api

	return c, nil
}

var _ notify.Notifier = (*Client)(nil)

// Send posts msg to the operator chat. It does not retry.
func (c *Client) Send(ctx context.Context, msg notify.Message) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	params := &bot.SendMessageParams{
		ChatID: c.chatID,
		Text:   msg.Text,
	}

	if kb := c.keyboard(msg.Actions); kb != nil {
		params.ReplyMarkup = kb
	}

	if _, err := c.api.SendMessage(callCtx, params); err != nil {
		if ctxErr := callCtx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w: %s", ErrSendFailed, ctxErr, c.scrub(err))
		}

		return fmt.Errorf("%w: %s", ErrSendFailed, c.scrub(err))
	}

	return nil
}

// keyboard lays actions out in rows, or returns nil when there are none.
func (c *Client) keyboard(actions []string) *models.ReplyKeyboardMarkup {
	if len(actions) == 0 {
		return nil
	}

	rows := make([][]models.KeyboardButton, 0, (len(actions)+c.buttonsPerRow-1)/c.buttonsPerRow)

	for start := 0; start < len(actions); start += c.buttonsPerRow {
		end := min(start+c.buttonsPerRow, len(actions))

		row := make([]models.KeyboardButton, 0, end-start)
		for _, a := range actions[start:end] {
			row = append(row, models.KeyboardButton{Text: a})
		}

		rows = append(rows, row)
	}

	return &models.ReplyKeyboardMarkup{
		Keyboard:       rows,
		ResizeKeyboard: true,
		IsPersistent:   true,
	}
}

// scrub returns the error text with the bot token masked. Request errors
// carry the full method URL, which embeds the token.
func (c *Client) scrub(err error) string {
	return strings.ReplaceAll(err.Error(), c.token, redactedToken)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

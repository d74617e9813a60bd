// Package bot is the Telegram side of the bridge: it notifies registered
// users about new marketplace messages and relays their replies back.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/velden/playerok-bridge/internal/logger"
	"github.com/velden/playerok-bridge/internal/playerok"
	"github.com/velden/playerok-bridge/internal/runner"
)

// Sender is the marketplace surface the bot needs for relaying replies.
// Satisfied by *playerok.Account.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) (playerok.Message, error)
	SendImage(ctx context.Context, chatID, path string) (playerok.Message, error)
}

// Options configures the bot service.
type Options struct {
	Token    string
	Password string
	Registry *Registry
	Account  Sender
	Logger   *logger.Logger
}

// Service runs the Telegram bot: password-gated subscription, notification
// fan-out and the reply flow.
type Service struct {
	bot      *telego.Bot
	registry *Registry
	account  Sender
	password string
	log      *logger.Logger
	files    *http.Client
	limit    *RateLimiter

	mu           sync.Mutex
	pendingReply map[int64]string // telegram user id -> marketplace chat id
}

// New creates the bot service and validates the token against the API.
func New(opts Options) (*Service, error) {
	if opts.Token == "" {
		return nil, errors.New("bot token is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}

	b, err := telego.NewBot(strings.TrimSpace(opts.Token))
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &Service{
		bot:          b,
		registry:     opts.Registry,
		account:      opts.Account,
		password:     opts.Password,
		log:          opts.Logger,
		files:        &http.Client{Timeout: 30 * time.Second},
		limit:        DefaultRateLimiter(),
		pendingReply: make(map[int64]string),
	}, nil
}

// Run starts long polling and processes updates until the context ends.
func (s *Service) Run(ctx context.Context) error {
	updates, err := s.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	s.log.Info().Msg("telegram bot started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("telegram updates channel closed")
			}
			s.handleUpdate(ctx, update)
		}
	}
}

func (s *Service) handleUpdate(ctx context.Context, update telego.Update) {
	switch {
	case update.CallbackQuery != nil:
		s.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	}
}

func (s *Service) handleCallback(ctx context.Context, q *telego.CallbackQuery) {
	chatID, ok := parseReplyCallback(q.Data)
	if !ok {
		return
	}

	subscribed, err := s.registry.IsSubscribed(q.From.ID)
	if err != nil || !subscribed {
		return
	}

	s.mu.Lock()
	s.pendingReply[q.From.ID] = chatID
	s.mu.Unlock()

	if err := s.bot.AnswerCallbackQuery(ctx, tu.CallbackQuery(q.ID)); err != nil {
		s.log.Debug().Err(err).Msg("answer callback query")
	}
	s.reply(ctx, q.From.ID, "Введите сообщение для ответа. Текст или фото.")
}

func (s *Service) handleMessage(ctx context.Context, m *telego.Message) {
	if m.From == nil {
		return
	}
	userID := m.From.ID

	banned, err := s.registry.IsBanned(userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("ban lookup failed")
		return
	}
	if banned {
		return
	}

	subscribed, err := s.registry.IsSubscribed(userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("subscriber lookup failed")
		return
	}

	if !subscribed {
		s.handleAuth(ctx, m)
		return
	}

	if strings.HasPrefix(m.Text, "/start") {
		s.reply(ctx, userID, "Вы подписаны на уведомления о новых сообщениях.")
		return
	}
	if strings.HasPrefix(m.Text, "/stop") {
		if err := s.registry.Unsubscribe(userID); err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("unsubscribe failed")
			return
		}
		s.reply(ctx, userID, "Уведомления отключены.")
		return
	}

	s.mu.Lock()
	marketChatID, pending := s.pendingReply[userID]
	delete(s.pendingReply, userID)
	s.mu.Unlock()

	if !pending {
		s.reply(ctx, userID, "Нажмите «Ответить» под уведомлением, чтобы написать в чат.")
		return
	}
	s.relayReply(ctx, userID, marketChatID, m)
}

// handleAuth treats any message from an unknown user as a password attempt,
// except the initial /start which just prompts for one.
func (s *Service) handleAuth(ctx context.Context, m *telego.Message) {
	userID := m.From.ID

	if strings.HasPrefix(m.Text, "/start") {
		s.reply(ctx, userID, "Введите пароль для доступа к уведомлениям.")
		return
	}

	if s.password != "" && m.Text == s.password {
		if err := s.registry.Subscribe(userID, m.From.Username); err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("subscribe failed")
			return
		}
		if err := s.registry.ClearFailedAttempts(userID); err != nil {
			s.log.Debug().Err(err).Msg("clear attempts")
		}
		s.log.Info().Int64("user_id", userID).Str("username", m.From.Username).Msg("user authenticated")
		s.reply(ctx, userID, "Пароль верный. Уведомления включены.")
		return
	}

	attempts, nowBanned, err := s.registry.RecordFailedAttempt(userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("record failed attempt")
		return
	}
	if nowBanned {
		s.log.Warn().Int64("user_id", userID).Msg("user banned after failed attempts")
		s.reply(ctx, userID, "Доступ заблокирован.")
		return
	}
	s.reply(ctx, userID, fmt.Sprintf("Неверный пароль. Осталось попыток: %d.", maxAuthAttempts-attempts))
}

// relayReply forwards the user's text or photo into the marketplace chat.
func (s *Service) relayReply(ctx context.Context, userID int64, marketChatID string, m *telego.Message) {
	if s.account == nil {
		s.reply(ctx, userID, "Отправка сообщений недоступна.")
		return
	}

	var err error
	switch {
	case len(m.Photo) > 0:
		err = s.relayPhoto(ctx, marketChatID, m.Photo[len(m.Photo)-1])
	case m.Text != "":
		_, err = s.account.SendMessage(ctx, marketChatID, m.Text)
	default:
		s.reply(ctx, userID, "Поддерживаются только текст и фото.")
		return
	}

	if err != nil {
		s.log.Error().Err(err).Str("chat_id", marketChatID).Msg("relay reply failed")
		s.reply(ctx, userID, "Не удалось отправить сообщение.")
		return
	}
	s.reply(ctx, userID, "✉️ Отправлено.")
}

// relayPhoto downloads the largest photo rendition from Telegram into a
// temporary file and uploads it into the marketplace chat.
func (s *Service) relayPhoto(ctx context.Context, marketChatID string, photo telego.PhotoSize) error {
	file, err := s.bot.GetFile(ctx, &telego.GetFileParams{FileID: photo.FileID})
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return err
	}
	resp, err := s.files.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "playerok-reply-*.jpg")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	_, err = s.account.SendImage(ctx, marketChatID, tmp.Name())
	return err
}

// Notify fans a runner event out to every subscriber. Per-recipient failures
// are logged and skipped, one deaf subscriber must not silence the rest.
func (s *Service) Notify(ctx context.Context, ev runner.NewMessageEvent) {
	subscribers, err := s.registry.Subscribers()
	if err != nil {
		s.log.Error().Err(err).Msg("list subscribers")
		return
	}
	if len(subscribers) == 0 {
		return
	}

	text := formatEvent(ev)
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("Ответить").WithCallbackData(replyCallbackData(ev.ChatID)),
			tu.InlineKeyboardButton("Открыть чат").WithURL(chatLink(ev.ChatID)),
		),
	)

	for _, recipient := range subscribers {
		if err := s.limit.Wait(ctx); err != nil {
			return
		}

		var err error
		if url := photoURL(ev.Message); url != "" {
			photo := tu.Photo(tu.ID(recipient), tu.FileFromURL(url)).
				WithCaption(text).
				WithReplyMarkup(keyboard)
			_, err = s.bot.SendPhoto(ctx, photo)
		} else {
			msg := tu.Message(tu.ID(recipient), text).WithReplyMarkup(keyboard)
			_, err = s.bot.SendMessage(ctx, msg)
		}
		if err != nil {
			s.noteSendError(err)
			s.log.Error().Err(err).Int64("recipient", recipient).Msg("notify failed")
		}
	}
}

func (s *Service) reply(ctx context.Context, userID int64, text string) {
	if err := s.limit.Wait(ctx); err != nil {
		return
	}
	if _, err := s.bot.SendMessage(ctx, tu.Message(tu.ID(userID), text)); err != nil {
		s.noteSendError(err)
		s.log.Debug().Err(err).Int64("user_id", userID).Msg("send reply")
	}
}

// noteSendError picks the retry_after hint out of a 429 and pauses the
// limiter accordingly.
func (s *Service) noteSendError(err error) {
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) && apiErr.Parameters != nil && apiErr.Parameters.RetryAfter != 0 {
		s.limit.SetRetryAfter(apiErr.Parameters.RetryAfter)
	}
}

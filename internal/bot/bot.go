package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"event-calendar/internal/config"
	"event-calendar/internal/model"
	"event-calendar/internal/repository"
	"event-calendar/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageName
	stageCategory
	stageStartDate
	stageEndDate
	stageDescription
)

const (
	btnSkip         = "⏭️ Skip"
	btnSameDay      = "Same day"
	btnCancelDialog = "⏪ Cancel"
	menuToday       = "📅 Today"
	menuMonth       = "🗓 Month"
	menuUpcoming    = "🔜 Latest"
	menuNewEvent    = "➕ New event"
)

type conversationState struct {
	stage      conversationStage
	input      service.EventInput
	categories map[string]uint
}

// sender is the part of the Telegram API the bot writes through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot exposes the calendar over Telegram and pushes the daily agenda.
type Bot struct {
	api           *tgbotapi.BotAPI
	out           sender
	log           *slog.Logger
	subscribers   *repository.SubscriberRepository
	categorySvc   *service.CategoryService
	eventSvc      *service.EventService
	calendarSvc   *service.CalendarService
	reminderSvc   *service.ReminderService
	config        *config.Config
	now           func() time.Time
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

// ErrOpenBot is returned when the web UI is password protected but the bot
// would answer any Telegram user.
var ErrOpenBot = errors.New("telegram allow list is empty while basic auth is enabled")

func New(cfg *config.Config, log *slog.Logger, subscribers *repository.SubscriberRepository, categorySvc *service.CategoryService, eventSvc *service.EventService, calendarSvc *service.CalendarService, reminderSvc *service.ReminderService) (*Bot, error) {
	if cfg.BasicAuthEnabled() && len(cfg.TelegramAllowedIDs) == 0 {
		return nil, ErrOpenBot
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("telegram bot authorized", "account", api.Self.UserName)

	b := newBot(cfg, log, api, subscribers, categorySvc, eventSvc, calendarSvc, reminderSvc)
	b.api = api
	return b, nil
}

func newBot(cfg *config.Config, log *slog.Logger, out sender, subscribers *repository.SubscriberRepository, categorySvc *service.CategoryService, eventSvc *service.EventService, calendarSvc *service.CalendarService, reminderSvc *service.ReminderService) *Bot {
	return &Bot{
		out:           out,
		log:           log,
		subscribers:   subscribers,
		categorySvc:   categorySvc,
		eventSvc:      eventSvc,
		calendarSvc:   calendarSvc,
		reminderSvc:   reminderSvc,
		config:        cfg,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("telegram polling started")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			continue
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Error("handle message", "chat", update.Message.Chat.ID, "error", err)
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !b.config.TelegramAllowed(msg.From.ID) {
		b.log.Warn("telegram message from unknown user dropped", "from", msg.From.ID, "username", msg.From.UserName)
		return nil
	}

	if !msg.IsCommand() && strings.TrimSpace(msg.Text) == btnCancelDialog {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Event entry cancelled.")
	}

	if msg.IsCommand() {
		b.log.Debug("telegram command", "from", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuToday:
		return b.handleToday(ctx, msg)
	case menuMonth:
		return b.handleMonth(ctx, msg)
	case menuUpcoming:
		return b.handleUpcoming(ctx, msg)
	case menuNewEvent:
		return b.startNewEventConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /today, /month or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "stop":
		return b.handleStop(ctx, msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "today":
		return b.handleToday(ctx, msg)
	case "month":
		return b.handleMonth(ctx, msg)
	case "upcoming":
		return b.handleUpcoming(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "newevent":
		return b.startNewEventConversation(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Event entry cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /today — events covering today\n" +
	"• /month [MM.YYYY] — month grid\n" +
	"• /upcoming — latest events\n" +
	"• /categories — categories and event counts\n" +
	"• /newevent — add an event step by step\n" +
	"• /stop — stop the daily agenda\n" +
	"• /cancel — abort the current input"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.subscribers.Subscribe(ctx, msg.From.ID, msg.From.FirstName, msg.From.LastName, msg.From.UserName); err != nil {
		return err
	}
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s! You will get the agenda every day at %s.\n\n%s",
		html.EscapeString(name), html.EscapeString(b.config.AgendaTime), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleStop(ctx context.Context, msg *tgbotapi.Message) error {
	err := b.subscribers.Unsubscribe(ctx, msg.From.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return b.sendText(msg.Chat.ID, "🔕 Daily agenda switched off. /start turns it back on.")
}

func (b *Bot) handleToday(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.reminderSvc.DailyAgenda(ctx, b.today())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the agenda: %s", html.EscapeString(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMonth(ctx context.Context, msg *tgbotapi.Message) error {
	today := b.today()
	year, month := today.Year(), int(today.Month())
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		t, err := time.Parse("01.2006", args)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Use the MM.YYYY format, e.g. /month 02.2024")
		}
		year, month = t.Year(), int(t.Month())
	}

	view, err := b.calendarSvc.BuildMonth(ctx, year, month, today)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the month: %s", html.EscapeString(err.Error())))
	}
	return b.sendText(msg.Chat.ID, b.reminderSvc.MonthText(view))
}

func (b *Bot) handleUpcoming(ctx context.Context, msg *tgbotapi.Message) error {
	text, err := b.reminderSvc.UpcomingText(ctx, b.config.UpcomingLimit, b.config.UpcomingExcludeCategory)
	if err != nil {
		b.log.Error("upcoming list", "exclude_category", b.config.UpcomingExcludeCategory, "error", err)
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not list events: %s", html.EscapeString(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	categories, err := b.categorySvc.ListWithUsage(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not list categories: %s", html.EscapeString(err.Error())))
	}
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "No categories yet. Add them in the web UI.")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	for _, cat := range categories {
		builder.WriteString(fmt.Sprintf("• %s — %d\n", html.EscapeString(cat.Name), cat.Events))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) startNewEventConversation(ctx context.Context, msg *tgbotapi.Message) error {
	categories, err := b.categorySvc.List(ctx)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "Create a category in the web UI first.")
	}
	byName := make(map[string]uint, len(categories))
	for _, cat := range categories {
		byName[cat.Name] = cat.ID
	}
	b.setConversation(msg.From.ID, &conversationState{stage: stageName, categories: byName})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New event.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageName:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The name cannot be empty.", cancelKeyboard())
		}
		state.input.Name = text
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category.", categoryKeyboard(state.categories))
	case stageCategory:
		id, ok := state.categories[text]
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the listed categories.", categoryKeyboard(state.categories))
		}
		state.input.CategoryID = strconv.FormatUint(uint64(id), 10)
		state.stage = stageStartDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "📆 Start date, e.g. <code>"+b.today().Format(model.DateLayout)+"</code>", cancelKeyboard())
	case stageStartDate:
		if _, err := service.ParseDate("start_date", text); err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Use the DD.MM.YYYY format.", cancelKeyboard())
		}
		state.input.StartDate = text
		state.stage = stageEndDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏁 End date (DD.MM.YYYY).", sameDayKeyboard())
	case stageEndDate:
		if text == btnSameDay {
			text = state.input.StartDate
		}
		if _, err := service.ParseDate("end_date", text); err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Use the DD.MM.YYYY format.", sameDayKeyboard())
		}
		state.input.EndDate = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a description (or skip).", skipKeyboard())
	case stageDescription:
		if text != btnSkip {
			state.input.Description = text
		}
		err := b.finishEventCreation(ctx, msg.Chat.ID, state.input)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /newevent.")
	}
}

func (b *Bot) finishEventCreation(ctx context.Context, chatID int64, input service.EventInput) error {
	ev, err := b.eventSvc.CreateEvent(ctx, input)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not save the event: %s", html.EscapeString(err.Error())))
	}

	b.log.Info("event created via telegram", "id", ev.ID, "chat", chatID)

	var summary strings.Builder
	summary.WriteString("✅ <b>Event saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Name:</b> %s\n", html.EscapeString(ev.Name)))
	summary.WriteString(fmt.Sprintf("• <b>Dates:</b> %s – %s\n", ev.StartText(), ev.EndText()))
	if ev.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", html.EscapeString(ev.Description)))
	}
	return b.sendText(chatID, strings.TrimSpace(summary.String()))
}

// SendDailyAgenda sends today's agenda to every active subscriber.
func (b *Bot) SendDailyAgenda(ctx context.Context) error {
	subs, err := b.subscribers.ListActive(ctx)
	if err != nil {
		return err
	}
	text, err := b.reminderSvc.DailyAgenda(ctx, b.today())
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if !b.config.TelegramAllowed(sub.TelegramID) {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.sendText(sub.TelegramID, text); err != nil {
			b.log.Error("send agenda", "telegram_id", sub.TelegramID, "error", err)
		}
	}
	return nil
}

func (b *Bot) today() time.Time {
	return b.now().In(b.config.Location)
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.out.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	return b.getConversation(userID) != nil
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuToday),
			tgbotapi.NewKeyboardButton(menuMonth),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuUpcoming),
			tgbotapi.NewKeyboardButton(menuNewEvent),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func sameDayKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSameDay),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// categoryKeyboard lays the categories out two per row.
func categoryKeyboard(categories map[string]uint) tgbotapi.ReplyKeyboardMarkup {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(names); i += 2 {
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(names[i]))
		if i+1 < len(names) {
			row = append(row, tgbotapi.NewKeyboardButton(names[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

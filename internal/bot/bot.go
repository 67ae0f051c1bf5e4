package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/language"

	"taskbook/internal/config"
	"taskbook/internal/logger"
	"taskbook/internal/model"
	"taskbook/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageDueDate
	stagePriority
	stageCategory
	stageRepeat
)

const (
	cbCompletePrefix = "complete:"
	cbReopenPrefix   = "reopen:"
	cbDeletePrefix   = "delete:"
	cbConfirmPrefix  = "confirm:"
	cbCancelPrefix   = "cancel:"
)

type conversationState struct {
	stage conversationStage
	input model.TaskInput
}

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
	actionDeleteCategory
)

type confirmationRequest struct {
	id     string
	action confirmationAction
}

// Bot is the Telegram front-end over the task store.
type Bot struct {
	api     *tgbotapi.BotAPI
	store   *service.Store
	log     *logger.Logger
	loc     *time.Location
	locale  language.Tag
	allowed map[int64]struct{}

	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(cfg *config.Config, store *service.Store, log *logger.Logger) (*Bot, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log = log.WithComponent("bot")
	log.Infow("bot authorized", "account", api.Self.UserName)

	allowed := make(map[int64]struct{}, len(cfg.Telegram.AllowedUsers))
	for _, id := range cfg.Telegram.AllowedUsers {
		allowed[id] = struct{}{}
	}

	return &Bot{
		api:           api,
		store:         store,
		log:           log,
		loc:           loc,
		locale:        cfg.App.LanguageTag(),
		allowed:       allowed,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Errorw("handle callback", "error", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Errorw("handle message", "error", err)
			}
		}
	}

	return nil
}

func (b *Bot) now() time.Time {
	return time.Now().In(b.loc)
}

func (b *Bot) isAllowed(userID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[userID]
	return ok
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !b.isAllowed(msg.From.ID) {
		b.log.Warnw("message from user outside the allow-list", "user", msg.From.ID)
		return b.sendText(msg.Chat.ID, "This bot is private.")
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if msg.IsCommand() {
		b.log.Infow("command", "user", msg.From.ID, "command", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Send /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "today":
		return b.handleToday(msg)
	case "upcoming":
		return b.handleUpcoming(msg)
	case "tasks":
		return b.handleListTasks(msg)
	case "search":
		return b.handleSearch(msg)
	case "day":
		return b.handleDay(msg)
	case "stats":
		return b.handleStats(msg)
	case "newtask":
		return b.startNewTaskConversation(msg)
	case "complete":
		return b.handleSetCompleted(ctx, msg, true)
	case "reopen":
		return b.handleSetCompleted(ctx, msg, false)
	case "delete":
		return b.handleDelete(msg)
	case "categories":
		return b.handleCategories(msg)
	case "newcategory":
		return b.handleNewCategory(ctx, msg)
	case "deletecategory":
		return b.handleDeleteCategory(msg)
	case "assign":
		return b.handleAssign(ctx, msg)
	case "unassign":
		return b.handleUnassign(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(msg)
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(msg)
	case strings.ToLower(menuLabelUpcoming):
		return true, b.handleUpcoming(msg)
	case strings.ToLower(menuLabelCategories):
		return true, b.handleCategories(msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warnw("callback ack", "error", err)
	}
	if !b.isAllowed(cb.From.ID) {
		return nil
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Infow("callback", "user", cb.From.ID, "data", data)

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		return b.askConfirmation(chatID, cb.From.ID, strings.TrimPrefix(data, cbCompletePrefix), actionComplete)
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askConfirmation(chatID, cb.From.ID, strings.TrimPrefix(data, cbDeletePrefix), actionDelete)
	case strings.HasPrefix(data, cbReopenPrefix):
		return b.setCompleted(ctx, chatID, strings.TrimPrefix(data, cbReopenPrefix), false)
	case strings.HasPrefix(data, cbConfirmPrefix):
		return b.setCompleted(ctx, chatID, strings.TrimPrefix(data, cbConfirmPrefix), true)
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(chatID, userID int64, id string, action confirmationAction) error {
	var text string
	switch action {
	case actionComplete, actionDelete:
		task, ok := b.store.Task(id)
		if !ok {
			return b.sendText(chatID, "Task not found.")
		}
		if action == actionComplete {
			if task.Completed {
				return b.sendText(chatID, "This task is already done.")
			}
			text = fmt.Sprintf("Mark «%s» as done?", escape(normalizeTitle(task.Title)))
		} else {
			text = fmt.Sprintf("Delete «%s»?", escape(normalizeTitle(task.Title)))
		}
	case actionDeleteCategory:
		cat, ok := b.store.Category(id)
		if !ok {
			return b.sendText(chatID, "Category not found.")
		}
		text = fmt.Sprintf("Delete category «%s»?", escape(cat.Name))
		if n := service.CountByCategory(b.store.Tasks())[id]; n > 0 {
			text += fmt.Sprintf("\n%d task(s) will keep a reference to the deleted category.", n)
		}
	}
	b.setConfirmation(userID, confirmationRequest{id: id, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		switch req.action {
		case actionDelete:
			return b.deleteTask(ctx, msg.Chat.ID, req.id)
		case actionDeleteCategory:
			return b.deleteCategory(ctx, msg.Chat.ID, req.id)
		default:
			return b.setCompleted(ctx, msg.Chat.ID, req.id, true)
		}
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "🔹 Cancelled.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Please confirm or cancel.", confirmKeyboard())
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

// sendStoreError reports a failed store call using the store's user-facing message.
func (b *Bot) sendStoreError(chatID int64, err error) error {
	return b.sendText(chatID, escape(userMessage(err, b.store.Err())))
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
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
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

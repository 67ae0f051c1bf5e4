package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"taskbook/internal/model"
	"taskbook/internal/repository"
	"taskbook/internal/service"
)

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /today — tasks due today\n" +
	"• /upcoming — tasks due in the next 7 days\n" +
	"• /tasks [due|priority|alpha|created] — all tasks by category\n" +
	"• /search &lt;text&gt; — search titles and descriptions\n" +
	"• /day [YYYY-MM-DD] — tasks on a day, or counts for this month\n" +
	"• /newtask — add a task step by step\n" +
	"• /complete &lt;id&gt; · /reopen &lt;id&gt; — change completion\n" +
	"• /delete &lt;id&gt; — delete a task\n" +
	"• /categories — categories with task counts\n" +
	"• /newcategory &lt;name&gt; &lt;#color&gt; [icon]\n" +
	"• /deletecategory &lt;id&gt;\n" +
	"• /assign &lt;task id&gt; &lt;category id&gt; · /unassign &lt;task id&gt;\n" +
	"• /stats — completion summary\n" +
	"• /cancel — stop the current input\n\n" +
	"Ids can be shortened to any unique prefix."

func userMessage(err error, storeMsg string) string {
	var nf *repository.NotFoundError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return "Invalid input: " + strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
	case errors.As(err, &nf):
		return normalizeTitle(nf.Kind) + " not found."
	case storeMsg != "":
		return storeMsg
	default:
		return "Something went wrong. Please try again later."
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your tasks and categories.</b>\n\n%s", escape(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, helpText)
}

func (b *Bot) handleToday(msg *tgbotapi.Message) error {
	now := b.now()
	tasks := service.Query{Sort: service.SortDue, Locale: b.locale}.Apply(service.Today(b.store.Tasks(), now))
	return b.sendTasks(msg.Chat.ID, "📅 <b>Today</b>", tasks, "Nothing due today.")
}

func (b *Bot) handleUpcoming(msg *tgbotapi.Message) error {
	now := b.now()
	tasks := service.Query{Sort: service.SortDue, Locale: b.locale}.Apply(service.Upcoming(b.store.Tasks(), now))
	return b.sendTasks(msg.Chat.ID, "🗓 <b>Upcoming</b>", tasks, fmt.Sprintf("No upcoming tasks for the next %d days.", service.UpcomingDays))
}

func (b *Bot) handleSearch(msg *tgbotapi.Message) error {
	needle := strings.TrimSpace(msg.CommandArguments())
	if needle == "" {
		return b.sendText(msg.Chat.ID, "Usage: /search milk")
	}
	tasks := service.Query{Search: needle, Sort: service.SortDue, Locale: b.locale}.Apply(b.store.Tasks())
	header := fmt.Sprintf("🔎 <b>Results for «%s»</b>", escape(needle))
	return b.sendTasks(msg.Chat.ID, header, tasks, "No matching tasks.")
}

func (b *Bot) handleDay(msg *tgbotapi.Message) error {
	now := b.now()
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		counts := service.DayCounts(b.store.Tasks(), now)
		if len(counts) == 0 {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("No tasks due in %s.", now.Format("January 2006")))
		}
		days := make([]int, 0, len(counts))
		for d := range counts {
			days = append(days, d)
		}
		sort.Ints(days)
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("🗓 <b>%s</b>\n", now.Format("January 2006")))
		for _, d := range days {
			sb.WriteString(fmt.Sprintf("• %02d — %d task(s)\n", d, counts[d]))
		}
		return b.sendText(msg.Chat.ID, strings.TrimSpace(sb.String()))
	}

	day, err := service.ParseDate(arg, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Can't read that date: "+escape(err.Error()))
	}
	tasks := service.Query{Sort: service.SortDue, Locale: b.locale}.Apply(service.OnDay(b.store.Tasks(), day))
	header := fmt.Sprintf("📅 <b>%s</b>", day.Format("Monday, January 2"))
	return b.sendTasks(msg.Chat.ID, header, tasks, "Nothing due that day.")
}

func (b *Bot) handleStats(msg *tgbotapi.Message) error {
	now := b.now()
	tasks := b.store.Tasks()
	done := 0
	for _, t := range tasks {
		if t.Completed {
			done++
		}
	}
	text := fmt.Sprintf("📊 <b>Progress</b>\n"+
		"• Completed: %d of %d (%.0f%%)\n"+
		"• Due today: %d\n"+
		"• Upcoming: %d\n"+
		"• Categories: %d",
		done, len(tasks), service.CompletionRatio(tasks)*100,
		len(service.Today(tasks, now)), len(service.Upcoming(tasks, now)), len(b.store.Categories()))
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListTasks(msg *tgbotapi.Message) error {
	key, err := service.ParseSortKey(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}
	if key == service.SortNone {
		key = service.SortDue
	}
	tasks := service.Query{Sort: key, Locale: b.locale}.Apply(b.store.Tasks())
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "No tasks yet. Add one with /newtask.")
	}

	now := b.now()
	var sb strings.Builder
	sb.WriteString("📋 <b>Tasks</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, group := range groupByCategory(tasks, b.store.Categories(), b.locale) {
		sb.WriteString(fmt.Sprintf("<b>%s</b>\n", escape(group.Name)))
		for _, task := range group.Tasks {
			sb.WriteString(formatTask(task, now))
			buttons = append(buttons, taskButtons(task))
		}
		sb.WriteByte('\n')
	}
	return b.sendInline(msg.Chat.ID, strings.TrimSpace(sb.String()), buttons)
}

func (b *Bot) sendTasks(chatID int64, header string, tasks []model.Task, empty string) error {
	if len(tasks) == 0 {
		return b.sendText(chatID, header+"\n"+empty)
	}
	now := b.now()
	var sb strings.Builder
	sb.WriteString(header + "\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		sb.WriteString(formatTask(task, now))
		buttons = append(buttons, taskButtons(task))
	}
	return b.sendInline(chatID, strings.TrimSpace(sb.String()), buttons)
}

func (b *Bot) sendInline(chatID int64, text string, buttons [][]tgbotapi.InlineKeyboardButton) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err := b.api.Send(msg)
	return err
}

func taskButtons(task model.Task) []tgbotapi.InlineKeyboardButton {
	var row []tgbotapi.InlineKeyboardButton
	if task.Completed {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("↩️ "+shortTitle(task.Title, 24), cbReopenPrefix+task.ID))
	} else {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(task.Title, 24), cbCompletePrefix+task.ID))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID))
	return row
}

func idProblem(kind string, err error) string {
	if errors.Is(err, service.ErrAmbiguousID) {
		return fmt.Sprintf("That prefix matches more than one %s. Use more characters.", kind)
	}
	return fmt.Sprintf("No %s with that id.", kind)
}

func (b *Bot) handleSetCompleted(ctx context.Context, msg *tgbotapi.Message, completed bool) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Give a task id: /%s 3f2a", msg.Command()))
	}
	id, err := b.store.ResolveTask(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, idProblem("task", err))
	}
	return b.setCompleted(ctx, msg.Chat.ID, id, completed)
}

func (b *Bot) setCompleted(ctx context.Context, chatID int64, id string, completed bool) error {
	task, err := b.store.ToggleCompletion(ctx, id, completed)
	if err != nil {
		return b.sendStoreError(chatID, err)
	}
	b.log.Infow("task completion changed", "task", task.ID, "completed", completed)
	if completed {
		return b.sendText(chatID, fmt.Sprintf("✅ «%s» done.", escape(normalizeTitle(task.Title))))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ «%s» reopened.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleDelete(msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Give a task id: /delete 3f2a")
	}
	id, err := b.store.ResolveTask(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, idProblem("task", err))
	}
	return b.askConfirmation(msg.Chat.ID, msg.From.ID, id, actionDelete)
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, id string) error {
	task, _ := b.store.Task(id)
	ok, err := b.store.DeleteTask(ctx, id)
	if err != nil {
		return b.sendStoreError(chatID, err)
	}
	if !ok {
		return b.sendText(chatID, "Task not found or already deleted.")
	}
	b.log.Infow("task deleted", "task", id)
	return b.sendText(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleCategories(msg *tgbotapi.Message) error {
	cats := b.store.Categories()
	if len(cats) == 0 {
		return b.sendText(msg.Chat.ID, "No categories yet. Add one with /newcategory Work #3366ff")
	}
	counts := service.CountByCategory(b.store.Tasks())

	sorted := b.sortedCategories()

	var sb strings.Builder
	sb.WriteString("📂 <b>Categories</b>\n")
	known := make(map[string]struct{}, len(sorted))
	for _, c := range sorted {
		known[c.ID] = struct{}{}
		sb.WriteString(categoryLine(c, counts[c.ID]))
	}
	dangling := 0
	for id, n := range counts {
		if _, ok := known[id]; !ok && id != "" {
			dangling += n
		}
	}
	if n := counts[""]; n > 0 {
		sb.WriteString(fmt.Sprintf("• %s — %d task(s)\n", noCategory, n))
	}
	if dangling > 0 {
		sb.WriteString(fmt.Sprintf("• %s — %d task(s)\n", missingCat, dangling))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleNewCategory(ctx context.Context, msg *tgbotapi.Message) error {
	in, err := parseCategoryArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /newcategory Home chores #33aa55 🏠")
	}
	cat, err := b.store.AddCategory(ctx, in)
	if err != nil {
		return b.sendStoreError(msg.Chat.ID, err)
	}
	b.log.Infow("category created", "category", cat.ID)
	return b.sendText(msg.Chat.ID, "Created:\n"+categoryLine(*cat, 0))
}

func (b *Bot) handleDeleteCategory(msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Give a category id: /deletecategory 9c1e")
	}
	id, err := b.store.ResolveCategory(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, idProblem("category", err))
	}
	return b.askConfirmation(msg.Chat.ID, msg.From.ID, id, actionDeleteCategory)
}

func (b *Bot) deleteCategory(ctx context.Context, chatID int64, id string) error {
	cat, _ := b.store.Category(id)
	ok, err := b.store.DeleteCategory(ctx, id)
	if err != nil {
		return b.sendStoreError(chatID, err)
	}
	if !ok {
		return b.sendText(chatID, "Category not found or already deleted.")
	}
	b.log.Infow("category deleted", "category", id)
	return b.sendText(chatID, fmt.Sprintf("🗑 Category «%s» deleted.", escape(cat.Name)))
}

func (b *Bot) handleAssign(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /assign &lt;task id&gt; &lt;category id&gt;")
	}
	taskID, err := b.store.ResolveTask(args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, idProblem("task", err))
	}
	catID, err := b.store.ResolveCategory(args[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, idProblem("category", err))
	}
	if err := b.store.AssignTaskToCategory(ctx, taskID, catID); err != nil {
		return b.sendStoreError(msg.Chat.ID, err)
	}
	task, _ := b.store.Task(taskID)
	cat, _ := b.store.Category(catID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🏷 «%s» is now in %s.", escape(normalizeTitle(task.Title)), escape(cat.Name)))
}

func (b *Bot) handleUnassign(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := b.store.ResolveTask(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, idProblem("task", err))
	}
	if err := b.store.UnassignTask(ctx, taskID); err != nil {
		return b.sendStoreError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, "Removed from its category.")
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title can't be empty.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or Skip).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID,
			fmt.Sprintf("⏰ Due date? <code>%s</code>, <code>%s</code>, today or tomorrow (or Skip).", service.DateLayout, service.DateTimeLayout),
			dueDateKeyboard())
	case stageDueDate:
		if !isSkipInput(text) {
			due, err := service.ParseDate(text, b.now())
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Can't read that date: "+escape(err.Error()), dueDateKeyboard())
			}
			state.input.DueDate = &due
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "❗ Priority?", priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			p, err := model.ParsePriority(text)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Pick High, Medium or Low.", priorityKeyboard())
			}
			state.input.Priority = p
		}
		cats := b.sortedCategories()
		if len(cats) == 0 {
			state.stage = stageRepeat
			return b.sendWithReplyMarkup(msg.Chat.ID, repeatPrompt, repeatKeyboard())
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Category?", categoryKeyboard(cats))
	case stageCategory:
		if !isSkipInput(text) {
			id, ok := b.categoryByName(text)
			if !ok {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the listed categories.", categoryKeyboard(b.sortedCategories()))
			}
			state.input.Category = id
		}
		state.stage = stageRepeat
		return b.sendWithReplyMarkup(msg.Chat.ID, repeatPrompt, repeatKeyboard())
	case stageRepeat:
		pattern, err := model.ParseRepeat(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Can't read that: "+escape(err.Error()), repeatKeyboard())
		}
		state.input.Repeat = pattern
		b.clearConversation(msg.From.ID)
		return b.finishTaskCreation(ctx, msg.Chat.ID, state.input)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /newtask.")
	}
}

const repeatPrompt = "🔁 Repeat? e.g. <code>weekly</code>, <code>weekly 2 mon,thu</code> or No repeat."

func (b *Bot) categoryByName(name string) (string, bool) {
	for _, c := range b.store.Categories() {
		if strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name)) {
			return c.ID, true
		}
	}
	return "", false
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input model.TaskInput) error {
	task, err := b.store.AddTask(ctx, input)
	if err != nil {
		return b.sendStoreError(chatID, err)
	}
	b.log.Infow("task created", "task", task.ID, "recurring", task.Repeat != nil)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(formatTask(*task, b.now()))
	if task.Category != "" {
		if cat, ok := b.store.Category(task.Category); ok {
			summary.WriteString(fmt.Sprintf("   🏷 %s\n", escape(cat.Name)))
		}
	}
	return b.sendText(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) sortedCategories() []model.Category {
	cats := b.store.Categories()
	sortCategories(cats, b.locale)
	return cats
}

// sortCategories orders categories by name using the configured locale.
func sortCategories(cats []model.Category, locale language.Tag) {
	col := collate.New(locale, collate.IgnoreCase)
	sort.SliceStable(cats, func(i, j int) bool {
		return col.CompareString(cats[i].Name, cats[j].Name) < 0
	})
}

package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"linkdrop/internal/models"
	"linkdrop/internal/points"
	"linkdrop/internal/telegram"
)

const (
	browseLimit = 10

	recentLinksCacheKey = "cache:links:recent"
	recentLinksCacheTTL = 30 * time.Second

	msgNoLinks           = "No links have been posted yet. Be the first with /droplink!"
	msgDroplinkUsage     = "Usage: /droplink <url> <title>"
	msgAssistantFallback = "Sorry, I'm having trouble thinking right now. Try again in a bit."
)

func (p *Processor) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		return p.handleCommand(ctx, msg, text)
	}
	return p.handleFreeText(ctx, msg, text)
}

func (p *Processor) handleCommand(ctx context.Context, msg *telegram.Message, text string) error {
	fields := strings.Fields(text)

	// "/droplink@linkdrop_bot" is the same command in group chats
	cmd := strings.ToLower(fields[0])
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}

	switch cmd {
	case "/start":
		return p.handleStart(ctx, msg)
	case "/profile":
		return p.handleProfile(ctx, msg)
	case "/droplink":
		return p.handleDroplink(ctx, msg, fields, text)
	case "/browse":
		return p.handleBrowse(ctx, msg)
	case "/stats":
		return p.handleStats(ctx, msg)
	default:
		// unrecognized commands are ignored; only plain text goes to the assistant
		return nil
	}
}

func (p *Processor) handleStart(ctx context.Context, msg *telegram.Message) error {
	u, err := p.store.GetOrCreateUser(ctx, msg.From.ID, msg.From.DisplayName())
	if err != nil {
		return err
	}

	name := html.EscapeString(displayName(u))
	reply := fmt.Sprintf(
		"Hey, <b>%s</b>! 👋\n\n"+
			"Share links with /droplink, browse what others posted with /browse, "+
			"and earn points by liking, commenting and reposting.\n\n"+
			"Your balance: <b>%d points</b>", name, u.Points)
	return p.sender.SendMessage(ctx, msg.Chat.ID, reply)
}

func (p *Processor) handleProfile(ctx context.Context, msg *telegram.Message) error {
	u, err := p.store.GetOrCreateUser(ctx, msg.From.ID, msg.From.DisplayName())
	if err != nil {
		return err
	}

	reply := fmt.Sprintf(
		"👤 <b>%s</b>\n"+
			"Balance: <b>%d points</b>\n"+
			"Last active: %s",
		html.EscapeString(displayName(u)),
		u.Points,
		u.LastActiveAt.UTC().Format("2006-01-02 15:04 UTC"))
	return p.sender.SendMessage(ctx, msg.Chat.ID, reply)
}

func (p *Processor) handleDroplink(ctx context.Context, msg *telegram.Message, fields []string, text string) error {
	if len(fields) < 3 {
		return p.sender.SendMessage(ctx, msg.Chat.ID, msgDroplinkUsage)
	}

	// url is the first argument token; the title is everything after it,
	// spaces included
	url := fields[1]
	rest := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	title := strings.TrimSpace(strings.TrimPrefix(rest, url))

	u, err := p.store.GetOrCreateUser(ctx, msg.From.ID, msg.From.DisplayName())
	if err != nil {
		return err
	}

	if !points.CanAffordPost(u.Points) {
		reply := fmt.Sprintf(
			"Posting a link costs <b>%d points</b>, but you only have <b>%d</b>. "+
				"Earn more by engaging with other people's links in /browse.",
			points.LinkPostCost, u.Points)
		return p.sender.SendMessage(ctx, msg.Chat.ID, reply)
	}

	// no suspension point between the affordability check above and this
	// debit: both run inside one worker invocation
	if err := p.store.AdjustPoints(ctx, u.ID, -points.LinkPostCost); err != nil {
		return err
	}
	link, err := p.store.RecordLink(ctx, u.ID, url, title)
	if err != nil {
		return err
	}
	if err := p.store.TouchActivity(ctx, u.ID); err != nil {
		return err
	}
	p.invalidateRecentLinks(ctx)

	reply := fmt.Sprintf(
		"🔗 Link published!\n\n<b>%s</b>\n%s\n\n-%d points",
		html.EscapeString(link.Title), html.EscapeString(link.URL), points.LinkPostCost)
	return p.sender.SendMessage(ctx, msg.Chat.ID, reply)
}

func (p *Processor) handleBrowse(ctx context.Context, msg *telegram.Message) error {
	links, err := p.recentLinks(ctx)
	if err != nil {
		return err
	}

	if len(links) == 0 {
		return p.sender.SendMessage(ctx, msg.Chat.ID, msgNoLinks)
	}

	for _, l := range links {
		text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(l.Title), html.EscapeString(l.URL))
		kb := &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{{
				{Text: "👍 Like", CallbackData: points.CallbackData(points.ActionLike, l.ID)},
				{Text: "💬 Comment", CallbackData: points.CallbackData(points.ActionComment, l.ID)},
				{Text: "🔁 Repost", CallbackData: points.CallbackData(points.ActionRepost, l.ID)},
			}},
		}
		if err := p.sender.SendMessageWithKeyboard(ctx, msg.Chat.ID, text, kb); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) handleStats(ctx context.Context, msg *telegram.Message) error {
	// privileged: anyone else gets silence, not an error
	if p.adminUserID == 0 || msg.From.ID != p.adminUserID {
		return nil
	}

	users, err := p.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	links, err := p.store.CountLinks(ctx)
	if err != nil {
		return err
	}
	total, err := p.store.SumAllPoints(ctx)
	if err != nil {
		return err
	}

	reply := fmt.Sprintf(
		"📊 <b>Stats</b>\nUsers: %d\nLinks: %d\nPoints in circulation: %d",
		users, links, total)
	return p.sender.SendMessage(ctx, msg.Chat.ID, reply)
}

func (p *Processor) handleFreeText(ctx context.Context, msg *telegram.Message, text string) error {
	u, err := p.store.GetOrCreateUser(ctx, msg.From.ID, msg.From.DisplayName())
	if err != nil {
		return err
	}

	reply, err := p.assistant.Reply(ctx, text, u.Points)
	if err != nil {
		p.log.Warn("assistant_call_failed", "user_id", u.ID, "error", err)
		return p.sender.SendMessage(ctx, msg.Chat.ID, msgAssistantFallback)
	}
	return p.sender.SendMessage(ctx, msg.Chat.ID, html.EscapeString(reply))
}

func (p *Processor) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	if cb == nil || cb.From == nil {
		return nil
	}

	u, err := p.store.GetOrCreateUser(ctx, cb.From.ID, cb.From.DisplayName())
	if err != nil {
		return err
	}

	kind, linkID, ok := points.ParseAction(cb.Data)
	reward := points.RewardFor(kind)

	if reward != 0 {
		if err := p.store.AdjustPoints(ctx, u.ID, reward); err != nil {
			return err
		}
	}
	if err := p.store.TouchActivity(ctx, u.ID); err != nil {
		return err
	}

	if err := p.sender.AnswerCallbackQuery(ctx, cb.ID, fmt.Sprintf("+%d points", reward)); err != nil {
		p.log.Warn("answer_callback_failed", "callback_id", cb.ID, "error", err)
	}

	if ok && cb.Message != nil {
		broadcast := fmt.Sprintf(
			"🎉 <b>%s</b> earned <b>%d points</b> for a %s on link #%d!",
			html.EscapeString(displayName(u)), reward, kind.String(), linkID)
		return p.sender.SendMessage(ctx, cb.Message.Chat.ID, broadcast)
	}
	return nil
}

func (p *Processor) recentLinks(ctx context.Context) ([]models.Link, error) {
	if p.redis != nil {
		if raw, err := p.redis.Get(ctx, recentLinksCacheKey); err == nil {
			var cached []models.Link
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	links, err := p.store.RecentLinks(ctx, browseLimit)
	if err != nil {
		return nil, err
	}

	if p.redis != nil {
		if raw, err := json.Marshal(links); err == nil {
			_ = p.redis.Set(ctx, recentLinksCacheKey, raw, recentLinksCacheTTL)
		}
	}
	return links, nil
}

func (p *Processor) invalidateRecentLinks(ctx context.Context) {
	if p.redis != nil {
		_ = p.redis.Del(ctx, recentLinksCacheKey)
	}
}

func displayName(u *models.User) string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return fmt.Sprintf("user %d", u.ID)
}

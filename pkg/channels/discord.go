package channels

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/bwmarrin/discordgo"

	"github.com/mindglow/mindglow/pkg/bus"
	"github.com/mindglow/mindglow/pkg/config"
	"github.com/mindglow/mindglow/pkg/logger"
)

const (
	sendTimeout           = 10 * time.Second
	typingRefreshInterval = 8 * time.Second
	// chunkLimit stays under Discord's 2000 character cap.
	chunkLimit     = 1500
	resourcesColor = 0xF4C542
)

// DiscordChannel answers direct messages, and guild messages that mention
// the bot.
type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
	config  config.DiscordConfig
	typing  *typingTracker
	botID   string
}

func NewDiscordChannel(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	c := &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", msgBus, cfg.AllowFrom),
		session:     session,
		config:      cfg,
	}
	c.typing = newTypingTracker(func(channelID string) {
		if err := c.session.ChannelTyping(channelID); err != nil {
			logger.DebugCF("discord", "Typing indicator failed", map[string]any{"error": err.Error()})
		}
	})
	return c, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.session.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent
	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	botUser, err := c.session.User("@me")
	if err != nil {
		_ = c.session.Close()
		return fmt.Errorf("get bot user: %w", err)
	}
	c.botID = botUser.ID
	c.setRunning(true)

	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.setRunning(false)
	c.typing.stopAll()

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}
	// Resources follow the reply, so the indicator ends with the reply.
	if msg.Kind != bus.KindResources {
		defer c.typing.end(msg.ChatID)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	if msg.Kind == bus.KindResources {
		embed := &discordgo.MessageEmbed{Description: msg.Content, Color: resourcesColor}
		return c.withTimeout(ctx, func() error {
			_, err := c.session.ChannelMessageSendEmbed(msg.ChatID, embed)
			return err
		})
	}

	for _, chunk := range splitMessage(msg.Content, chunkLimit) {
		err := c.withTimeout(ctx, func() error {
			_, err := c.session.ChannelMessageSend(msg.ChatID, chunk)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *DiscordChannel) withTimeout(ctx context.Context, send func() error) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- send() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send discord message: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil || m.Author.Bot || m.Author.ID == c.botID {
		return
	}
	isDM := m.GuildID == ""
	content := m.Content
	if !isDM {
		var mentioned bool
		content, mentioned = stripMention(content, c.botID)
		if !mentioned {
			return
		}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	if !c.IsAllowed(m.Author.ID) {
		logger.DebugCF("discord", "Message rejected by allowlist", map[string]any{"user_id": m.Author.ID})
		return
	}

	senderName := m.Author.Username
	if m.Author.GlobalName != "" {
		senderName = m.Author.GlobalName
	}
	logger.DebugCF("discord", "Received message", map[string]any{
		"sender_id":   m.Author.ID,
		"content_len": len(content),
		"is_dm":       isDM,
	})

	c.typing.begin(m.ChannelID)
	metadata := map[string]string{
		"message_id": m.ID,
		"guild_id":   m.GuildID,
		"channel_id": m.ChannelID,
		"is_dm":      strconv.FormatBool(isDM),
	}
	if !c.HandleMessage(m.Author.ID, senderName, m.ChannelID, content, metadata) {
		c.typing.end(m.ChannelID)
	}
}

// stripMention removes <@id> and <@!id> mentions of the bot and reports
// whether one was present.
func stripMention(content, botID string) (string, bool) {
	if botID == "" {
		return content, false
	}
	found := false
	for _, tag := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.Contains(content, tag) {
			found = true
			content = strings.ReplaceAll(content, tag, "")
		}
	}
	return content, found
}

// splitMessage cuts content into chunks of at most limit runes, preferring
// paragraph breaks, then sentence ends, then spaces.
func splitMessage(content string, limit int) []string {
	var chunks []string
	runes := []rune(strings.TrimSpace(content))
	for len(runes) > limit {
		cut := splitPoint(runes[:limit])
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func splitPoint(window []rune) int {
	floor := len(window) / 2
	for i := len(window) - 1; i > floor; i-- {
		if window[i] == '\n' && window[i-1] == '\n' {
			return i + 1
		}
	}
	for i := len(window) - 1; i > floor; i-- {
		switch window[i-1] {
		case '.', '?', '!', '؟':
			if unicode.IsSpace(window[i]) {
				return i
			}
		}
	}
	for i := len(window) - 1; i > floor; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return len(window)
}

// typingTracker keeps one refreshing typing indicator per channel while
// replies are pending there.
type typingTracker struct {
	send    func(channelID string)
	mu      sync.Mutex
	pending map[string]*pendingTyping
}

type pendingTyping struct {
	count int
	stop  chan struct{}
}

func newTypingTracker(send func(channelID string)) *typingTracker {
	return &typingTracker{send: send, pending: make(map[string]*pendingTyping)}
}

func (t *typingTracker) begin(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.pending[channelID]; ok {
		p.count++
		return
	}
	p := &pendingTyping{count: 1, stop: make(chan struct{})}
	t.pending[channelID] = p

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		for {
			t.send(channelID)
			select {
			case <-p.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (t *typingTracker) end(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[channelID]
	if !ok {
		return
	}
	if p.count--; p.count > 0 {
		return
	}
	delete(t.pending, channelID)
	close(p.stop)
}

func (t *typingTracker) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range t.pending {
		close(p.stop)
		delete(t.pending, id)
	}
}

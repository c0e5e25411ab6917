package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// Discord allows 5 messages per 5 seconds per channel.
const (
	discordRate  = rate.Limit(1)
	discordBurst = 5
	maxWait      = 3 * time.Second
)

// DiscordSession is the subset of *discordgo.Session the sink uses.
type DiscordSession interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink posts group activity to Discord channels. Player
// notifications are not posted: players have no linked Discord account.
type DiscordSink struct {
	dg       DiscordSession
	channels map[string]string
	fallback string
	limiter  *rate.Limiter
	log      logger.Logger
}

// NewDiscordSink posts to channels[groupID], or fallback when the group has
// no channel of its own. An empty fallback skips unmapped groups.
func NewDiscordSink(dg DiscordSession, fallback string, channels map[string]string, l logger.Logger) *DiscordSink {
	if l == nil {
		l = logger.Nop()
	}
	return &DiscordSink{
		dg:       dg,
		channels: channels,
		fallback: fallback,
		limiter:  rate.NewLimiter(discordRate, discordBurst),
		log:      l.Named("discord"),
	}
}

// OpenDiscord starts a bot session with token.
func OpenDiscord(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}
	return dg, nil
}

func (s *DiscordSink) Notify(context.Context, model.Notification) {}

func (s *DiscordSink) LogActivity(ctx context.Context, a model.Activity) {
	channelID := s.channels[a.GroupID]
	if channelID == "" {
		channelID = s.fallback
	}
	if channelID == "" {
		return
	}

	wctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()
	if err := s.limiter.Wait(wctx); err != nil {
		s.log.Debug(ctx, "discord rate limit hit, dropping activity", logger.String("group_id", a.GroupID))
		record("discord", err)
		return
	}

	_, err := s.dg.ChannelMessageSend(channelID, format(a))
	if err != nil {
		s.log.Warn(ctx, "discord send failed", logger.String("channel", channelID), logger.Error(err))
	}
	record("discord", err)
}

func format(a model.Activity) string {
	var b strings.Builder
	switch a.Kind {
	case model.ActivityOVRUpdate:
		b.WriteString(":chart_with_upwards_trend: ")
	case model.ActivityMatchCompleted:
		b.WriteString(":checkered_flag: ")
	case model.ActivityMatchCreated:
		b.WriteString(":soccer: ")
	default:
		b.WriteString(":bell: ")
	}
	b.WriteString(a.Message)
	return b.String()
}

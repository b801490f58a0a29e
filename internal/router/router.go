package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/memetic-os/memos/internal/agent"
	"github.com/memetic-os/memos/internal/bridge"
	"github.com/memetic-os/memos/internal/gateway"
	"go.uber.org/zap"
)

// MessageRouter routes inbound platform messages to the agent. When an LLM
// environment is configured, messages become dialog exchanges; otherwise the
// raw decision result is formatted back.
type MessageRouter struct {
	agent  *agent.Agent
	env    *bridge.Environment
	gw     *gateway.Gateway
	logger *zap.Logger
}

// New creates a new MessageRouter. env may be nil.
func New(a *agent.Agent, env *bridge.Environment, gw *gateway.Gateway, logger *zap.Logger) *MessageRouter {
	return &MessageRouter{
		agent:  a,
		env:    env,
		gw:     gw,
		logger: logger,
	}
}

// Handle routes an inbound message. Signature matches gateway.MessageHandler.
func (mr *MessageRouter) Handle(msg *gateway.InboundMessage) {
	ctx := context.Background()
	mr.logger.Info("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName),
	)

	// Slash commands bypass the dialog loop.
	if strings.HasPrefix(msg.Content, "/") {
		mr.sendReply(ctx, msg, mr.dispatchCommand(ctx, msg.Content))
		return
	}

	if mr.env != nil {
		reply, err := mr.env.Handle(ctx, msg.Content)
		if err != nil {
			mr.logger.Error("dialog exchange failed", zap.Error(err))
			mr.sendReply(ctx, msg, "Ошибка: "+err.Error())
			return
		}
		mr.sendReply(ctx, msg, reply)
		return
	}

	// No LLM configured: answer with the raw decision result.
	result, err := mr.agent.Think(ctx, msg.Content)
	if err != nil {
		mr.logger.Error("think failed", zap.Error(err))
		mr.sendReply(ctx, msg, "Ошибка: "+err.Error())
		return
	}
	mr.sendReply(ctx, msg, formatResult(result))
}

// dispatchCommand handles the small built-in command set.
func (mr *MessageRouter) dispatchCommand(ctx context.Context, content string) string {
	fields := strings.Fields(content)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "/state":
		s := mr.agent.StateSnapshot()
		return fmt.Sprintf("эмоция: %s | цель: %s | энергия: %d | репутация: %.2f",
			s.Emotion, s.CurrentGoal, s.Energy, s.Reputation)

	case "/stats":
		stats := mr.agent.StatsSnapshot()
		if len(stats) == 0 {
			return "Статистика пуста"
		}
		var buf strings.Builder
		for name, c := range stats {
			fmt.Fprintf(&buf, "%s: uses=%d success=%d fail=%d\n", name, c.Uses, c.Success, c.Fail)
		}
		return strings.TrimRight(buf.String(), "\n")

	case "/goal":
		if len(args) == 0 {
			return "Использование: /goal <текст цели>"
		}
		goal := strings.Join(args, " ")
		if err := mr.agent.RememberGoal(ctx, goal); err != nil {
			return "Ошибка: " + err.Error()
		}
		return "Цель добавлена: " + goal

	case "/evolve":
		mutated, err := mr.agent.EvolveStrategies(ctx)
		if err != nil {
			return "Ошибка: " + err.Error()
		}
		if len(mutated) == 0 {
			return "Ни одна стратегия не готова к эволюции"
		}
		names := make([]string, len(mutated))
		for i, m := range mutated {
			names[i] = m.Name
		}
		return "Новые стратегии: " + strings.Join(names, ", ")

	case "/meme":
		return mr.memeCommand(ctx, args)

	default:
		return "Неизвестная команда. Доступно: /state /stats /goal /evolve /meme"
	}
}

func (mr *MessageRouter) memeCommand(ctx context.Context, args []string) string {
	if len(args) < 2 {
		return "Использование: /meme get|add|mutate <имя> [содержание]"
	}
	name := args[1]
	switch args[0] {
	case "get":
		return mr.agent.GetMeme(name)
	case "add":
		content := strings.Join(args[2:], " ")
		if err := mr.agent.AddMeme(ctx, name, content); err != nil {
			return "Ошибка: " + err.Error()
		}
		return "Мем добавлен: " + name
	case "mutate":
		if err := mr.agent.MutateMeme(ctx, name); err != nil {
			return "Ошибка: " + err.Error()
		}
		return mr.agent.GetMeme(name)
	default:
		return "Использование: /meme get|add|mutate <имя> [содержание]"
	}
}

// formatResult renders a decision result for chat display.
func formatResult(r *agent.ThinkResult) string {
	if len(r.Actions) == 0 {
		return fmt.Sprintf("%s (энергия: %d)", r.Status, r.RemainingEnergy)
	}
	var buf strings.Builder
	for _, a := range r.Actions {
		fmt.Fprintf(&buf, "> *%s*: %s\n", a.Strategy, a.ActionPlan)
	}
	fmt.Fprintf(&buf, "энергия: %d", r.RemainingEnergy)
	return buf.String()
}

// sendReply sends a text reply back to the originating platform/channel.
func (mr *MessageRouter) sendReply(ctx context.Context, orig *gateway.InboundMessage, text string) {
	err := mr.gw.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		Content:   text,
		ReplyTo:   orig.ReplyTo,
	})
	if err != nil {
		mr.logger.Error("send reply failed", zap.Error(err))
	}
}

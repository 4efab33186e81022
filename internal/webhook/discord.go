package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

const (
	colorStarted  = 0x00ff00
	colorDryRun   = 0xffaa00
	colorFinished = 0x0099ff
	colorFailures = 0xff6600

	footerText   = "lxcferry"
	exampleLimit = 5
)

type DiscordWebhook struct {
	url    string
	name   string
	avatar string
	logger *logger.Logger
	client *http.Client
	now    func() time.Time
}

type DiscordMessage struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Content   string         `json:"content,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds,omitempty"`
}

type DiscordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []DiscordEmbedField `json:"fields,omitempty"`
	Footer      *DiscordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type DiscordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type DiscordEmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

func NewDiscordWebhook(config types.DiscordWebhookConfig, logger *logger.Logger) *DiscordWebhook {
	name := config.Name
	if name == "" {
		name = "lxcferry"
	}

	return &DiscordWebhook{
		url:    config.URL,
		name:   name,
		avatar: config.Avatar,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// NotifyStart announces a run before the first container is stopped.
func (d *DiscordWebhook) NotifyStart(ctx context.Context, summary *types.MigrationSummary, containers []string) error {
	title := "🚚 MIGRAÇÃO INICIADA"
	color := colorStarted
	if summary.DryRun {
		title = "🧪 SIMULAÇÃO INICIADA"
		color = colorDryRun
	}

	embed := DiscordEmbed{
		Title:       title,
		Description: fmt.Sprintf("Migrando containers LXC para **%s**", summary.DestinationHost),
		Color:       color,
		Fields: []DiscordEmbedField{
			{
				Name:   "📦 Containers",
				Value:  fmt.Sprintf("%d containers na fila", len(containers)),
				Inline: true,
			},
			{
				Name:   "⚙️ Modo",
				Value:  getModeText(summary.DryRun),
				Inline: true,
			},
			{
				Name:   "📋 Fila",
				Value:  codeBlock(listPreview(containers, 10)),
				Inline: false,
			},
		},
		Footer:    &DiscordEmbedFooter{Text: footerText + " · " + summary.RunID},
		Timestamp: d.now().Format(time.RFC3339),
	}

	return d.send(ctx, d.message(embed))
}

// NotifyComplete posts the final counters and a sample of the outcomes.
func (d *DiscordWebhook) NotifyComplete(ctx context.Context, summary *types.MigrationSummary) error {
	title := "✅ MIGRAÇÃO CONCLUÍDA"
	color := colorFinished
	if summary.DryRun {
		title = "✅ SIMULAÇÃO CONCLUÍDA"
	}
	if summary.HasFailures() {
		title = "⚠️ MIGRAÇÃO COM FALHAS"
		color = colorFailures
	}

	description := fmt.Sprintf("Processo finalizado com %d sucessos", summary.SuccessCount)
	if summary.FailureCount > 0 {
		description += fmt.Sprintf(" e %d falhas", summary.FailureCount)
	}

	fields := []DiscordEmbedField{
		{
			Name: "📊 Resultados",
			Value: fmt.Sprintf("**Total:** %d\n**✅ Sucessos:** %d\n**❌ Falhas:** %d\n**⏱️ Duração:** %s",
				summary.TotalContainers, summary.SuccessCount, summary.FailureCount,
				summary.Duration.Round(time.Second)),
			Inline: true,
		},
	}

	if successes := successExamples(summary.Results, exampleLimit); successes != "" {
		fields = append(fields, DiscordEmbedField{
			Name:   "🎯 Migrados",
			Value:  codeBlock(successes),
			Inline: false,
		})
	}

	if failures := failureExamples(summary.Results, exampleLimit); failures != "" {
		fields = append(fields, DiscordEmbedField{
			Name:   "❌ Falhas",
			Value:  codeBlock(failures),
			Inline: false,
		})
	}

	embed := DiscordEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
		Footer:      &DiscordEmbedFooter{Text: footerText + " · " + summary.RunID},
		Timestamp:   d.now().Format(time.RFC3339),
	}

	return d.send(ctx, d.message(embed))
}

func (d *DiscordWebhook) message(embed DiscordEmbed) DiscordMessage {
	return DiscordMessage{
		Username:  d.name,
		AvatarURL: d.avatar,
		Embeds:    []DiscordEmbed{embed},
	}
}

func (d *DiscordWebhook) send(ctx context.Context, message DiscordMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("falha ao serializar mensagem Discord: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("falha ao criar requisição Discord: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("falha ao enviar webhook Discord: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Discord retornou status %d", resp.StatusCode)
	}

	d.logger.Debug("discord_webhook_sent").
		Int("status_code", resp.StatusCode).
		Send()

	return nil
}

func successExamples(results []*types.ContainerJobResult, limit int) string {
	var examples []string
	total := 0

	for _, result := range results {
		if !result.Succeeded() {
			continue
		}
		total++
		if len(examples) < limit {
			line := fmt.Sprintf("%s (%s)", truncateString(result.Name, 30), humanize.IBytes(result.SourceSize))
			if result.Retries > 0 {
				line += fmt.Sprintf(" após %d retentativas", result.Retries)
			}
			examples = append(examples, line)
		}
	}

	if len(examples) == 0 {
		return ""
	}

	out := strings.Join(examples, "\n")
	if total > len(examples) {
		out += fmt.Sprintf("\n... e mais %d containers", total-len(examples))
	}
	return out
}

func failureExamples(results []*types.ContainerJobResult, limit int) string {
	var examples []string

	for _, result := range results {
		if result.Succeeded() || len(examples) >= limit {
			continue
		}
		examples = append(examples, fmt.Sprintf("%s [%s]: %s",
			truncateString(result.Name, 25),
			result.Outcome,
			truncateString(result.ErrorMessage(), 40)))
	}

	return strings.Join(examples, "\n")
}

func listPreview(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, "\n")
	}
	return strings.Join(names[:limit], "\n") + fmt.Sprintf("\n... e mais %d", len(names)-limit)
}

func codeBlock(s string) string {
	return "```\n" + s + "\n```"
}

func getModeText(dryRun bool) string {
	if dryRun {
		return "🧪 Simulação (Dry Run)"
	}
	return "🚀 Produção (Real)"
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

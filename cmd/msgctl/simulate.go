package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"messaging-platform/internal/ai"
	"messaging-platform/internal/audit"
	"messaging-platform/internal/classifier"
	"messaging-platform/internal/contacts"
	"messaging-platform/internal/conversations"
	"messaging-platform/internal/dispatch"
	"messaging-platform/internal/engine"
	"messaging-platform/internal/messages"
	"messaging-platform/internal/responder"
	"messaging-platform/internal/tenants"
	"messaging-platform/internal/transport"
	"messaging-platform/pkg/logger"
)

const (
	simTenant   = "sim"
	simBusiness = "+15550001111"
)

type simulateOptions struct {
	from      string
	channel   string
	business  string
	knowledge string
	persona   string
	maxReply  int
	offline   bool

	provider string
	model    string
	apiKey   string
	baseURL  string
	timeout  time.Duration
}

func newSimulateCmd() *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate [message...]",
		Short: "Run inbound messages through the engine with in-memory stores",
		Long: "Each argument (or each stdin line when no arguments are given) is delivered as one inbound\n" +
			"message from the same sender. Replies are printed instead of sent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.from, "from", "+15551234567", "sender address")
	f.StringVar(&opts.channel, "channel", "sms", "channel: sms, whatsapp, rcs")
	f.StringVar(&opts.business, "business", "Demo Store", "tenant business name")
	f.StringVar(&opts.knowledge, "knowledge", "", "tenant knowledge base text, or @path to read it from a file")
	f.StringVar(&opts.persona, "persona", "", "tenant persona")
	f.IntVar(&opts.maxReply, "max-reply", 0, "reply length cap, never above the channel default")
	f.BoolVar(&opts.offline, "offline", false, "skip the model; every stage falls back")
	f.StringVar(&opts.provider, "provider", envOr("AI_PROVIDER", "openai"), "model provider: openai, anthropic, ollama")
	f.StringVar(&opts.model, "model", os.Getenv("AI_MODEL"), "model name")
	f.StringVar(&opts.apiKey, "api-key", os.Getenv("AI_API_KEY"), "model API key")
	f.StringVar(&opts.baseURL, "base-url", os.Getenv("AI_BASE_URL"), "model base URL")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-stage model timeout")
	return cmd
}

func runSimulate(ctx context.Context, in io.Reader, out io.Writer, opts simulateOptions, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ch, err := conversations.ParseChannel(opts.channel)
	if err != nil {
		return fmt.Errorf("invalid channel %q", opts.channel)
	}
	kb := opts.knowledge
	if strings.HasPrefix(kb, "@") {
		raw, err := os.ReadFile(kb[1:])
		if err != nil {
			return fmt.Errorf("read knowledge base: %w", err)
		}
		kb = string(raw)
	}

	var gen ai.Generator = ai.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("offline")
	})
	if !opts.offline {
		g, err := ai.NewGenerator(ai.Options{
			Provider: ai.Provider(opts.provider),
			Model:    opts.model,
			APIKey:   opts.apiKey,
			BaseURL:  opts.baseURL,
		})
		if err != nil {
			return err
		}
		gen = g
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx = logger.With(ctx, log)
	tenantSvc := tenants.NewService(tenants.NewMemoryRepo(), "US")
	if _, err := tenantSvc.Upsert(ctx, tenants.Tenant{
		ID:             simTenant,
		BusinessName:   opts.business,
		Persona:        opts.persona,
		KnowledgeBase:  kb,
		MaxReplyLength: opts.maxReply,
	}, []string{simBusiness}); err != nil {
		return err
	}
	convSvc := conversations.NewService(conversations.NewMemoryRepo())
	msgSvc := messages.NewService(messages.NewMemoryRepo())
	sink := transport.NewMemoryTransport()

	eng, err := engine.New(engine.Deps{
		Tenants:       tenantSvc,
		Contacts:      contacts.NewService(contacts.NewMemoryRepo(), "US"),
		Conversations: convSvc,
		Messages:      msgSvc,
		Classifier:    classifier.New(gen, opts.timeout, log),
		Responder:     responder.New(gen, opts.timeout, log),
		Dispatcher:    dispatch.New(sink, msgSvc, convSvc),
		Audit:         audit.NewService(audit.NewMemoryRepo()),
	}, engine.Options{})
	if err != nil {
		return err
	}

	bodies := args
	if len(bodies) == 0 {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				bodies = append(bodies, line)
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
	}

	for i, body := range bodies {
		before := len(sink.Sent())
		res := eng.HandleInbound(ctx, engine.Inbound{
			TenantID:   simTenant,
			From:       opts.from,
			To:         simBusiness,
			Body:       body,
			Channel:    ch,
			ExternalID: fmt.Sprintf("SIM%04d", i+1),
		})
		fmt.Fprintf(out, "> %s\n", body)
		fmt.Fprintf(out, "  outcome=%s", res.Outcome)
		if res.Classification.Intent != "" {
			fmt.Fprintf(out, " intent=%s sentiment=%s", res.Classification.Intent, res.Classification.Sentiment)
		}
		if res.Err != nil {
			fmt.Fprintf(out, " err=%q", res.Err.Error())
		}
		fmt.Fprintln(out)
		for _, s := range sink.Sent()[before:] {
			fmt.Fprintf(out, "< %s\n", s.Body)
		}
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

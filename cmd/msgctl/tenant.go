package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"messaging-platform/internal/config"
	"messaging-platform/internal/tenants"
	"messaging-platform/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant configuration commands",
	}
	cmd.AddCommand(newTenantUpsertCmd())
	return cmd
}

func newTenantUpsertCmd() *cobra.Command {
	var (
		t       tenants.Tenant
		kbFile  string
		numbers []string
	)

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a tenant and claim its business numbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kbFile != "" {
				raw, err := os.ReadFile(kbFile)
				if err != nil {
					return fmt.Errorf("read knowledge base: %w", err)
				}
				t.KnowledgeBase = string(raw)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := utils.OpenPostgres(cmd.Context(), "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2})
			if err != nil {
				return err
			}
			defer db.Close()

			svc := tenants.NewService(tenants.NewPostgresRepo(db), cfg.Engine.DefaultRegion)
			saved, err := svc.Upsert(cmd.Context(), t, numbers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %s saved (%d numbers)\n", saved.ID, len(numbers))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&t.ID, "id", "", "tenant id")
	f.StringVar(&t.BusinessName, "name", "", "business name")
	f.StringVar(&t.Persona, "persona", "", "assistant persona")
	f.StringVar(&t.Industry, "industry", "", "industry")
	f.StringVar(&t.EscalationRules, "escalation-rules", "", "free-text escalation rules")
	f.StringVar(&kbFile, "knowledge-file", "", "path to the knowledge base text")
	f.IntVar(&t.MaxReplyLength, "max-reply", 0, "reply length cap, never above the channel default")
	f.BoolVar(&t.PauseBotOnEscalation, "pause-bot-on-escalation", false, "stop automated replies once escalated")
	f.StringSliceVar(&numbers, "number", nil, "business number (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

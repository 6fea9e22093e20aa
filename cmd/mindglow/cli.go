package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindglow/mindglow/pkg/config"
)

func executeCLI() error {
	return buildRootCommand(true).Execute()
}

func buildRootCommand(includeDocsCommand bool) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   appName,
		Short: "Non-directive reflection companion: HTTP API, Discord bot and local chat",
		Long: strings.TrimSpace(`mindglow serves two reflection companions, Reflect and Inner Learning.

Replies are screened for directive language and regenerated when needed,
crisis messages get localized support resources, and callers may supply past
messages with embeddings to give the companion gentle memory.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(cmd)
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "Path to config.json")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newSummarizeCommand())
	root.AddCommand(newEmbedCommand())
	root.AddCommand(newAuditCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	if includeDocsCommand {
		root.AddCommand(newDocsCommand(func() *cobra.Command { return buildRootCommand(false) }))
	}
	return root
}

func printVersion(cmd *cobra.Command) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Fprintf(w, "  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Fprintf(w, "  Go: %s\n", goVer)
	}
}

func newOnboardCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "onboard",
		Short:   "Write a default config file",
		Example: "  mindglow onboard\n  mindglow onboard --config ./mindglow.json --force",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
			}
			if err := config.SaveConfig(configPath, config.DefaultConfig()); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Config written to %s\n", configPath)
			fmt.Fprintln(cmd.OutOrStdout(), "  Set providers.openai.api_key (or MINDGLOW_PROVIDERS_OPENAI_API_KEY) before running serve.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	return cmd
}

func newServeCommand() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API plus any enabled chat channels",
		Long:    "Start the HTTP gateway, the audit retention sweeper when auditing is enabled, and the Discord bot when configured.",
		Example: "  mindglow serve\n  mindglow serve --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newChatCommand() *cobra.Command {
	var (
		personaName string
		message     string
		session     string
		debug       bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a companion in the terminal",
		Long:  "Run an interactive local session, or send a single message with --message.",
		Example: strings.Join([]string{
			"  mindglow chat",
			"  mindglow chat --persona inner_learning",
			"  mindglow chat --message \"I keep replaying that meeting\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(debug, personaName, message, session)
		},
	}
	cmd.Flags().StringVarP(&personaName, "persona", "p", "reflect", "Companion persona: reflect or inner_learning")
	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message")
	cmd.Flags().StringVarP(&session, "session", "s", "cli:default", "Session key for continuity")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newSummarizeCommand() *cobra.Command {
	var (
		personaName string
		file        string
	)
	cmd := &cobra.Command{
		Use:     "summarize",
		Short:   "Summarize a transcript of {role, content} messages",
		Example: "  mindglow summarize --file session.json\n  cat session.json | mindglow summarize --persona inner_learning",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize(cmd.OutOrStdout(), personaName, file)
		},
	}
	cmd.Flags().StringVarP(&personaName, "persona", "p", "reflect", "Companion persona: reflect or inner_learning")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Transcript JSON file, - for stdin")
	return cmd
}

func newEmbedCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "embed <text>",
		Short:   "Print the embedding of a text",
		Args:    cobra.MinimumNArgs(1),
		Example: "  mindglow embed \"quiet mornings\" --json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cmd.OutOrStdout(), strings.Join(args, " "), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full vector as JSON")
	return cmd
}

func newAuditCommand() *cobra.Command {
	auditRoot := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and prune the violation and crisis audit log",
	}

	var (
		user  string
		since time.Duration
		limit int
	)
	list := &cobra.Command{
		Use:       "list <violations|crises>",
		Short:     "List recent audit records, newest first",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"violations", "crises"},
		Example:   "  mindglow audit list violations --since 24h\n  mindglow audit list crises --user u-123",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditList(cmd.OutOrStdout(), args[0], user, since, limit)
		},
	}
	list.Flags().StringVar(&user, "user", "", "Only records for this user id")
	list.Flags().DurationVar(&since, "since", 0, "Only records newer than this duration")
	list.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records")

	var olderThan int
	purge := &cobra.Command{
		Use:     "purge",
		Short:   "Delete audit records older than N days",
		Example: "  mindglow audit purge --older-than-days 365",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditPurge(cmd.OutOrStdout(), olderThan)
		},
	}
	purge.Flags().IntVar(&olderThan, "older-than-days", 365, "Retention window in days")

	auditRoot.AddCommand(list, purge)
	return auditRoot
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration, provider and audit readiness",
		Example: "  mindglow status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.OutOrStdout())
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  mindglow version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion(cmd)
			return nil
		},
	}
}

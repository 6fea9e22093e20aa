package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mindglow/mindglow/pkg/agent"
	"github.com/mindglow/mindglow/pkg/audit"
	"github.com/mindglow/mindglow/pkg/persona"
	"github.com/mindglow/mindglow/pkg/providers"
)

// runSummarize reads a JSON array of {role, content} messages from path
// ("-" for stdin) and prints a neutral session summary.
func runSummarize(w io.Writer, personaName, path string) error {
	p, err := persona.Parse(personaName)
	if err != nil {
		return err
	}
	messages, err := readTranscript(path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	out, err := st.pipeline.SummarizeSession(ctx, p, messages)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n  (lang=%s)\n", out.Summary, out.DetectedLanguage)
	return nil
}

func readTranscript(path string) ([]agent.Message, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		defer f.Close()
		r = f
	}
	var messages []agent.Message
	if err := json.NewDecoder(r).Decode(&messages); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return messages, nil
}

func runEmbed(w io.Writer, text string, asJSON bool) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	vec, err := st.pipeline.Embed(ctx, text)
	if err != nil {
		return err
	}
	if asJSON {
		return json.NewEncoder(w).Encode(vec)
	}
	preview := vec
	if len(preview) > 5 {
		preview = preview[:5]
	}
	fmt.Fprintf(w, "dimensions: %d\nlanguage: %s\nhead: %v\n", len(vec), st.pipeline.DetectLanguage(text), preview)
	return nil
}

func openAuditStore() (*audit.Store, error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, err
	}
	path := cfg.AuditPath()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audit log not found at %s (enable audit and run serve first)", path)
	}
	return audit.Open(path)
}

func runAuditList(w io.Writer, kind, userID string, since time.Duration, limit int) error {
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	q := audit.Query{UserID: userID, Limit: limit}
	if since > 0 {
		q.Since = time.Now().Add(-since)
	}

	ctx := context.Background()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	switch kind {
	case "violations":
		logs, err := store.ListViolations(ctx, q)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "TIME\tCHATBOT\tUSER\tVIOLATIONS")
		for _, l := range logs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Timestamp.Format(time.RFC3339), l.Persona, l.UserID, strings.Join(l.Violations, ", "))
		}
	case "crises":
		logs, err := store.ListCrises(ctx, q)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "TIME\tUSER\tLANG\tINDICATORS")
		for _, l := range logs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Timestamp.Format(time.RFC3339), l.UserID, l.Language, strings.Join(l.Indicators, ", "))
		}
	default:
		return fmt.Errorf("unknown audit kind %q (want violations or crises)", kind)
	}
	return nil
}

func runAuditPurge(w io.Writer, olderThanDays int) error {
	if olderThanDays <= 0 {
		return fmt.Errorf("--older-than-days must be > 0")
	}
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cutoff := time.Now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	n, err := store.PurgeBefore(context.Background(), cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Purged %d audit records older than %s\n", n, cutoff.Format(time.DateOnly))
	return nil
}

func runStatus(w io.Writer) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Status\n", appName)
	fmt.Fprintf(w, "Version: %s\n", formatVersion())
	if build, _ := formatBuildInfo(); build != "" {
		fmt.Fprintf(w, "Build: %s\n", build)
	}
	fmt.Fprintln(w)

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}
	_, statErr := os.Stat(configPath)
	fmt.Fprintln(w, "Config:", configPath, mark(statErr == nil))
	fmt.Fprintf(w, "Chat provider: %s (model %s)\n", cfg.Providers.Chat, cfg.Generation.Model)
	fmt.Fprintf(w, "Embedding provider: %s (model %s)\n", cfg.Providers.Embedding, cfg.Memory.EmbeddingModel)
	providerErr := providers.ValidateProviderConfig(cfg)
	fmt.Fprintln(w, "Provider credentials:", mark(providerErr == nil))
	if providerErr != nil {
		fmt.Fprintf(w, "  %v\n", providerErr)
	}
	fmt.Fprintf(w, "Gateway: http://%s\n", cfg.ListenAddr())
	fmt.Fprintln(w, "Discord:", mark(cfg.Channels.Discord.Enabled && strings.TrimSpace(cfg.Channels.Discord.Token) != ""))

	if cfg.Audit.Enabled {
		path := cfg.AuditPath()
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintln(w, "Audit log:", path, "not initialized")
		} else if store, err := audit.Open(path); err == nil {
			stats, statsErr := store.Stats(context.Background())
			store.Close()
			if statsErr == nil {
				fmt.Fprintf(w, "Audit log: %s (%d violations, %d crises)\n", path, stats.Violations, stats.Crises)
			}
		}
	} else {
		fmt.Fprintln(w, "Audit log: disabled")
	}
	return nil
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	cobraDoc "github.com/spf13/cobra/doc"

	"github.com/mindglow/mindglow/pkg/config"
	"github.com/mindglow/mindglow/pkg/providers"
)

func newDocsCommand(rootFactory func() *cobra.Command) *cobra.Command {
	docsRoot := &cobra.Command{
		Use:    "docs",
		Short:  "Internal docs maintenance commands",
		Hidden: true,
	}

	var (
		outputDir string
		checkOnly bool
	)
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Generate CLI, config and provider reference docs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outputDir) == "" {
				return fmt.Errorf("--output must not be empty")
			}
			return generateDocumentation(rootFactory, outputDir, checkOnly)
		},
	}
	gen.Flags().StringVar(&outputDir, "output", "docs", "Docs directory root")
	gen.Flags().BoolVar(&checkOnly, "check", false, "Fail if generated docs are out of date")

	docsRoot.AddCommand(gen)
	return docsRoot
}

// generateDocumentation renders into a temp dir, then either compares with
// or replaces outputDir/reference.
func generateDocumentation(rootFactory func() *cobra.Command, outputDir string, checkOnly bool) error {
	tmpDir, err := os.MkdirTemp("", "mindglow-docs-*")
	if err != nil {
		return fmt.Errorf("create temp docs dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := writeReferences(rootFactory, filepath.Join(tmpDir, "reference")); err != nil {
		return err
	}

	generated, err := readTree(filepath.Join(tmpDir, "reference"))
	if err != nil {
		return err
	}
	target := filepath.Join(outputDir, "reference")

	if checkOnly {
		existing, err := readTree(target)
		if err != nil {
			return fmt.Errorf("docs out of date: %w", err)
		}
		return diffTrees(generated, existing)
	}

	if err := os.RemoveAll(target); err != nil {
		return err
	}
	for rel, data := range generated {
		if err := writeTextFile(filepath.Join(target, rel), data); err != nil {
			return err
		}
	}
	return nil
}

func writeReferences(rootFactory func() *cobra.Command, outDir string) error {
	cliRoot := rootFactory()
	disableAutoGenTag(cliRoot)

	cliDir := filepath.Join(outDir, "cli")
	if err := os.MkdirAll(cliDir, 0o755); err != nil {
		return fmt.Errorf("create cli docs dir: %w", err)
	}
	prepender := func(filename string) string {
		title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		return fmt.Sprintf("# %s\n\n", strings.ReplaceAll(title, "_", " "))
	}
	if err := cobraDoc.GenMarkdownTreeCustom(cliRoot, cliDir, prepender, func(name string) string { return name }); err != nil {
		return fmt.Errorf("generate cli markdown docs: %w", err)
	}

	manDir := filepath.Join(outDir, "man")
	if err := os.MkdirAll(manDir, 0o755); err != nil {
		return fmt.Errorf("create man docs dir: %w", err)
	}
	header := &cobraDoc.GenManHeader{Title: "MINDGLOW", Section: "1", Source: appName}
	if err := cobraDoc.GenManTree(cliRoot, header, manDir); err != nil {
		return fmt.Errorf("generate man pages: %w", err)
	}

	defaults, err := flattenConfigDefaults()
	if err != nil {
		return err
	}
	if err := writeTextFile(filepath.Join(outDir, "config.md"), configReferenceMarkdown(defaults)); err != nil {
		return err
	}
	return writeTextFile(filepath.Join(outDir, "providers.md"), providersReferenceMarkdown(defaults))
}

func disableAutoGenTag(cmd *cobra.Command) {
	cmd.DisableAutoGenTag = true
	for _, child := range cmd.Commands() {
		disableAutoGenTag(child)
	}
}

func writeTextFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	return os.WriteFile(path, content, 0o644)
}

// readTree maps every file under root, by relative path, to its contents.
func readTree(root string) (map[string][]byte, error) {
	out := map[string][]byte{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[rel] = data
		return nil
	})
	return out, err
}

func diffTrees(want, got map[string][]byte) error {
	for rel, data := range want {
		existing, ok := got[rel]
		if !ok {
			return fmt.Errorf("docs out of date: missing %s; run `mindglow docs generate`", rel)
		}
		if !bytes.Equal(data, existing) {
			return fmt.Errorf("docs out of date: %s differs; run `mindglow docs generate`", rel)
		}
	}
	for rel := range got {
		if _, ok := want[rel]; !ok {
			return fmt.Errorf("docs out of date: stale file %s", rel)
		}
	}
	return nil
}

type configFieldRow struct {
	Path    string
	Type    string
	Env     string
	Default string
}

func configReferenceMarkdown(defaults map[string]string) []byte {
	var rows []configFieldRow
	collectConfigRows(reflect.TypeOf(config.Config{}), "", "", defaults, &rows)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	var b strings.Builder
	b.WriteString("# Config Reference\n\n")
	b.WriteString("Generated from `pkg/config/config.go` and `config.DefaultConfig()`.\n")
	b.WriteString("Environment variables override the file at load time.\n\n")
	writeRows(&b, rows)
	return []byte(b.String())
}

func writeRows(b *strings.Builder, rows []configFieldRow) {
	b.WriteString("| Key | Type | Env Var | Default |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, row := range rows {
		fmt.Fprintf(b, "| `%s` | `%s` | `%s` | `%s` |\n",
			escapePipes(row.Path), escapePipes(row.Type), escapePipes(valueOr(row.Env, "-")), escapePipes(valueOr(row.Default, "-")))
	}
}

// collectConfigRows walks the config struct by json tag. envPrefix carries
// caarlos0/env prefixes down to nested structs.
func collectConfigRows(t reflect.Type, prefix, envPrefix string, defaults map[string]string, rows *[]configFieldRow) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key := strings.TrimSpace(strings.Split(f.Tag.Get("json"), ",")[0])
		if key == "" || key == "-" {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if f.Type.Kind() == reflect.Struct {
			collectConfigRows(f.Type, path, envPrefix+f.Tag.Get("envPrefix"), defaults, rows)
			continue
		}

		env := strings.TrimSpace(f.Tag.Get("env"))
		if env != "" {
			env = envPrefix + env
		}
		*rows = append(*rows, configFieldRow{
			Path:    path,
			Type:    friendlyType(f.Type),
			Env:     env,
			Default: defaults[path],
		})
	}
}

func providersReferenceMarkdown(defaults map[string]string) []byte {
	chat, embedding := providers.SupportedProviders()

	var b strings.Builder
	b.WriteString("# Provider Reference\n\n")
	b.WriteString("Generated from the provider factory registry.\n\n")
	b.WriteString("Select with `providers.chat` and `providers.embedding`; the two may differ.\n\n")
	b.WriteString("## Chat providers\n\n")
	for _, name := range chat {
		b.WriteString("- `" + name + "`\n")
	}
	b.WriteString("\n## Embedding providers\n\n")
	for _, name := range embedding {
		b.WriteString("- `" + name + "`\n")
	}

	for _, key := range []string{"openai", "openrouter"} {
		b.WriteString("\n## `providers." + key + "`\n\n")
		var rows []configFieldRow
		collectConfigRows(reflect.TypeOf(config.ProviderConfig{}), "providers."+key,
			"MINDGLOW_PROVIDERS_"+strings.ToUpper(key)+"_", defaults, &rows)
		writeRows(&b, rows)
	}
	return []byte(b.String())
}

func flattenConfigDefaults() (map[string]string, error) {
	data, err := json.Marshal(config.DefaultConfig())
	if err != nil {
		return nil, err
	}
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	out := map[string]string{}
	flattenMapValues("", root, out)
	return out, nil
}

func flattenMapValues(prefix string, v any, out map[string]string) {
	if m, ok := v.(map[string]any); ok {
		for k, child := range m {
			next := k
			if prefix != "" {
				next = prefix + "." + k
			}
			flattenMapValues(next, child, out)
		}
		return
	}
	encoded, _ := json.Marshal(v)
	out[prefix] = string(encoded)
}

func friendlyType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Slice:
		return "array<" + friendlyType(t.Elem()) + ">"
	case reflect.Pointer:
		return "*" + friendlyType(t.Elem())
	default:
		return t.String()
	}
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

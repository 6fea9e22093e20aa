package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand(false)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want []string
	}{
		{"root", []string{"--help"}, []string{"serve", "chat", "summarize", "embed", "audit", "status", "onboard"}},
		{"chat", []string{"chat", "--help"}, []string{"--persona", "--message", "--session"}},
		{"audit", []string{"audit", "--help"}, []string{"list", "purge"}},
		{"audit list", []string{"audit", "list", "--help"}, []string{"--since", "--user", "--limit"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runRootCommandForTest(tc.args...)
			require.NoError(t, err, out)
			for _, w := range tc.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestRootWithoutSubcommandFails(t *testing.T) {
	_, err := runRootCommandForTest()
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := runRootCommandForTest("version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mindglow "), out)
}

func TestOnboardWritesConfigOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	saved := configPath
	t.Cleanup(func() { configPath = saved })

	_, err := runRootCommandForTest("onboard", "--config", path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = runRootCommandForTest("onboard", "--config", path)
	assert.Error(t, err)

	_, err = runRootCommandForTest("onboard", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestGenerateDocumentation_CheckDetectsDrift(t *testing.T) {
	dir := t.TempDir()
	factory := func() *cobra.Command { return buildRootCommand(false) }

	require.NoError(t, generateDocumentation(factory, dir, false))
	require.NoError(t, generateDocumentation(factory, dir, true))

	configRef, err := os.ReadFile(filepath.Join(dir, "reference", "config.md"))
	require.NoError(t, err)
	assert.Contains(t, string(configRef), "MINDGLOW_PROVIDERS_OPENAI_API_KEY")
	assert.Contains(t, string(configRef), "`memory.similarity_threshold`")

	providersRef, err := os.ReadFile(filepath.Join(dir, "reference", "providers.md"))
	require.NoError(t, err)
	assert.Contains(t, string(providersRef), "`openrouter`")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "reference", "config.md"), []byte("stale"), 0o644))
	assert.Error(t, generateDocumentation(factory, dir, true))
}

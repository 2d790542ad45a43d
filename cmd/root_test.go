package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"ingest", "record", "distribute", "forms", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "intake-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_Flags(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("app")
	require.NotNil(t, flag, "ingest command should have --app flag")

	typeFlag := ingestCmd.Flags().Lookup("type")
	require.NotNil(t, typeFlag, "ingest command should have --type flag")
}

func TestRecordCommand_HasSubcommands(t *testing.T) {
	cmds := recordCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"get", "versions", "list", "conflicts"}
	for _, name := range expected {
		assert.True(t, names[name], "expected record subcommand %q not found", name)
	}
}

func TestDistributeCommand_Flags(t *testing.T) {
	flag := distributeCmd.Flags().Lookup("out")
	require.NotNil(t, flag, "distribute command should have --out flag")
	assert.Equal(t, "output", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"products", "investors", "clients", "backfill", "import", "migrate", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "investor-resolver", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	flag := rootCmd.PersistentFlags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "json", flag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		name string
		flag string
		def  string
	}{
		{"products", "max", "0"},
		{"products", "refresh", "false"},
		{"investors", "refresh", "false"},
		{"backfill", "dry-run", "false"},
		{"import", "id-field", "id"},
		{"import", "collection", ""},
		{"migrate", "prune-cache", "false"},
		{"serve", "port", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.flag, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{tt.name})
			require.NoError(t, err)
			f := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestInvestorsCommand_RequiresProduct(t *testing.T) {
	assert.Error(t, investorsCmd.Args(investorsCmd, nil))
	assert.NoError(t, investorsCmd.Args(investorsCmd, []string{"P-1"}))
	assert.Error(t, clientsCmd.Args(clientsCmd, nil))
}

package cmd

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

func TestBoardRows(t *testing.T) {
	rows := boardRows(model.SharedState{Beers: []model.Beer{
		{ID: "1", Name: "Classic", CurrentPrice: 18.9, BasePrice: 18},
		{ID: "2", Name: "Shot", CurrentPrice: 9.5, BasePrice: 10},
		{ID: "3", Name: "Free", CurrentPrice: 0, BasePrice: 0},
	}})

	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Item", "Price", "Base", "Change"}, rows[0])
	assert.Equal(t, []string{"Classic", "18.90", "18.00", "+5%"}, rows[1])
	assert.Equal(t, []string{"Shot", "9.50", "10.00", "-5%"}, rows[2])
	assert.Equal(t, "0%", rows[3][3])
}

func TestConfigOverrides_OnlyExplicitFlags(t *testing.T) {
	cmd := serverCmd()
	set := flag.NewFlagSet("server", flag.ContinueOnError)
	for _, f := range cmd.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse([]string{"--port", "4000"}))

	fs, err := configOverrides(cli.NewContext(cli.NewApp(), set, nil))
	require.NoError(t, err)

	assert.True(t, fs.Changed("server.port"))
	assert.False(t, fs.Changed("log.level"))
	port, err := fs.GetInt("server.port")
	require.NoError(t, err)
	assert.Equal(t, 4000, port)
}

package tabular

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCSVBuildsRowsKeyedByHeader(t *testing.T) {
	input := "Email Address,Name\nalice@example.com,Alice\nbob@example.com,Bob\n"

	table, err := parseCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Equal(t, []string{"Email Address", "Name"}, table.Headers)
	require.Len(t, table.Rows, 2)
	require.Equal(t, "alice@example.com", table.Rows[0]["Email Address"])
	require.Equal(t, "Bob", table.Rows[1]["Name"])
}

func TestParseCSVToleratesShortRecords(t *testing.T) {
	input := "Email Address,Name,Resume\ncarol@example.com,Carol\n"

	table, err := parseCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, table.Rows, 1)
	_, ok := table.Rows[0]["Resume"]
	require.False(t, ok)
}

func TestParseCSVEmptyInput(t *testing.T) {
	table, err := parseCSV(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, table.Headers)
	require.Empty(t, table.Rows)
}

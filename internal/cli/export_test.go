package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAssetFlag(t *testing.T) {
	for in, want := range map[string]string{
		"":                "",
		"  Bitcoin ":      "bitcoin",
		"wrapped-bitcoin": "wrapped-bitcoin",
		"matic-network":   "matic-network",
		"1inch":           "1inch",
	} {
		got, err := assetFlag(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}

	for _, bad := range []string{"bit coin", "-bitcoin", "btc/usd", "bitcoin;drop"} {
		_, err := assetFlag(bad)
		require.Error(t, err, bad)
	}
}

func TestTimeFlag(t *testing.T) {
	got, err := timeFlag("from", "")
	require.NoError(t, err)
	require.Nil(t, got)

	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	for _, in := range []string{"2024-05-01T12:30:00Z", "2024-05-01T14:30:00+02:00", "2024-05-01 12:30:00"} {
		got, err := timeFlag("from", in)
		require.NoError(t, err, in)
		require.True(t, got.Equal(want), in)
		require.Equal(t, time.UTC, got.Location())
	}

	got, err = timeFlag("to", "2024-05-02")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), *got)

	_, err = timeFlag("to", "yesterday")
	require.ErrorContains(t, err, "--to")
}

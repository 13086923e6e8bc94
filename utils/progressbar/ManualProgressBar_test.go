package progressbar

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManualProgressBar(t *testing.T) {
	var out bytes.Buffer
	p := NewManualProgressBar(&out, 10, 4, 2)

	p.Increment()
	require.Empty(t, out.String())

	p.Increment()
	require.Equal(t, 0.5, p.Progress())
	require.Contains(t, out.String(), "50.00%")
	require.Equal(t, 5, strings.Count(p.String(), "█"))

	// Progress saturates at the maximum
	for i := 0; i < 10; i++ {
		p.Increment()
	}
	require.Equal(t, 1.0, p.Progress())
	require.Equal(t, 10, strings.Count(p.String(), "█"))

	p.Close()
	require.True(t, strings.HasSuffix(out.String(), "\n"))
}

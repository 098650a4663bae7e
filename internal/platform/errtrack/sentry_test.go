package errtrack

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitWithoutDSNDisablesReporter(t *testing.T) {
	reporter, err := Init("", "test", "dev")
	require.NoError(t, err)
	require.False(t, reporter.Enabled())

	reporter.Capture(context.Background(), errors.New("ignored"), map[string]string{"route": "/"})
	reporter.Flush(0)
}

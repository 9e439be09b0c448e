package agentruntime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(NewTransientError(errors.New("boom"))))
	assert.True(t, isRetryable(NewRateLimitedError(0)))
	assert.True(t, isRetryable(ErrTimeout))
	assert.False(t, isRetryable(NewMalformedResponseError(0)))
}

func TestInvokeWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	withFakeTool(t, `
cat > /dev/null
attempts_file="$ATTEMPTS_FILE"
n=$(cat "$attempts_file" 2>/dev/null || echo 0)
n=$((n + 1))
echo "$n" > "$attempts_file"
if [ "$n" -lt 3 ]; then
  echo 'transient failure' >&2
  exit 1
fi
printf '\140\140\140json\n'
echo '{"ok":true}'
printf '\140\140\140\n'
`)

	attemptsFile := t.TempDir() + "/attempts"
	t.Setenv("ATTEMPTS_FILE", attemptsFile)

	runner := NewRunner()
	resp, err := InvokeWithRetry(context.Background(), runner, Request{
		Tool:    ToolClaude,
		Prompt:  "do it",
		Workdir: t.TempDir(),
		Timeout: 5 * time.Second,
	})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Payload))
}

func TestInvokeWithRetry_MalformedResponseNotRetried(t *testing.T) {
	withFakeTool(t, `cat > /dev/null
echo 'no json here'
`)

	runner := NewRunner()
	_, err := InvokeWithRetry(context.Background(), runner, Request{
		Tool:    ToolClaude,
		Prompt:  "do it",
		Workdir: t.TempDir(),
		Timeout: 5 * time.Second,
	})

	require.Error(t, err)
	require.ErrorIs(t, err, ErrMalformedResponse)
}

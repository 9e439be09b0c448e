package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Approver gates the first execution of each distinct verb on human
// confirmation, unless running with --yolo (spec §4.8's human approval
// gate EXPANSION). Collapsed to a terminal yes/no prompt, the same
// human-in-the-loop decision point tarsy exposes via Slack approval
// callbacks (pkg/slack/service.go) but without a UI layer, since the
// terminal UI itself is out of scope.
type Approver interface {
	Approve(verb string) (bool, error)
}

// AutoApprover always approves without prompting, used when --yolo is set.
type AutoApprover struct{}

func (AutoApprover) Approve(string) (bool, error) { return true, nil }

// StdioApprover prompts on out and reads a yes/no answer from in, once
// per distinct verb (tracked by the caller via gatedApprover).
type StdioApprover struct {
	In  io.Reader
	Out io.Writer
}

func (a *StdioApprover) Approve(verb string) (bool, error) {
	if _, err := fmt.Fprintf(a.Out, "Approve first execution of verb %q? [y/N]: ", verb); err != nil {
		return false, err
	}

	reader := bufio.NewReader(a.In)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// gatedApprover wraps an Approver so only the first execution of each
// distinct verb is gated; subsequent firings of the same verb proceed
// without re-prompting.
type gatedApprover struct {
	mu       sync.Mutex
	inner    Approver
	approved map[string]bool
}

func newGatedApprover(inner Approver) *gatedApprover {
	return &gatedApprover{inner: inner, approved: map[string]bool{}}
}

// approve returns true immediately for a verb already approved this
// iteration; otherwise it delegates to inner and remembers the outcome.
func (g *gatedApprover) approve(verb string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.approved[verb] {
		return true, nil
	}

	ok, err := g.inner.Approve(verb)
	if err != nil {
		return false, err
	}
	if ok {
		g.approved[verb] = true
	}
	return ok, nil
}

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/harun/agentcore/pkg/guardrail"
)

// promptApproval asks on out and reads y/N answers from in. Requests are
// serialized so parallel tool calls never interleave prompts.
func promptApproval(in io.Reader, out io.Writer) guardrail.ApprovalCallback {
	reader := bufio.NewReader(in)
	var mu sync.Mutex

	return func(ctx context.Context, req guardrail.ApprovalRequest) (bool, error) {
		mu.Lock()
		defer mu.Unlock()

		args, _ := json.Marshal(req.Args)
		fmt.Fprintf(out, "\nAgent %s wants to run tool %s with %s\nAllow? [y/N]: ", req.AgentID, req.ToolName, args)

		answer := make(chan string, 1)
		failed := make(chan error, 1)
		go func() {
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				failed <- err
				return
			}
			answer <- strings.ToLower(strings.TrimSpace(line))
		}()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case err := <-failed:
			return false, fmt.Errorf("reading approval: %w", err)
		case a := <-answer:
			return a == "y" || a == "yes", nil
		}
	}
}

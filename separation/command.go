package separation

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs an external removal tool that reads the source image on stdin
// and writes the cutout PNG to stdout, e.g. `rembg i - -`.
type Command struct {
	Path string
	Args []string
	Env  []string
}

func (c Command) Separate(ctx context.Context, src []byte) ([]byte, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("separation: command path is empty")
	}
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	cmd.Stdin = bytes.NewReader(src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 4096 {
			msg = msg[:4096]
		}
		if msg != "" {
			return nil, fmt.Errorf("separation: %s: %w: %s", c.Path, err, msg)
		}
		return nil, fmt.Errorf("separation: %s: %w", c.Path, err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("separation: %s produced no output", c.Path)
	}
	return stdout.Bytes(), nil
}

package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"text/template"
)

// RunFunc runs a shell command line and returns its combined output.
type RunFunc func(ctx context.Context, line string) ([]byte, error)

func shellRun(ctx context.Context, line string) ([]byte, error) {
	return exec.CommandContext(ctx, "sh", "-c", line).CombinedOutput()
}

// Command runs a local hook for each notice. The template sees .Message,
// already shell-quoted.
type Command struct {
	tmpl *template.Template
	run  RunFunc
}

// CommandOpts holds parameters for creating a Command notifier.
type CommandOpts struct {
	Template string // e.g. "logger -t bikereg {{.Message}}"
	Run      RunFunc
}

// NewCommand parses the hook template.
func NewCommand(opts CommandOpts) (*Command, error) {
	tmpl, err := template.New("notify").Option("missingkey=error").Parse(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("notify: command: parse template: %w", err)
	}
	run := opts.Run
	if run == nil {
		run = shellRun
	}
	return &Command{tmpl: tmpl, run: run}, nil
}

// Notify implements Notifier.
func (c *Command) Notify(ctx context.Context, text string) error {
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, map[string]string{"Message": shellQuote(text)}); err != nil {
		return fmt.Errorf("notify: command: render: %w", err)
	}
	if out, err := c.run(ctx, buf.String()); err != nil {
		return fmt.Errorf("notify: command: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// shellQuote wraps s in single quotes for sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

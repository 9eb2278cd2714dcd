package utils

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

type CmdExecutor struct {
	log *slog.Logger
}

func NewExecutor(log *slog.Logger) *CmdExecutor {
	return &CmdExecutor{
		log: log,
	}
}

func (c *CmdExecutor) ExecuteCommandWithOutput(ctx context.Context, command string, env []string, arg ...string) (string, error) {
	commandWithPath, err := exec.LookPath(command)
	if err != nil {
		return fmt.Sprintf("unable to find command:%s in path", command), err
	}

	c.log.Info("running command", "command", commandWithPath, "args", strings.Join(arg, " "))

	cmd := exec.CommandContext(ctx, commandWithPath, arg...)
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, env...)

	output, err := cmd.CombinedOutput()

	return strings.TrimSpace(string(output)), err
}

func (c *CmdExecutor) ExecWithStreamingOutput(ctx context.Context, command string) error {
	command = os.ExpandEnv(command)

	parts := strings.Fields(command)

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) // nolint:gosec

	c.log.Debug("running command", "command", cmd.Path, "args", strings.Join(cmd.Args, " "))

	cmd.Env = os.Environ()

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stdout

	return cmd.Run()
}

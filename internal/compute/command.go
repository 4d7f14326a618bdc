package compute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/store"
)

// ExitTempFail is the sysexits.h EX_TEMPFAIL code. A command exiting with
// it reports a transient failure.
const ExitTempFail = 75

// waitDelay bounds how long Run waits for orphaned children holding
// stderr open after the command was killed.
const waitDelay = 2 * time.Second

// maxStderrDetail caps the stderr excerpt attached to errors.
const maxStderrDetail = 512

// CommandComputer runs an external program once per record.
//
// Each argument has {id} and {rank} replaced by the place id and search
// rank. The same values are exported as GEOIDX_PLACE_ID and GEOIDX_RANK.
type CommandComputer struct {
	argv    []string
	timeout time.Duration
}

var _ Computer = (*CommandComputer)(nil)

// NewCommandComputer validates argv and returns a command computer.
// A zero timeout disables the per-record deadline.
func NewCommandComputer(argv []string, timeout time.Duration) (*CommandComputer, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, geoerrors.InvalidConfiguration("compute.command is empty", nil).
			WithSuggestion("Set compute.command to the program that indexes one place, e.g. [\"index-place\", \"{id}\"]")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, geoerrors.InvalidConfiguration(
			fmt.Sprintf("compute command %q not found", argv[0]), err)
	}
	return &CommandComputer{argv: append([]string(nil), argv...), timeout: timeout}, nil
}

// Compute implements Computer.
func (c *CommandComputer) Compute(ctx context.Context, rec store.Record) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	id := strconv.FormatInt(rec.ID, 10)
	rank := strconv.Itoa(rec.Rank)
	r := strings.NewReplacer("{id}", id, "{rank}", rank)

	args := make([]string, len(c.argv)-1)
	for i, a := range c.argv[1:] {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	cmd.Env = append(os.Environ(), "GEOIDX_PLACE_ID="+id, "GEOIDX_RANK="+rank)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if err == nil {
		return nil
	}
	return classifyCommandError(ctx, rec.ID, err, stderr.String())
}

func classifyCommandError(ctx context.Context, id int64, err error, stderr string) error {
	var ge *geoerrors.GeoError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		ge = geoerrors.New(geoerrors.ErrCodeComputeTimeout,
			fmt.Sprintf("compute command timed out for place %d", id), err)
	case ctx.Err() != nil:
		ge = geoerrors.TransientCompute(
			fmt.Sprintf("compute command interrupted for place %d", id), ctx.Err())
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Could not start the process at all.
			ge = geoerrors.TransientCompute(
				fmt.Sprintf("compute command failed to start for place %d", id), err)
			break
		}
		code := exitErr.ExitCode()
		if code == ExitTempFail {
			ge = geoerrors.TransientCompute(
				fmt.Sprintf("compute command reported a temporary failure for place %d", id), err)
		} else {
			ge = geoerrors.PermanentRecord(
				fmt.Sprintf("compute command exited with %d for place %d", code, id), err)
		}
		ge.WithDetail("exit_code", strconv.Itoa(code))
	}

	if s := strings.TrimSpace(stderr); s != "" {
		if len(s) > maxStderrDetail {
			s = s[len(s)-maxStderrDetail:]
		}
		ge.WithDetail("stderr", s)
	}
	return ge.WithDetail("place_id", strconv.FormatInt(id, 10))
}

package solver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCommand is the solver executable used when none is configured.
const DefaultCommand = "z3"

// Process runs an SMT-LIB2 solver as a child process per query, talking to
// it over stdin and stdout. Any solver that accepts a script on stdin works;
// z3 additionally gets its -T: timeout flag.
type Process struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// NewZ3 returns a backend for z3 reading from stdin.
func NewZ3(timeout time.Duration) *Process {
	return &Process{Command: DefaultCommand, Args: []string{"-in", "-smt2"}, Timeout: timeout}
}

func (p *Process) Check(ctx context.Context, q *Query) (*Result, error) {
	ctx, span := tracer.Start(ctx, "solver.check", trace.WithAttributes(
		attribute.String("query", q.Name),
		attribute.String("command", p.Command),
	))
	defer span.End()

	res, err := p.check(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("status", string(res.Status)))
	return res, nil
}

func (p *Process) check(ctx context.Context, q *Query) (*Result, error) {
	timeout := p.Timeout
	if q.Timeout > 0 {
		timeout = q.Timeout
	}
	args := append([]string(nil), p.Args...)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		if isZ3(p.Command) {
			args = append(args, fmt.Sprintf("-T:%d", int(math.Ceil(timeout.Seconds()))))
		}
	}

	script := Encode(q)
	cmd := exec.CommandContext(ctx, p.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", p.Command, err)
	}
	log.Debugf("%s: checking %s", p.Command, q.Name)

	res, talkErr := talk(stdin, bufio.NewReader(stdout), script)
	stdin.Close()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		reason := "cancelled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		return &Result{Status: Unknown, Reason: reason}, nil
	}
	if talkErr != nil {
		return nil, fmt.Errorf("%s: %w%s", p.Command, talkErr, stderrSuffix(&stderr))
	}
	if waitErr != nil && res == nil {
		return nil, fmt.Errorf("%s: %w%s", p.Command, waitErr, stderrSuffix(&stderr))
	}
	return res, nil
}

// talk sends the script, reads the verdict and asks for a model or a
// reason when there is one to ask for.
func talk(w io.Writer, r *bufio.Reader, script *Script) (*Result, error) {
	if _, err := io.WriteString(w, script.Text); err != nil {
		return nil, err
	}
	status, err := readStatus(r)
	if err != nil {
		return nil, err
	}

	switch status {
	case "unsat":
		io.WriteString(w, "(exit)\n")
		return &Result{Status: Unsat}, nil

	case "sat":
		res := &Result{Status: Sat}
		if script.GetValue == "" {
			io.WriteString(w, "(exit)\n")
			return res, nil
		}
		if _, err := io.WriteString(w, script.GetValue+"(exit)\n"); err != nil {
			return nil, err
		}
		rest, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		model, err := parseModel(string(rest), script.Observables)
		if err != nil {
			// the verdict stands without a witness
			log.Warningf("%s", err)
			return res, nil
		}
		res.Model = model
		return res, nil

	case "unknown":
		io.WriteString(w, "(get-info :reason-unknown)\n(exit)\n")
		rest, _ := io.ReadAll(r)
		return &Result{Status: Unknown, Reason: reasonUnknown(string(rest))}, nil
	}
	return nil, fmt.Errorf("unexpected solver output %q", status)
}

func readStatus(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			if strings.HasPrefix(line, "(error") {
				return "", errors.New(line)
			}
			return line, nil
		}
		if err != nil {
			if err == io.EOF {
				return "", errors.New("solver exited without an answer")
			}
			return "", err
		}
	}
}

// reasonUnknown extracts the text of (:reason-unknown "...").
func reasonUnknown(src string) string {
	exprs, err := parseSexprs(src)
	if err != nil || len(exprs) == 0 || exprs[0].Atom != nil || len(exprs[0].Items) != 2 {
		return "undecided"
	}
	reason := strings.Trim(exprs[0].Items[1].value(), `"`)
	if reason == "" {
		return "undecided"
	}
	return reason
}

func stderrSuffix(b *bytes.Buffer) string {
	s := strings.TrimSpace(b.String())
	if s == "" {
		return ""
	}
	return ": " + s
}

func isZ3(command string) bool {
	base := strings.TrimSuffix(filepath.Base(command), ".exe")
	return base == "z3"
}

// Available reports whether command can be found on PATH.
func Available(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

package procutil

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type fakeRunner struct {
	stdout []byte
	stderr []byte
	err    error
	delay  time.Duration
	calls  []Cmd
}

func (f *fakeRunner) Run(_ context.Context, c Cmd) ([]byte, []byte, error) {
	f.calls = append(f.calls, c)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.stdout, f.stderr, f.err
}

func TestSoftTimeoutFast(t *testing.T) {
	var late, done atomic.Int32
	err := SoftTimeout(context.Background(), time.Hour,
		func(time.Duration) { late.Add(1) },
		func(time.Duration) { done.Add(1) },
		func(context.Context) error { return nil },
	)
	if err != nil {
		t.Fatalf("SoftTimeout: %v", err)
	}
	if late.Load() != 0 || done.Load() != 0 {
		t.Errorf("callbacks fired for a fast call: late=%d done=%d", late.Load(), done.Load())
	}
}

func TestSoftTimeoutSlow(t *testing.T) {
	var late, done atomic.Int32
	err := SoftTimeout(context.Background(), time.Millisecond,
		func(time.Duration) { late.Add(1) },
		func(time.Duration) { done.Add(1) },
		func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("SoftTimeout: %v", err)
	}
	if done.Load() != 1 {
		t.Errorf("done fired %d times, want 1", done.Load())
	}
	// onLate runs on its own goroutine; by the time f returned it must have
	// been scheduled, but give it a moment to land.
	deadline := time.Now().Add(time.Second)
	for late.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if late.Load() != 1 {
		t.Errorf("late fired %d times, want 1", late.Load())
	}
}

func TestSoftTimeoutError(t *testing.T) {
	want := errors.New("boom")
	err := SoftTimeout(context.Background(), time.Hour,
		func(time.Duration) {}, func(time.Duration) {},
		func(context.Context) error { return want },
	)
	if !errors.Is(err, want) {
		t.Errorf("SoftTimeout err = %v, want %v", err, want)
	}
}

func TestRunLogged(t *testing.T) {
	logger := log.NewWithOptions(io.Discard, log.Options{})

	t.Run("success", func(t *testing.T) {
		r := &fakeRunner{stdout: []byte("out")}
		stdout, _, err := RunLogged(context.Background(), logger, r, Cmd{Name: "probe", Path: "true"}, time.Hour)
		if err != nil {
			t.Fatalf("RunLogged: %v", err)
		}
		if string(stdout) != "out" {
			t.Errorf("stdout = %q, want %q", stdout, "out")
		}
		if len(r.calls) != 1 {
			t.Fatalf("runner called %d times, want 1", len(r.calls))
		}
	})

	t.Run("failure names the command", func(t *testing.T) {
		r := &fakeRunner{stderr: []byte("bad"), err: errors.New("exit status 1")}
		_, stderr, err := RunLogged(context.Background(), logger, r, Cmd{Name: "probe", Path: "false"}, time.Hour)
		if err == nil {
			t.Fatal("RunLogged succeeded, want error")
		}
		if got := err.Error(); got != "running 'probe': exit status 1" {
			t.Errorf("err = %q, want %q", got, "running 'probe': exit status 1")
		}
		if string(stderr) != "bad" {
			t.Errorf("stderr = %q, want %q", stderr, "bad")
		}
	})
}

func TestExecRunner(t *testing.T) {
	stdout, _, err := ExecRunner{}.Run(context.Background(), Cmd{
		Name:  "echo",
		Path:  "sh",
		Args:  []string{"-c", "cat"},
		Stdin: "hello",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(stdout) != "hello" {
		t.Errorf("stdout = %q, want %q", stdout, "hello")
	}
}

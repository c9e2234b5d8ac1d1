// Package local narrates through an offline or command line synthesizer
// played on the local audio device.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/sparklereader/sparkle/internal/narration"
)

// maxTextSize bounds a single synthesis request.
const maxTextSize = 5000

// ErrEmptyText is returned when asked to synthesize nothing.
var ErrEmptyText = errors.New("text cannot be empty")

// Synthesizer turns text into 16-bit little-endian mono PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, rate float64, voice string) ([]byte, error)
	Voices() []narration.Voice
	SampleRate() int
}

func checkText(text string) error {
	if text == "" {
		return ErrEmptyText
	}
	if len(text) > maxTextSize {
		return fmt.Errorf("text too long: %d bytes (max %d)", len(text), maxTextSize)
	}
	return nil
}

// runCommand runs name with stdin pre-filled and returns stdout. On timeout
// the process is interrupted, then killed.
func runCommand(ctx context.Context, timeout time.Duration, stdin io.Reader, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(name, args...)
	cmd.Stdin = stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, stderr.String())
		}
	case <-ctx.Done():
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
			_ = cmd.Process.Kill()
			<-done
		}
		return nil, fmt.Errorf("%s: %w", name, ctx.Err())
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s produced no output, stderr: %s", name, stderr.String())
	}
	return stdout.Bytes(), nil
}

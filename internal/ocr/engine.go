package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"permitflow/internal/config"
	"permitflow/internal/services"
)

// ErrNotDigits reports a recognition failure: tesseract produced output that
// is not a pure numeric string. Callers treat this as retriable without
// consuming a login attempt.
var ErrNotDigits = errors.New("recognized text is not numeric")

// Engine runs CAPTCHA images through tesseract. One Engine is shared by all
// sessions; a semaphore bounds concurrent invocations because each one loads
// the recognition model from scratch.
type Engine struct {
	binary  string
	timeout time.Duration
	slots   chan struct{}
	runner  commandRunner
}

// commandRunner abstracts process execution for tests.
type commandRunner func(ctx context.Context, binary string, stdin []byte, args ...string) ([]byte, error)

// NewEngine builds the process-wide OCR engine from configuration.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		binary:  cfg.TesseractBinary(),
		timeout: time.Duration(cfg.OCR.Timeout) * time.Second,
		slots:   make(chan struct{}, cfg.OCR.MaxConcurrent),
		runner:  runTesseract,
	}
}

// NewEngineWithRunner builds an engine with a custom process runner (used in tests).
func NewEngineWithRunner(cfg *config.Config, runner commandRunner) *Engine {
	engine := NewEngine(cfg)
	engine.runner = runner
	return engine
}

// RecognizeDigits runs OCR over a PNG image and returns the recognized numeric
// string. It returns ErrNotDigits when the output is empty or contains
// anything besides ASCII digits.
func (e *Engine) RecognizeDigits(ctx context.Context, png []byte) (string, error) {
	if len(png) == 0 {
		return "", services.Wrap(services.ErrValidation, "ocr", "recognize", "empty image", nil)
	}

	select {
	case e.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-e.slots }()

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// Single text line, digits only. stdin/stdout keeps the image off disk.
	output, err := e.runner(runCtx, e.binary, png,
		"stdin", "stdout",
		"--psm", "7",
		"-c", "tessedit_char_whitelist=0123456789",
	)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "ocr", "recognize", "tesseract timed out", err)
		}
		return "", services.Wrap(services.ErrExternalTool, "ocr", "recognize", "tesseract failed", err)
	}

	text := strings.TrimSpace(string(output))
	if !isDigits(text) {
		return "", fmt.Errorf("%w: %q", ErrNotDigits, text)
	}
	return text, nil
}

func isDigits(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func runTesseract(ctx context.Context, binary string, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%w: %s", err, detail)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

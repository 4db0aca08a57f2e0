package ocr

//go:generate mockgen -source=engine.go -destination=../../testutils/mocks/ocr/mock_engine.go -package=ocrmocks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultLanguages is the tesseract language set used when none is configured.
const DefaultLanguages = "chi_sim+eng"

// ErrEmptyOutput is returned when the engine recognized no text.
var ErrEmptyOutput = errors.New("ocr produced no text")

// Engine recognizes text in a single image.
type Engine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// TesseractEngine runs the tesseract command line tool, feeding the image
// on stdin and reading the text from stdout.
type TesseractEngine struct {
	Command     string
	TessdataDir string
	Languages   string
}

// NewTesseractEngine creates a tesseract engine.
func NewTesseractEngine(command, tessdataDir, languages string) *TesseractEngine {
	if command == "" {
		command = "tesseract"
	}
	if languages == "" {
		languages = DefaultLanguages
	}

	return &TesseractEngine{
		Command:     command,
		TessdataDir: tessdataDir,
		Languages:   languages,
	}
}

// Args returns the command line arguments passed to tesseract.
func (e *TesseractEngine) Args() []string {
	args := []string{"stdin", "stdout", "-l", e.Languages}
	if e.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.TessdataDir)
	}
	return args
}

// Recognize implements Engine.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	cmd := exec.CommandContext(ctx, e.Command, e.Args()...)
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("run %s: %w: %s", e.Command, err, msg)
		}
		return "", fmt.Errorf("run %s: %w", e.Command, err)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", ErrEmptyOutput
	}

	return text, nil
}

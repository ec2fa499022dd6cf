package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/dotcommander/deepresearch/internal/present"
)

// drainStdin discards piped input so the writer on the other end of the
// pipe does not block.
func drainStdin() {
	if !present.IsInputTTY() {
		_, _ = io.Copy(io.Discard, os.Stdin)
	}
}

// readStdin returns piped input. Past MaxInputChars (unless --no-limit)
// the rest is dropped and a warning is logged.
func readStdin(cfg *config.Config) (string, error) {
	return readInput(bufio.NewReader(os.Stdin), cfg)
}

func readInput(r io.Reader, cfg *config.Config) (string, error) {
	limit := cfg.MaxInputChars
	if cfg.NoLimit || limit <= 0 {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(b), nil
	}

	b, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if dropped, _ := io.Copy(io.Discard, r); dropped > 0 {
		logging.L.Warn("piped input truncated", "kept", len(b), "dropped", dropped)
	}
	return string(b), nil
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
)

// terminalPicker asks the user for a directory path on the terminal. A
// preset path, when set, answers the next prompt without asking; commands
// taking a path argument use that.
type terminalPicker struct {
	preset string
}

func (p *terminalPicker) PickDirectory(ctx context.Context, defaultName string) (string, error) {
	if p.preset != "" {
		path := p.preset
		p.preset = ""
		return filepath.Abs(path)
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		// Non-interactive runs cannot prompt; treat as cancelled.
		return "", nil
	}
	fmt.Fprintf(os.Stderr, "Notes directory (e.g. ./%s, empty to cancel): ", defaultName)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", nil
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	return filepath.Abs(line)
}

package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// SelectFileWithFzf launches fzf over common image files found under
// startDir and returns the selected path. Requires both `find` and `fzf` on
// PATH; callers fall back to a typed prompt when it errors.
func SelectFileWithFzf(startDir string) (string, error) {
	if _, err := exec.LookPath("fzf"); err != nil {
		return "", fmt.Errorf("fzf not found in PATH: %w", err)
	}
	if startDir == "" {
		startDir = "."
	}

	find := exec.Command("find", startDir, "-type", "f",
		"(",
		"-iname", "*.png", "-o", "-iname", "*.jpg", "-o", "-iname", "*.jpeg",
		"-o", "-iname", "*.gif", "-o", "-iname", "*.bmp", "-o", "-iname", "*.tif",
		"-o", "-iname", "*.tiff", "-o", "-iname", "*.webp",
		")")
	var files bytes.Buffer
	find.Stdout = &files
	if err := find.Run(); err != nil {
		return "", fmt.Errorf("find failed: %w", err)
	}

	fzf := exec.Command("fzf", "--prompt", "image> ")
	fzf.Stdin = &files
	fzf.Stderr = os.Stderr
	var out bytes.Buffer
	fzf.Stdout = &out
	if err := fzf.Run(); err != nil {
		return "", fmt.Errorf("fzf selection cancelled: %w", err)
	}

	sel := strings.TrimSpace(out.String())
	if sel == "" {
		return "", fmt.Errorf("no file selected")
	}
	return sel, nil
}

// Package preview renders PDF previews of submitted documents by shelling
// out to a headless LibreOffice. Rendering is best effort; grading never
// depends on it.
package preview

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrConverterUnavailable indicates the soffice binary is not installed.
var ErrConverterUnavailable = errors.New("preview converter unavailable")

// Converter wraps the LibreOffice CLI.
type Converter struct {
	binary  string
	timeout time.Duration
	logger  zerolog.Logger
}

// New builds a converter. An empty binary defaults to "soffice".
func New(binary string, timeout time.Duration, logger zerolog.Logger) *Converter {
	if binary == "" {
		binary = "soffice"
	}
	return &Converter{
		binary:  binary,
		timeout: timeout,
		logger:  logger.With().Str("component", "preview_converter").Logger(),
	}
}

// ToPDF converts the document at path into a PDF next to it and returns the
// PDF path.
func (c *Converter) ToPDF(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath(c.binary); err != nil {
		return "", ErrConverterUnavailable
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	outDir := filepath.Dir(path)
	cmd := exec.CommandContext(ctx, c.binary, "--headless", "--convert-to", "pdf", path, "--outdir", outDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("preview conversion failed")
		return "", fmt.Errorf("convert %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(string(output)))
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(outDir, stem+".pdf"), nil
}

package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// renderOffice converts a Word document to PDF with a headless office binary
// and renders the PDF's first page.
func (c *Converter) renderOffice(ctx context.Context, path string) (string, error) {
	workDir, err := os.MkdirTemp(c.outputDir, "office-*")
	if err != nil {
		return "", fmt.Errorf("create office work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	cmd := exec.CommandContext(ctx, c.officeBinary,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", workDir,
		path,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s --convert-to pdf: %w: %s", c.officeBinary, err, strings.TrimSpace(string(output)))
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pdfPath := filepath.Join(workDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("office conversion produced no pdf: %w", err)
	}

	return c.renderPDF(ctx, pdfPath)
}

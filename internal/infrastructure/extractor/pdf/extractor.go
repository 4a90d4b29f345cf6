package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ragcore/ragcore/internal/core/domain"
	"github.com/ragcore/ragcore/internal/core/ports"
)

type Extractor struct{}

var _ ports.TextExtractor = (*Extractor)(nil)

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, filePath string) (string, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.WrapError(domain.ErrNotFound, "extract pdf", err)
		}
		return "", domain.WrapError(domain.ErrValidation, "extract pdf",
			fmt.Errorf("open %s: %w", filePath, err))
	}
	defer f.Close()

	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("buffer pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

package console

import (
	"bufio"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Moinster/SantaCam/internal/logsink"
	"github.com/Moinster/SantaCam/internal/still"
)

// sniffLen is the number of bytes used for content sniffing.
const sniffLen = 512

// IngestStillFromFile spools an uploaded image to a temporary file and shows
// it as the still. The previous still is released.
func (c *Console) IngestStillFromFile(ctx context.Context, name, mimeType string, r io.Reader) (*still.Ref, error) {
	params := map[string]interface{}{"name": name, "mime": mimeType}
	var ref *still.Ref
	err := c.audited(ctx, "still.ingest", params, func() error {
		var err error
		ref, err = c.ingest(name, mimeType, r)
		if err != nil {
			return err
		}
		c.holder.Set(ref)
		c.sink.Append(logsink.LevelOK, "Still frame ingested from device camera.", logsink.KindOK)
		return nil
	})
	return ref, err
}

func (c *Console) ingest(name, mimeType string, r io.Reader) (*still.Ref, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyUpload
	}

	detected := http.DetectContentType(head)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = detected
	}
	if base, _, perr := mime.ParseMediaType(mimeType); perr == nil {
		mimeType = base
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, mimeType)
	}

	f, err := os.CreateTemp(c.spoolDir, "still-*"+safeExt(name))
	if err != nil {
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}
	path := f.Name()

	n, err := io.Copy(f, io.LimitReader(br, c.maxUploadBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}
	if n > c.maxUploadBytes {
		os.Remove(path)
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, c.maxUploadBytes)
	}

	w, h := dimensions(path)
	return still.NewTemporary(still.SourceUpload, mimeType, path, n, w, h), nil
}

// dimensions reads the image header; unknown formats report zero.
func dimensions(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".bmp":
		return ext
	default:
		return ""
	}
}

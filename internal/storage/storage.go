// Package storage uploads post images and returns their public URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var storageLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	storageLogger = l
}

type ObjectStorage interface {
	// Upload stores body under key and returns its public URL.
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

var allowedImageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// ImageContentType returns the content type for an image filename, or false if the extension is not allowed.
func ImageContentType(filename string) (string, bool) {
	ct, ok := allowedImageExts[strings.ToLower(path.Ext(filename))]
	return ct, ok
}

// ObjectName builds "<prefix>/<unix-ms>-<uuid><ext>" for an uploaded file.
func ObjectName(prefix, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%d-%s%s", prefix, now.UnixMilli(), uuid.New().String(), ext)
}

// New picks the driver named in cfg.
func New(ctx context.Context, cfg config.StorageConfig, secrets config.Secrets) (ObjectStorage, error) {
	switch cfg.Driver {
	case "local", "":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	case "s3":
		return NewS3Storage(ctx, cfg, secrets.S3AccessKeyID, secrets.S3SecretAccessKey)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// Package inspector reads image properties without performing a full
// decode. It backs the scan command, which reports what a conversion run
// would do before any file is written.
package inspector

import (
	"fmt"
	"image"
	"os"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "github.com/deepteams/webp" // registers the webp format
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// ImageInfo describes a candidate file.
type ImageInfo struct {
	Path    string
	Format  string
	Width   int
	Height  int
	Size    int64
	TakenAt *time.Time
}

// Inspector reads image headers and EXIF metadata.
type Inspector struct {
	logger *logrus.Logger
}

// NewInspector returns a new Inspector.
func NewInspector(logger *logrus.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// Inspect returns the dimensions, format, byte size and (when present) the
// EXIF capture date of an image file. Only the header is decoded.
func (i *Inspector) Inspect(path string) (*ImageInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	info := &ImageInfo{
		Path:   path,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   fileInfo.Size(),
	}
	info.TakenAt = i.extractTakenAt(path)
	return info, nil
}

// extractTakenAt returns the EXIF capture date, or nil when the file
// carries no usable EXIF data. Absence is normal for PNG sources.
func (i *Inspector) extractTakenAt(path string) *time.Time {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}

	if tm, err := x.DateTime(); err == nil {
		i.logger.Debugf("Extracted DateTime from EXIF: %v for file %s", tm, path)
		return &tm
	}

	if field, err := x.Get(exif.DateTimeOriginal); err == nil {
		if dateStr, err := field.StringVal(); err == nil {
			if tm, err := time.Parse("2006:01:02 15:04:05", dateStr); err == nil {
				i.logger.Debugf("Extracted DateTimeOriginal from EXIF: %v for file %s", tm, path)
				return &tm
			}
		}
	}

	return nil
}

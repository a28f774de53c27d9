package converter

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deepteams/webp"
	"github.com/disintegration/imaging"
)

// DefaultConverter is the default implementation of the Converter interface.
type DefaultConverter struct {
	hook ResultHookFunc
}

// NewDefaultConverter creates a new DefaultConverter instance.
func NewDefaultConverter() *DefaultConverter {
	return &DefaultConverter{}
}

// NewDefaultConverterWithHook creates a DefaultConverter that invokes hook
// after each file (used to stream progress to the console or a WebSocket).
func NewDefaultConverterWithHook(hook ResultHookFunc) *DefaultConverter {
	return &DefaultConverter{hook: hook}
}

// Convert performs the batch conversion according to the provided parameters.
func (c *DefaultConverter) Convert(ctx context.Context, params ConversionParams) ([]ConversionResult, error) {
	candidates, err := ListCandidates(params.SourceDir, params.Extensions)
	if err != nil {
		return nil, err
	}

	results := make([]ConversionResult, 0, len(candidates))
	for _, name := range candidates {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		res := c.convertOne(name, params)
		results = append(results, res)
		if c.hook != nil {
			c.hook(res)
		}
	}
	return results, nil
}

// ListCandidates lists the directory (non-recursive) and returns the names
// of files whose lowercased extension is in the recognized set. A missing or
// unreadable directory is reported as a *DirectoryAccessError.
func ListCandidates(dir string, extensions []string) ([]string, error) {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DirectoryAccessError{Dir: dir, Err: err}
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := extSet[ext]; ok {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// OutputPath returns the destination path for a source image: same
// directory, same basename, extension replaced with .webp.
func OutputPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".webp"
}

// convertOne runs the full decode/resize/encode pipeline for a single file.
// Every failure is folded into the result; nothing escapes to the batch.
func (c *DefaultConverter) convertOne(name string, params ConversionParams) ConversionResult {
	start := time.Now()
	inputPath := filepath.Join(params.SourceDir, name)
	res := ConversionResult{
		InputPath:  inputPath,
		OutputPath: OutputPath(inputPath),
		StartedAt:  start,
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return res.fail(FailureDecode, fmt.Errorf("stat error: %w", err))
	}
	res.OriginalSize = info.Size()

	// An empty source can neither decode nor yield a meaningful savings
	// percentage; report it instead of dividing by zero later.
	if res.OriginalSize == 0 {
		return res.fail(FailureSize, fmt.Errorf("source file is empty"))
	}

	var openOpts []imaging.DecodeOption
	if params.AutoOrient {
		openOpts = append(openOpts, imaging.AutoOrientation(true))
	}
	img, err := imaging.Open(inputPath, openOpts...)
	if err != nil {
		return res.fail(FailureDecode, fmt.Errorf("decode error: %w", err))
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if params.MaxWidth > 0 && width > params.MaxWidth {
		// Integer division floors the height, keeping the aspect ratio.
		newHeight := height * params.MaxWidth / width
		if newHeight < 1 {
			return res.fail(FailureResize, fmt.Errorf("resize would produce zero height for %dx%d", width, height))
		}
		img = imaging.Resize(img, params.MaxWidth, newHeight, imaging.Lanczos)
		width, height = params.MaxWidth, newHeight
		res.Resized = true
	}
	res.Width, res.Height = width, height

	if params.DryRun {
		res.Action = "planned"
		res.Message = "dry run, no file written"
		res.Success = true
		res.FinishedAt = time.Now()
		return res
	}

	if err := encodeWebP(img, res.OutputPath, params.Quality, params.Method); err != nil {
		return res.fail(FailureEncode, err)
	}

	outInfo, err := os.Stat(res.OutputPath)
	if err != nil {
		return res.fail(FailureSize, fmt.Errorf("stat output error: %w", err))
	}
	res.ConvertedSize = outInfo.Size()
	res.PercentageSaved = float64(res.OriginalSize-res.ConvertedSize) * 100 / float64(res.OriginalSize)

	res.Action = "converted"
	res.Message = "Image converted"
	res.Success = true
	res.FinishedAt = time.Now()
	return res
}

// encodeWebP writes img as lossy WebP to outPath. The encode goes to a
// sibling temp file first and is renamed into place on success, so an
// encode failure never leaves a truncated .webp behind. An existing output
// file is overwritten by the rename.
func encodeWebP(img image.Image, outPath string, quality, method int) error {
	opts := webp.OptionsForPreset(webp.PresetPhoto, float32(quality))
	opts.Method = method

	tmpPath := outPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create output error: %w", err)
	}

	if err := webp.Encode(f, img, opts); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode error: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write output error: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename error: %w", err)
	}
	return nil
}

// fail finalizes a result on the per-file failure path.
func (r ConversionResult) fail(kind FailureKind, err error) ConversionResult {
	r.Action = "error"
	r.Kind = kind
	r.Message = err.Error()
	r.Error = err
	r.FinishedAt = time.Now()
	return r
}

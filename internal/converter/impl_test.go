package converter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/deepteams/webp"
)

// testParams returns parameters tuned for fast test encodes.
func testParams(dir string) ConversionParams {
	return ConversionParams{
		SourceDir:  dir,
		Extensions: []string{".jpg", ".jpeg", ".png"},
		MaxWidth:   100,
		Quality:    80,
		Method:     0,
		AutoOrient: true,
	}
}

func newTestImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, newTestImage(w, h)); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, newTestImage(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func decodeWebPSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, err := webp.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"jpg", "/photos/a.jpg", "/photos/a.webp"},
		{"jpeg", "/photos/b.jpeg", "/photos/b.webp"},
		{"png", "/photos/c.png", "/photos/c.webp"},
		{"uppercase extension", "/photos/D.PNG", "/photos/D.webp"},
		{"dotted basename", "/photos/a.b.jpg", "/photos/a.b.webp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputPath(tt.in)
			if got != tt.want {
				t.Errorf("OutputPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestListCandidates(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 10, 10)
	writeJPEG(t, filepath.Join(dir, "b.JPG"), 10, 10)
	if err := os.WriteFile(filepath.Join(dir, "c.txt"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755); err != nil {
		t.Fatal(err)
	}

	names, err := ListCandidates(dir, []string{".jpg", ".jpeg", ".png"})
	if err != nil {
		t.Fatalf("ListCandidates() error = %v", err)
	}

	want := map[string]bool{"a.png": true, "b.JPG": true}
	if len(names) != len(want) {
		t.Fatalf("ListCandidates() = %v, want %d entries", names, len(want))
	}
	for _, name := range names {
		if !want[name] {
			t.Errorf("unexpected candidate %q", name)
		}
	}
}

func TestListCandidates_MissingDirectory(t *testing.T) {
	_, err := ListCandidates(filepath.Join(t.TempDir(), "nope"), []string{".jpg"})
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	var dirErr *DirectoryAccessError
	if !errors.As(err, &dirErr) {
		t.Errorf("error = %T, want *DirectoryAccessError", err)
	}
}

func TestConvert_MixedDirectory(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "a.jpg"), 80, 60)
	writePNG(t, filepath.Join(dir, "b.png"), 220, 140)
	if err := os.WriteFile(filepath.Join(dir, "c.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	results, err := NewDefaultConverter().Convert(context.Background(), testParams(dir))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Convert() returned %d results, want 2", len(results))
	}

	for _, res := range results {
		if !res.Success {
			t.Errorf("%s: conversion failed: %s", res.InputPath, res.Message)
		}
	}

	// a.jpg is below the width limit and keeps its resolution.
	if w, h := decodeWebPSize(t, filepath.Join(dir, "a.webp")); w != 80 || h != 60 {
		t.Errorf("a.webp is %dx%d, want 80x60", w, h)
	}

	// b.png exceeds the limit: width clamps to 100, height floors to
	// 140*100/220 = 63.
	if w, h := decodeWebPSize(t, filepath.Join(dir, "b.webp")); w != 100 || h != 63 {
		t.Errorf("b.webp is %dx%d, want 100x63", w, h)
	}

	// c.txt is never touched and produces no output.
	if _, err := os.Stat(filepath.Join(dir, "c.webp")); !os.IsNotExist(err) {
		t.Error("c.webp should not exist")
	}
}

func TestConvert_ReportsSavings(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "a.jpg"), 64, 48)

	results, err := NewDefaultConverter().Convert(context.Background(), testParams(dir))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	res := results[0]

	if res.OriginalSize <= 0 || res.ConvertedSize <= 0 {
		t.Fatalf("sizes not recorded: original=%d converted=%d", res.OriginalSize, res.ConvertedSize)
	}
	want := float64(res.OriginalSize-res.ConvertedSize) * 100 / float64(res.OriginalSize)
	if res.PercentageSaved != want {
		t.Errorf("PercentageSaved = %f, want %f", res.PercentageSaved, want)
	}
}

func TestConvert_CorruptFileContinues(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.jpg"), []byte("definitely not a jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "good.png"), 30, 20)

	results, err := NewDefaultConverter().Convert(context.Background(), testParams(dir))
	if err != nil {
		t.Fatalf("Convert() error = %v, want nil (per-file failures must not abort)", err)
	}
	if len(results) != 2 {
		t.Fatalf("Convert() returned %d results, want 2", len(results))
	}

	var failed, succeeded int
	for _, res := range results {
		if res.Success {
			succeeded++
			continue
		}
		failed++
		if res.Kind != FailureDecode {
			t.Errorf("%s: kind = %q, want %q", res.InputPath, res.Kind, FailureDecode)
		}
	}
	if failed != 1 || succeeded != 1 {
		t.Errorf("failed=%d succeeded=%d, want 1 and 1", failed, succeeded)
	}

	if _, err := os.Stat(filepath.Join(dir, "good.webp")); err != nil {
		t.Errorf("good.webp missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.webp")); !os.IsNotExist(err) {
		t.Error("bad.webp should not exist")
	}
}

func TestConvert_EmptySource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "empty.jpg"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	results, err := NewDefaultConverter().Convert(context.Background(), testParams(dir))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	res := results[0]

	if res.Success {
		t.Fatal("empty source should fail")
	}
	if res.Kind != FailureSize {
		t.Errorf("kind = %q, want %q", res.Kind, FailureSize)
	}
	if _, err := os.Stat(filepath.Join(dir, "empty.webp")); !os.IsNotExist(err) {
		t.Error("empty.webp should not exist")
	}
}

func TestConvert_DryRun(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 150, 100)

	params := testParams(dir)
	params.DryRun = true

	results, err := NewDefaultConverter().Convert(context.Background(), params)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	res := results[0]

	if !res.Success || res.Action != "planned" {
		t.Errorf("result = %q/%v, want planned/success", res.Action, res.Success)
	}
	if !res.Resized {
		t.Error("dry run should still report the pending resize")
	}
	if res.Width != 100 || res.Height != 66 {
		t.Errorf("planned size %dx%d, want 100x66", res.Width, res.Height)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.webp")); !os.IsNotExist(err) {
		t.Error("dry run must not write output files")
	}
}

func TestConvert_OverwritesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, filepath.Join(dir, "a.jpg"), 40, 30)
	if err := os.WriteFile(filepath.Join(dir, "a.webp"), []byte("stale"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewDefaultConverter().Convert(context.Background(), testParams(dir)); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}

	if w, h := decodeWebPSize(t, filepath.Join(dir, "a.webp")); w != 40 || h != 30 {
		t.Errorf("a.webp is %dx%d, want 40x30 (stale output not replaced)", w, h)
	}
}

func TestConvert_WidthAtLimitNotResized(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "edge.png"), 100, 400)

	results, err := NewDefaultConverter().Convert(context.Background(), testParams(dir))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	res := results[0]

	if res.Resized {
		t.Error("image at exactly the width limit must not be resized")
	}
	// Height is never independently capped.
	if w, h := decodeWebPSize(t, filepath.Join(dir, "edge.webp")); w != 100 || h != 400 {
		t.Errorf("edge.webp is %dx%d, want 100x400", w, h)
	}
}

func TestConvert_ResizeHeightFloors(t *testing.T) {
	dir := t.TempDir()
	// 250*100/333 = 75.07..., which must floor to 75.
	writePNG(t, filepath.Join(dir, "f.png"), 333, 250)

	if _, err := NewDefaultConverter().Convert(context.Background(), testParams(dir)); err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if w, h := decodeWebPSize(t, filepath.Join(dir, "f.webp")); w != 100 || h != 75 {
		t.Errorf("f.webp is %dx%d, want 100x75", w, h)
	}
}

func TestConvert_HookSeesEveryResult(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 20, 20)
	writeJPEG(t, filepath.Join(dir, "b.jpg"), 20, 20)

	var seen []string
	conv := NewDefaultConverterWithHook(func(res ConversionResult) {
		seen = append(seen, filepath.Base(res.InputPath))
	})
	results, err := conv.Convert(context.Background(), testParams(dir))
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if len(seen) != len(results) {
		t.Errorf("hook saw %d results, want %d", len(seen), len(results))
	}
}

func TestReportLine(t *testing.T) {
	tests := []struct {
		name string
		res  ConversionResult
		want string
	}{
		{
			"converted",
			ConversionResult{
				InputPath:       "/p/photo.jpg",
				Action:          "converted",
				OriginalSize:    51200,
				ConvertedSize:   25600,
				PercentageSaved: 50,
			},
			"Converted photo.jpg: 50.0KB -> 25.0KB (50.0% saved)",
		},
		{
			"error",
			ConversionResult{
				InputPath: "/p/bad.png",
				Action:    "error",
				Message:   "decode error: bad header",
			},
			"Failed to convert bad.png: decode error: bad header",
		},
		{
			"planned",
			ConversionResult{
				InputPath: "/p/big.png",
				Action:    "planned",
				Width:     1920,
				Height:    1080,
			},
			"Would convert big.png (1920x1080)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.ReportLine(); got != tt.want {
				t.Errorf("ReportLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvert_Cancellation(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewDefaultConverter().Convert(ctx, testParams(dir))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results after pre-cancelled context, want 0", len(results))
	}
}

package app

import (
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/soocke/icon-scan-go/config"
	"github.com/soocke/icon-scan-go/output"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noiseImg(w, h int, seed uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	s := seed
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s = s*1664525 + 1013904223
			v := uint8(s >> 24)
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func TestRunBatchEndToEnd(t *testing.T) {
	iconsDir := t.TempDir()
	shotsDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "detections")

	tile := noiseImg(32, 32, 7)
	writePNG(t, filepath.Join(iconsDir, "coin.png"), tile)

	shot1 := image.NewRGBA(image.Rect(0, 0, 200, 150))
	draw.Draw(shot1, shot1.Bounds(), image.NewUniform(color.RGBA{R: 50, G: 50, B: 50, A: 255}), image.Point{}, draw.Src)
	draw.Draw(shot1, image.Rect(100, 100, 132, 132), tile, image.Point{}, draw.Src)
	writePNG(t, filepath.Join(shotsDir, "shot1.png"), shot1)

	shot2 := image.NewRGBA(image.Rect(0, 0, 200, 150))
	draw.Draw(shot2, shot2.Bounds(), image.NewUniform(color.RGBA{R: 50, G: 50, B: 50, A: 255}), image.Point{}, draw.Src)
	writePNG(t, filepath.Join(shotsDir, "shot2.png"), shot2)

	if err := os.WriteFile(filepath.Join(shotsDir, "bad.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write bad.png: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.ScaleMin = 0.5
	cfg.ScaleMax = 1.0
	cfg.ScaleSteps = 3
	cfg.SearchFraction = 0.5

	summary, err := NewApp(cfg, quiet()).RunBatch(iconsDir, shotsDir, outDir)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Frames != 2 || summary.SkippedFrames != 1 {
		t.Fatalf("frames %d skipped %d, want 2 and 1", summary.Frames, summary.SkippedFrames)
	}
	if summary.TotalMatches != 1 {
		t.Fatalf("total matches %d, want 1", summary.TotalMatches)
	}
	if summary.Threshold != cfg.Threshold {
		t.Fatalf("summary threshold %v, want %v", summary.Threshold, cfg.Threshold)
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "detection_results.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var got output.Summary
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if len(got.Results) != 2 {
		t.Fatalf("got %d frame reports, want 2", len(got.Results))
	}

	first := got.Results[0]
	if first.Frame != "shot1" || first.TotalMatches != 1 {
		t.Fatalf("first report %+v, want shot1 with one match", first)
	}
	if first.Annotated != "detected_shot1.png" {
		t.Fatalf("annotated %q, want detected_shot1.png", first.Annotated)
	}
	if _, err := os.Stat(filepath.Join(outDir, first.Annotated)); err != nil {
		t.Fatalf("annotated image missing: %v", err)
	}
	if first.Region != [4]int{0, 75, 200, 150} {
		t.Fatalf("region %v, want the bottom half", first.Region)
	}
	if len(first.Icons) != 1 || first.Icons[0].Icon != "coin" {
		t.Fatalf("icons %+v, want just coin", first.Icons)
	}
	m := first.Icons[0].Matches[0]
	if m.Position != [2]int{100, 100} || m.Size != [2]int{32, 32} {
		t.Fatalf("match %+v, want the pasted tile at (100,100) size 32x32", m)
	}
	if m.Confidence < 0.99 {
		t.Fatalf("confidence %.4f, want ~1 for an exact paste", m.Confidence)
	}

	second := got.Results[1]
	if second.Frame != "shot2" || second.TotalMatches != 0 || second.Annotated != "" {
		t.Fatalf("second report %+v, want shot2 with no matches", second)
	}
	if _, err := os.Stat(filepath.Join(outDir, "detected_shot2.png")); !os.IsNotExist(err) {
		t.Fatalf("matchless frame still produced an annotated image: %v", err)
	}
}

func TestRunBatchEmptyShotsDirFails(t *testing.T) {
	iconsDir := t.TempDir()
	writePNG(t, filepath.Join(iconsDir, "coin.png"), noiseImg(16, 16, 3))

	_, err := NewApp(config.DefaultConfig(), quiet()).RunBatch(iconsDir, t.TempDir(), filepath.Join(t.TempDir(), "out"))
	if err == nil {
		t.Fatal("RunBatch accepted an empty screenshots directory")
	}
}

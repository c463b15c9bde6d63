package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
)

// CreateThumbnail implements backend.Backend. A frame from the middle of the
// source is extracted with ffmpeg and scaled to fit the configured size.
func (b *Backend) CreateThumbnail(ctx context.Context, videoID, thumbnailID string) error {
	src, err := b.sourcePath(videoID)
	if err != nil {
		return err
	}
	dst, err := b.makeFilePath(videoID, "thumbs", thumbnailID+".jpg")
	if err != nil {
		return err
	}

	offset := 0.0
	if info, err := b.probe(ctx, b.ffprobeBinary, src); err == nil && info.Duration > 0 {
		offset = info.Duration.Seconds() / 2
	}
	frame := filepath.Join(filepath.Dir(dst), thumbnailID+".frame.png")
	defer os.Remove(frame)
	if err := b.run(ctx, b.ffmpegBinary,
		"-y",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		frame,
	); err != nil {
		return fmt.Errorf("extract thumbnail frame: %w", err)
	}
	return resizeThumbnail(frame, dst, b.thumbnailSize)
}

func resizeThumbnail(src, dst string, size int) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open thumbnail frame: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > size || bounds.Dy() > size {
		img = imaging.Fit(img, size, size, imaging.Lanczos)
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("save thumbnail: %w", err)
	}
	return nil
}

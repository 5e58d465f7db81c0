package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Converter turns an uploaded recording into a WAV file the transcription
// worker accepts.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// FFmpegConverter shells out to ffmpeg for container/codec conversion. Mobile
// uploads arrive as m4a or webm depending on the phone, and reimplementing
// those decoders is not this service's business.
type FFmpegConverter struct {
	bin string
}

func NewFFmpegConverter(bin string) *FFmpegConverter {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegConverter{bin: bin}
}

func (c *FFmpegConverter) Convert(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, c.bin, "-y", "-i", src, dst)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s -> %s: %w: %s", src, dst, err, bytes.TrimSpace(out))
	}
	return nil
}

package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DecodeFFmpeg decodes any container ffmpeg understands into a mono buffer
// at rate, reading signed 16-bit little-endian PCM from its stdout.
func DecodeFFmpeg(ctx context.Context, bin, path string, rate int) (*Buffer, error) {
	if strings.TrimSpace(bin) == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-nostdin",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("ffmpeg decode %s: %w: %s", path, err, detail)
		}
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	return decodeS16LE(stdout.Bytes(), rate), nil
}

func decodeS16LE(raw []byte, rate int) *Buffer {
	frames := len(raw) / 2
	samples := make([]float64, frames)
	scale := fullScale(16)
	for i := 0; i < frames; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float64(v) / scale
	}
	return FromMono(rate, samples)
}

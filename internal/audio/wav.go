package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"misophonia/internal/fileutil"
)

// ErrNotWAV is returned when a file is not a PCM WAV the decoder understands.
var ErrNotWAV = errors.New("not a PCM wav file")

// Info describes a WAV file without decoding its samples.
type Info struct {
	Rate     int
	Channels int
	BitDepth int
	Frames   int64
	Duration time.Duration
}

// Probe reads the WAV header of path.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Info{}, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	if err := dec.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("%s: locate pcm chunk: %w", path, err)
	}
	info := Info{
		Rate:     int(dec.SampleRate),
		Channels: int(dec.NumChans),
		BitDepth: int(dec.BitDepth),
	}
	if bytesPerFrame := int64(info.Channels) * int64(info.BitDepth/8); bytesPerFrame > 0 {
		info.Frames = dec.PCMLen() / bytesPerFrame
	}
	if info.Rate > 0 {
		info.Duration = time.Duration(float64(info.Frames) / float64(info.Rate) * float64(time.Second))
	}
	return info, nil
}

// ReadWAV decodes a PCM WAV file into a float buffer scaled to [-1, 1).
func ReadWAV(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// DecodeWAV decodes a PCM WAV stream.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	channels := int(dec.NumChans)
	depth := int(dec.BitDepth)
	if channels <= 0 || depth <= 0 {
		return nil, ErrNotWAV
	}
	scale := fullScale(depth)
	frames := len(pcm.Data) / channels
	out := New(int(dec.SampleRate), channels, frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out.Channels[c][i] = float64(pcm.Data[i*channels+c]) / scale
		}
	}
	return out, nil
}

// WriteWAV encodes buf as PCM at bitDepth and atomically replaces path.
// Samples are rounded to the nearest PCM step and clamped, matching Quantize.
func WriteWAV(path string, buf *Buffer, bitDepth int) error {
	return fileutil.WriteAtomic(path, func(w io.WriteSeeker) error {
		return EncodeWAV(w, buf, bitDepth)
	})
}

// EncodeWAV writes buf as a PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, buf *Buffer, bitDepth int) error {
	channels := buf.NumChannels()
	if channels == 0 {
		return errors.New("encode wav: buffer has no channels")
	}
	frames := buf.Frames()
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			data[i*channels+c] = toPCM(buf.Channels[c][i], bitDepth)
		}
	}
	enc := wav.NewEncoder(w, buf.Rate, bitDepth, channels, 1)
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: buf.Rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// Quantize snaps every sample to the PCM grid of bitDepth so that a buffer
// written with WriteWAV and read back with ReadWAV is bit-identical.
func Quantize(buf *Buffer, bitDepth int) {
	scale := fullScale(bitDepth)
	for _, ch := range buf.Channels {
		for i, v := range ch {
			ch[i] = float64(toPCM(v, bitDepth)) / scale
		}
	}
}

func fullScale(bitDepth int) float64 {
	return math.Ldexp(1, bitDepth-1)
}

func toPCM(v float64, bitDepth int) int {
	scale := fullScale(bitDepth)
	k := math.Round(v * scale)
	if k > scale-1 {
		k = scale - 1
	}
	if k < -scale {
		k = -scale
	}
	if math.IsNaN(k) {
		k = 0
	}
	return int(k)
}

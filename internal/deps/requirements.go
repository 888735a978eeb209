package deps

import (
	"slices"

	"misophonia/internal/config"
)

// Requirements lists the external binaries for cfg. 7-Zip is only required
// when FSD50K is a configured source, since its archives are multi-part.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Decodes source clips that are not PCM WAV",
			Optional:    true,
		},
		{
			Name:        "7-Zip",
			Command:     cfg.SevenZipBinary(),
			Description: "Extracts multi-part FSD50K archives",
			Optional:    !slices.Contains(cfg.Generation.Sources, "fsd50k"),
		},
	}
}

// Missing returns the non-optional requirements that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

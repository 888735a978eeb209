package config

const (
	defaultDataDir           = "~/.local/share/misophonia"
	defaultLogDir            = "~/.local/share/misophonia/logs"
	defaultSaveDirName       = "generated"
	defaultSampleRate        = 44100
	defaultBitDepth          = 16
	defaultItemSeconds       = 5.0
	defaultHRIRSource        = "synthetic"
	defaultHRIRGlob          = "**/D2_HRIR_WAV/48K_24bit/azi_*_ele_*.wav"
	defaultDirectionPolicy   = "snap"
	defaultAzimuthStep       = 15.0
	defaultResampleHalfWidth = 32
	defaultCacheEntries      = 512
	defaultPeakCeilingDBFS   = -1.0
	defaultCrossfadeMS       = 50.0
	defaultReferenceRMSDBFS  = -20.0
	defaultTriggerRatio      = 0.5
	defaultSeed              = 42
	defaultPairsPerCategory  = 2
	defaultDownloadTimeout   = 600
	defaultDownloadAttempts  = 5
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			CacheDir: defaultCacheDir(),
		},
		Audio: Audio{
			SampleRate:  defaultSampleRate,
			BitDepth:    defaultBitDepth,
			ItemSeconds: defaultItemSeconds,
		},
		Render: Render{
			HRIRSource:        defaultHRIRSource,
			HRIRGlob:          defaultHRIRGlob,
			DirectionPolicy:   defaultDirectionPolicy,
			AzimuthStep:       defaultAzimuthStep,
			Elevations:        []float64{0},
			ResampleHalfWidth: defaultResampleHalfWidth,
			CacheEntries:      defaultCacheEntries,
		},
		Mix: Mix{
			PeakCeilingDBFS:  defaultPeakCeilingDBFS,
			CrossfadeMS:      defaultCrossfadeMS,
			ReferenceRMSDBFS: defaultReferenceRMSDBFS,
			ForegroundGainDB: []float64{-6, 0},
			BackgroundGainDB: []float64{-18, -9},
		},
		Generation: Generation{
			TriggerRatio:     defaultTriggerRatio,
			MinForegrounds:   1,
			MaxForegrounds:   1,
			Seed:             defaultSeed,
			PairsPerCategory: defaultPairsPerCategory,
			PartitionSplits:  true,
			Sources:          []string{"foams", "esc50", "fsd50k"},
		},
		Download: Download{
			TimeoutSeconds: defaultDownloadTimeout,
			Attempts:       defaultDownloadAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

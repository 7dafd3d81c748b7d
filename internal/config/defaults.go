package config

import "runtime"

const (
	defaultStateDir      = "~/.local/share/cadence"
	defaultLogDir        = "~/.local/share/cadence/logs"
	defaultAPIBind       = "127.0.0.1:3000"
	defaultAcceptedType  = "video/mp4"
	defaultMaxSize       = "20MiB"
	defaultFormField     = "videoFile"
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultCodec         = "libmp3lame"
	defaultBitrate       = "192k"
	defaultQuality       = 2
	defaultFormat        = "mp3"
	defaultExtension     = "mp3"
	defaultTimeout       = 300

	defaultFailureRetention = 900
	defaultDeliveryGrace    = 60
	defaultSweepInterval    = 30
	defaultOrphanMaxAge     = 3600
	defaultHistoryDays      = 7
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir(),
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Upload: Upload{
			AcceptedType: defaultAcceptedType,
			MaxSize:      defaultMaxSize,
			FormField:    defaultFormField,
		},
		Transcode: Transcode{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			Codec:          defaultCodec,
			Bitrate:        defaultBitrate,
			Quality:        defaultQuality,
			StripVideo:     true,
			Format:         defaultFormat,
			Extension:      defaultExtension,
			TimeoutSeconds: defaultTimeout,
			MaxConcurrent:  runtime.NumCPU(),
		},
		Jobs: Jobs{
			FailureRetentionSeconds: defaultFailureRetention,
			DeliveryGraceSeconds:    defaultDeliveryGrace,
			SweepIntervalSeconds:    defaultSweepInterval,
			OrphanMaxAgeSeconds:     defaultOrphanMaxAge,
			HistoryRetentionDays:    defaultHistoryDays,
		},
		Logging: Logging{
			Format:        "console",
			Level:         "info",
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

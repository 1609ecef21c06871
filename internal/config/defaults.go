package config

const (
	defaultDataDir              = "~/.local/share/artdedup"
	defaultLogDir               = "~/.local/share/artdedup/logs"
	defaultImageDir             = "~/.local/share/artdedup/images"
	defaultAPIBind              = "127.0.0.1:7493"
	defaultImageThreshold       = 0.80
	defaultTitleThreshold       = 0.85
	defaultMetadataThreshold    = 0.75
	defaultCombinedThreshold    = 0.80
	defaultYearWindow           = 5
	defaultBatchSize            = 500
	defaultWorkers              = 4
	defaultMissingFields        = MissingFieldsRenormalize
	defaultScanRetentionMinutes = 60
	defaultNumberPrefix         = "ART"
	defaultNumberWidth          = 5
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Missing-field policies for the metadata comparator.
const (
	MissingFieldsRenormalize = "renormalize"
	MissingFieldsZero        = "zero"
)

// DetectionMethods lists the method names accepted in dedup.methods.
var DetectionMethods = []string{"image_hash", "title", "metadata", "combined"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			ImageDir: defaultImageDir,
			APIBind:  defaultAPIBind,
		},
		Dedup: Dedup{
			ImageThreshold:       defaultImageThreshold,
			TitleThreshold:       defaultTitleThreshold,
			MetadataThreshold:    defaultMetadataThreshold,
			CombinedThreshold:    defaultCombinedThreshold,
			YearWindow:           defaultYearWindow,
			BatchSize:            defaultBatchSize,
			Workers:              defaultWorkers,
			MissingFields:        defaultMissingFields,
			Methods:              append([]string(nil), DetectionMethods...),
			ScanRetentionMinutes: defaultScanRetentionMinutes,
		},
		Catalog: Catalog{
			NumberPrefix: defaultNumberPrefix,
			NumberWidth:  defaultNumberWidth,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

import "flag"

// Flags are the command-line overrides shared by every mmdtool command.
type Flags struct {
	Config     string
	Debug      bool
	LogFile    string
	FrameCount string
	RawNames   bool
	ModelName  string
}

// Register adds the shared flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log", "", "Also write logs to this file")
	fs.StringVar(&f.FrameCount, "frames", "", "Frame count mode: keys or last_frame")
	fs.BoolVar(&f.RawNames, "raw-names", false, "Match motion names without Shift-JIS conversion")
	fs.StringVar(&f.ModelName, "model-name", "", "Model name written to exported motions")
}

// apply applies flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.FrameCount != "" {
		cfg.Import.FrameCount = f.FrameCount
	}
	if f.RawNames {
		cfg.Import.NameEncoding = NameEncodingRaw
	}
	if f.ModelName != "" {
		cfg.Export.ModelName = f.ModelName
	}
}

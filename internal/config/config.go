// Package config loads optional ipsniffer settings from a config file and
// merges them with command-line flags.
//
// Config files may be written in JSONC (JSON with comments, as used by many
// developer tools) or YAML. JSONC files are cleaned with
// github.com/tidwall/jsonc before parsing with encoding/json; YAML files are
// parsed with gopkg.in/yaml.v3.
//
// Precedence, highest first: flags set explicitly on the command line, the
// config file, built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/ipsniffer/internal/model"
)

// Flag names shared between the CLI and Apply. Keeping them here ties the
// merge logic to the exact flags the CLI registers.
const (
	FlagThreads    = "threads"
	FlagTimeout    = "timeout"
	FlagOutput     = "output"
	FlagNoProgress = "no-progress"
)

// candidateNames are the file names Find looks for, in priority order.
var candidateNames = []string{
	".ipsniffer.jsonc",
	".ipsniffer.json",
	".ipsniffer.yaml",
	".ipsniffer.yml",
}

// File is the on-disk representation of a config file. Pointer fields
// distinguish "absent" from a zero value, so an omitted key never
// overrides a default.
type File struct {
	// Threads is the number of concurrent workers.
	Threads *uint16 `json:"threads,omitempty" yaml:"threads,omitempty"`

	// Timeout is the per-connect timeout as a Go duration string ("500ms").
	Timeout *string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Output is the default output format: text, json or yaml.
	Output *string `json:"output,omitempty" yaml:"output,omitempty"`

	// Progress toggles the per-open-port progress ticks in text mode.
	Progress *bool `json:"progress,omitempty" yaml:"progress,omitempty"`
}

// Settings is the merged, typed configuration the CLI runs with.
type Settings struct {
	Threads  uint16
	Timeout  time.Duration
	Output   string
	Progress bool
}

// Defaults returns the built-in settings used when neither a flag nor a
// config file provides a value.
func Defaults() Settings {
	return Settings{
		Threads:  model.DefaultThreads,
		Timeout:  0,
		Output:   "text",
		Progress: true,
	}
}

// Load reads a config file and parses it according to its extension:
// .yaml/.yml as YAML, anything else as JSONC.
//
// Returns a CLIError with ExitConfigError if the file cannot be read or
// parsed.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to parse YAML config %s", path), err)
		}
	default:
		// Strip // and /* */ comments and trailing commas before handing
		// the bytes to encoding/json.
		if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to parse config %s", path), err)
		}
	}

	return &f, nil
}

// Find searches dir for a config file and returns the path of the first
// candidate that exists. An empty path and nil error mean no file was found,
// which is not an error: the config file is optional.
func Find(dir string) (string, error) {
	for _, name := range candidateNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				continue
			}
			return path, nil
		}
		if !os.IsNotExist(err) {
			return "", model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to inspect config file %s", path), err)
		}
	}
	return "", nil
}

// Resolve produces the effective settings: defaults, overridden by the
// config file f (may be nil), overridden by every flag in fs that the user
// set explicitly.
//
// The flag values are read back from fs by name, so fs must have the
// threads/timeout/output/no-progress flags registered. Flags the user did
// not touch keep the lower-precedence value even if their registered default
// differs.
func Resolve(f *File, fs *pflag.FlagSet) (Settings, error) {
	s := Defaults()

	if f != nil {
		if err := s.mergeFile(f); err != nil {
			return Settings{}, err
		}
	}

	if fs != nil {
		if err := s.mergeFlags(fs); err != nil {
			return Settings{}, err
		}
	}

	if err := ValidateOutput(s.Output); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// mergeFile copies every value present in f into s.
func (s *Settings) mergeFile(f *File) error {
	if f.Threads != nil {
		s.Threads = *f.Threads
	}
	if f.Timeout != nil {
		d, err := time.ParseDuration(*f.Timeout)
		if err != nil {
			return model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("invalid timeout %q in config file", *f.Timeout), err)
		}
		s.Timeout = d
	}
	if f.Output != nil {
		s.Output = strings.ToLower(*f.Output)
	}
	if f.Progress != nil {
		s.Progress = *f.Progress
	}
	return nil
}

// mergeFlags copies the value of every explicitly set flag into s.
func (s *Settings) mergeFlags(fs *pflag.FlagSet) error {
	if fs.Changed(FlagThreads) {
		v, err := fs.GetUint16(FlagThreads)
		if err != nil {
			return model.WrapCLIError(model.ExitInvalidArgs, "failed to parse thread number", err)
		}
		s.Threads = v
	}
	if fs.Changed(FlagTimeout) {
		v, err := fs.GetDuration(FlagTimeout)
		if err != nil {
			return model.WrapCLIError(model.ExitInvalidArgs, "failed to parse timeout", err)
		}
		s.Timeout = v
	}
	if fs.Changed(FlagOutput) {
		v, err := fs.GetString(FlagOutput)
		if err != nil {
			return model.WrapCLIError(model.ExitInvalidArgs, "failed to parse output format", err)
		}
		s.Output = strings.ToLower(v)
	}
	if fs.Changed(FlagNoProgress) {
		v, err := fs.GetBool(FlagNoProgress)
		if err != nil {
			return model.WrapCLIError(model.ExitInvalidArgs, "failed to parse --no-progress", err)
		}
		s.Progress = !v
	}
	return nil
}

// ValidateOutput checks that format names a supported output format.
func ValidateOutput(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	default:
		return model.NewCLIError(model.ExitInvalidArgs,
			fmt.Sprintf("invalid output format %q (valid: text, json, yaml)", format))
	}
}

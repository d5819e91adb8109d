package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/BurntSushi/toml"
)

// Config contains the application configuration.
type Config struct {
	Registry   RegistryConfig
	WebService WebServiceConfig
}

// RegistryConfig contains configuration for performing direct vehicle lookups against the
// registry API. It is supplied by the host application; the lookup client itself never reads
// the environment.
type RegistryConfig struct {
	Key               string
	Host              string
	Path              string
	Secure            bool
	TimeoutSecs       int
	MaxRetries429     int
	MaxRetries5xx     int
	BackoffMillis     int
	TimeZone          string
	WaitWhenThrottled bool
}

// Timeout returns the per-request timeout as a duration.
func (cnf RegistryConfig) Timeout() time.Duration {
	return time.Duration(cnf.TimeoutSecs) * time.Second
}

// Backoff returns the base backoff delay as a duration.
func (cnf RegistryConfig) Backoff() time.Duration {
	return time.Duration(cnf.BackoffMillis) * time.Millisecond
}

// Location resolves the registry's home time zone. The daily lookup quota resets at local
// midnight in this zone.
func (cnf RegistryConfig) Location() (*time.Location, error) {
	return time.LoadLocation(cnf.TimeZone)
}

// WebServiceConfig contains configuration related to the web service.
type WebServiceConfig struct {
	Port uint
}

// NewConfig returns an app configuration struct, loaded from a TOML file.
// If a file path is included in the file name, the file will be loaded from that path. Otherwise,
// NewConfig will assume that the file is available in the same directory as the executable and
// attempt to load it from there.
func NewConfig(fname string) (Config, error) {
	var conf Config
	file := findConfig(fname)
	if file == "" {
		return conf, fmt.Errorf("No such file: %s", fname)
	}
	if _, err := toml.DecodeFile(file, &conf); err != nil {
		return conf, err
	}
	return conf, nil
}

// findConfig checks for the given file name in several locations: 1) the path, if a path is part
// of the file name, 2) the current working directory, and 3) the directory of the executable.
// Returns an empty string if the file could not be found, or if it's a directory.
func findConfig(fname string) string {
	fpart := path.Base(fname)
	// If we have a path or the file exists in the current working directory, use it.
	if isRegularFile(fname) {
		return fname
	}
	// Check the directory of the executable.
	dir, err := os.Executable()
	if err != nil {
		return ""
	}
	fname = path.Join(dir, fpart)
	if isRegularFile(fname) {
		return fname
	}
	return ""
}

func isRegularFile(fname string) bool {
	if fname == "" {
		return false
	}
	finfo, err := os.Stat(fname)
	if err != nil {
		return false
	}
	return !finfo.IsDir()
}

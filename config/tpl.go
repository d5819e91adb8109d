package config

import (
	"os"
	"text/template"
)

var cnfTpl = `[Registry]
Key = ""
Host = ""
Path = "api/v2/vehicles"
Secure = true
# Per-request timeout in seconds. The caller's own deadline bounds the entire lookup.
TimeoutSecs = 10
# Number of automatic retries after a rate-limit response.
MaxRetries429 = 1
# Number of exponential-backoff retries after a server error.
MaxRetries5xx = 3
# Base backoff delay in milliseconds; it doubles with each retry.
BackoffMillis = 500
# The registry's home time zone. The daily quota resets at local midnight in this zone.
TimeZone = "Europe/Copenhagen"
# When true, a lookup made during a throttle window waits for the window to pass
# instead of failing immediately.
WaitWhenThrottled = true

[WebService]
Port = 1826
`

// WriteEmptyConf writes a new, empty configuration file to the filename with the given name.
// The configuration file is in TOML format and contains some sensible defaults for most
// non-sensitive key/value pairs.
func WriteEmptyConf(fname string) error {
	tpl, err := template.New("config").Parse(cnfTpl)
	if err != nil {
		return err
	}
	fout, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer fout.Close()
	return tpl.Execute(fout, struct{}{})
}

// Package config loads the optional YAML tuning file both binaries accept
// via -config. Every knob here is additive to the four positional
// arguments spec §6 fixes for each binary: command-line argument parsing
// itself is an external collaborator per spec §1's Non-goals, so this
// package only covers the knobs that have no natural positional slot.
package config

import (
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Tuning holds the knobs loaded from an optional -config YAML file.
// Absence of the file is not an error; Default() values apply.
type Tuning struct {
	// LogVerbosity is 0 for normal operational logging. Above 0, the
	// Controller binary logs one extra startup line; no further lines,
	// protocol lines included, depend on it, and the Store ignores it.
	LogVerbosity int `yaml:"log_verbosity"`

	// AdmissionRetryBackoff is how long pkg/client waits before retrying
	// a STORE that was rejected with ERROR_NOT_ENOUGH_DSTORES, given
	// as a Go duration string (e.g. "500ms"). The Controller itself
	// never retries anything (spec §7): this knob is consumed entirely
	// client-side.
	AdmissionRetryBackoff string `yaml:"admission_retry_backoff"`

	// StorageQuota is a human-readable byte size (e.g. "500MB") a Store
	// logs a warning against when its folder grows past it. Store-only;
	// ignored by the Controller. Never rejects a STORE — spec §6's wire
	// table has no token for it — it is advisory, logged capacity
	// pressure only.
	StorageQuota string `yaml:"storage_quota"`
}

// Default returns the zero-tuning baseline: normal verbosity, a 500ms
// admission retry backoff, and no storage quota.
func Default() Tuning {
	return Tuning{
		LogVerbosity:          0,
		AdmissionRetryBackoff: "500ms",
	}
}

// Load reads and parses a YAML tuning file at path, overlaying it onto
// Default(). A path of "" returns Default() unmodified.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return t, errors.Wrap(err, "open config file")
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&t); err != nil {
		return t, errors.Wrap(err, "decode config file")
	}
	return t, nil
}

// RetryBackoff parses AdmissionRetryBackoff, falling back to Default()'s
// value if the configured string is empty or unparseable.
func (t Tuning) RetryBackoff() time.Duration {
	d, err := time.ParseDuration(t.AdmissionRetryBackoff)
	if err != nil {
		d, _ = time.ParseDuration(Default().AdmissionRetryBackoff)
	}
	return d
}

// QuotaBytes parses StorageQuota into a byte count. ok is false when no
// quota was configured.
func (t Tuning) QuotaBytes() (bytes uint64, ok bool, err error) {
	if t.StorageQuota == "" {
		return 0, false, nil
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(t.StorageQuota)); err != nil {
		return 0, false, errors.Wrapf(err, "parse storage_quota %q", t.StorageQuota)
	}
	return size.Bytes(), true, nil
}

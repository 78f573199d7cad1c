package file

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/leadflow-labs/refproc-cli/internal/core/domain"
)

// DefaultFileName is the settings file the commands look for when no
// --config flag is given.
const DefaultFileName = "refproc.toml"

// Environment overrides. Deployments that cannot mount a settings file set
// these on the container instead; they win over file values.
const (
	EnvSourceDir   = "REFPROC_SOURCE_DIR"
	EnvOutputDir   = "REFPROC_OUTPUT_DIR"
	EnvDestination = "REFPROC_DESTINATION"
	EnvSQLitePath  = "REFPROC_SQLITE_PATH"
	EnvWebhookURL  = "REFPROC_WEBHOOK_URL"
	EnvDedupPolicy = "REFPROC_DEDUP_POLICY"
	EnvTimezone    = "REFPROC_DEFAULT_TIMEZONE"
)

// SettingsStore loads run settings from a TOML file, layering environment
// overrides on top. A missing file is not an error: the shipped defaults
// apply, so a container can run on env configuration alone.
type SettingsStore struct {
	path string
}

// NewSettingsStore creates a store reading from path. An empty path uses
// DefaultFileName in the working directory.
func NewSettingsStore(path string) *SettingsStore {
	if path == "" {
		path = DefaultFileName
	}
	return &SettingsStore{path: path}
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load reads the file, fills gaps with defaults and applies environment
// overrides. Validation is left to the caller so command-line flags can
// still land in between.
func (s *SettingsStore) Load() (domain.Settings, error) {
	settings := domain.DefaultSettings()

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No file: defaults plus env carry the run.
	case err != nil:
		return settings, fmt.Errorf("%w: reading %s: %v", domain.ErrConfigInvalid, s.path, err)
	default:
		var parsed fileSettings
		if err := toml.Unmarshal(data, &parsed); err != nil {
			return settings, fmt.Errorf("%w: parsing %s: %v", domain.ErrConfigInvalid, s.path, err)
		}
		if err := apply(&settings, parsed); err != nil {
			return settings, err
		}
	}

	applyEnv(&settings)
	return settings, nil
}

// WriteDefault materialises a starter settings file at the store's path so
// operators have something to edit. It refuses to overwrite an existing
// file.
func (s *SettingsStore) WriteDefault() error {
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("%w: %s already exists", domain.ErrConfigInvalid, s.path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.WriteFile(s.path, []byte(defaultTOML), 0o644)
}

// fileSettings is the TOML shape of the settings file. Pointer fields
// distinguish "absent, keep the default" from an explicit zero.
type fileSettings struct {
	Source struct {
		Dir             string `toml:"dir"`
		DefaultTimezone string `toml:"default_timezone"`
	} `toml:"source"`

	Output struct {
		Dir          string `toml:"dir"`
		ReportFormat string `toml:"report_format"`
	} `toml:"output"`

	Sink struct {
		Destination       string  `toml:"destination"`
		SQLitePath        string  `toml:"sqlite_path"`
		WebhookURL        string  `toml:"webhook_url"`
		WebhookRatePerSec float64 `toml:"webhook_rate_per_sec"`
	} `toml:"sink"`

	Pipeline struct {
		DedupPolicy      string `toml:"dedup_policy"`
		FailureThreshold *int   `toml:"failure_threshold"`
		IOTimeout        string `toml:"io_timeout"`
		BatchSize        int    `toml:"batch_size"`
		IdempotentWrites *bool  `toml:"idempotent_writes"`
	} `toml:"pipeline"`

	Validation []fileFieldRule `toml:"validation"`
	Rules      []fileRule      `toml:"rules"`
}

type fileFieldRule struct {
	Field string `toml:"field"`
	Check string `toml:"check"`
	Param string `toml:"param"`
}

type fileRule struct {
	Name           string          `toml:"name"`
	Priority       int             `toml:"priority"`
	Classification string          `toml:"classification"`
	Score          float64         `toml:"score"`
	When           []fileCondition `toml:"when"`
}

type fileCondition struct {
	Field      string `toml:"field"`
	Op         string `toml:"op"`
	Value      string `toml:"value"`
	ValueField string `toml:"value_field"`
}

// apply overlays file values onto the defaults. Rule and validation lists
// replace the shipped sets wholesale when present, so a deployment's rule
// file is the complete audited set.
func apply(settings *domain.Settings, f fileSettings) error {
	if f.Source.Dir != "" {
		settings.Source.Dir = f.Source.Dir
	}
	if f.Source.DefaultTimezone != "" {
		settings.Source.DefaultTimezone = f.Source.DefaultTimezone
	}
	if f.Output.Dir != "" {
		settings.Output.Dir = f.Output.Dir
	}
	if f.Output.ReportFormat != "" {
		settings.Output.ReportFormat = domain.ReportFormat(f.Output.ReportFormat)
	}

	if f.Sink.Destination != "" {
		settings.Sink.Destination = domain.Destination(f.Sink.Destination)
	}
	if f.Sink.SQLitePath != "" {
		settings.Sink.SQLitePath = f.Sink.SQLitePath
	}
	if f.Sink.WebhookURL != "" {
		settings.Sink.WebhookURL = f.Sink.WebhookURL
	}
	if f.Sink.WebhookRatePerSec > 0 {
		settings.Sink.WebhookRatePerSec = f.Sink.WebhookRatePerSec
	}

	if f.Pipeline.DedupPolicy != "" {
		settings.Pipeline.DedupPolicy = domain.DedupPolicy(f.Pipeline.DedupPolicy)
	}
	if f.Pipeline.FailureThreshold != nil {
		settings.Pipeline.FailureThreshold = *f.Pipeline.FailureThreshold
	}
	if f.Pipeline.IOTimeout != "" {
		d, err := time.ParseDuration(f.Pipeline.IOTimeout)
		if err != nil {
			return fmt.Errorf("%w: io_timeout: %v", domain.ErrConfigInvalid, err)
		}
		settings.Pipeline.IOTimeout = d
	}
	if f.Pipeline.BatchSize > 0 {
		settings.Pipeline.BatchSize = f.Pipeline.BatchSize
	}
	if f.Pipeline.IdempotentWrites != nil {
		settings.Pipeline.IdempotentWrites = *f.Pipeline.IdempotentWrites
	}

	if len(f.Validation) > 0 {
		rules := make([]domain.FieldRule, len(f.Validation))
		for i, fr := range f.Validation {
			rules[i] = domain.FieldRule{
				Field: fr.Field,
				Check: domain.Check(fr.Check),
				Param: fr.Param,
			}
		}
		settings.Pipeline.Validation = rules
	}
	if len(f.Rules) > 0 {
		rules := make([]domain.RuleSpec, len(f.Rules))
		for i, r := range f.Rules {
			conds := make([]domain.Condition, len(r.When))
			for j, c := range r.When {
				conds[j] = domain.Condition{
					Field:      c.Field,
					Op:         domain.Op(c.Op),
					Value:      c.Value,
					ValueField: c.ValueField,
				}
			}
			rules[i] = domain.RuleSpec{
				Name:           r.Name,
				Priority:       r.Priority,
				Classification: r.Classification,
				Score:          r.Score,
				When:           conds,
			}
		}
		settings.Pipeline.Rules = rules
	}
	return nil
}

// applyEnv overlays environment values on top of everything else.
func applyEnv(settings *domain.Settings) {
	if v := os.Getenv(EnvSourceDir); v != "" {
		settings.Source.Dir = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		settings.Output.Dir = v
	}
	if v := os.Getenv(EnvDestination); v != "" {
		settings.Sink.Destination = domain.Destination(v)
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		settings.Sink.SQLitePath = v
	}
	if v := os.Getenv(EnvWebhookURL); v != "" {
		settings.Sink.WebhookURL = v
	}
	if v := os.Getenv(EnvDedupPolicy); v != "" {
		settings.Pipeline.DedupPolicy = domain.DedupPolicy(v)
	}
	if v := os.Getenv(EnvTimezone); v != "" {
		settings.Source.DefaultTimezone = v
	}
}

// defaultTOML is the starter settings file. It spells out the shipped
// defaults and states a dedup policy: the policy changes observable output,
// so the file an operator edits always names one.
const defaultTOML = `# refproc settings

[source]
dir = "./data"
# IANA zone applied to transactions whose row carries no timezone of its own.
# default_timezone = "Asia/Jakarta"

[output]
dir = "./output"
report_format = "json" # json or yaml

[sink]
destination = "csv" # csv, sqlite or webhook
sqlite_path = "./output/referrals.db"
webhook_url = ""

[pipeline]
# Which occurrence of a repeated identity key survives: "first-wins" or
# "last-wins". The run refuses to start without a policy.
dedup_policy = "last-wins"
failure_threshold = 25
io_timeout = "30s"
batch_size = 200
idempotent_writes = true
`

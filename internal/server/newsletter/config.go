package newsletter

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"github.com/dmitrijs2005/howyoubeen/internal/visibility"
	"gopkg.in/yaml.v3"
)

// Config describes a recurring digest. Events visible to any of the listed
// categories within the trailing Periodicity hours are eligible. At least
// one category is required.
type Config struct {
	Name         string                `yaml:"name"`
	Instructions string                `yaml:"instructions,omitempty"`
	Periodicity  int                   `yaml:"periodicity,omitempty"`
	Frequency    string                `yaml:"frequency,omitempty"`
	StartDate    *time.Time            `yaml:"start_date,omitempty"`
	Visibility   []visibility.Category `yaml:"visibility"`
}

var frequencies = map[string]int{
	"daily":   24,
	"weekly":  168,
	"monthly": 720,
}

// ParseFrequency normalizes one of daily, weekly or monthly.
func ParseFrequency(s string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(s))
	if _, ok := frequencies[f]; !ok {
		return "", fmt.Errorf("%w: unknown frequency %q", common.ErrInvalidInput, s)
	}
	return f, nil
}

// DefaultConfig is used when the caller brings no configuration.
func DefaultConfig() Config {
	return Config{
		Name:         "Weekly Update",
		Instructions: "Summarize the major life events of the past week as you would to friends.",
		Periodicity:  168,
		Visibility:   []visibility.Category{visibility.Default},
	}
}

// Hours resolves the window length, preferring an explicit Periodicity
// over the Frequency shorthand.
func (c Config) Hours() (int, error) {
	if c.Periodicity != 0 {
		if c.Periodicity < 0 {
			return 0, fmt.Errorf("%w: periodicity must be positive, got %d", common.ErrInvalidInput, c.Periodicity)
		}
		return c.Periodicity, nil
	}
	if c.Frequency == "" {
		return 0, fmt.Errorf("%w: periodicity or frequency is required", common.ErrInvalidInput)
	}
	h, ok := frequencies[strings.ToLower(c.Frequency)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown frequency %q", common.ErrInvalidInput, c.Frequency)
	}
	return h, nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := c.Hours(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Visibility) == 0 {
		errs = append(errs, fmt.Errorf("%w: newsletter %q has no audience", common.ErrInvalidVisibility, c.Name))
	}
	for _, cat := range c.Visibility {
		if err := cat.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type configFile struct {
	Newsletters []Config `yaml:"newsletters"`
}

// LoadConfigs reads a YAML document with a top-level "newsletters" list.
// Every entry is validated; the first invalid one fails the load.
func LoadConfigs(r io.Reader) ([]Config, error) {
	var f configFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode newsletter configs: %w", err)
	}
	for i, c := range f.Newsletters {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("newsletter %d (%s): %w", i, c.Name, err)
		}
	}
	return f.Newsletters, nil
}

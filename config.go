package inkwell

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/inkwell-cms/inkwell/pkg/tree"
)

// Config configures an Engine instance.
type Config struct {
	// DataDir holds the badger database: the source of truth for blobs,
	// commits, content metadata and publication records.
	DataDir string `yaml:"dataDir"`
	// WorkDir holds per-content working-copy materializations. Disposable.
	WorkDir string `yaml:"workDir"`
	// PublicDir holds one write-once snapshot directory per publication.
	PublicDir string `yaml:"publicDir"`

	// MaxContainerDepth is the number of container levels below the root;
	// the default of 2 gives root → part → chapter.
	MaxContainerDepth int `yaml:"maxContainerDepth"`
	// LockWait bounds how long a mutation waits for the content's lock
	// before failing with a conflict.
	LockWait time.Duration `yaml:"lockWait"`
	// GCSchedule is a cron expression for periodic store maintenance.
	GCSchedule string `yaml:"gcSchedule"`
	// MinimumFreeGB refuses startup below this much free disk space.
	MinimumFreeGB int `yaml:"minimumFreeGB"`

	// Logger is optional; a default logrus logger is used when nil.
	Logger *logrus.Logger `yaml:"-"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.MaxContainerDepth <= 0 {
		c.MaxContainerDepth = tree.DefaultMaxContainerDepth
	}
	if c.GCSchedule == "" {
		c.GCSchedule = "@every 10m"
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}

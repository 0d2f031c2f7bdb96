package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "4h" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// JobSpec describes one scheduled job for the worker.
type JobSpec struct {
	// Name is the asynq task type the worker handles.
	Name string `yaml:"name"`
	// Schedule is a cron expression or an @every interval.
	Schedule string `yaml:"schedule"`
	// Queue the task is enqueued on.
	Queue string `yaml:"queue"`
	// UniqueFor suppresses duplicate enqueues while a run is pending or
	// in flight, giving at-most-one concurrent run per job.
	UniqueFor Duration `yaml:"unique_for"`
}

// JobsConfig is the worker's YAML schedule file.
type JobsConfig struct {
	Jobs []JobSpec `yaml:"jobs"`
}

// DefaultJobsConfig is used when no schedule file exists: one cascade
// reconciliation every four hours, unique for the whole period.
func DefaultJobsConfig() *JobsConfig {
	return &JobsConfig{
		Jobs: []JobSpec{
			{
				Name:      "cascade:reconcile",
				Schedule:  "@every 4h",
				Queue:     "cascade",
				UniqueFor: Duration(4 * time.Hour),
			},
		},
	}
}

// LoadJobsFile reads the schedule definitions, falling back to the defaults
// when the file does not exist.
func LoadJobsFile(path string) (*JobsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultJobsConfig(), nil
		}
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	var cfg JobsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse jobs file: %w", err)
	}

	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if job.Name == "" {
			return nil, fmt.Errorf("jobs[%d]: name is required", i)
		}
		if job.Schedule == "" {
			return nil, fmt.Errorf("jobs[%d]: schedule is required", i)
		}
		if job.Queue == "" {
			job.Queue = "cascade"
		}
	}

	return &cfg, nil
}

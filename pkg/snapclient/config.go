package snapclient

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/function61/gokit/fileexists"
	"github.com/function61/gokit/jsonfile"
	"github.com/function61/gokit/osutil"
	"github.com/function61/snapshoot/pkg/scheduler"
	"github.com/spf13/cobra"
)

const (
	configFilename  = "snapshoot-config.json"
	defaultSchedule = "@daily"
)

// all optional. without a config file, "shoot" works from flags alone.
type Config struct {
	Jobs             []JobConfig `json:"jobs"`
	MetricsTextfile  string      `json:"metrics_textfile,omitempty"`  // node_exporter textfile. schedule: one file per job (name-jobN.prom)
	LvmSnapshotSize  string      `json:"lvm_snapshot_size,omitempty"` // "" = no source snapshotting
	PreserveMetadata *bool       `json:"preserve_metadata,omitempty"` // nil = true
}

type JobConfig struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Schedule    string `json:"schedule,omitempty"` // cron spec. default @daily
}

func (j JobConfig) ScheduleOrDefault() string {
	if j.Schedule == "" {
		return defaultSchedule
	}

	return j.Schedule
}

func (c *Config) PreserveMetadataOrDefault() bool {
	return c.PreserveMetadata == nil || *c.PreserveMetadata
}

func (c *Config) Validate() error {
	for idx, job := range c.Jobs {
		if !filepath.IsAbs(job.Source) || !filepath.IsAbs(job.Destination) {
			return fmt.Errorf("jobs[%d]: source and destination must be absolute paths", idx)
		}

		if _, err := scheduler.ValidateSpec(job.ScheduleOrDefault()); err != nil {
			return fmt.Errorf("jobs[%d]: schedule: %w", idx, err)
		}
	}

	return nil
}

// missing config file is not an error
func ReadConfig() (*Config, error) {
	confPath, err := ConfigFilePath()
	if err != nil {
		return nil, fmt.Errorf("snapshoot config: %w", err)
	}

	return ReadConfigWithPath(confPath)
}

func ReadConfigWithPath(confPath string) (*Config, error) {
	exists, err := fileexists.Exists(confPath)
	if err != nil {
		return nil, fmt.Errorf("snapshoot config: %w", err)
	}

	conf := &Config{}

	if !exists {
		return conf, nil
	}

	if err := jsonfile.Read(confPath, conf, true); err != nil {
		return nil, fmt.Errorf("snapshoot config: %w", err)
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("snapshoot config: %w", err)
	}

	return conf, nil
}

func ConfigFilePath() (string, error) {
	usersHomeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(usersHomeDirectory, configFilename), nil
}

func configPrintEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "config-print",
		Short: "Prints path to config file & its contents",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			confPath, err := ConfigFilePath()
			osutil.ExitIfError(err)

			fmt.Printf("file: %s\n", confPath)

			exists, err := fileexists.Exists(confPath)
			osutil.ExitIfError(err)

			if !exists {
				fmt.Println(".. does not exist. It's only needed for the schedule command and defaults.")
				return
			}

			file, err := os.Open(confPath)
			osutil.ExitIfError(err)
			defer file.Close()

			_, err = io.Copy(os.Stdout, file)
			osutil.ExitIfError(err)
		},
	}
}

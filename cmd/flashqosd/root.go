// cmd/flashqosd/root.go
package main

import (
	"fmt"
	"os"

	"github.com/flashqos/flashqos/config"
	"github.com/flashqos/flashqos/flashqos"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "flashqosd",
	Short: "Multi-tenant kernel-bypass NVMe flash controller I/O scheduler",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a deployment configuration without starting workers",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := mustLoadConfig()
		logrus.WithFields(logrus.Fields{
			"cpus":        cfg.CPUs,
			"scheduler":   cfg.Scheduler,
			"device":      cfg.DeviceModel,
			"queue_cap":   cfg.QueueCapacity,
			"nvme_device": cfg.NVMeDevices,
		}).Info("flashqos: configuration is valid")
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start worker goroutines against the configured CPUs",
	Long: `Starts one worker goroutine per configured CPU, each driving the
flashqos scheduler loop. This command only loads and validates the
configuration and builds the device model; the NetIO and FlashIO collaborators
(the line-rate network front end and the flash device driver) are out of
scope for this module (spec §1) and must be supplied by an embedding
program via cluster.NewController — invoking this subcommand directly
reports that and exits.`,
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := mustLoadConfig()
		device, err := buildDeviceModel(cfg)
		if err != nil {
			logrus.Fatalf("flashqos: building device model: %v", err)
		}
		logrus.WithField("device", cfg.DeviceModel).Info("flashqos: device model ready")
		_ = device
		logrus.Fatal("flashqos: run requires a NetIO/FlashIO-wired binary; this CLI only validates configuration (see --help)")
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("flashqos: invalid log level %q: %v", logLevel, err)
	}
	logrus.SetLevel(level)
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("flashqos: loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("flashqos: invalid config: %v", err)
	}
	return cfg
}

// buildDeviceModel constructs a flashqos.DeviceModel from cfg's named
// calibration table, or the unbounded model if cfg.DeviceModel ==
// "unbounded".
func buildDeviceModel(cfg *config.Config) (*flashqos.DeviceModel, error) {
	if cfg.DeviceModel == "unbounded" {
		return flashqos.NewUnboundedDeviceModel(), nil
	}
	points, ok := cfg.Calibration[cfg.DeviceModel]
	if !ok {
		return nil, fmt.Errorf("no device_calibration table named %q", cfg.DeviceModel)
	}
	converted := make([]flashqos.CalibrationPoint, len(points))
	for i, p := range points {
		converted[i] = flashqos.CalibrationPoint{
			LatencyP95Us:         p.LatencyP95Us,
			MaxTokenRate:         p.MaxTokenRate,
			MaxReadonlyTokenRate: p.MaxReadonlyTokenRate,
		}
	}
	return flashqos.NewDeviceModel(converted), nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "flashqos.yaml", "Path to the deployment configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
}

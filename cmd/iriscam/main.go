package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/iriscam/internal/config"
	"github.com/cjeanneret/iriscam/internal/debug"
	"github.com/cjeanneret/iriscam/internal/hw/camera"
	"github.com/cjeanneret/iriscam/internal/hw/gpio"
	"github.com/cjeanneret/iriscam/internal/hw/tally"
	"github.com/cjeanneret/iriscam/internal/mqtt"
	"github.com/cjeanneret/iriscam/internal/registry"
	"github.com/cjeanneret/iriscam/internal/web"
)

// simulatedStep is the pause between simulated focus/exposure states.
const simulatedStep = 150 * time.Millisecond

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "iriscam:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "iriscam",
		Short:         "Camera lifecycle and focus/exposure event service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", filepath.Join("configs", "default.yaml"), "path to config file (.yaml, .yml or .toml)")

	var webPort int
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the camera session and publish its events over HTTP and MQTT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("web-port") {
				cfg.Web.Port = webPort
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfgPath, cfg)
		},
	}
	serveCmd.Flags().IntVar(&webPort, "web-port", 0, "override web.port (0 disables the web server)")

	var includeFront bool
	lensesCmd := &cobra.Command{
		Use:   "lenses",
		Short: "Print the classified camera inputs as JSON",
		Example: "  iriscam lenses --config configs/default.yaml\n" +
			"  iriscam lenses --include-front=false",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			include := cfg.IncludeFront()
			if cmd.Flags().Changed("include-front") {
				include = includeFront
			}
			return printLenses(cmd.OutOrStdout(), newRegistry(cfg), include)
		},
	}
	lensesCmd.Flags().BoolVar(&includeFront, "include-front", true, "include front-facing inputs (default from config)")

	root.AddCommand(serveCmd, lensesCmd)
	return root
}

// newRegistry builds the registry over the configured device inventory.
func newRegistry(cfg *config.Config) *registry.Registry {
	return registry.New(
		camera.StaticDevices(cfg.Descriptors()),
		registry.WithClassifier(cfg.Classifier()),
	)
}

func printLenses(w io.Writer, reg *registry.Registry, includeFront bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reg.ListAvailableLenses(includeFront))
}

// newTriggerFromConfig selects a trigger implementation based on configuration.
func newTriggerFromConfig(g gpio.Driver, cfg *config.Config) (camera.Trigger, error) {
	switch cfg.Camera.Type {
	case "nikon_d90_gpio":
		return camera.NewNikonD90GPIO(
			g,
			cfg.Camera.FocusPin,
			cfg.Camera.ShutterPin,
			cfg.FocusDelay(),
			cfg.ShutterDelay(),
		), nil
	case "mock":
		return camera.NewSimulated(simulatedStep), nil
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
}

// newLifecycleEmitter returns the registry's lifecycle handler, behind a
// tally lamp when one is configured.
func newLifecycleEmitter(g gpio.Driver, cfg *config.Config, reg *registry.Registry) (camera.LifecycleEmitter, error) {
	if cfg.Tally.Pin <= 0 {
		return reg.Lifecycle(), nil
	}
	lamp, err := tally.NewLamp(g, cfg.Tally.Pin, reg.Lifecycle())
	if err != nil {
		return nil, err
	}
	debug.Value("Tally pin", cfg.Tally.Pin)
	return lamp, nil
}

func serve(ctx context.Context, cfgPath string, cfg *config.Config) error {
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			debug.Errorf(err, "closing GPIO driver failed")
		}
	}()

	debug.Step(2, "Building registry")
	reg := newRegistry(cfg)
	debug.Value("Devices", len(cfg.Devices))

	debug.Step(3, "Initializing camera")
	trigger, err := newTriggerFromConfig(gpioDriver, cfg)
	if err != nil {
		return fmt.Errorf("init camera: %w", err)
	}
	lifecycle, err := newLifecycleEmitter(gpioDriver, cfg, reg)
	if err != nil {
		return fmt.Errorf("init tally: %w", err)
	}
	session := camera.NewSession(trigger, lifecycle, reg.FocusExposure())
	defer func() {
		if err := session.Dispose(); err != nil {
			debug.Errorf(err, "dispose session failed")
		}
	}()
	debug.Value("Camera type", cfg.Camera.Type)
	debug.PrintStruct("Camera config", cfg.Camera)

	if cfg.MQTT.Enabled {
		debug.Step(4, "Connecting MQTT")
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Close()

		bridge := mqtt.NewBridge(client, cfg.MQTT.TopicPrefix, byte(cfg.MQTT.QoS))
		if err := reg.Attach(bridge); err != nil {
			return err
		}
		if err := bridge.ServeLenses(reg, cfg.IncludeFront()); err != nil {
			return fmt.Errorf("serve lenses: %w", err)
		}
		debug.Value("MQTT prefix", cfg.MQTT.TopicPrefix)
	}

	debug.Summary("Channels: " + strings.Join(reg.Channels(), ", "))

	if cfg.Web.Port > 0 {
		debug.Step(5, "Starting web server")
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		handlers := web.NewHandlers(broadcaster, reg, session, cfg.IncludeFront(), web.StaticFS())
		srv := web.NewServer(fmt.Sprintf(":%d", cfg.Web.Port), handlers, cfg.Web.AllowedOrigins)
		if err := reg.Attach(srv); err != nil {
			return err
		}
		return srv.Run(ctx)
	}

	debug.Info("no web server configured, waiting for signal")
	<-ctx.Done()
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tinayla696/iotp_client_golang/develop"
	"github.com/tinayla696/iotp_client_golang/module"
	"github.com/tinayla696/iotp_client_golang/module/config"
	"github.com/tinayla696/iotp_client_golang/module/dm"
	"github.com/tinayla696/iotp_client_golang/module/iotp"
	"github.com/tinayla696/iotp_client_golang/module/registry"
	"github.com/tinayla696/iotp_client_golang/service"
	"github.com/tinayla696/iotp_client_golang/service/task"
)

const (
	ENV_PATH        string = "./conf.d/default.conf"
	CONFIG_PATH     string = "./conf.d/config.yaml"
	KEY_CONFIG_FILE string = "CONFIG_FILE"
	KEY_LOG_DIR     string = "LOG_DIR"
	MAX_WORKERS     int    = 2
	STATUS_EVENT    string = "status"
	FAULT_COMMAND   string = "fault"
)

var (
	// Arguments
	isDebugArg  *bool          = flag.Bool("debug", false, "Enable debug mode")
	envPathArg  *string        = flag.String("env", ENV_PATH, "Path to the environment configuration file")
	configArg   *string        = flag.String("config", CONFIG_PATH, "Path to the YAML configuration file")
	roleArg     *string        = flag.String("role", string(config.RoleManagedDevice), "Client role: device, gateway, application, managedDevice, managedGateway")
	durationArg *time.Duration = flag.Duration("duration", time.Minute, "How long the sample runs")
	intervalArg *time.Duration = flag.Duration("interval", 10*time.Second, "Status event interval")
)

type status struct {
	Seq       int    `json:"seq"`
	Timestamp string `json:"timestamp"`
}

func main() {
	// Parse command line arguments
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(*envPathArg); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic("Error loading environment variables: " + err.Error())
	}
	configFile := *configArg
	if v := os.Getenv(KEY_CONFIG_FILE); v != "" {
		configFile = v
	}

	// Load configuration
	role := config.Role(*roleArg)
	conf, err := config.Load(configFile, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if v := os.Getenv(KEY_LOG_DIR); v != "" {
		conf.Options.LogDir = v
	}

	// Setup Logging
	loggerModule, err := module.SetLogger(conf.Options.LogDir, conf.LogLevel(), *isDebugArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer loggerModule.Sync()
	zap.ReplaceGlobals(loggerModule)

	// Development mode
	if *isDebugArg {
		zap.S().Info("Debug mode is enabled")
		prof, err := develop.ProfileInit(conf.Options.LogDir)
		if err != nil {
			zap.S().Fatalf("Failed to initialize profiling: %v", err)
		}
		defer func() {
			if err := prof.Stop(); err != nil {
				zap.S().Errorf("Failed to write profiles: %v", err)
			}
		}()
	}

	if err := run(conf, role); err != nil {
		zap.S().Errorf("Sample stopped with error: %v", err)
	}
}

func run(conf *config.Config, role config.Role) error {
	client, err := iotp.New(conf, role)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *durationArg)
	defer cancel()

	dispatcher := service.NewDispatcher(MAX_WORKERS)
	if err := registerHandlers(ctx, client, dispatcher); err != nil {
		return err
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			zap.S().Warnf("Disconnect: %v", err)
		}
	}()
	zap.S().Infof("Connected as %s to %s", role, conf.BrokerURI())

	if role == config.RoleApplication {
		err = client.SubscribeToDeviceEvents("+", "+", "+", "+", 0)
	} else {
		err = client.SubscribeToCommands("+", "+", 0)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if role.IsManaged() {
		if err := client.Manage(""); err != nil {
			return fmt.Errorf("failed to manage: %w", err)
		}
		defer func() {
			if err := client.Unmanage(""); err != nil {
				zap.S().Warnf("Unmanage: %v", err)
			}
		}()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(ctx) })
	if role != config.RoleApplication {
		g.Go(func() error { return emitStatus(ctx, client, dispatcher) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	zap.S().Infof("Sample finished: %d events published, %d failed", dispatcher.Stats().Done(), dispatcher.Stats().Failed())
	return nil
}

// emitStatus enqueues a status event every interval until ctx is done.
func emitStatus(ctx context.Context, client *iotp.Client, dispatcher *service.Dispatcher) error {
	ticker := time.NewTicker(*intervalArg)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			t := &task.EventTask{
				Publisher: client,
				Event:     STATUS_EVENT,
				Data:      status{Seq: seq, Timestamp: now.UTC().Format(time.RFC3339)},
				ID:        seq,
			}
			if err := dispatcher.EnqueueTask(ctx, t); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

// registerHandlers logs inbound messages. Managed clients report a
// "fault" command's integer payload as a diagnostic error code.
func registerHandlers(ctx context.Context, client *iotp.Client, dispatcher *service.Dispatcher) error {
	if client.Role() == config.RoleApplication {
		return client.SetHandler(registry.AppEvent, "", func(typeID, deviceID, event, format string, payload []byte) {
			zap.S().Infof("Event %s from %s/%s (%s): %s", event, typeID, deviceID, format, payload)
		})
	}

	if err := client.SetCommandHandler(func(typeID, deviceID, command, format string, payload []byte) {
		zap.S().Infof("Command %s (%s) for %s/%s: %s", command, format, typeID, deviceID, payload)
		if command != FAULT_COMMAND || client.Managed() == nil {
			return
		}
		code, err := strconv.Atoi(strings.TrimSpace(string(payload)))
		if err != nil {
			zap.S().Warnf("Ignoring fault with bad code %q", payload)
			return
		}
		if err := dispatcher.EnqueueTask(ctx, &task.DiagTask{Reporter: client.Managed(), Code: code}); err != nil {
			zap.S().Warnf("Failed to queue fault report: %v", err)
		}
	}); err != nil {
		return err
	}
	if !client.Role().IsManaged() {
		return nil
	}

	for name, value := range map[string]string{"deviceActions": "true", "firmwareActions": "true"} {
		if err := client.SetAttribute(name, value); err != nil {
			return err
		}
	}
	return client.SetActionHandler(registry.DMActions, func(kind registry.Kind, reqID string, payload []byte) {
		zap.S().Infof("Management action %s (reqId %s): %s", kind, reqID, payload)
		switch kind {
		case registry.DMFirmwareDownload:
			go func() {
				if err := client.SetFirmwareState(dm.FirmwareDownloaded); err != nil {
					zap.S().Errorf("Failed to report download: %v", err)
				}
			}()
		case registry.DMFirmwareUpdate:
			go func() {
				if err := client.SetFirmwareUpdateStatus(dm.UpdateSuccess); err != nil {
					zap.S().Errorf("Failed to report update: %v", err)
				}
			}()
		}
	})
}

// Command dds-server is the sample server: it brings up a participant, a
// broadcaster, and, with --fake-device, one device server for a synthetic
// device attached at startup. It does not watch a device-watcher, so
// devices attached or detached later are not served or removed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rsdds/device-bridge/internal/broadcaster"
	"github.com/rsdds/device-bridge/internal/ddsfacade"
	"github.com/rsdds/device-bridge/internal/ddsfacade/inproc"
	"github.com/rsdds/device-bridge/internal/deviceserver"
	"github.com/rsdds/device-bridge/internal/devicesdk"
	"github.com/rsdds/device-bridge/internal/devicesdk/fake"
)

const (
	minDomainID = 0
	maxDomainID = 232
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.WithError(err).Fatal("dds-server exited with an error")
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "dds-server",
		Short: "Bridges locally-attached RealSense cameras onto the data bus",
	}
	root.PersistentFlags().Int("domain-id", 0, "DDS domain ID, [0, 232]")
	root.PersistentFlags().Bool("verbose", false, "enable info-level logging")
	root.PersistentFlags().Bool("debug", false, "enable debug-level logging")
	_ = viper.BindPFlag("domain-id", root.PersistentFlags().Lookup("domain-id"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))
	viper.SetEnvPrefix("DDS_SERVER")
	viper.AutomaticEnv()

	root.AddCommand(newRunCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var fakeDevice bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the broadcaster and serve attached devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging()

			domainID := viper.GetInt("domain-id")
			if domainID < minDomainID || domainID > maxDomainID {
				logrus.WithField("domain-id", domainID).Fatal("domain ID out of range [0, 232]")
			}

			participant := inproc.NewParticipant()
			bcast, err := broadcaster.New(participant)
			if err != nil {
				logrus.WithError(err).Fatal("failed to create participant/broadcaster")
			}
			bcast.Start()
			defer bcast.Stop()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if fakeDevice {
				attachDevice(ctx, participant, bcast, fake.NewD435("112233"))
			}

			waitForSignal()
			return nil
		},
	}
	cmd.Flags().BoolVar(&fakeDevice, "fake-device", false, "attach one synthetic device at startup")
	return cmd
}

func attachDevice(ctx context.Context, p ddsfacade.Participant, bcast *broadcaster.Broadcaster, device devicesdk.Device) {
	srv, err := deviceserver.New(p, device)
	if err != nil {
		logrus.WithError(err).WithField("serial", device.Info().Serial).Error("failed to start device server")
		return
	}
	go srv.Run(ctx)
	bcast.AddDevice(device.Info())
}

func configureLogging() {
	if viper.GetBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}

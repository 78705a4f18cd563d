/*
powernode - CT based power monitoring firmware
Copyright (C) 2024, The Meterwatch Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"fmt"
	"strings"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/meterwatch/powernode/internal/config"
	"github.com/meterwatch/powernode/internal/metrics"
	"github.com/meterwatch/powernode/internal/monitor"
	"github.com/meterwatch/powernode/internal/power"
	"github.com/meterwatch/powernode/internal/sampler"
	"github.com/meterwatch/powernode/internal/telemetry"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	ConfigDir   string `arg:"-c,--config" help:"configuration folder"`
	MetricsAddr string `arg:"--metrics-addr" help:"listen address for Prometheus metrics, disabled when empty"`
	LogLevel    string `arg:"-l,--log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
}

func (argSpec) Version() string {
	return version
}

func procArgs() argSpec {
	args := argSpec{
		ConfigDir: config.DefaultConfigDir,
	}
	arg.MustParse(&args)
	return args
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		log.Warn("Unknown log level, defaulting to info")
	}
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("[%s] %s\n", strings.ToUpper(entry.Level.String()), entry.Message)), nil
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err.Error())
	}
}

func runMain() error {
	log.SetFormatter(new(customFormatter))
	args := procArgs()
	setLogLevel(args.LogLevel)

	log.Info("Running version: ", version)

	conf, err := config.Load(args.ConfigDir)
	if err != nil {
		return err
	}

	source, err := openSource(conf)
	if err != nil {
		return err
	}

	s := sampler.New(source, conf.SamplesPerCycle, conf.SampleDelay,
		conf.BurdenOhms, conf.TurnsRatio, conf.Calibration)
	acc := power.NewAccumulator(conf.MainsVoltage)
	tx := telemetry.NewTransmitter(conf.CollectorURL, conf.DeviceID,
		conf.SendAttempts, conf.SendBaseDelay)

	orch := monitor.New(s, acc, tx, monitor.Config{
		Interval:         conf.Interval,
		WindowSize:       conf.WindowSize,
		AnomalyThreshold: conf.AnomalyThreshold,
		BufferCapacity:   conf.BufferCapacity,
	})

	if err := startService(orch); err != nil {
		return err
	}

	if args.MetricsAddr != "" {
		go func() {
			log.Info("Serving metrics on ", args.MetricsAddr)
			if err := metrics.Serve(args.MetricsAddr); err != nil {
				log.Error("Metrics server stopped: ", err)
			}
		}()
	}

	// Until a network collaborator reports otherwise assume the link is
	// up, a failed send is handled the same way either way.
	orch.Send(monitor.LinkEvent{State: monitor.Connected})

	log.Infof("Reporting to %s as %q every %s", conf.CollectorURL, conf.DeviceID, conf.Interval)
	orch.Run(make(chan struct{}))
	return nil
}

func openSource(conf *config.Config) (sampler.Source, error) {
	if conf.Source == "serial" {
		log.Infof("Sampling from serial sensor on %s", conf.SerialDevice)
		return sampler.NewSerialSource(conf.SerialDevice, conf.SerialBaud)
	}

	if _, err := host.Init(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open("")
	if err != nil {
		return nil, err
	}
	channel, err := adcChannel(conf.ADCChannel)
	if err != nil {
		return nil, err
	}
	log.Infof("Sampling from ADS1115 channel %d", conf.ADCChannel)
	return sampler.NewADCSource(bus, channel)
}

func adcChannel(n int) (ads1x15.Channel, error) {
	switch n {
	case 0:
		return ads1x15.Channel0, nil
	case 1:
		return ads1x15.Channel1, nil
	case 2:
		return ads1x15.Channel2, nil
	case 3:
		return ads1x15.Channel3, nil
	default:
		return ads1x15.Channel0, fmt.Errorf("ADC channel %d out of range", n)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func cmd() *cli.Command {
	return &cli.Command{
		Name:    "omnik",
		Usage:   "Read Omnik solar inverters",
		Version: versioninfo.Short(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log requests to stderr",
			},
		},
		Commands: []*cli.Command{
			fetchCmd(),
		},
	}
}

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch one reading from each host",
		Flags: fetchFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger := zap.NewNop()
			if cmd.Bool("verbose") {
				logger = zap.Must(zap.NewDevelopment())
				defer logger.Sync()
			}

			results := fetchAll(ctx, cmd.StringSlice("host"), func(host string) omnik.Config {
				return clientConfig(cmd, host)
			}, logger)

			if err := writeResults(os.Stdout, cmd.String("format"), results); err != nil {
				return err
			}
			if failed := countFailed(results); failed > 0 {
				return fmt.Errorf("%d of %d fetches failed", failed, len(results))
			}
			return nil
		},
	}
}

func fetchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "host",
			Aliases:  []string{"H"},
			Usage:    "Inverter `HOST`, may be repeated",
			Sources:  cli.EnvVars("OMNIK_INVERTER_HOST"),
			Required: true,
		},
		&cli.StringFlag{
			Name:      "source",
			Aliases:   []string{"s"},
			Usage:     "Data source: json, html, javascript or tcp",
			Value:     string(omnik.SourceJavascript),
			Sources:   cli.EnvVars("OMNIK_INVERTER_SOURCE_TYPE"),
			Validator: validateSource,
		},
		&cli.StringFlag{
			Name:    "username",
			Usage:   "Web interface username",
			Sources: cli.EnvVars("OMNIK_INVERTER_USERNAME"),
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Web interface password",
			Sources: cli.EnvVars("OMNIK_INVERTER_PASSWORD"),
		},
		&cli.Uint32Flag{
			Name:    "serial-number",
			Usage:   "Wi-Fi module serial number, required for tcp",
			Sources: cli.EnvVars("OMNIK_INVERTER_SERIAL_NUMBER"),
		},
		&cli.UintFlag{
			Name:  "tcp-port",
			Usage: "Inverter TCP port",
			Value: omnik.DefaultTCPPort,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per host request timeout",
			Value: omnik.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:      "format",
			Aliases:   []string{"f"},
			Usage:     "Output format: json or yaml",
			Value:     formatJSON,
			Validator: validateFormat,
		},
	}
}

func clientConfig(cmd *cli.Command, host string) omnik.Config {
	return omnik.Config{
		Host:         host,
		Source:       omnik.SourceType(cmd.String("source")),
		Username:     cmd.String("username"),
		Password:     cmd.String("password"),
		SerialNumber: cmd.Uint32("serial-number"),
		TCPPort:      cmd.Uint("tcp-port"),
		Timeout:      cmd.Duration("timeout"),
	}
}

func validateSource(source string) error {
	_, err := omnik.ParseSourceType(source)
	return err
}

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

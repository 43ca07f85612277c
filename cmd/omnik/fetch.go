package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

type result struct {
	Host    string         `json:"host" yaml:"host"`
	Reading *omnik.Reading `json:"reading,omitempty" yaml:"reading,omitempty"`
	Error   string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// fetchAll reads every host concurrently. A failing host does not cancel the
// others; results keep the order of hosts.
func fetchAll(ctx context.Context, hosts []string, configFor func(host string) omnik.Config, logger *zap.Logger) []result {
	results := make([]result, len(hosts))
	var g errgroup.Group
	for i, host := range hosts {
		g.Go(func() error {
			results[i] = fetchOne(ctx, configFor(host), logger)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func fetchOne(ctx context.Context, cfg omnik.Config, logger *zap.Logger) result {
	res := result{Host: cfg.Host}
	client, err := omnik.NewClient(cfg, logger, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer client.Close()

	reading, err := client.Fetch(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Reading = reading
	return res
}

func countFailed(results []result) int {
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	return failed
}

func writeResults(w io.Writer, format string, results []result) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

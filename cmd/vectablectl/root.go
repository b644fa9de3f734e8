package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vectable"
	"github.com/hupe1980/vectable/internal/config"
)

type app struct {
	uri        string
	configPath string

	cfg  *config.Config
	conn *vectable.Connection
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "vectablectl",
		Short:         "Inspect and edit vector tables",
		Long:          `vectablectl works with the tables below a storage root (memory://, file://, s3:// or minio://).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.uri, "uri", "", "storage root (overrides VECTABLE_URI)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (defaults to VECTABLE_CONFIG)")

	root.AddCommand(
		a.tablesCmd(),
		a.createCmd(),
		a.ingestCmd(),
		a.searchCmd(),
		a.versionsCmd(),
		a.countCmd(),
		a.deleteCmd(),
	)
	return root
}

func (a *app) connect(ctx context.Context) error {
	path := a.configPath
	if path == "" {
		path = os.Getenv("VECTABLE_CONFIG")
	}
	cfg, err := config.Layered(path)
	if err != nil {
		return err
	}
	if a.uri != "" {
		cfg.URI = a.uri
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn, err := vectable.Connect(ctx, cfg.URI, cfg.Options(cfg.Logger())...)
	if err != nil {
		return err
	}
	a.cfg, a.conn = cfg, conn
	return nil
}

// parseVector reads a comma separated list of floats. An empty element or
// "null" is a null element.
func parseVector(s string) ([]*float32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("vector is required")
	}
	parts := strings.Split(s, ",")
	out := make([]*float32, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || strings.EqualFold(p, "null") {
			continue
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("vector element %d: %w", i, err)
		}
		v := float32(f)
		out[i] = &v
	}
	return out, nil
}

func parseQuery(s string) ([]float32, error) {
	vec, err := parseVector(s)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		if v == nil {
			return nil, fmt.Errorf("query element %d is null", i)
		}
		out[i] = *v
	}
	return out, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vectable"
	"github.com/hupe1980/vectable/distance"
	"github.com/hupe1980/vectable/handler"
)

func (a *app) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.conn.TableNames(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	var (
		dim    int
		metric string
	)
	cmd := &cobra.Command{
		Use:   "create <table>",
		Short: "Create an image table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dim == 0 {
				dim = a.cfg.Dimension
			}
			m := a.cfg.DistanceMetric()
			if metric != "" {
				var err error
				if m, err = distance.Parse(metric); err != nil {
					return err
				}
			}
			s, err := handler.ImageSchema(dim)
			if err != nil {
				return err
			}
			t, err := a.conn.Create(cmd.Context(), args[0], s, vectable.WithDefaultMetric(m))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (dimension %d, metric %s, version %d)\n",
				t.Name(), dim, t.Metric(), t.Version())
			return nil
		},
	}
	cmd.Flags().IntVarP(&dim, "dim", "d", 0, "vector width (defaults to the configured dimension)")
	cmd.Flags().StringVarP(&metric, "metric", "m", "", "default distance metric: l2, cosine or dot")
	return cmd
}

func (a *app) ingestCmd() *cobra.Command {
	var (
		vector      string
		location    string
		description string
	)
	cmd := &cobra.Command{
		Use:   "ingest <collection>",
		Short: "Append one image row, creating the collection if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vec, err := parseVector(vector)
			if err != nil {
				return err
			}
			h := handler.New(a.conn,
				handler.WithDimension(a.cfg.Dimension),
				handler.WithMetric(a.cfg.DistanceMetric()),
			)
			resp, err := h.Ingest(cmd.Context(), handler.IngestRequest{
				Collection:       args[0],
				Vector:           vec,
				ImageLocation:    location,
				ImageDescription: description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %d\n", resp.Message, resp.Version)
			return nil
		},
	}
	cmd.Flags().StringVarP(&vector, "vector", "v", "", "comma separated vector elements")
	cmd.Flags().StringVarP(&location, "location", "l", "", "image location")
	cmd.Flags().StringVar(&description, "description", "", "image description")
	_ = cmd.MarkFlagRequired("vector")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		vector string
		k      int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <collection>",
		Short: "Find the nearest images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQuery(vector)
			if err != nil {
				return err
			}
			h := handler.New(a.conn, handler.WithDefaultK(a.cfg.DefaultK))
			resp, err := h.Search(cmd.Context(), handler.SearchRequest{
				Collection: args[0],
				Vector:     q,
				K:          k,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DISTANCE\tLOCATION\tDESCRIPTION")
			for _, r := range resp.Results {
				fmt.Fprintf(w, "%.4f\t%s\t%s\n", r.Distance, r.ImageLocation, r.ImageDescription)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&vector, "vector", "v", "", "comma separated query vector")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of results (defaults to the configured k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response as JSON")
	_ = cmd.MarkFlagRequired("vector")
	return cmd
}

func (a *app) versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <table>",
		Short: "List published versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.conn.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			versions, err := t.Versions(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range versions {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}

func (a *app) countCmd() *cobra.Command {
	var version uint64
	cmd := &cobra.Command{
		Use:   "count <table>",
		Short: "Count live rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.conn.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("version") {
				if t, err = t.Checkout(cmd.Context(), version); err != nil {
					return err
				}
			}
			n, err := t.CountRows(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&version, "version", 0, "count at this version instead of the current one")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var column, value string
	cmd := &cobra.Command{
		Use:   "delete <table>",
		Short: "Delete rows whose string column equals a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.conn.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := t.Delete(cmd.Context(), column, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d rows (version %d)\n", n, t.Version())
			return nil
		},
	}
	cmd.Flags().StringVarP(&column, "column", "c", handler.ColumnImageLocation, "column to match")
	cmd.Flags().StringVar(&value, "value", "", "value to match")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

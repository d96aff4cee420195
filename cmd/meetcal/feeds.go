package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"meetcal/internal/datemath"
	"meetcal/internal/ics"
	"meetcal/internal/store"
)

func newImportCmd(a *app) *cobra.Command {
	var feedID string

	cmd := &cobra.Command{
		Use:   "import [file.ics ...]",
		Short: "Mirror ICS files, or every configured feed, into the store",
		Long: `Without arguments every feed in the config is fetched and reconciled.
With file arguments each file is reconciled as its own feed, named by --feed
or by the file's base name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.open(nil)
			if err != nil {
				return err
			}
			defer b.Close()

			im := a.importer(b.meetings, nil)
			var stats []ics.ImportStats
			if len(args) == 0 {
				stats, err = im.ImportAll(cmd.Context(), a.feeds())
			} else {
				for _, path := range args {
					body, rerr := os.ReadFile(path)
					if rerr != nil {
						return rerr
					}
					id := feedID
					if id == "" {
						id = "file:" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
					}
					st, ierr := im.ImportBody(cmd.Context(), id, body)
					if ierr != nil {
						return fmt.Errorf("%s: %w", path, ierr)
					}
					stats = append(stats, st)
				}
			}

			out := cmd.OutOrStdout()
			for _, st := range stats {
				cached := ""
				if st.FromCache {
					cached = " (cached)"
				}
				fmt.Fprintf(out, "%s%s: %d created, %d updated, %d deleted, %d unchanged",
					st.Feed, cached, st.Created, st.Updated, st.Deleted, st.Unchanged)
				if st.Skipped > 0 {
					fmt.Fprintf(out, ", %d skipped", st.Skipped)
				}
				fmt.Fprintln(out)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&feedID, "feed", "", "Feed ID for imported files")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var out, from, to, query string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write meetings as an ICS calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.open(nil)
			if err != nil {
				return err
			}
			defer b.Close()

			loc := a.cfg.Location()
			q := store.All()
			q.Query = query
			if from != "" {
				if q.From, err = parseDate(from, loc); err != nil {
					return err
				}
			}
			if to != "" {
				d, err := parseDate(to, loc)
				if err != nil {
					return err
				}
				q.To = datemath.EndOfDay(d)
			}

			res, err := b.meetings.ListByRange(cmd.Context(), q)
			if err != nil {
				return err
			}
			body := ics.Export(res.Items, "meetcal", time.Now())

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			_, err = io.WriteString(w, body)
			return err
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file, - for stdout")
	cmd.Flags().StringVar(&from, "from", "", "First day YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last day YYYY-MM-DD")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only meetings whose title contains this text")
	return cmd
}

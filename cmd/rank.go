package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/barberfinder/internal/finder"
	"github.com/sells-group/barberfinder/internal/geo"
	"github.com/sells-group/barberfinder/internal/geolocate"
	"github.com/sells-group/barberfinder/internal/model"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Print the ranked provider list",
	Long:  "Ranks the configured directory VIP first, then by distance from --lat/--lon when given.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		query, _ := cmd.Flags().GetString("query")
		asJSON, _ := cmd.Flags().GetBool("json")
		limit, _ := cmd.Flags().GetInt("limit")

		req := finder.Request{Query: query}
		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lon, _ := cmd.Flags().GetFloat64("lon")
			if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
				return eris.Errorf("rank: coordinates out of range: %v,%v", lat, lon)
			}
			req.Locator = geolocate.Static{Coordinates: geo.Coordinates{Latitude: lat, Longitude: lon}}
		}

		svc := finder.NewService(env.Directory, env.Engine)
		res, err := svc.Search(ctx, req)
		if err != nil {
			return eris.Wrap(err, "rank")
		}
		if msg := res.LocationMessage(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}

		entries := res.Entries
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No providers found.")
			return nil
		}
		formatRanked(os.Stdout, entries)
		return nil
	},
}

func init() {
	rankCmd.Flags().StringP("query", "q", "", "filter by name or address substring")
	rankCmd.Flags().Float64("lat", 0, "user latitude")
	rankCmd.Flags().Float64("lon", 0, "user longitude")
	rankCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rankCmd.Flags().Int("limit", 0, "max number of providers to print (0 for all)")
	rootCmd.AddCommand(rankCmd)
}

// formatRanked writes a tabular ranked list to out.
func formatRanked(out io.Writer, entries []model.RankedEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tNAME\tVIP\tDISTANCE\tRATING\tOPEN")
	_, _ = fmt.Fprintln(w, "-\t--\t----\t---\t--------\t------\t----")

	for _, e := range entries {
		p := e.Provider
		vipCol := ""
		if p.VIP {
			vipCol = "VIP"
		}
		dist := "-"
		if e.Distance.Valid {
			dist = fmt.Sprintf("%.1f km", e.Distance.KM)
		}
		open := "closed"
		if p.IsOpen {
			open = "open"
		}
		name := p.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.1f (%d)\t%s\n",
			e.RankIndex+1,
			p.ID,
			name,
			vipCol,
			dist,
			p.Rating,
			p.ReviewCount,
			open,
		)
	}
	_ = w.Flush()
}

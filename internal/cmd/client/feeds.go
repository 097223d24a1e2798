package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type feedInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	URI     string `json:"uri"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error"`
}

// NewFeedsCommand lists the feeds a running server serves.
func NewFeedsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "feeds",
		Short: "List configured feeds and their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Feeds []feedInfo `json:"feeds"`
			}
			if err := getJSON(cmd.Context(), baseURL()+"/v1/feeds", &resp); err != nil {
				return err
			}
			rows := make([][]string, 0, len(resp.Feeds))
			for _, f := range resp.Feeds {
				status := "ok"
				if !f.Healthy {
					status = f.Error
				}
				rows = append(rows, []string{f.Name, f.Kind, f.URI, status})
			}
			out := renderTable([]string{"NAME", "KIND", "URI", "STATUS"}, rows, func(i int) bool {
				return i >= 0 && i < len(resp.Feeds) && !resp.Feeds[i].Healthy
			})
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

type debugRow struct {
	URI       string    `json:"uri"`
	Score     float64   `json:"score"`
	CreatedAt string    `json:"created_at"`
	AgeSec    float64   `json:"age_sec"`
	Counters  []float64 `json:"counters"`
	Langs     []string  `json:"langs"`
	Tags      []string  `json:"tags"`
}

// NewDebugCommand shows a feed's ranking with the inputs of each score.
func NewDebugCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug FEED",
		Short: "Show a feed's ranked items with their scores",
		Long:  "FEED is a configured feed name or a feed URI. Wildcard feeds take --param.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			cursor, _ := cmd.Flags().GetString("cursor")
			param, _ := cmd.Flags().GetString("param")
			q := url.Values{"feed": {args[0]}}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			if param != "" {
				q.Set("param", param)
			}
			var resp struct {
				Feed string     `json:"feed"`
				Kind string     `json:"kind"`
				Rows []debugRow `json:"rows"`
			}
			if err := getJSON(cmd.Context(), baseURL()+"/debug/feed?"+q.Encode(), &resp); err != nil {
				return err
			}
			rows := make([][]string, 0, len(resp.Rows))
			for i, r := range resp.Rows {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					strconv.FormatFloat(r.Score, 'f', 3, 64),
					formatAge(r.AgeSec),
					formatCounters(r.Counters),
					strings.Join(r.Langs, ","),
					r.URI,
				})
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%s (%s)\n", resp.Feed, resp.Kind)
			_, _ = fmt.Fprintln(w, renderTable([]string{"#", "SCORE", "AGE", "COUNTERS", "LANGS", "URI"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Number of items to show")
	cmd.Flags().String("cursor", "", "Continue from a previous page")
	cmd.Flags().String("param", "", "Wildcard route parameter (for example a team code)")
	return cmd
}

func formatAge(sec float64) string {
	switch {
	case sec < 120:
		return fmt.Sprintf("%.0fs", sec)
	case sec < 2*3600:
		return fmt.Sprintf("%.0fm", sec/60)
	case sec < 2*86400:
		return fmt.Sprintf("%.1fh", sec/3600)
	}
	return fmt.Sprintf("%.1fd", sec/86400)
}

func formatCounters(cs []float64) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = strconv.FormatFloat(c, 'f', -1, 64)
	}
	return strings.Join(parts, "/")
}

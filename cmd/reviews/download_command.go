package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/reviews-extractor/internal/export"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var preview int

	cmd := &cobra.Command{
		Use:   "download <fileName>",
		Short: "Download a generated spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			path, err := downloadTo(cmd.Context(), client, args[0], outDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatusLine(filepath.Base(path), statusOK, "saved "+path, shouldColorize(out)))
			if preview <= 0 {
				return nil
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			reviews, err := export.ReadReviews(f)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, preview)
			for i, r := range reviews {
				if i == preview {
					break
				}
				rows = append(rows, []string{r.Time, r.Rating, truncateRunes(r.Content, 60)})
			}
			fmt.Fprintln(out, renderTable([]string{"Time", "Rating", "Content"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
			fmt.Fprintf(out, "%d reviews total\n", len(reviews))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "Directory to save into")
	cmd.Flags().IntVar(&preview, "preview", 0, "Print the first N reviews after downloading")
	return cmd
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

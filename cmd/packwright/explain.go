// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/packwright/packwright/internal/issue"
)

func newExplainCommand(app *App) *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "explain [issue-id]",
		Short: "Show troubleshooting guidance",
		Long: `Without an argument, list the troubleshooting pages. With an issue id,
render that page.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, page := range issue.Values() {
					fmt.Fprintf(app.stdout, "%s  %s\n", CmdStyle.Render(fmt.Sprintf("%2d", page.Id())), page.Title())
				}
				return nil
			}

			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("issue id must be a number, got %q", args[0])
			}
			page := issue.Get(issue.Id(n))
			if page == nil {
				return fmt.Errorf("no issue with id %d; run 'packwright explain' for the list", n)
			}
			rendered, err := page.Render(style)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, rendered)
			return nil
		},
	}
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style: dark, light, notty or ascii")
	return cmd
}

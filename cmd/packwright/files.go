// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFilesCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var function, layer string

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List the files an archive would contain",
		Long: `List the files selected by the include / exclude patterns, one per line.

Without flags the aggregate service archive is listed. Layer paths are
relative to the layer directory; all other paths are relative to the
service root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(flags, func() error {
				sess, err := app.newSession(cmd.Context(), flags)
				if err != nil {
					return err
				}

				var files []string
				switch {
				case function != "":
					files, err = sess.packager.FunctionFiles(function)
				case layer != "":
					files, err = sess.packager.LayerFiles(layer)
				default:
					files, err = sess.packager.ServiceFiles()
				}
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(app.stdout, f)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&function, "function", "f", "", "list the files of this function")
	cmd.Flags().StringVarP(&layer, "layer", "l", "", "list the files of this layer")
	cmd.MarkFlagsMutuallyExclusive("function", "layer")
	return cmd
}

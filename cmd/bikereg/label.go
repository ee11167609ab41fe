package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/bikereg/internal/barcode"
)

func newLabelCmd() *cobra.Command {
	var (
		output string
		format string
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "label <engine-number>",
		Short: "Write a printable barcode label for an engine number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = args[0] + ".png"
			}
			if err := barcode.WritePNG(output, args[0], format, width, height); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s label for %s to %s\n", format, args[0], output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output PNG path (default: <engine-number>.png)")
	cmd.Flags().StringVar(&format, "format", barcode.FormatCode128, "label format: CODE_128 or QR_CODE")
	cmd.Flags().IntVar(&width, "width", 400, "label width in pixels")
	cmd.Flags().IntVar(&height, "height", 120, "label height in pixels")
	return cmd
}

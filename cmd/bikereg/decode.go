package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/bikereg/internal/barcode"
)

func newDecodeCmd() *cobra.Command {
	var formats []string

	cmd := &cobra.Command{
		Use:   "decode <image>...",
		Short: "Decode engine-number barcodes from image files",
		Long:  "Reads PNG or JPEG images and prints the barcode text and symbology found in each.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd, args, formats)
		},
	}

	cmd.Flags().StringSliceVar(&formats, "format", nil, "barcode formats to try (default: all supported)")
	return cmd
}

func runDecode(cmd *cobra.Command, paths []string, formats []string) error {
	out := cmd.OutOrStdout()

	dec, err := barcode.New(formats...)
	if err != nil {
		return err
	}

	var failed int
	for _, p := range paths {
		result, err := dec.DecodeFile(p)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", p, err)
			failed++
			continue
		}
		if len(paths) == 1 {
			fmt.Fprintf(out, "%s (%s)\n", result.GetText(), result.GetBarcodeFormat())
			continue
		}
		fmt.Fprintf(out, "%s: %s (%s)\n", p, result.GetText(), result.GetBarcodeFormat())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images could not be decoded", failed, len(paths))
	}
	return nil
}

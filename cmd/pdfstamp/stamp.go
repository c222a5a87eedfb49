package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfstamp/compliance"
	"github.com/wudi/pdfstamp/stamp"
)

func newStampCmd(g *globals) *cobra.Command {
	var (
		req                  stamp.Request
		x, y, opacity, scale float64
		width, height        float64
		image, markup        string
		markdown, overlay    string
		validate             bool
	)
	cmd := &cobra.Command{
		Use:   "stamp <input.pdf>",
		Short: "Apply one stamp to the selected pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				file []byte
				err  error
			)
			switch {
			case req.Text != "":
				req.Type = string(stamp.KindText)
			case image != "":
				req.Type = string(stamp.KindImage)
				file, err = os.ReadFile(image)
			case markup != "":
				req.Type = "html"
				file, err = os.ReadFile(markup)
			case markdown != "":
				req.Type = "markdown"
				file, err = os.ReadFile(markdown)
			case overlay != "":
				req.Type = string(stamp.KindOverlay)
				file, err = os.ReadFile(overlay)
			default:
				return fmt.Errorf("one of --text, --image, --markup, --markdown or --overlay is required")
			}
			if err != nil {
				return fmt.Errorf("read stamp file: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("x") {
				req.X = &x
			}
			if flags.Changed("y") {
				req.Y = &y
			}
			if flags.Changed("opacity") {
				req.Opacity = &opacity
			}
			if flags.Changed("scale") {
				req.Scale = &scale
			}
			if flags.Changed("width") {
				req.StampWidth = &width
			}
			if flags.Changed("height") {
				req.StampHeight = &height
			}
			spec, err := req.Spec(file)
			if err != nil {
				return err
			}

			opts := []stamp.DispatcherOption{stamp.WithLogger(g.logger)}
			if validate {
				opts = append(opts, stamp.WithValidator(compliance.NewValidator()))
			}
			d := stamp.NewDispatcher(opts...)
			return g.transform(cmd, args, func(ctx context.Context, doc []byte) ([]byte, error) {
				return d.Apply(ctx, doc, spec)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Text, "text", "", "stamp this text")
	f.StringVar(&image, "image", "", "stamp this image file (png, jpeg, gif, webp, bmp, tiff)")
	f.StringVar(&markup, "markup", "", "stamp this HTML file")
	f.StringVar(&markdown, "markdown", "", "stamp this Markdown file")
	f.StringVar(&overlay, "overlay", "", "stamp the first page of this PDF")
	f.Float64Var(&req.FontSize, "font-size", stamp.DefaultFontSize, "text size in points")
	f.StringVar(&req.FontColor, "font-color", stamp.DefaultFontColor, "text colour as #RRGGBB")
	f.StringVar(&req.Position, "position", "CENTER", "CENTER, TOP_LEFT, ..., HEADER, FOOTER, LEFT_MARGIN, RIGHT_MARGIN or CUSTOM")
	f.Float64Var(&x, "x", 0, "x coordinate for CUSTOM placement")
	f.Float64Var(&y, "y", 0, "y coordinate for CUSTOM placement")
	f.Float64Var(&opacity, "opacity", 1, "opacity between 0 and 1")
	f.Float64Var(&req.Rotation, "rotation", 0, "rotation in degrees, counter-clockwise")
	f.Float64Var(&scale, "scale", 1, "scale factor")
	f.StringVar(&req.Pages, "pages", stamp.PagesAll, "ALL, FIRST, LAST or a list such as 1,3,5-7")
	f.Float64Var(&width, "width", 0, "fit the stamp into this width")
	f.Float64Var(&height, "height", 0, "fit the stamp into this height")
	f.BoolVar(&validate, "validate", false, "validate the output with pdfcpu")
	cmd.MarkFlagsMutuallyExclusive("text", "image", "markup", "markdown", "overlay")
	return cmd
}

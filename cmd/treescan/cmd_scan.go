package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"rehla/internal/scan"
	"rehla/internal/scan/filecam"
	"rehla/internal/scan/zxing"
	"rehla/internal/serial"
)

func (a *app) resolveCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve <payload>",
		Short: "Print the serial number encoded in a QR payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.extractor(cmd.ErrOrStderr()).Resolve(cmd.Context(), args[0])
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), res.Serial)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full resolution as JSON")
	return cmd
}

func (a *app) framesFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVar(dir, "frames", "", "camera frames directory (overrides config)")
}

func (a *app) camera(dir string, opts ...filecam.Option) *filecam.Camera {
	if dir == "" {
		dir = a.cfg.Scan.FramesDir
	}
	return filecam.New(dir, opts...)
}

func (a *app) devicesCmd() *cobra.Command {
	var frames string
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List cameras, rear-facing first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := a.camera(frames).EnumerateDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", scan.UserMessage(err), err)
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				_, err := fmt.Fprintln(out, "no cameras found")
				return err
			}
			for _, d := range scan.SortDevices(devices) {
				facing := "front"
				if d.RearFacing {
					facing = "rear"
				}
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", d.ID, facing, d.Label); err != nil {
					return err
				}
			}
			return nil
		},
	}
	a.framesFlag(cmd, &frames)
	return cmd
}

func (a *app) scanCmd() *cobra.Command {
	var (
		frames   string
		deviceID string
		timeout  time.Duration
		loop     bool
		profile  bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Read the first tree tag seen by the camera",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var camOpts []filecam.Option
			if loop {
				camOpts = append(camOpts, filecam.WithLoop())
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			extractor := a.extractor(cmd.ErrOrStderr())
			got, err := scan.ScanOnce(ctx, a.camera(frames, camOpts...), zxing.Decoder{}, extractor, deviceID,
				scan.WithFrameInterval(a.cfg.Scan.FrameInterval),
				scan.WithLogger(a.logger),
			)
			if err != nil {
				return fmt.Errorf("%s: %w", scan.UserMessage(err), err)
			}

			if !profile {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), got)
				return err
			}
			return a.printProfile(cmd, got)
		},
	}
	a.framesFlag(cmd, &frames)
	cmd.Flags().StringVar(&deviceID, "device", "", "camera id (default: first rear camera)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long, 0 waits forever")
	cmd.Flags().BoolVar(&loop, "loop", false, "replay frames until a tag is found")
	cmd.Flags().BoolVar(&profile, "profile", false, "look up the scanned tree in the CMS")
	return cmd
}

func (a *app) encodeCmd() *cobra.Command {
	var (
		output string
		size   int
	)
	cmd := &cobra.Command{
		Use:   "encode <serial>",
		Short: "Write a tree tag QR code as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			if a.cfg.Resolver.ExpectedDomain != "" && !serial.Resolve(text, "").IsURL {
				text = "https://" + a.cfg.Resolver.ExpectedDomain + "/" + text
			}
			img, err := zxing.Encode(text, size)
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0] + ".png"
			}
			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			if err := png.Encode(f, img); err != nil {
				_ = f.Close()
				return fmt.Errorf("encode png: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", text, output)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG path (default <serial>.png)")
	cmd.Flags().IntVar(&size, "size", 256, "image size in pixels")
	return cmd
}

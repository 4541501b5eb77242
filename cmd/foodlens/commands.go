package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/foodlens/internal/capture"
	"github.com/yungbote/foodlens/internal/domain/product"
	"github.com/yungbote/foodlens/internal/resolve"
)

func init() {
	rootCmd.AddCommand(askCmd, codeCmd, scanCmd, analyzeCmd, watchCmd)
	watchCmd.Flags().Float64Var(&watchFPS, "fps", 0, "frames per second to replay (defaults to capture.frames_per_second)")
	watchCmd.Flags().BoolVar(&watchLoop, "loop", false, "replay the directory until a barcode is found")
}

var (
	watchFPS  float64
	watchLoop bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := newRenderer(cmd.OutOrStdout())
		theApp.Chat.OnUpdate(r.update)
		msg, err := theApp.Chat.Send(cmd.Context(), strings.Join(args, " "), nil)
		if msg != nil {
			r.update(msg.Snapshot())
		}
		r.finish()
		return quiet(err)
	},
}

var codeCmd = &cobra.Command{
	Use:   "code <barcode>",
	Short: "Resolve a barcode number and ask about the product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := theApp.Pipeline.ResolveCode(cmd.Context(), args[0])
		return deliver(cmd, res)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Find a barcode in a photo and ask about the product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveFile(cmd, args[0], resolve.ModeBarcode)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Ask about a product photo without looking for a barcode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveFile(cmd, args[0], resolve.ModeProduct)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Replay image frames from a directory as a live camera",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fps := watchFPS
		if fps <= 0 {
			fps = theApp.Cfg.Capture.FramesPerSecond
		}
		reg := capture.NewRegistry(capture.NewDirDevice(theApp.Log, args[0], fps, watchLoop))
		session, err := theApp.OpenCamera(cmd.Context(), reg, "watch")
		if err != nil {
			return cameraError(err)
		}
		defer session.Close()

		res, err := session.Scan(cmd.Context())
		if errors.Is(err, capture.ErrNoBarcode) {
			fmt.Fprintln(cmd.ErrOrStderr(), "No barcode found in the frames.")
			return errShown
		}
		if err != nil {
			return err
		}
		_ = session.Close()
		return deliver(cmd, res)
	},
}

func resolveFile(cmd *cobra.Command, path string, mode resolve.Mode) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	res := theApp.Pipeline.ResolveUpload(cmd.Context(), raw, path, mode)
	return deliver(cmd, res)
}

func deliver(cmd *cobra.Command, res product.Result) error {
	out := cmd.OutOrStdout()
	if flagNoChat {
		printResolution(out, res)
		return nil
	}
	if res.Kind == product.KindGenericFallback {
		fmt.Fprintln(cmd.ErrOrStderr(), "Product not found; using a generic approximation.")
	}
	r := newRenderer(out)
	theApp.Chat.OnUpdate(r.update)
	msg, err := theApp.Chat.SendResolution(cmd.Context(), res)
	if msg != nil {
		r.update(msg.Snapshot())
	}
	r.finish()
	return quiet(err)
}

// quiet hides errors the user already saw as an apology.
func quiet(err error) error {
	if err == nil {
		return nil
	}
	theApp.Log.Debug("request ended with error", "error", err)
	return errShown
}

var errShown = errors.New("request failed")

func cameraError(err error) error {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return fmt.Errorf("camera permission denied: %w", err)
	case errors.Is(err, capture.ErrNoDevice):
		return fmt.Errorf("no frames available: %w", err)
	case errors.Is(err, capture.ErrDeviceBusy):
		return fmt.Errorf("camera is busy: %w", err)
	default:
		return err
	}
}

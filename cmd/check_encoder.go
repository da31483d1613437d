package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/screenrec/internal/capture"
	"github.com/smazurov/screenrec/internal/convert"
	"github.com/smazurov/screenrec/internal/encoder"
	"github.com/smazurov/screenrec/internal/ffmpeg"
	"github.com/smazurov/screenrec/internal/frame"
	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/pacing"
	"github.com/smazurov/screenrec/internal/pipeline"
	"github.com/spf13/cobra"
)

const checkTimeout = 30 * time.Second

// CheckOptions are the flags of the check-encoder command.
type CheckOptions struct {
	Encoder     string
	Codec       string
	FFmpegPath  string
	PixelFormat string
	Width       int
	Height      int
	Frames      uint64
	Keep        bool
}

// CreateCheckEncoderCmd creates the check-encoder command.
func CreateCheckEncoderCmd() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check-encoder",
		Short: "Verify an encoder by recording a few synthetic frames",
		Long: `Runs a short recording of the synthetic test pattern through the full pipeline ` +
			`with the chosen encoder and writes it to a temporary file. For ffmpeg the codec ` +
			`is first looked up in the encoder list of the binary.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})
			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()
			return CheckEncoder(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Encoder, "encoder", "ffmpeg", "Encoder backend (ffmpeg, y4m)")
	cmd.Flags().StringVar(&opts.Codec, "codec", "libx264", "ffmpeg video codec")
	cmd.Flags().StringVar(&opts.FFmpegPath, "ffmpeg-path", ffmpeg.DefaultBinary, "ffmpeg binary")
	cmd.Flags().StringVar(&opts.PixelFormat, "pixel-format", "i420", "Encoder input format (i420, yv12, nv12)")
	cmd.Flags().IntVar(&opts.Width, "width", 320, "Frame width")
	cmd.Flags().IntVar(&opts.Height, "height", 240, "Frame height")
	cmd.Flags().Uint64Var(&opts.Frames, "frames", 30, "Frames to encode")
	cmd.Flags().BoolVar(&opts.Keep, "keep", false, "Keep the output file")

	return cmd
}

// CheckEncoder records opts.Frames synthetic frames and reports the result.
func CheckEncoder(ctx context.Context, opts *CheckOptions, out io.Writer) error {
	kind, err := encoder.ParseKind(opts.Encoder)
	if err != nil {
		return err
	}
	pixFmt, err := frame.ParseFormat(opts.PixelFormat)
	if err != nil {
		return err
	}

	if kind == encoder.KindFFmpeg {
		list, listErr := ffmpeg.ListEncoders(ctx, opts.FFmpegPath)
		if listErr != nil {
			return listErr
		}
		if !ffmpeg.HasEncoder(list, opts.Codec) {
			return fmt.Errorf("%s does not offer encoder %q", opts.FFmpegPath, opts.Codec)
		}
	}

	dir, err := os.MkdirTemp("", "screenrec-check-")
	if err != nil {
		return err
	}
	if !opts.Keep {
		defer os.RemoveAll(dir)
	}
	output := filepath.Join(dir, "check."+checkExtension(kind, opts.Codec))

	driver, err := pipeline.Open(pipeline.Settings{
		Source:      capture.KindSynthetic,
		Width:       opts.Width,
		Height:      opts.Height,
		FPS:         30,
		Frames:      opts.Frames,
		Policy:      pacing.PolicyExtend,
		Converter:   convert.KindCPU,
		PixelFormat: pixFmt,
		Encoder:     kind,
		FFmpegPath:  opts.FFmpegPath,
		Codec:       opts.Codec,
		Output:      output,
	}, nil)
	if err != nil {
		return err
	}

	stats, err := driver.Run(ctx)
	if err != nil {
		return fmt.Errorf("encoder check failed: %w", err)
	}
	if stats.Encoded != opts.Frames || stats.Bytes == 0 {
		return fmt.Errorf("encoder check failed: %d of %d frames, %d bytes", stats.Encoded, opts.Frames, stats.Bytes)
	}

	name := string(kind)
	if kind == encoder.KindFFmpeg {
		name += "/" + opts.Codec
	}
	fmt.Fprintf(out, "%s ok: %d frames, %d bytes in %s\n", name, stats.Encoded, stats.Bytes, stats.Elapsed.Round(time.Millisecond))
	if opts.Keep {
		fmt.Fprintf(out, "output kept at %s\n", output)
	}
	return nil
}

func checkExtension(kind encoder.Kind, codec string) string {
	if kind == encoder.KindY4M {
		return "y4m"
	}
	return ffmpeg.StreamFormat(codec)
}

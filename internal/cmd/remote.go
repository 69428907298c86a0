package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Iron-Ham/haunt/internal/command"
	"github.com/Iron-Ham/haunt/internal/control"
	"github.com/Iron-Ham/haunt/internal/orchestrator"
	"github.com/Iron-Ham/haunt/internal/presence"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// requestTimeout bounds a single control API call.
const requestTimeout = 10 * time.Second

// newClient is replaced in tests.
var newClient = func() *control.Client {
	return control.NewClient(viper.GetString("control.addr"), nil)
}

func actionCommand(action command.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, string(action))
		},
	}
}

var commentCmd = &cobra.Command{
	Use:   "comment [prompt...]",
	Short: "Ask the companion to comment on the screen",
	Long: `Ask the companion to comment on the screen. It appears first if it is
hidden. Any words given are passed along as the prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, string(command.Comment), args...)
	},
}

var sayCmd = &cobra.Command{
	Use:   "say <words...>",
	Short: "Talk to the companion in plain words",
	Long: `Send free text to the companion. The words are matched against the
command phrases, e.g.:
  haunt say come here
  haunt say go away
  haunt say how do you feel`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(cmd, strings.Join(args, " "))
	},
}

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's current state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Feed camera observations to the daemon",
}

var (
	sampleNoFace     bool
	sampleExpression string
	sampleScore      float64
	sampleConfidence float64
	sampleX          float64
	sampleY          float64
)

var cameraSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Send one presence sample",
	Args:  cobra.NoArgs,
	RunE:  runCameraSample,
}

var cameraErrorCmd = &cobra.Command{
	Use:   "error <message...>",
	Short: "Report a camera failure",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		if err := newClient().ReportCameraError(ctx, strings.Join(args, " ")); err != nil {
			return explain(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "camera failure reported")
		return nil
	},
}

var (
	tuneIdleThreshold string
	tuneAutoDismiss   string
	tuneAudio         bool
	tuneFullscreen    bool
	tuneCamera        bool
	tuneInvasion      bool
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Change live settings without touching the config file",
	Long: `Change the live-reloadable settings of a running daemon. Only the flags
given are changed, e.g.:
  haunt tune --idle-threshold 5m
  haunt tune --camera=false --auto-dismiss 0s
  haunt tune --invasion=false`,
	Args: cobra.NoArgs,
	RunE: runTune,
}

func init() {
	rootCmd.AddCommand(
		actionCommand(command.Summon, "Bring the companion out"),
		actionCommand(command.Hide, "Send the companion away"),
		actionCommand(command.Toggle, "Summon or hide the companion"),
		actionCommand(command.Mood, "Ask how the companion feels"),
		commentCmd,
		sayCmd,
		statusCmd,
		cameraCmd,
		tuneCmd,
	)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	cameraCmd.AddCommand(cameraSampleCmd, cameraErrorCmd)
	cameraSampleCmd.Flags().BoolVar(&sampleNoFace, "no-face", false, "report that no face is visible")
	cameraSampleCmd.Flags().StringVar(&sampleExpression, "expression", "neutral", "facial expression label")
	cameraSampleCmd.Flags().Float64Var(&sampleScore, "score", 1, "expression score")
	cameraSampleCmd.Flags().Float64Var(&sampleConfidence, "confidence", 1, "detection confidence")
	cameraSampleCmd.Flags().Float64Var(&sampleX, "x", 0, "horizontal face position in [-1, 1]")
	cameraSampleCmd.Flags().Float64Var(&sampleY, "y", 0, "vertical face position in [-1, 1]")

	tuneCmd.Flags().StringVar(&tuneIdleThreshold, "idle-threshold", "", "idle time before appearing")
	tuneCmd.Flags().StringVar(&tuneAutoDismiss, "auto-dismiss", "", "leave after this long without interaction")
	tuneCmd.Flags().BoolVar(&tuneAudio, "audio-reactive", true, "react to system audio")
	tuneCmd.Flags().BoolVar(&tuneFullscreen, "fullscreen-suppress", true, "stay hidden over fullscreen apps")
	tuneCmd.Flags().BoolVar(&tuneCamera, "camera", true, "use camera presence samples")
	tuneCmd.Flags().BoolVar(&tuneInvasion, "invasion", true, "let invaders appear during long idle stretches")
}

func sendCommand(cmd *cobra.Command, input string, args ...string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	reply, err := newClient().Command(ctx, input, args...)
	if err != nil {
		return explain(err)
	}
	printReply(cmd.OutOrStdout(), reply)
	if !reply.OK {
		return fmt.Errorf("%s: %s", reply.Action, reply.Message)
	}
	return nil
}

func printReply(out io.Writer, r orchestrator.Reply) {
	msg := r.Message
	if msg == "" {
		msg = "ok"
	}
	fmt.Fprintf(out, "%s: %s\n", r.Action, msg)
	if r.Status != nil {
		fmt.Fprintln(out, r.Status.Summary())
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	snap, err := newClient().Status(ctx)
	if err != nil {
		return explain(err)
	}
	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintln(out, snap.Summary())
	if snap.RunID != "" {
		fmt.Fprintf(out, "run: %s\n", snap.RunID)
	}
	fmt.Fprintf(out, "idle threshold: %s\n", snap.IdleThreshold)
	if len(snap.Timers) > 0 {
		fmt.Fprintf(out, "timers: %s\n", strings.Join(snap.Timers, ", "))
	}
	return nil
}

func runCameraSample(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	s := presence.Sample{
		At:           time.Now(),
		FaceDetected: !sampleNoFace,
		FaceX:        sampleX,
		FaceY:        sampleY,
		Confidence:   sampleConfidence,
		Expression:   sampleExpression,
		Score:        sampleScore,
	}
	if err := newClient().SendSample(ctx, s); err != nil {
		return explain(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "sample sent")
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	var req control.ConfigRequest
	flags := cmd.Flags()
	if flags.Changed("idle-threshold") {
		req.IdleThreshold = &tuneIdleThreshold
	}
	if flags.Changed("auto-dismiss") {
		req.AutoDismiss = &tuneAutoDismiss
	}
	if flags.Changed("audio-reactive") {
		req.AudioReactive = &tuneAudio
	}
	if flags.Changed("fullscreen-suppress") {
		req.FullscreenSuppress = &tuneFullscreen
	}
	if flags.Changed("camera") {
		req.CameraEnabled = &tuneCamera
	}
	if flags.Changed("invasion") {
		req.InvasionEnabled = &tuneInvasion
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	fields, err := newClient().ApplyConfig(ctx, req)
	if err != nil {
		return explain(err)
	}
	if len(fields) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to change")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied: %s\n", strings.Join(fields, ", "))
	return nil
}

// explain adds a hint when the daemon cannot be reached.
func explain(err error) error {
	var apiErr *control.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("daemon did not answer in time: %w", err)
	}
	return fmt.Errorf("cannot reach the haunt daemon at %s (is 'haunt run' active?): %w",
		viper.GetString("control.addr"), err)
}

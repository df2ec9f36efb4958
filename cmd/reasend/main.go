// Package main is the entry point for the reasend CLI
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/james-see/reasend/pkg/api"
	"github.com/james-see/reasend/pkg/config"
	"github.com/james-see/reasend/pkg/host"
	"github.com/james-see/reasend/pkg/host/memhost"
	"github.com/james-see/reasend/pkg/host/remote"
	"github.com/james-see/reasend/pkg/routing"
	"github.com/james-see/reasend/pkg/send"
	"github.com/james-see/reasend/pkg/tui"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	hostURL    string
	verbose    bool

	outputFile string
	routeFlags int
	strict     bool
	disabled   bool

	sendKind  string
	sendIndex int

	serverPort int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reasend",
	Short: "Inspect and edit DAW track sends",
	Long: `reasend drives the sends, receives and hardware outputs of DAW tracks
through the host's send primitives, and packs and unpacks the MIDI routing
flags of a send.

Without --host it works on the in-memory project from the config file.

Examples:
  reasend flags decode 12615685
  reasend flags encode 2 5 3 0
  reasend flags encode --disabled
  reasend route in.mid --flags 12615685 -o out.mid
  reasend tracks --host http://localhost:8080
  reasend send info Drums --index 0
  reasend send mute Drums --kind hardware
  reasend serve --port 8080
  reasend tui`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Pack and unpack I_MIDIFLAGS values",
}

var flagsDecodeCmd = &cobra.Command{
	Use:   "decode <flags>",
	Short: "Decode a flags value into (bus, channel) endpoints",
	Long: `Decodes an I_MIDIFLAGS value. Put negative values after --:

  reasend flags decode -- -1`,
	Args: cobra.ExactArgs(1),
	RunE: runFlagsDecode,
}

var flagsEncodeCmd = &cobra.Command{
	Use:   "encode [--disabled | <src-bus> <src-ch> <dst-bus> <dst-ch>]",
	Short: "Encode endpoints into a flags value",
	Long: `Encodes a MIDI routing. --disabled prints the "MIDI send disabled" value,
which is also what -1 for every component gives. Put negative components
after --:

  reasend flags encode --disabled
  reasend flags encode -- -1 -1 -1 -1`,
	Args: func(cmd *cobra.Command, args []string) error {
		if disabled {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(4)(cmd, args)
	},
	RunE: runFlagsEncode,
}

var routeCmd = &cobra.Command{
	Use:   "route <input.mid>",
	Short: "Apply a send's MIDI routing to a MIDI file",
	Long:  `Keeps only the events a send with the given flags would pass and moves them to its destination channel.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRoute,
}

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List project tracks and their routing counts",
	RunE:  runTracks,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Read and change one send",
	Long:  `Addresses a send by track (name or id), --kind and --index.`,
}

var sendInfoCmd = &cobra.Command{
	Use:   "info <track>",
	Short: "Show every property of a send",
	Args:  cobra.ExactArgs(1),
	RunE:  runSendInfo,
}

var sendGetCmd = &cobra.Command{
	Use:   "get <track> <param>",
	Short: "Read a raw send parameter, e.g. D_VOL",
	Args:  cobra.ExactArgs(2),
	RunE:  runSendGet,
}

var sendSetCmd = &cobra.Command{
	Use:   "set <track> <param> <value>",
	Short: "Write a raw send parameter",
	Args:  cobra.ExactArgs(3),
	RunE:  runSendSet,
}

var sendMuteCmd = &cobra.Command{
	Use:   "mute <track>",
	Short: "Mute a send",
	Args:  cobra.ExactArgs(1),
	RunE:  sendAction("muted", (*send.Send).Mute),
}

var sendUnmuteCmd = &cobra.Command{
	Use:   "unmute <track>",
	Short: "Unmute a send",
	Args:  cobra.ExactArgs(1),
	RunE:  sendAction("unmuted", (*send.Send).Unmute),
}

var sendFlipCmd = &cobra.Command{
	Use:   "flip <track>",
	Short: "Toggle the phase of a send",
	Args:  cobra.ExactArgs(1),
	RunE:  sendAction("phase flipped", (*send.Send).FlipPhase),
}

var sendDeleteCmd = &cobra.Command{
	Use:   "delete <track>",
	Short: "Remove a send from its track",
	Args:  cobra.ExactArgs(1),
	RunE:  sendAction("deleted", (*send.Send).Delete),
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the in-memory project over the bridge API",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&hostURL, "host", "", "Bridge server URL, e.g. http://localhost:8080")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	// flags command
	flagsEncodeCmd.Flags().BoolVar(&strict, "strict", false, "Reject components outside their field width")
	flagsEncodeCmd.Flags().BoolVar(&disabled, "disabled", false, "Encode the disabled routing")
	flagsCmd.AddCommand(flagsDecodeCmd, flagsEncodeCmd)

	// route command
	routeCmd.Flags().IntVar(&routeFlags, "flags", 0, "I_MIDIFLAGS value of the send")
	routeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")
	_ = routeCmd.MarkFlagRequired("flags")

	// send commands
	sendCmd.PersistentFlags().StringVarP(&sendKind, "kind", "k", string(send.KindSend), "send, receive or hardware")
	sendCmd.PersistentFlags().IntVarP(&sendIndex, "index", "i", 0, "Index of the send on its track")
	sendCmd.AddCommand(sendInfoCmd, sendGetCmd, sendSetCmd, sendMuteCmd, sendUnmuteCmd, sendFlipCmd, sendDeleteCmd)

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (default from config)")

	// Add commands
	rootCmd.AddCommand(flagsCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(tracksCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openHost connects to the bridge given by --host or the config, or loads
// the config's project into an in-memory host
func openHost(ctx context.Context, cfg *config.Config, log *slog.Logger) (host.Host, func(), error) {
	url := hostURL
	if url == "" {
		url = cfg.Client.Host
	}
	if url != "" {
		log.Debug("using bridge", "url", url)
		return remote.New(url, remote.WithTimeout(cfg.Client.Timeout())), func() {}, nil
	}

	h := memhost.New(memhost.WithLogger(log), memhost.WithExtension(cfg.Project.Extension))
	if err := h.Load(ctx, cfg.Project.Project()); err != nil {
		_ = h.Close()
		return nil, nil, fmt.Errorf("failed to load project: %w", err)
	}
	log.Debug("using in-memory project", "tracks", len(cfg.Project.Tracks))
	return h, func() { _ = h.Close() }, nil
}

func withHost(ctx context.Context, fn func(h host.Host) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	h, done, err := openHost(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer done()
	return fn(h)
}

func runFlagsDecode(cmd *cobra.Command, args []string) error {
	flags, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid flags %q: %w", args[0], err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), routing.Decode(flags))
	return nil
}

func runFlagsEncode(cmd *cobra.Command, args []string) error {
	if disabled {
		fmt.Fprintln(cmd.OutOrStdout(), routing.Encode(routing.Disabled))
		return nil
	}

	var n [4]int
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid component %q: %w", a, err)
		}
		n[i] = v
	}
	r := routing.Routing{
		Source: routing.Endpoint{Bus: n[0], Channel: n[1]},
		Dest:   routing.Endpoint{Bus: n[2], Channel: n[3]},
	}
	if strict {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), routing.Encode(r))
	return nil
}

func runRoute(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := outputFile
	if output == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		output = base + ".routed.mid"
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	r := routing.Decode(routeFlags)
	result, err := routing.RouteSMF(r, data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}

	fmt.Printf("Routed %s -> %s (%s)\n", input, output, r)
	return nil
}

func runTracks(cmd *cobra.Command, args []string) error {
	return withHost(cmd.Context(), func(h host.Host) error {
		b, ok := h.(host.Browser)
		if !ok {
			return fmt.Errorf("host cannot list tracks")
		}
		ctx := cmd.Context()
		tracks, err := b.Tracks(ctx)
		if err != nil {
			return err
		}
		for _, t := range tracks {
			counts := make([]string, 0, 3)
			for _, cat := range []host.Category{host.CategorySend, host.CategoryReceive, host.CategoryHardware} {
				n, err := b.NumSends(ctx, t.ID, cat)
				if err != nil {
					return err
				}
				counts = append(counts, fmt.Sprintf("%d %s", n, cat))
			}
			fmt.Printf("%-16s %s  %s\n", t.Name, t.ID, strings.Join(counts, ", "))
		}
		return nil
	})
}

// resolveTrack accepts a track id, or a name when the host can list tracks
func resolveTrack(ctx context.Context, h host.Host, ref string) (host.Track, error) {
	b, ok := h.(host.Browser)
	if !ok {
		return host.Track{ID: ref}, nil
	}
	tracks, err := b.Tracks(ctx)
	if err != nil {
		return host.Track{}, err
	}
	for _, t := range tracks {
		if t.ID == ref || t.Name == ref {
			return t, nil
		}
	}
	return host.Track{}, fmt.Errorf("%w: %q", host.ErrInvalidTrack, ref)
}

// localNote is printed after a change to the in-memory project, which
// lives only as long as the command
const localNote = "note: no --host given; the change was made to the in-memory project and is discarded on exit"

// withSend resolves the addressed send and runs fn on it. Mutating commands
// warn when they ran against the in-memory project.
func withSend(cmd *cobra.Command, trackRef string, mutates bool, fn func(ctx context.Context, s *send.Send) error) error {
	kind, err := send.ParseKind(sendKind)
	if err != nil {
		return err
	}
	return withHost(cmd.Context(), func(h host.Host) error {
		ctx := cmd.Context()
		t, err := resolveTrack(ctx, h, trackRef)
		if err != nil {
			return err
		}
		s, err := send.New(h, send.Config{Track: &t, Index: sendIndex, Kind: kind})
		if err != nil {
			return err
		}
		if err := fn(ctx, s); err != nil {
			return err
		}
		if _, local := h.(*memhost.Host); local && mutates {
			fmt.Fprintln(cmd.ErrOrStderr(), localNote)
		}
		return nil
	})
}

func sendAction(done string, fn func(*send.Send, context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withSend(cmd, args[0], true, func(ctx context.Context, s *send.Send) error {
			if err := fn(s, ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", s, done)
			return nil
		})
	}
}

func runSendGet(cmd *cobra.Command, args []string) error {
	return withSend(cmd, args[0], false, func(ctx context.Context, s *send.Send) error {
		v, err := s.Info(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(v, 'f', -1, 64))
		return nil
	})
}

func runSendSet(cmd *cobra.Command, args []string) error {
	v, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[2], err)
	}
	return withSend(cmd, args[0], true, func(ctx context.Context, s *send.Send) error {
		if err := s.SetInfo(ctx, args[1], v); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", s, args[1], args[2])
		return nil
	})
}

func runSendInfo(cmd *cobra.Command, args []string) error {
	return withSend(cmd, args[0], false, func(ctx context.Context, s *send.Send) error {
		info, err := describe(ctx, s)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), info)
		return nil
	})
}

func describe(ctx context.Context, s *send.Send) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s)

	if s.Kind() == send.KindSend || s.Kind() == send.KindReceive {
		src, err := s.SourceTrack(ctx)
		if err != nil {
			return "", err
		}
		dst, err := s.DestTrack(ctx)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  route       %s -> %s\n", src.Name, dst.Name)
	}

	vol, err := s.Volume(ctx)
	if err != nil {
		return "", err
	}
	pan, err := s.Pan(ctx)
	if err != nil {
		return "", err
	}
	muted, err := s.IsMuted(ctx)
	if err != nil {
		return "", err
	}
	phase, err := s.IsPhaseFlipped(ctx)
	if err != nil {
		return "", err
	}
	mono, err := s.IsMono(ctx)
	if err != nil {
		return "", err
	}
	mode, err := s.Mode(ctx)
	if err != nil {
		return "", err
	}
	auto, err := s.AutoMode(ctx)
	if err != nil {
		return "", err
	}
	srcCh, err := s.SourceChannel(ctx)
	if err != nil {
		return "", err
	}
	dstCh, err := s.DestChannel(ctx)
	if err != nil {
		return "", err
	}
	midi, err := s.MIDIRouting(ctx)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(&b, "  volume      %.3f\n", vol)
	fmt.Fprintf(&b, "  pan         %+.2f\n", pan)
	fmt.Fprintf(&b, "  muted       %t\n", muted)
	fmt.Fprintf(&b, "  phase       %t\n", phase)
	fmt.Fprintf(&b, "  mono        %t\n", mono)
	fmt.Fprintf(&b, "  mode        %s\n", mode)
	fmt.Fprintf(&b, "  automation  %s\n", auto)
	fmt.Fprintf(&b, "  audio       %d -> %d\n", srcCh.Encode(), dstCh.Encode())
	fmt.Fprintf(&b, "  midi        %s (%d)\n", midi, routing.Encode(midi))
	return b.String(), nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return withHost(cmd.Context(), func(h host.Host) error {
		return tui.Run(h)
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger()

	h := memhost.New(memhost.WithLogger(log), memhost.WithExtension(cfg.Project.Extension))
	defer h.Close()
	if err := h.Load(cmd.Context(), cfg.Project.Project()); err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	port := serverPort
	if port == 0 {
		port = cfg.Server.Port
	}
	fmt.Printf("Starting bridge server on port %d...\n", port)
	return api.StartServer(port, h, api.WithLogger(log), api.WithSessionLease(cfg.Server.SessionLease()))
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/cutdeck/cutdeck-agent/internal/clock"
	"github.com/cutdeck/cutdeck-agent/internal/config"
	"github.com/cutdeck/cutdeck-agent/internal/export"
	"github.com/cutdeck/cutdeck-agent/internal/logging"
	"github.com/cutdeck/cutdeck-agent/internal/session"
	"github.com/cutdeck/cutdeck-agent/internal/tui"
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List saved drafts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(logging.Discard())
		if err != nil {
			return err
		}
		defer a.Close()

		drafts, err := a.store.ListDrafts(cmd.Context())
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			fmt.Println("No drafts saved.")
			return nil
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			StyleFunc(draftTableStyle()).
			Headers("ID", "TITLE", "CLIPS", "LENGTH", "PLAYHEAD", "SAVED")
		for _, d := range drafts {
			t.Row(
				d.ID,
				d.Title,
				strconv.Itoa(d.ClipCount),
				clock.FormatTime(d.ContentDuration),
				clock.FormatTime(d.CurrentTime),
				d.CreatedAt.Local().Format("2006-01-02 15:04"),
			)
		}
		fmt.Println(t.String())
		return nil
	},
}

// draftTableStyle picks a header colour that stays readable on the terminal's
// background.
func draftTableStyle() table.StyleFunc {
	accent := lipgloss.Color("#2563eb")
	if termenv.HasDarkBackground() {
		accent = lipgloss.Color("#93c5fd")
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return header
		}
		return cell
	}
}

var draftsDeleteCmd = &cobra.Command{
	Use:   "delete <draft-id>",
	Short: "Delete a saved draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(logging.Discard())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.DeleteDraft(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted draft %s\n", args[0])
		return nil
	},
}

var exportOpts struct {
	format    string
	outDir    string
	name      string
	frameRate float64
}

var exportCmd = &cobra.Command{
	Use:   "export <draft-id>",
	Short: "Write a saved draft as an EDL, ffmpeg script or JSON manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(logging.Discard())
		if err != nil {
			return err
		}
		defer a.Close()

		draft, err := a.store.LoadDraft(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		outDir := exportOpts.outDir
		if outDir == "" {
			outDir = "."
		}
		if outDir, err = filepath.Abs(outDir); err != nil {
			return err
		}
		name := exportOpts.name
		if name == "" {
			name = draft.Title
		}

		_, files := a.mediaResolvers()
		locate := export.LocalLocator(nil)
		if files != nil {
			locate = export.LocalLocator(files.PathFor)
		}
		clips, unresolved := export.ResolveClips(draft.Tracks, locate)

		resp, err := export.Write(export.ExportRequest{
			ProjectName: name,
			Format:      exportOpts.format,
			FrameRate:   exportOpts.frameRate,
			OutputDir:   outDir,
		}, clips, unresolved)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %s (%d clips)\n", resp.OutputPath, resp.ClipCount)
		if len(resp.UnresolvedClips) > 0 {
			fmt.Printf("Skipped %d clips whose media could not be found\n", len(resp.UnresolvedClips))
		}
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <draft-id>",
	Short: "Play a saved draft in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.Discard()
		a, err := openApp(logger)
		if err != nil {
			return err
		}
		defer a.Close()

		draft, err := a.store.LoadDraft(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		router, _ := a.mediaResolvers()
		s := session.New(uuid.NewString(), draft.Title, router, nil, a.sessionOptions(), logger)
		defer s.Close()

		if err := s.Load(draft.Tracks, draft.CurrentTime); err != nil {
			return err
		}
		return tui.Run(cmd.Context(), s)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		path := cfg.FilePath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(path, config.Defaults()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print where the configuration file is read from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		fmt.Println(cfg.FilePath())
		return nil
	},
}

func init() {
	draftsCmd.AddCommand(draftsDeleteCmd)

	exportCmd.Flags().StringVarP(&exportOpts.format, "format", "f", string(export.FormatEDL), "edl, ffmpeg or json")
	exportCmd.Flags().StringVarP(&exportOpts.outDir, "out", "o", "", "output directory (default: current directory)")
	exportCmd.Flags().StringVarP(&exportOpts.name, "name", "n", "", "project name (default: draft title)")
	exportCmd.Flags().Float64Var(&exportOpts.frameRate, "frame-rate", export.DefaultFrameRate, "timecode frame rate")

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

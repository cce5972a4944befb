package main

import (
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SilentStoat/StoatBot/internal/app"
	"github.com/SilentStoat/StoatBot/internal/config"
	"github.com/SilentStoat/StoatBot/internal/logger"
	"github.com/SilentStoat/StoatBot/internal/tzindex"
)

var (
	heading = color.New(color.FgHiBlue, color.Bold)
	warn    = color.New(color.FgYellow)
	faint   = color.New(color.FgHiBlack)
)

// globals carries the persistent flags and what PersistentPreRunE derives
// from them.
type globals struct {
	zoneinfo string
	year     int
	verbose  bool
	noColor  bool

	env config.Tooling
	log *zap.Logger
	now func() time.Time
}

func newRootCmd(now func() time.Time) *cobra.Command {
	g := &globals{now: now}
	root := &cobra.Command{
		Use:          "tzctl",
		Short:        "Inspect the zone index and stored rosters behind stoatbot",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := config.LoadTooling()
			if err != nil {
				return err
			}
			g.env = env
			if !cmd.Flags().Changed("zoneinfo") {
				g.zoneinfo = env.ZoneInfoPath
			}
			if !cmd.Flags().Changed("year") {
				g.year = env.ReferenceYear
			}
			if g.noColor {
				color.NoColor = true
			}
			log, err := logger.NewCLI(g.verbose)
			if err != nil {
				return err
			}
			g.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if g.log != nil {
				_ = g.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.zoneinfo, "zoneinfo", "", "zoneinfo directory or zoneinfo.zip (default ZONEINFO_PATH, then system locations)")
	pf.IntVar(&g.year, "year", 0, "reference year used to classify zones (default REFERENCE_YEAR, then the current year)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newBucketsCmd(g),
		newLookupCmd(g),
		newZoneCmd(g),
		newOffsetsCmd(g),
		newReportCmd(g),
	)
	return root
}

// index loads the zone index the bot would build with the same settings.
func (g *globals) index() (*tzindex.Index, error) {
	cfg := g.env.Config()
	cfg.ZoneInfoPath = g.zoneinfo
	cfg.ReferenceYear = g.year
	if cfg.ReferenceYear == 0 {
		cfg.ReferenceYear = g.now().UTC().Year()
	}
	return app.LoadIndex(cfg, g.log)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	if color.NoColor {
		t.Style().Options.DoNotColorBordersAndSeparators = true
	} else {
		t.Style().Color.Header = text.Colors{text.FgHiBlue, text.Bold}
	}
	return t
}

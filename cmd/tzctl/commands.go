package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/SilentStoat/StoatBot/internal/app"
	"github.com/SilentStoat/StoatBot/internal/domain"
	"github.com/SilentStoat/StoatBot/internal/report"
	"github.com/SilentStoat/StoatBot/internal/wizard"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// pages is how many wizard turns it takes to show the given number of lists.
func pages(lists int) int {
	if lists <= wizard.MaxLists {
		return 1
	}
	return (lists + wizard.ChunksPerPage - 1) / wizard.ChunksPerPage
}

func newBucketsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List every (DST, offset) bucket with its zone count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := g.index()
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.SetTitle("%d zones, reference year %d", idx.Len(), idx.Year())
			t.AppendHeader(table.Row{"Offset", "DST", "Zones", "Lists", "Pages"})
			for _, k := range idx.Keys() {
				n := len(idx.Lookup(k.DST, k.OffsetMinutes))
				lists := (n + wizard.MaxOptions - 1) / wizard.MaxOptions
				p := fmt.Sprint(pages(lists))
				if pages(lists) > 1 {
					p = warn.Sprint(p)
				}
				t.AppendRow(table.Row{domain.FormatUTC(k.OffsetMinutes), yesNo(k.DST), n, lists, p})
			}
			t.Render()
			return nil
		},
	}
}

func newLookupCmd(g *globals) *cobra.Command {
	var (
		dst    bool
		offset string
	)
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Show the zones the wizard offers for a DST answer and offset",
		Example: "  tzctl lookup --offset -5\n" +
			"  tzctl lookup --dst --offset +1\n" +
			"  tzctl lookup --offset UTC+5:30",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			off, err := domain.ParseOffset(offset)
			if err != nil {
				return err
			}
			idx, err := g.index()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			zones := idx.Lookup(dst, off)
			label := fmt.Sprintf("%s, DST %s", domain.FormatUTC(off), yesNo(dst))
			if len(zones) == 0 {
				fmt.Fprintf(out, "%s: %s\n", label, warn.Sprint("no zones match"))
				return nil
			}
			fmt.Fprintf(out, "%s: %d zones\n", heading.Sprint(label), len(zones))
			now := g.now()
			for i, chunk := range wizard.Chunk(zones, wizard.MaxOptions) {
				fmt.Fprintf(out, "\nList %d (%s … %s)\n", i+1, chunk[0], chunk[len(chunk)-1])
				for _, z := range chunk {
					local, err := domain.LocalizeTime(now, z)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "  %-34s %s\n", z, faint.Sprint(local))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dst, "dst", false, "the zone observes daylight saving time")
	cmd.Flags().StringVar(&offset, "offset", "", "UTC offset, e.g. -5, +5:30, UTC+9")
	_ = cmd.MarkFlagRequired("offset")
	return cmd
}

func newZoneCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "zone NAME",
		Short:   "Show which buckets a zone is filed under",
		Example: "  tzctl zone America/Chicago",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			idx, err := g.index()
			if err != nil {
				return err
			}
			if !idx.Contains(name) {
				return fmt.Errorf("zone %q is not in the index", name)
			}
			local, err := domain.LocalizeTime(g.now(), name)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.SetTitle("%s, %s now", name, local)
			t.AppendHeader(table.Row{"Offset", "DST", "Bucket size"})
			for _, r := range idx.Records() {
				if r.Name != name {
					continue
				}
				n := len(idx.Lookup(r.DSTObserved, r.UTCOffsetMinutes))
				t.AppendRow(table.Row{domain.FormatUTC(r.UTCOffsetMinutes), yesNo(r.DSTObserved), n})
			}
			t.Render()
			return nil
		},
	}
}

func newOffsetsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "offsets",
		Short: "Preview the offset lists as they would be offered now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := g.index()
			if err != nil {
				return err
			}
			now := g.now()
			t := newTable(cmd.OutOrStdout())
			t.SetTitle("Offsets at %s UTC", now.UTC().Format("2006-01-02 15:04"))
			t.AppendHeader(table.Row{"List", "Label", "Offset", "Zones", "Zones (DST)"})
			add := func(list string, opts []domain.OffsetOption) {
				for _, o := range opts {
					std := len(idx.Lookup(false, o.ValueMinutes))
					dst := len(idx.Lookup(true, o.ValueMinutes))
					t.AppendRow(table.Row{list, o.Label, domain.FormatUTC(o.ValueMinutes), std, dst})
				}
			}
			add("whole hours", domain.CurrentOptions(now))
			t.AppendSeparator()
			add("other", domain.IrregularOptions(idx.Offsets(), now))
			t.Render()
			return nil
		},
	}
}

func newReportCmd(g *globals) *cobra.Command {
	var (
		scope  int64
		asHTML bool
		driver string
		dbPath string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the roster of a chat from the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.env.Config()
			if cmd.Flags().Changed("driver") {
				cfg.StoreDriver = driver
			}
			if cmd.Flags().Changed("db-path") {
				cfg.DBPath = dbPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			repo, err := app.OpenStore(ctx, cfg, g.log)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
			}
			defer func() { _ = repo.Close() }()

			profiles, err := repo.ListScope(ctx, scope)
			if err != nil {
				return err
			}
			now := g.now().UTC()
			r := report.Build(profiles, now)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, heading.Sprintf("Chat %d at %s UTC", scope, now.Format("2006-01-02 15:04")))
			body := r.Text()
			if asHTML {
				body = r.HTML()
			}
			if r.Empty() {
				body = warn.Sprint(body)
			}
			fmt.Fprintln(out, body)
			if !r.Empty() {
				skipped := len(profiles) - countMembers(r)
				fmt.Fprintln(out, faint.Sprintf("%d members, %d without an offset", len(profiles)-skipped, skipped))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&scope, "scope", 0, "chat id whose roster to print")
	cmd.Flags().BoolVar(&asHTML, "html", false, "print the HTML the bot would post")
	cmd.Flags().StringVar(&driver, "driver", "", "store driver, sqlite or mongo (default STORE_DRIVER)")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "sqlite database path (default DB_PATH)")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}

func countMembers(r report.Report) int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Members)
	}
	return n
}

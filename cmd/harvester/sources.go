package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/amishk599/harvester/internal/audit"
	"github.com/amishk599/harvester/internal/config"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List every configured worklist entry",
	Long:  "Reads the config and prints a table of every company and keyword the adapters would harvest.",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

// worklistEntry is one company or keyword from the sources section.
type worklistEntry struct {
	Source  string
	Company config.CompanyConfig // zero for jobbank keywords
	Keyword string
	Enabled bool
}

func (e worklistEntry) entity() string {
	switch {
	case e.Keyword != "":
		return e.Keyword
	case e.Company.Token != "":
		return e.Company.Token
	default:
		return e.Company.URL
	}
}

func (e worklistEntry) target() audit.Target {
	return audit.Target{Source: e.Source, Entity: e.entity(), Label: e.Company.Name}
}

// worklist flattens the sources section in adapter order.
func worklist(cfg *config.Config) []worklistEntry {
	var out []worklistEntry
	jb := cfg.Sources.Jobbank
	for _, kw := range jb.Keywords {
		out = append(out, worklistEntry{Source: "jobbank", Keyword: kw, Enabled: jb.Enabled})
	}
	for _, group := range []struct {
		source string
		list   []config.CompanyConfig
	}{
		{"greenhouse", cfg.Sources.Greenhouse},
		{"lever", cfg.Sources.Lever},
		{"ashby", cfg.Sources.Ashby},
		{"workday", cfg.Sources.Workday},
	} {
		for _, c := range group.list {
			out = append(out, worklistEntry{Source: group.source, Company: c, Enabled: c.Enabled})
		}
	}
	return out
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	renderWorklist(os.Stdout, worklist(cfg))
	return nil
}

func renderWorklist(w io.Writer, entries []worklistEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Entity", "Company", "Industry", "Status"})

	enabled := 0
	for _, e := range entries {
		status := "disabled"
		if e.Enabled {
			status = "enabled"
			enabled++
		}
		t.AppendRow(table.Row{e.Source, e.entity(), e.Company.Name, e.Company.Industry, status})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", fmt.Sprintf("%d (%d enabled)", len(entries), enabled)})
	t.Render()
}

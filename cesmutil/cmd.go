/*
Copyright © 2024 the cesmplot authors.
This file is part of cesmplot.

cesmplot is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cesmplot is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cesmplot.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cesmutil contains the command-line interface, configuration
// handling, remote fetching and HTTP server for cesmplot.
package cesmutil

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/gobra"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"github.com/spatialmodel/cesmplot"
	"github.com/spatialmodel/cesmplot/cesmio"
	"github.com/spatialmodel/cesmplot/figure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	figureFlags := []*pflag.FlagSet{timeseriesCmd.Flags(), mapCmd.Flags(),
		trendCmd.Flags(), correlationCmd.Flags(), allCmd.Flags(), serveCmd.Flags()}
	mapFlags := []*pflag.FlagSet{mapCmd.Flags(), trendCmd.Flags(),
		correlationCmd.Flags(), allCmd.Flags(), serveCmd.Flags()}

	// Options are the configuration options available to cesmplot.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "NetCDF",
			usage: `
              NetCDF is the path to the model output file to read. It can be
              a local path, an http(s):// URL, a gs://, s3:// or file:// blob,
              or an scp location in the form user@host:/path/to/file.nc.
              Remote files are copied into DataDir before they are read.`,
			shorthand:  "n",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Variable",
			usage: `
              Variable is the name of the variable to plot, for example
              d18Op, TS or PSL.`,
			shorthand:  "v",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Indices",
			usage: `
              Indices are the climate indices to compute. Run the "indices"
              command for the list of available names. On maps, the region
              boxes of these indices are outlined when ShowBoxes is set.`,
			shorthand:  "i",
			defaultVal: []string{cesmplot.GlobalMeanName},
			flagsets:   figureFlags,
		},
		{
			name: "Journal",
			usage: `
              Journal is the name of the journal preset that sets the figure
              size, resolution, fonts and map styling: Nature, Science, GRL,
              Default, or a preset defined in PresetFile.`,
			shorthand:  "j",
			defaultVal: "Default",
			flagsets:   figureFlags,
		},
		{
			name: "Colormap",
			usage: `
              Colormap is the name of the colormap for maps.`,
			defaultVal: "RdBu_r",
			flagsets:   mapFlags,
		},
		{
			name: "Colorbar",
			usage: `
              Colorbar sets how the color range of maps is chosen: auto
              (data minimum to maximum), robust (2nd to 98th percentile),
              symmetric (centered on zero) or manual (VMin to VMax).`,
			defaultVal: "auto",
			flagsets:   mapFlags,
		},
		{
			name: "VMin",
			usage: `
              VMin is the lower end of the color range when Colorbar is manual.`,
			defaultVal: 0.0,
			flagsets:   mapFlags,
		},
		{
			name: "VMax",
			usage: `
              VMax is the upper end of the color range when Colorbar is manual.`,
			defaultVal: 1.0,
			flagsets:   mapFlags,
		},
		{
			name: "Trendline",
			usage: `
              Trendline specifies whether to add a linear trend line to each
              time series and report its slope in the caption.`,
			shorthand:  "t",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{timeseriesCmd.Flags(), allCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "ShowBoxes",
			usage: `
              ShowBoxes specifies whether to outline the region boxes of the
              selected Indices on maps.`,
			defaultVal: false,
			flagsets:   mapFlags,
		},
		{
			name: "Caption",
			usage: `
              Caption is text appended to the generated figure captions.`,
			defaultVal: "",
			flagsets:   figureFlags,
		},
		{
			name: "Start",
			usage: `
              Start is the beginning of the time window, as a year (1850),
              a month (1850-06), a date (1850-06-01) or an RFC 3339 time.
              If empty, the window starts at the first time in the file.`,
			defaultVal: "",
			flagsets:   figureFlags,
		},
		{
			name: "End",
			usage: `
              End is the end of the time window, in the same formats as Start.
              A year or month includes the whole year or month. If empty, the
              window ends at the last time in the file.`,
			defaultVal: "",
			flagsets:   figureFlags,
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory figures and captions are written to.`,
			shorthand:  "o",
			defaultVal: "figures",
			flagsets:   []*pflag.FlagSet{timeseriesCmd.Flags(), mapCmd.Flags(), trendCmd.Flags(), correlationCmd.Flags(), allCmd.Flags()},
		},
		{
			name: "BoxFile",
			usage: `
              BoxFile is an optional TOML file with additional region boxes
              and difference indices.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "PresetFile",
			usage: `
              PresetFile is an optional TOML file with additional journal presets.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "CitationFile",
			usage: `
              CitationFile is the file that index citations are saved to and
              read from.`,
			defaultVal: "${HOME}/.cesmplot/citations.toml",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "CoastlineFile",
			usage: `
              CoastlineFile is an optional shapefile of coastlines or land
              polygons in longitude-latitude coordinates to draw on maps.`,
			defaultVal: "",
			flagsets:   mapFlags,
		},
		{
			name: "BorderFile",
			usage: `
              BorderFile is an optional shapefile of political boundaries
              in longitude-latitude coordinates to draw on maps.`,
			defaultVal: "",
			flagsets:   mapFlags,
		},
		{
			name: "IndexCSV",
			usage: `
              IndexCSV is an optional .csv or .xlsx table of observed index
              values to overlay on time series. The first column holds times
              and each other column one series.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{timeseriesCmd.Flags(), allCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "CorrelateWith",
			usage: `
              CorrelateWith is the index that correlation maps are computed
              against.`,
			defaultVal: "Nino3.4",
			flagsets:   []*pflag.FlagSet{correlationCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "IndexVariable",
			usage: `
              IndexVariable is the variable the CorrelateWith index is
              computed from. If empty, Variable is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{correlationCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "HTTPAddress",
			usage: `
              HTTPAddress is the address the figure server listens on.`,
			defaultVal: "localhost:7272",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "OpenBrowser",
			usage: `
              OpenBrowser specifies whether to open the figure server in a
              web browser after it starts.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "DataDir",
			usage: `
              DataDir is the directory that remote files are copied into.`,
			defaultVal: "data",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages to print:
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFormat",
			usage: `
              LogFormat is the format of log messages: text or json.`,
			defaultVal: "text",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Fetch.Remote",
			usage: `
              Fetch.Remote is the remote file to copy into DataDir.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags()},
		},
		{
			name: "Fetch.Clean",
			usage: `
              Fetch.Clean specifies whether to remove variables that are
              entirely missing and drop length-one dimensions from the
              fetched file. Downloaded files are cleaned where they were
              saved; a local file is cleaned into a copy in DataDir and
              the original is left unchanged.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags()},
		},
		{
			name: "Synth.Output",
			usage: `
              Synth.Output is the path the synthetic NetCDF file is written to.`,
			defaultVal: "test_cesm.nc",
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.Variable",
			usage: `
              Synth.Variable is the name of the synthetic variable.`,
			defaultVal: "d18Op",
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.Units",
			usage: `
              Synth.Units are the units of the synthetic variable.`,
			defaultVal: "per mil",
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.Start",
			usage: `
              Synth.Start is the first time of the synthetic file.`,
			defaultVal: "1850",
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.NTime",
			usage: `
              Synth.NTime is the number of time steps.`,
			defaultVal: 156,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.Monthly",
			usage: `
              Synth.Monthly specifies monthly rather than annual time steps.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.NLat",
			usage: `
              Synth.NLat is the number of latitudes between -90 and 90.`,
			defaultVal: 36,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.NLon",
			usage: `
              Synth.NLon is the number of longitudes, evenly spaced from 0.`,
			defaultVal: 72,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.Mean",
			usage: `
              Synth.Mean is the base value of the synthetic variable.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.Trend",
			usage: `
              Synth.Trend is the change of the synthetic variable per time step.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.Noise",
			usage: `
              Synth.Noise is the amplitude of the uniform random noise.`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Synth.Seed",
			usage: `
              Synth.Seed seeds the random number generator.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{synthCmd.Flags()},
		},
		{
			name: "Cite.Authors",
			usage: `
              Cite.Authors are the authors of the citation being set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{citeSetCmd.Flags()},
		},
		{
			name: "Cite.Year",
			usage: `
              Cite.Year is the publication year of the citation being set.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{citeSetCmd.Flags()},
		},
		{
			name: "Cite.Title",
			usage: `
              Cite.Title is the title of the citation being set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{citeSetCmd.Flags()},
		},
		{
			name: "Cite.Journal",
			usage: `
              Cite.Journal is the journal of the citation being set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{citeSetCmd.Flags()},
		},
		{
			name: "Cite.DOI",
			usage: `
              Cite.DOI is the DOI of the citation being set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{citeSetCmd.Flags()},
		},
		{
			name: "Cite.Description",
			usage: `
              Cite.Description describes how the index is defined.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{citeSetCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CESMPLOT")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(variablesCmd)
	Root.AddCommand(indicesCmd)
	Root.AddCommand(timeseriesCmd)
	Root.AddCommand(mapCmd)
	Root.AddCommand(trendCmd)
	Root.AddCommand(correlationCmd)
	Root.AddCommand(allCmd)
	Root.AddCommand(synthCmd)
	Root.AddCommand(fetchCmd)
	Root.AddCommand(citeCmd)
	citeCmd.AddCommand(citeShowCmd)
	citeCmd.AddCommand(citeSetCmd)
	citeCmd.AddCommand(citeDeleteCmd)
	Root.AddCommand(serveCmd)
}

// loader caches the datasets read by all commands.
var loader = cesmio.NewLoader(4, nil)

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("cesmplot: problem reading configuration file: %v", err)
		}
	}
	return setLogging(Cfg)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "cesmplot",
	Short: "Climate indices and publication figures from CESM output.",
	Long: `cesmplot computes climate indices such as the global mean, Nino3.4 and
the Pacific Walker circulation from CESM and iCESM model output, and draws
time series, time-mean maps, trend maps and correlation maps sized and styled
for journal submission. Each figure is written as a PNG image together with
a text caption describing what it shows.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CESMPLOT_var' where 'var' is the
name of the variable to be set, with any '.' replaced by '_'. File paths
may contain environment variables.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of cesmplot.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("cesmplot v%s\n", cesmplot.Version)
	},
	DisableAutoGenTag: true,
}

var variablesCmd = &cobra.Command{
	Use:   "variables",
	Short: "List the variables in a file",
	Long: `variables lists the data variables in the file given by NetCDF,
with their dimensions and units, and the time span of the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := dataset(context.Background(), Cfg)
		if err != nil {
			return err
		}
		for _, v := range describe(ds) {
			cmd.Println(v)
		}
		if w, ok := ds.TimeRange(); ok {
			cmd.Printf("time: %s\n", w)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var indicesCmd = &cobra.Command{
	Use:   "indices",
	Short: "List the available climate indices",
	Long: `indices lists the names of the climate indices that can be computed,
including any defined in BoxFile, with their citations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := generator(Cfg)
		if err != nil {
			return err
		}
		cites, err := citations(Cfg)
		if err != nil {
			return err
		}
		eng := &cesmplot.Engine{Boxes: g.Boxes, Diffs: g.Diffs}
		for _, name := range eng.IndexNames() {
			if c, ok := cites.Get(name); ok {
				cmd.Printf("%s: %s\n", name, c)
				continue
			}
			cmd.Println(name)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var timeseriesCmd = &cobra.Command{
	Use:   "timeseries",
	Short: "Plot index time series",
	Long: `timeseries plots the selected Indices of Variable over the time window,
with a band showing one standard deviation about the mean of each series.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFigures(cmd, Cfg, timeseriesFigure)
	},
	DisableAutoGenTag: true,
}

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map the time mean of a variable",
	Long: `map draws the mean of Variable over the time window at every grid cell.
Fields without latitude and longitude are drawn against their array indices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFigures(cmd, Cfg, spatialFigure)
	},
	DisableAutoGenTag: true,
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Map the linear trend of a variable",
	Long: `trend draws the least-squares slope of Variable against time step at
every grid cell over the time window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFigures(cmd, Cfg, trendFigure)
	},
	DisableAutoGenTag: true,
}

var correlationCmd = &cobra.Command{
	Use:   "correlation",
	Short: "Map the correlation of a variable with an index",
	Long: `correlation draws the Pearson correlation between Variable at every grid
cell and the CorrelateWith index over the time window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFigures(cmd, Cfg, correlationFigure)
	},
	DisableAutoGenTag: true,
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Create the time series, mean map and trend map",
	Long: `all creates the time series, time-mean map and trend map of Variable
in OutputDir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFigures(cmd, Cfg, timeseriesFigure, spatialFigure, trendFigure)
	},
	DisableAutoGenTag: true,
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a synthetic test file",
	Long: `synth writes a NetCDF file with one (time, lat, lon) variable made up
of a mean, a linear trend and seeded random noise, for testing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := syntheticConfig(Cfg)
		if err != nil {
			return err
		}
		ds, err := cesmio.Synthetic(sc)
		if err != nil {
			return err
		}
		path := os.ExpandEnv(Cfg.GetString("Synth.Output"))
		if err := writeDataset(path, ds); err != nil {
			return err
		}
		cmd.Printf("wrote %s\n", path)
		return nil
	},
	DisableAutoGenTag: true,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Copy a remote file into DataDir",
	Long: `fetch copies the file at Fetch.Remote into DataDir and, if Fetch.Clean
is set, removes variables that are entirely missing and length-one dimensions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		remote := os.ExpandEnv(Cfg.GetString("Fetch.Remote"))
		if remote == "" {
			return fmt.Errorf("cesmplot: Fetch.Remote is not specified")
		}
		path, err := fetch(context.Background(), remote,
			os.ExpandEnv(Cfg.GetString("DataDir")), Cfg.GetBool("Fetch.Clean"))
		if err != nil {
			return err
		}
		cmd.Printf("fetched %s to %s\n", remote, path)
		return nil
	},
	DisableAutoGenTag: true,
}

var citeCmd = &cobra.Command{
	Use:   "cite",
	Short: "Show or edit index citations",
	Long: `cite shows and edits the literature citations attached to climate
indices. Edits are saved to CitationFile.`,
	DisableAutoGenTag: true,
}

var citeShowCmd = &cobra.Command{
	Use:   "show [index...]",
	Short: "Show citations",
	Long:  "show prints the citations of the given indices, or of all indices if none are given.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cites, err := citations(Cfg)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			args = cites.Names()
		}
		for _, name := range args {
			c, ok := cites.Get(name)
			if !ok {
				return fmt.Errorf("cesmplot: no citation for index %q", name)
			}
			cmd.Printf("%s: %s\n", name, c)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var citeSetCmd = &cobra.Command{
	Use:   "set index",
	Short: "Set the citation of an index",
	Long:  "set replaces the citation of an index with the Cite.* options and saves it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cites, err := citations(Cfg)
		if err != nil {
			return err
		}
		c := cesmplot.CitationEntry{
			Authors:     Cfg.GetString("Cite.Authors"),
			Year:        Cfg.GetInt("Cite.Year"),
			Title:       Cfg.GetString("Cite.Title"),
			Journal:     Cfg.GetString("Cite.Journal"),
			DOI:         Cfg.GetString("Cite.DOI"),
			Description: Cfg.GetString("Cite.Description"),
		}
		if err := cites.Set(args[0], c); err != nil {
			return err
		}
		cmd.Printf("%s: %s\n", args[0], c)
		return nil
	},
	DisableAutoGenTag: true,
}

var citeDeleteCmd = &cobra.Command{
	Use:   "delete index",
	Short: "Delete the citation of an index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cites, err := citations(Cfg)
		if err != nil {
			return err
		}
		return cites.Delete(args[0])
	},
	DisableAutoGenTag: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve figures over HTTP",
	Long: `serve starts an HTTP server that renders figures of the NetCDF file on
request. Figure options given here are the defaults for requests, which may
override them with query parameters. See the /help page of the running server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := NewServer(context.Background(), Cfg)
		if err != nil {
			return err
		}
		addr := Cfg.GetString("HTTPAddress")
		logrus.WithField("address", addr).Info("starting figure server")
		if Cfg.GetBool("OpenBrowser") {
			go open.Run("http://" + addr + "/help")
		}
		return http.ListenAndServe(addr, s)
	},
	DisableAutoGenTag: true,
}

// runFigures renders figures with each of fs and writes them to OutputDir.
func runFigures(cmd *cobra.Command, cfg *viper.Viper, fs ...figureFunc) error {
	ctx := context.Background()
	ds, err := dataset(ctx, cfg)
	if err != nil {
		return err
	}
	g, err := generator(cfg)
	if err != nil {
		return err
	}
	o, err := figureOptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	dir := os.ExpandEnv(cfg.GetString("OutputDir"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cesmplot: creating output directory: %v", err)
	}
	for _, f := range fs {
		name, fig, err := f(g, ds, o)
		if err != nil {
			return err
		}
		path, err := writeFigure(dir, name, fig)
		if err != nil {
			return err
		}
		cmd.Printf("wrote %s\n%s\n", path, fig.Caption)
	}
	return nil
}

// describe returns one line per data variable in ds.
func describe(ds *cesmplot.Dataset) []string {
	var o []string
	for _, name := range ds.DataVariables() {
		v := ds.Vars[name]
		dims := make([]string, len(v.Dims))
		for i, d := range v.Dims {
			dims[i] = fmt.Sprintf("%s=%d", d, v.Data.Shape[i])
		}
		line := fmt.Sprintf("%s(%s)", name, strings.Join(dims, ", "))
		if v.Units != "" {
			line += " [" + v.Units + "]"
		}
		if v.Description != "" {
			line += ": " + v.Description
		}
		o = append(o, line)
	}
	return o
}

// writeFigure writes the image and caption of fig to dir, as
// name.png and name.txt, and returns the path of the image.
func writeFigure(dir, name string, fig *figure.Figure) (string, error) {
	path := filepath.Join(dir, name+".png")
	if err := writeFile(path, fig.PNG); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(dir, name+".txt"), []byte(fig.Caption+"\n")); err != nil {
		return "", err
	}
	return path, nil
}

// StartWebServer starts the graphical configuration interface.
func StartWebServer() {
	setConfig() // Ignore any errors for now.

	http.HandleFunc("/setConfig", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		configFile := r.Form.Get("config")
		Root.PersistentFlags().Set("config", configFile)
		err := setConfig()
		if err != nil {
			http.Error(w, err.Error(), 204)
			return
		}
		config := make(map[string]interface{})
		for _, option := range options {
			config[option.name] = Cfg.Get(option.name)
		}
		e := json.NewEncoder(w)
		if err := e.Encode(config); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	})

	logrus.Info("Loading front-end...")

	for _, cmd := range []*cobra.Command{Root, versionCmd, variablesCmd, indicesCmd,
		timeseriesCmd, mapCmd, trendCmd, correlationCmd, allCmd, synthCmd, fetchCmd,
		citeCmd, citeShowCmd, citeSetCmd, citeDeleteCmd, serveCmd} {
		cmd.SilenceUsage = true // We don't want the usage messages in the GUI.
	}

	output := template.Must(template.New("").Parse(guiTemplate))
	server := gobra.Server{Root: Root, ServerAddress: guiAddress, AllowCORS: false, HTML: output}
	logrus.Info("Server starting... ")
	open.Run("http://" + guiAddress)
	fmt.Println("If not opened automatically, please visit http://" + guiAddress)
	server.Start()
}

const guiAddress = "localhost:7171"

const guiTemplate = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>cesmplot</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
		div[id^="gobra-"] blockquote { border-left: 3px solid #bbb; margin: .3em; color: #333; padding-left: 5px; font-size: 75%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { font-family: monospace; margin-left: .2em; width: 50%; outline:none; }
		.red-border{ border: 1px solid #c35; }
		.green-border{ border: 1px solid #3c5; }
		.blue-border{ border: 1px solid #35c; }
	</style>
</head>
<body>
<div class="container">
	<h1>cesmplot</h1>
	<p>Choose a file and the figures to make below.</p>
	<p>
		Color key: black=default;
		<font color="red">red</font>=error;
		<font color="green">green</font>=value from config file;
		<font color="blue">blue</font>=user entered
	</p>
	<div>
		{{.}}
	</div>
	<footer>
		© 2024 cesmplot authors
	</footer>
</div>

<script>
let allFlags = [...document.querySelectorAll('[data-name]')];
allFlags.forEach(x => {
	let inputField = x.children[0];
	inputField.addEventListener("input", e => {
		inputField.classList.remove("green-border");
		inputField.classList.add("blue-border");
	})
})

let configInput = allFlags.filter(x => x.dataset.name == "config")[0].children[0];
configInput.addEventListener("input", e => {
	fetch("http://` + guiAddress + `/setConfig?config="+configInput.value)
		.then( res => {
			if (res.status == 204) {
				configInput.classList.remove("blue-border");
				configInput.classList.remove("green-border");
				configInput.classList.add("red-border");
				return
			}
			res.json().then( data => {
				configInput.classList.remove("red-border");
				for (let key in data)
					for (let f of allFlags)
						if (f.dataset.name == key) {
							let input = f.children[0];
							var newValue = JSON.stringify(data[key]).replace(/^"+|"+$/g,'');
							if (input.value != newValue) {
								input.value = newValue
								input.classList.remove("blue-border");
								input.classList.add("green-border");
							}
						}
			})
		})
		.catch( err => {
			console.log("Error fetching /setConfig", err)
		})
})
</script>
</body>
</html>`

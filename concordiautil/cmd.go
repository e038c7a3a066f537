/*
Copyright © 2024 the Concordia authors.
This file is part of Concordia.

Concordia is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Concordia is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Concordia.  If not, see <http://www.gnu.org/licenses/>.*/

package concordiautil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/IAMconsortium/concordia"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
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
	// Options are the configuration options available to Concordia.
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
			name: "LogLevel",
			usage: `
              LogLevel sets the logging verbosity: debug, info, warning
              or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "BaseYear",
			usage: `
              BaseYear is the year at which scenario trajectories are
              forced to agree exactly with the historical reference.`,
			defaultVal: 2020,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ConvergenceYear",
			usage: `
              ConvergenceYear is the year by which the harmonization
              offset decays to zero. Zero means the last year of each
              scenario trajectory.`,
			defaultVal: 2050,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ScenarioFile",
			usage: `
              ScenarioFile is the path to the IAMC-format CSV file
              holding the region-level scenario trajectories.`,
			defaultVal: "scenario.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "HistoryFile",
			usage: `
              HistoryFile is the path to the IAMC-format CSV file
              holding the country-level historical emission inventory.`,
			defaultVal: "history.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "VariableDefinitionsFile",
			usage: `
              VariableDefinitionsFile is the path to the CSV file
              declaring the gas/sector variables, their output family,
              availability and proxy assignments.`,
			defaultVal: "variabledefs.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "VariableTemplate",
			usage: `
              VariableTemplate is the variable name pattern used in the
              scenario and history files, with {gas} and {sector}
              placeholders.`,
			defaultVal: "Emissions|{gas}|{sector}",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RegionMapping.File",
			usage: `
              RegionMapping.File is the path to the CSV file mapping
              ISO country codes to scenario regions.`,
			defaultVal: "regionmapping.csv",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RegionMapping.CountryColumn",
			usage: `
              RegionMapping.CountryColumn is the name of the country
              code column in the region mapping file.`,
			defaultVal: "country",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RegionMapping.RegionColumn",
			usage: `
              RegionMapping.RegionColumn is the name of the region
              column in the region mapping file.`,
			defaultVal: "region",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "RegionMapping.Separator",
			usage: `
              RegionMapping.Separator is the field separator used in
              the region mapping file.`,
			defaultVal: ";",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CountryCombinations",
			usage: `
              CountryCombinations declares pseudo-countries that stand
              in for groups of countries that the historical inventory
              only reports combined. Keys are the combined codes and
              values are comma-separated member code lists, for example
              {"sdn_ssd": "sdn,ssd"}.`,
			defaultVal: map[string]string{
				"isr_pse": "isr,pse",
				"sdn_ssd": "sdn,ssd",
				"srb_ksv": "srb,srb (kosovo)",
			},
			flagsets: []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "HarmonizationOverridesFile",
			usage: `
              HarmonizationOverridesFile is the path to an optional CSV
              file with per-variable harmonization overrides (columns
              gas, sector, convergence_year, method).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "GridResolution",
			usage: `
              GridResolution is the edge length in degrees of the
              global latitude-longitude output grid cells.`,
			defaultVal: 0.5,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CountryIndexFile",
			usage: `
              CountryIndexFile is the path to the netCDF file assigning
              each grid cell to a country code.`,
			defaultVal: "countryindex.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ProxyDir",
			usage: `
              ProxyDir is the directory holding the gridded proxy
              files.`,
			defaultVal: "proxies",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ProxyPattern",
			usage: `
              ProxyPattern is the proxy file name pattern, with {gas},
              {sector} and {year} placeholders.`,
			defaultVal: "{gas}-{sector}-{year}.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ProxyCacheSize",
			usage: `
              ProxyCacheSize is the number of normalized proxy weight
              fields held in the in-memory cache.`,
			defaultVal: 50,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AnnualInterpolation",
			usage: `
              AnnualInterpolation expands the scenario reporting years
              to annual steps by linear interpolation before gridding.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "UncoveredThreshold",
			usage: `
              UncoveredThreshold is the relative amount of base-year
              historical mass missing from the region mapping above
              which a warning is logged.`,
			defaultVal: 0.01,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NumWorkers",
			usage: `
              NumWorkers is the number of variable units processed
              concurrently. Zero means the number of available CPUs.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory the gridded netCDF output
              files are written to.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Encoding.Zlib",
			usage: `
              Encoding.Zlib records whether downstream conversion of
              the output should apply deflate compression.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Encoding.Complevel",
			usage: `
              Encoding.Complevel is the deflate compression level
              recorded in the output metadata.`,
			defaultVal: 2,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CONCORDIA")

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
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
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
	Root.AddCommand(runCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("concordia: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("concordia: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "concordia",
	Short: "Grid emission scenarios for Earth system models.",
	Long: `Concordia harmonizes region-level greenhouse-gas emission scenarios
with a historical inventory, downscales them to countries, and grids
them into sector-resolved monthly netCDF emission fields.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CONCORDIA_var' where 'var' is
the name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Concordia.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Concordia v%s\n", concordia.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gridding workflow.",
	Long: `run harmonizes, downscales and grids the configured scenario and
writes one netCDF file per output variable to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := NewWorkflow(Cfg)
		if err != nil {
			return err
		}
		fields, report, err := wf.Run(cmd.Context())
		if err != nil {
			return err
		}
		report.Table().Tabbed(os.Stdout)
		if report.Status == concordia.StatusFailed {
			return fmt.Errorf("concordia: run failed; see the report above")
		}
		return WriteOutputs(Cfg, fields)
	},
	DisableAutoGenTag: true,
}

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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/IAMconsortium/concordia"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// checkInputFile expands any environment variables in a configured
// file path and makes sure the file exists.
func checkInputFile(f, option string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("concordia: the %s configuration variable is not set", option)
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(f); err != nil {
		return f, fmt.Errorf("concordia: problem with the %s configuration variable: %v", option, err)
	}
	return f, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for GetStringMapString variable %s: %#v", varName, i))
	}
}

// countryCombinations converts the configured combined-code map into
// member code lists, splitting the comma-separated values.
func countryCombinations(cfg *viper.Viper) map[string][]string {
	raw := GetStringMapString("CountryCombinations", cfg)
	if len(raw) == 0 {
		return nil
	}
	o := make(map[string][]string)
	for alias, members := range raw {
		for _, m := range strings.Split(members, ",") {
			if m = strings.TrimSpace(m); m != "" {
				o[alias] = append(o[alias], m)
			}
		}
	}
	return o
}

// regionMapping reads the configured region mapping file and applies
// the configured country combinations.
func regionMapping(cfg *viper.Viper) (*concordia.RegionMapping, error) {
	path, err := checkInputFile(cfg.GetString("RegionMapping.File"), "RegionMapping.File")
	if err != nil {
		return nil, err
	}
	sep := cfg.GetString("RegionMapping.Separator")
	if len(sep) != 1 {
		return nil, fmt.Errorf("concordia: RegionMapping.Separator must be a single character but is %q", sep)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("concordia: opening region mapping: %v", err)
	}
	defer f.Close()
	rm, err := concordia.ReadRegionMapping(f, rune(sep[0]),
		cfg.GetString("RegionMapping.CountryColumn"), cfg.GetString("RegionMapping.RegionColumn"))
	if err != nil {
		return nil, err
	}
	if combos := countryCombinations(cfg); len(combos) > 0 {
		rm, err = rm.WithCombinations(combos)
		if err != nil {
			return nil, err
		}
	}
	return rm, nil
}

// variableDefinitions reads the configured variable definition file.
func variableDefinitions(cfg *viper.Viper) (*concordia.VariableDefinitions, error) {
	path, err := checkInputFile(cfg.GetString("VariableDefinitionsFile"), "VariableDefinitionsFile")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("concordia: opening variable definitions: %v", err)
	}
	defer f.Close()
	return concordia.ReadVariableDefinitions(f, cfg.GetString("VariableTemplate"))
}

// readIAMC reads one IAMC-format trajectory file.
func readIAMC(path string, vd *concordia.VariableDefinitions) ([]*concordia.Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("concordia: opening trajectory file: %v", err)
	}
	defer f.Close()
	return concordia.ReadIAMC(f, vd)
}

// harmonizer builds the harmonizer from the configured base and
// convergence years plus any per-variable overrides.
func harmonizer(cfg *viper.Viper, vd *concordia.VariableDefinitions) (*concordia.Harmonizer, error) {
	h := &concordia.Harmonizer{
		BaseYear:        cfg.GetInt("BaseYear"),
		ConvergenceYear: cfg.GetInt("ConvergenceYear"),
	}
	path := cfg.GetString("HarmonizationOverridesFile")
	if path == "" {
		return h, nil
	}
	path, err := checkInputFile(path, "HarmonizationOverridesFile")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("concordia: opening harmonization overrides: %v", err)
	}
	defer f.Close()
	h.Overrides, err = readOverrides(f, vd)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func readOverrides(f io.Reader, vd *concordia.VariableDefinitions) (map[concordia.VarKey]concordia.HarmonizationOverride, error) {
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("concordia: reading harmonization overrides: %v", err)
	}
	if len(lines) == 0 {
		return nil, nil
	}
	col := make(map[string]int)
	for i, name := range lines[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"gas", "sector"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("concordia: harmonization override file is missing column %q", required)
		}
	}
	o := make(map[concordia.VarKey]concordia.HarmonizationOverride)
	for n, line := range lines[1:] {
		k := concordia.VarKey{
			Gas:    strings.TrimSpace(line[col["gas"]]),
			Sector: strings.TrimSpace(line[col["sector"]]),
		}
		if _, err := vd.Get(k.Gas, k.Sector); err != nil {
			return nil, fmt.Errorf("concordia: harmonization override line %d: %v", n+2, err)
		}
		var ov concordia.HarmonizationOverride
		if i, ok := col["convergence_year"]; ok && i < len(line) && strings.TrimSpace(line[i]) != "" {
			ov.ConvergenceYear, err = strconv.Atoi(strings.TrimSpace(line[i]))
			if err != nil {
				return nil, fmt.Errorf("concordia: harmonization override line %d: %v", n+2, err)
			}
		}
		if i, ok := col["method"]; ok && i < len(line) {
			ov.Method = strings.TrimSpace(line[i])
		}
		o[k] = ov
	}
	return o, nil
}

// proxyStore builds the file-backed proxy store for the given grid.
func proxyStore(cfg *viper.Viper, grid *concordia.GridDef) (*concordia.ProxyStore, error) {
	idxFile, err := checkInputFile(cfg.GetString("CountryIndexFile"), "CountryIndexFile")
	if err != nil {
		return nil, err
	}
	index, err := concordia.ReadUnitIndex(idxFile, grid)
	if err != nil {
		return nil, err
	}
	dir := os.ExpandEnv(cfg.GetString("ProxyDir"))
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("concordia: problem with the ProxyDir configuration variable: %v", err)
	}
	store := concordia.NewProxyStore(&concordia.FileProxySource{
		Dir:     dir,
		Pattern: cfg.GetString("ProxyPattern"),
		Grid:    grid,
		Index:   index,
	})
	if n := cfg.GetInt("ProxyCacheSize"); n > 0 {
		store.MemCacheSize = n
	}
	return store, nil
}

// NewWorkflow assembles a gridding workflow from the configuration.
func NewWorkflow(cfg *viper.Viper) (*concordia.Workflow, error) {
	vd, err := variableDefinitions(cfg)
	if err != nil {
		return nil, err
	}
	rm, err := regionMapping(cfg)
	if err != nil {
		return nil, err
	}
	scenPath, err := checkInputFile(cfg.GetString("ScenarioFile"), "ScenarioFile")
	if err != nil {
		return nil, err
	}
	model, err := readIAMC(scenPath, vd)
	if err != nil {
		return nil, err
	}
	histPath, err := checkInputFile(cfg.GetString("HistoryFile"), "HistoryFile")
	if err != nil {
		return nil, err
	}
	histTrajs, err := readIAMC(histPath, vd)
	if err != nil {
		return nil, err
	}
	history, err := concordia.NewHistoricalReference(histTrajs, cfg.GetInt("BaseYear"))
	if err != nil {
		return nil, err
	}
	harm, err := harmonizer(cfg, vd)
	if err != nil {
		return nil, err
	}
	grid, err := concordia.NewGlobalGrid(cfg.GetFloat64("GridResolution"))
	if err != nil {
		return nil, err
	}
	proxy, err := proxyStore(cfg, grid)
	if err != nil {
		return nil, err
	}
	return &concordia.Workflow{
		Model:               model,
		History:             history,
		Mapping:             rm,
		Defs:                vd,
		Harmonizer:          harm,
		Proxy:               proxy,
		Grid:                grid,
		AnnualInterpolation: cfg.GetBool("AnnualInterpolation"),
		UncoveredThreshold:  cfg.GetFloat64("UncoveredThreshold"),
		NumWorkers:          cfg.GetInt("NumWorkers"),
		Logger:              logrus.StandardLogger(),
	}, nil
}

// Encoding returns the configured output encoding.
func Encoding(cfg *viper.Viper) concordia.Encoding {
	enc := concordia.DefaultEncoding
	enc.Zlib = cfg.GetBool("Encoding.Zlib")
	enc.ComplevelN = cfg.GetInt("Encoding.Complevel")
	return enc
}

// WriteOutputs writes one netCDF file per gridded output variable to
// the configured output directory.
func WriteOutputs(cfg *viper.Viper, fields map[string]*concordia.GriddedField) error {
	dir := os.ExpandEnv(cfg.GetString("OutputDir"))
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("concordia: the OutputDir directory doesn't exist: %v", err)
	}
	enc := Encoding(cfg)
	for _, name := range sortedKeys(fields) {
		f := fields[name]
		path := filepath.Join(dir, name+".nc")
		w, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("concordia: creating output file: %v", err)
		}
		if err := concordia.WriteGriddedField(w, f, enc); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("concordia: closing output file: %v", err)
		}
		logrus.WithFields(logrus.Fields{
			"variable": name,
			"file":     path,
		}).Info("wrote gridded output")
	}
	return nil
}

func sortedKeys(m map[string]*concordia.GriddedField) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

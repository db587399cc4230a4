// Command staticlint is the project's multichecker. It combines analyzers from
// the Go toolchain, third-party analyzers, staticcheck and the project's own
// analyzers into a single multichecker.Main invocation.
//
// Which staticcheck, simple and stylecheck analyzers run is read from
// staticlint.json next to the binary. An entry is either an analyzer name
// ("SA1000") or a prefix ending in "*" ("SA4*"). Without the file every SA
// check runs.
package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/patric-chuzhbe/blogshelf/cmd/staticlint/nologfatal"
	"github.com/patric-chuzhbe/blogshelf/cmd/staticlint/noosexit"
)

// ConfigFile is looked up in the directory of the executable.
const ConfigFile = `staticlint.json`

// ConfigData lists the enabled checks of each honnef.co suite.
type ConfigData struct {
	Staticcheck []string `json:"staticcheck"`
	Simple      []string `json:"simple"`
	Stylecheck  []string `json:"stylecheck"`
}

func defaultConfig() ConfigData {
	return ConfigData{Staticcheck: []string{"SA*"}}
}

func loadConfig() (ConfigData, error) {
	appfile, err := os.Executable()
	if err != nil {
		return ConfigData{}, err
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(appfile), ConfigFile))
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	if err != nil {
		return ConfigData{}, err
	}

	var cfg ConfigData
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ConfigData{}, err
	}
	return cfg, nil
}

func enabled(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if pattern == name {
			return true
		}
	}
	return false
}

func pick(suite []*lint.Analyzer, patterns []string) []*analysis.Analyzer {
	var result []*analysis.Analyzer
	for _, v := range suite {
		if enabled(v.Analyzer.Name, patterns) {
			result = append(result, v.Analyzer)
		}
	}
	return result
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	checks := []*analysis.Analyzer{
		copylock.Analyzer,
		errorsas.Analyzer,
		httpresponse.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		printf.Analyzer,
		structtag.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		noosexit.Analyzer,
		nologfatal.Analyzer,
	}
	checks = append(checks, pick(staticcheck.Analyzers, cfg.Staticcheck)...)
	checks = append(checks, pick(simple.Analyzers, cfg.Simple)...)
	checks = append(checks, pick(stylecheck.Analyzers, cfg.Stylecheck)...)

	multichecker.Main(checks...)
}

// Package nologfatal reports log.Fatal* and log.Panic* calls outside package
// main. Library code returns errors; only the binary decides to stop.
package nologfatal

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "nologfatal",
	Doc:  "prohibits log.Fatal and log.Panic outside package main",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if pass.Pkg.Name() == "main" {
		return nil, nil
	}

	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			if !strings.HasPrefix(sel.Sel.Name, "Fatal") && !strings.HasPrefix(sel.Sel.Name, "Panic") {
				return true
			}

			ident, ok := sel.X.(*ast.Ident)
			if !ok {
				return true
			}
			pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
			if ok && pkgName.Imported().Path() == "log" {
				pass.Reportf(call.Pos(), "log.%s stops the process from a library; return the error instead", sel.Sel.Name)
			}

			return true
		})
	}
	return nil, nil
}

// completerlint reports calls to a provider's Complete method made outside
// the orchestrator. Every outbound completion must go through the
// orchestrator's retry and rate-limit policy.
package main

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/singlechecker"
)

var Analyzer = &analysis.Analyzer{
	Name: "completerlint",
	Doc:  "forbids calling providers Complete outside core/orchestrator",
	Run:  run,
}

func main() {
	singlechecker.Main(Analyzer)
}

// allowed packages may call Complete directly.
var allowed = []string{"core/orchestrator", "core/providers"}

func inPackage(path, name string) bool {
	return path == name || strings.HasSuffix(path, "/"+name)
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, name := range allowed {
		if inPackage(pass.Pkg.Path(), name) {
			return nil, nil
		}
	}

	for _, file := range pass.Files {
		if strings.HasSuffix(pass.Fset.File(file.Pos()).Name(), "_test.go") {
			continue
		}
		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok || sel.Sel.Name != "Complete" {
				return true
			}
			selection := pass.TypesInfo.Selections[sel]
			if selection == nil {
				return true
			}
			fn, ok := selection.Obj().(*types.Func)
			if !ok || fn.Pkg() == nil || !inPackage(fn.Pkg().Path(), "core/providers") {
				return true
			}
			pass.Reportf(call.Pos(),
				"direct provider Complete call - use orchestrator.Generate so retries and rate limits apply")
			return true
		})
	}
	return nil, nil
}

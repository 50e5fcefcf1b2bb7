//go:build ignore

// check_goroutines fails when non-test code under internal/ or cmd/ starts a
// goroutine with a bare go statement. Background work goes through
// internal/pkg/worker. A "nolint:naked-goroutine" comment on the same or the
// preceding line exempts one statement.
//
// Usage: go run hack/check_goroutines.go
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tag = "nolint:naked-goroutine"

var exempt = []string{"internal/pkg/worker"}

func main() {
	var violations []string
	for _, root := range []string{"internal", "cmd"} {
		found, err := scan(root)
		if err != nil {
			fmt.Printf("[goroutines] FAIL: walk %s: %v\n", root, err)
			os.Exit(1)
		}
		violations = append(violations, found...)
	}

	if len(violations) > 0 {
		fmt.Println("[goroutines] FAIL: bare go statements found")
		for _, v := range violations {
			fmt.Println(v)
		}
		os.Exit(1)
	}
	fmt.Println("[goroutines] OK")
}

func scan(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		slash := filepath.ToSlash(path)
		if d.IsDir() {
			for _, e := range exempt {
				if slash == e {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		allowed := make(map[int]bool)
		for _, group := range file.Comments {
			for _, c := range group.List {
				if strings.Contains(c.Text, tag) {
					line := fset.Position(c.Pos()).Line
					allowed[line] = true
					allowed[line+1] = true
				}
			}
		}

		ast.Inspect(file, func(n ast.Node) bool {
			stmt, ok := n.(*ast.GoStmt)
			if !ok {
				return true
			}
			if line := fset.Position(stmt.Pos()).Line; !allowed[line] {
				out = append(out, fmt.Sprintf("%s:%d: use a worker pool (pools.General.Submit) instead of go", slash, line))
			}
			return true
		})
		return nil
	})
	return out, err
}

package quality

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// TestCodeFormatting 要求项目内所有 Go 文件都已 gofmt。
func TestCodeFormatting(t *testing.T) {
	gofmt, err := exec.LookPath("gofmt")
	if err != nil {
		t.Skip("skip: gofmt not on PATH")
	}
	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("Failed to find project root: %v", err)
	}

	goFiles := collectGoFiles(t, projectRoot)
	if len(goFiles) == 0 {
		t.Fatal("No Go files found in project")
	}

	output, err := exec.Command(gofmt, append([]string{"-l"}, goFiles...)...).Output()
	if err != nil {
		t.Fatalf("gofmt failed: %v", err)
	}
	if unformatted := strings.Fields(string(output)); len(unformatted) > 0 {
		t.Errorf("%d files are not gofmt-ed:\n%s", len(unformatted), strings.Join(unformatted, "\n"))
		t.Log("Run 'gofmt -w .' to fix formatting")
	}
	t.Logf("Checked %d Go files for formatting consistency", len(goFiles))
}

// TestPackageLayering 检查依赖方向：存储、模型和实时连接层不能反向依赖业务层与 HTTP 层。
func TestPackageLayering(t *testing.T) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		t.Fatalf("Failed to find project root: %v", err)
	}
	forbidden := map[string][]string{
		"internal/models":  {"directchat/internal/store", "directchat/internal/service", "directchat/internal/server", "directchat/internal/ws"},
		"internal/store":   {"directchat/internal/service", "directchat/internal/server", "directchat/internal/ws"},
		"internal/authz":   {"directchat/internal/service", "directchat/internal/server", "directchat/internal/ws"},
		"internal/ws":      {"directchat/internal/service", "directchat/internal/server"},
		"internal/relay":   {"directchat/internal/service", "directchat/internal/server", "directchat/internal/ws"},
		"internal/service": {"directchat/internal/server", "directchat/internal/ws"},
	}

	fset := token.NewFileSet()
	for dir, banned := range forbidden {
		files, err := filepath.Glob(filepath.Join(projectRoot, dir, "*.go"))
		if err != nil {
			t.Fatalf("glob %s: %v", dir, err)
		}
		for _, file := range files {
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
			if err != nil {
				t.Errorf("parse %s: %v", file, err)
				continue
			}
			for _, imp := range f.Imports {
				path, _ := strconv.Unquote(imp.Path.Value)
				for _, b := range banned {
					if path == b {
						t.Errorf("%s imports %s", file, path)
					}
				}
			}
		}
	}
}

func collectGoFiles(t *testing.T, root string) []string {
	t.Helper()
	var goFiles []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			goFiles = append(goFiles, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to walk project directory: %v", err)
	}
	return goFiles
}

// findProjectRoot finds the project root by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

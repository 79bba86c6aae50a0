package build_test

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/nickng/loopopt/ssa"
	"github.com/nickng/loopopt/ssa/build"
	gossa "golang.org/x/tools/go/ssa"
)

var (
	helloProg = `
	package main
	import "fmt"
	func main() {
		fmt.Println("hello")
	}`

	testdir string
)

func init() {
	testdir, _ = os.Getwd() // Save the dir where the test files are, for the runnable examples.
}

// Test loading from files.
func TestBuildFromFiles(t *testing.T) {
	os.Chdir(testdir)
	conf := build.FromFiles("testdata/main.go", "testdata/fill.go", "testdata/sum.go")
	info, err := conf.Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	mains, err := ssa.MainPkgs(info.Prog, false)
	if err != nil {
		t.Errorf("cannot find main package: %v", err)
	}
	for _, main := range mains {
		for _, name := range []string{"main", "fill", "sum"} {
			if main.Func(name) == nil {
				t.Errorf("cannot find main.%s()", name)
			}
		}
	}
}

func TestBuildMissingFile(t *testing.T) {
	os.Chdir(testdir)
	if _, err := build.FromFiles("testdata/nosuchfile.go").Build(); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

// Test loading from string/reader.
func TestBuildFromReader(t *testing.T) {
	conf := build.FromReader(strings.NewReader(helloProg))
	info, err := conf.Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	mains, err := ssa.MainPkgs(info.Prog, false)
	if err != nil {
		t.Errorf("cannot find main package: %v", err)
	}
	for _, main := range mains {
		if main.Func("main") == nil {
			t.Errorf("cannot find main.main()")
		}
	}
}

func TestWithBuildLog(t *testing.T) {
	buf := new(bytes.Buffer)
	conf := build.FromReader(strings.NewReader(helloProg)).WithBuildLog(buf, log.LstdFlags)
	info, err := conf.Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	if info.BldLog != buf {
		t.Errorf("Expects build log to propagate to built SSA, but got: %v",
			info.BldLog)
	}
	for _, msg := range []string{"Program loaded and type checked", "packages,"} {
		if !strings.Contains(buf.String(), msg) {
			t.Errorf("Build log was set but %q not written to\nlog contains:\n%s",
				msg, buf.String())
		}
	}
}

const loopProg = `
	package main
	func main() {
		s := 0
		for i := 0; i < 4; i++ {
			s += i
		}
		println(s)
	}`

func countDebugRefs(info *ssa.Info) int {
	n := 0
	mains, _ := ssa.MainPkgs(info.Prog, false)
	for _, main := range mains {
		for _, b := range main.Func("main").Blocks {
			for _, in := range b.Instrs {
				if _, ok := in.(*gossa.DebugRef); ok {
					n++
				}
			}
		}
	}
	return n
}

// Debug references are only kept in the default mode.
func TestWithMode(t *testing.T) {
	info, err := build.FromReader(strings.NewReader(loopProg)).Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	if countDebugRefs(info) == 0 {
		t.Errorf("expected debug references with mode %v", build.DefaultMode)
	}
	info, err = build.FromReader(strings.NewReader(loopProg)).WithMode(gossa.BareInits).Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	if n := countDebugRefs(info); n != 0 {
		t.Errorf("debug references\nwant: 0\ngot: %d\n", n)
	}
}

func TestWithPtaLog(t *testing.T) {
	buf := new(bytes.Buffer)
	conf := build.FromReader(strings.NewReader(helloProg)).WithPtaLog(buf, log.LstdFlags)
	info, err := conf.Build()
	if err != nil {
		t.Fatalf("SSA build failed: %v", err)
	}
	if info.PtaLog != buf {
		t.Errorf("Expects pta log to propagate to built SSA, but got: %v",
			info.PtaLog)
	}
}

func TestAddBadPkg(t *testing.T) {
	for _, bad := range []string{"fmt", "unicode/utf8"} {
		info, err := build.FromReader(strings.NewReader(helloProg)).AddBadPkg(bad, "not lowered").Build()
		if err != nil {
			t.Fatalf("SSA build failed: %v", err)
		}
		name := bad[strings.LastIndex(bad, "/")+1:]
		found := false
		for _, pkg := range info.IgnoredPkgs {
			if pkg == name {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %s in ignored packages, got %v", bad, info.IgnoredPkgs)
		}
		for _, pkg := range info.Prog.AllPackages() {
			if pkg.Pkg.Path() != bad {
				continue
			}
			for _, mem := range pkg.Members {
				if fn, ok := mem.(*gossa.Function); ok && fn.Blocks != nil {
					t.Errorf("%s is not built but %s has a body", bad, fn)
				}
			}
		}
	}
}

func ExampleFromFiles() {
	os.Chdir(testdir)
	conf := build.FromFiles("testdata/main.go", "testdata/fill.go", "testdata/sum.go")
	info, err := conf.Build()
	if err != nil {
		log.Fatalf("SSA build failed: %v", err)
	}
	_ = info // Use info here
	// output:
}

func ExampleFromReader() {
	conf := build.FromReader(strings.NewReader("package main; func main() {}"))
	info, err := conf.Build()
	if err != nil {
		log.Fatalf("SSA build failed: %v", err)
	}
	_ = info // Use info here
	// output:
}

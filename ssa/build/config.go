package build

import (
	"go/build"
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/nickng/loopopt/ssa"
	"github.com/pkg/errors"
	"golang.org/x/tools/go/loader"
	gossa "golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// DefaultMode keeps block comments and debug references, which the lowering
// uses to name blocks and values.
const DefaultMode = gossa.GlobalDebug | gossa.BareInits

// srcReader is a wrapper for source code which can be read through a NewReader.
type srcReader interface {
	NewReader() io.Reader
}

type Configurer interface {
	Builder
	Default() Configurer
	AddBadPkg(pkg, reason string) Configurer
	WithBuildLog(l io.Writer, flags int) Configurer
	WithPtaLog(l io.Writer, flags int) Configurer
	WithMode(mode gossa.BuilderMode) Configurer
}

// Config represents a build configuration.
type Config struct {
	badPkgs map[string]string
	mode    gossa.BuilderMode

	bldLog    io.Writer // Build log.
	bldLFlags int       // Build log flags.
	ptaLog    io.Writer // Pointer analysis log.
	ptaLFlags int       // Pointer analysis log flags.

	src srcReader // src points to the program source.
}

func newConfig(src srcReader) *Config {
	return &Config{
		badPkgs:   make(map[string]string),
		mode:      DefaultMode,
		bldLog:    ioutil.Discard,
		bldLFlags: log.LstdFlags,
		ptaLog:    ioutil.Discard,
		ptaLFlags: log.LstdFlags,
		src:       src,
	}
}

// WithBuildLog adds build log to config.
func (c *Config) WithBuildLog(l io.Writer, flags int) Configurer {
	c.bldLog = l
	c.bldLFlags = flags
	return c
}

// WithPtaLog adds pointer analysis log to config. It is only written to when
// the call graph is built with the pta algorithm.
func (c *Config) WithPtaLog(l io.Writer, flags int) Configurer {
	c.ptaLog = l
	c.ptaLFlags = flags
	return c
}

// WithMode sets the SSA builder mode.
func (c *Config) WithMode(mode gossa.BuilderMode) Configurer {
	c.mode = mode
	return c
}

// AddBadPkg marks a package 'bad' to avoid building its function bodies.
// pkg matches either the package name or its import path.
func (c *Config) AddBadPkg(pkg, reason string) Configurer {
	c.badPkgs[pkg] = reason
	return c
}

// Default returns a default configuration for loop optimization: the
// runtime and reflection are never lowered.
func (c *Config) Default() Configurer {
	return c.
		AddBadPkg("reflect", "Reflection is not supported").
		AddBadPkg("runtime", "Runtime is not lowered")
}

// loaderConfig prepares the loader for the configured source.
func (c *Config) loaderConfig() (*loader.Config, error) {
	lconf := &loader.Config{Build: &build.Default}
	switch src := c.src.(type) {
	case *FileSrc:
		if err := src.check(); err != nil {
			return nil, err
		}
		args, err := lconf.FromArgs(src.Files, false /* No tests */)
		if err != nil {
			return nil, errors.Wrap(err, "bad source files")
		}
		if len(args) > 0 {
			return nil, errors.Errorf("surplus arguments: %q", args)
		}
	case *CachedSrc:
		if src.err != nil {
			return nil, src.err
		}
		// A reader has no directory of its own to resolve imports against.
		os.Chdir(os.TempDir())
		parsed, err := lconf.ParseFile("tmp", src.NewReader())
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse source")
		}
		lconf.CreateFromFiles("", parsed)
	default:
		return nil, errors.Errorf("unknown source %T", c.src)
	}
	return lconf, nil
}

// buildPkgs builds the function bodies of every package which is not bad,
// and returns the names of the skipped ones.
func (c *Config) buildPkgs(lprog *loader.Program, prog *gossa.Program, bldLog *log.Logger) []string {
	if len(c.badPkgs) == 0 {
		prog.Build()
		return nil
	}
	var ignored []string
	for _, info := range lprog.AllPackages {
		reason, bad := c.badPkgs[info.Pkg.Name()]
		if !bad {
			reason, bad = c.badPkgs[info.Pkg.Path()]
		}
		if bad {
			bldLog.Printf("Skip package: %s (%s)", info.Pkg.Path(), reason)
			ignored = append(ignored, info.Pkg.Name())
			continue
		}
		prog.Package(info.Pkg).Build()
	}
	return ignored
}

// Build loads, type-checks and builds the SSA of the configured source.
func (c *Config) Build() (*ssa.Info, error) {
	bldLog := log.New(c.bldLog, "ssabuild: ", c.bldLFlags)
	lconf, err := c.loaderConfig()
	if err != nil {
		return nil, err
	}
	lprog, err := lconf.Load()
	if err != nil {
		return nil, errors.Wrap(err, "type check failed")
	}
	bldLog.Print("Program loaded and type checked")

	prog := ssautil.CreateProgram(lprog, c.mode)
	ignored := c.buildPkgs(lprog, prog, bldLog)
	bldLog.Printf("Built %d packages, %d skipped", len(lprog.AllPackages)-len(ignored), len(ignored))

	return &ssa.Info{
		IgnoredPkgs: ignored,
		FSet:        lprog.Fset,
		Prog:        prog,
		LProg:       lprog,
		BldLog:      c.bldLog,
		PtaLog:      c.ptaLog,
	}, nil
}

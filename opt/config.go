package opt

import "github.com/nickng/loopopt/internal/logging"

// Logger is the logger shared by the passes, with a module tag.
type Logger = logging.Logger

// DefaultMaxRounds bounds how often the passes are repeated on a function.
const DefaultMaxRounds = 4

// Configurer builds a Config one option at a time.
type Configurer interface {
	WithLICM(enable bool) Configurer
	WithFusion(enable bool) Configurer
	WithLogger(l *Logger) Configurer
	WithConservativeDeps(enable bool) Configurer
	WithMaxRounds(n int) Configurer
	Config() *Config
}

// Config represents an optimizer configuration.
type Config struct {
	licm         bool
	fusion       bool
	conservative bool
	maxRounds    int
	logger       *Logger
}

// NewConfig returns a configuration running both passes.
func NewConfig() Configurer {
	return &Config{
		licm:      true,
		fusion:    true,
		maxRounds: DefaultMaxRounds,
		logger:    logging.Nop(),
	}
}

// WithLICM enables loop-invariant code motion.
func (c *Config) WithLICM(enable bool) Configurer {
	c.licm = enable
	return c
}

// WithFusion enables loop fusion.
func (c *Config) WithFusion(enable bool) Configurer {
	c.fusion = enable
	return c
}

// WithLogger sets the logger of every pass.
func (c *Config) WithLogger(l *Logger) Configurer {
	if l == nil {
		l = logging.Nop()
	}
	c.logger = l
	return c
}

// WithConservativeDeps makes fusion reject loop pairs whose dependence
// distance cannot be evaluated.
func (c *Config) WithConservativeDeps(enable bool) Configurer {
	c.conservative = enable
	return c
}

// WithMaxRounds sets how many times LICM and fusion may be repeated while
// they keep changing the function.
func (c *Config) WithMaxRounds(n int) Configurer {
	if n < 1 {
		n = 1
	}
	c.maxRounds = n
	return c
}

func (c *Config) Config() *Config { return c }

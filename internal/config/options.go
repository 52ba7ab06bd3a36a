package config

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "TOOLRUNNER_"

// Options for the CLI - flat structure with toml mapping.
// The elevation secret is not an option; Credentials reads it.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"toolrunner.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8095" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings, empty username disables auth
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Tool lookup
	ToolsFallbackDir string `help:"Directory searched when a tool is not on PATH" default:"/usr/share/one/bin" toml:"tools.fallback_dir" env:"TOOLS_FALLBACK_DIR"`

	// Elevation settings
	ElevationHelper              string `help:"Elevation helper invoked with -A" default:"sudo" toml:"elevation.helper" env:"ELEVATION_HELPER"`
	ElevationAskpassEnv          string `help:"Env var naming the askpass script" default:"SUDO_ASKPASS" toml:"elevation.askpass_env" env:"ELEVATION_ASKPASS_ENV"`
	ElevationScratchBase         string `help:"Base directory for the askpass scratch dir (default: user cache dir)" default:"" toml:"elevation.scratch_base" env:"ELEVATION_SCRATCH_BASE"`
	ElevationCleanupDelayMs      int    `help:"Delay before removing the askpass script after exit" default:"100" toml:"elevation.cleanup_delay_ms" env:"ELEVATION_CLEANUP_DELAY_MS"`
	ElevationCleanupRetries      int    `help:"Removal retries after exit" default:"10" toml:"elevation.cleanup_retries" env:"ELEVATION_CLEANUP_RETRIES"`
	ElevationEarlyCleanupDelayMs int    `help:"Remove the askpass script this long after spawn, 0 disables" default:"1000" toml:"elevation.early_cleanup_delay_ms" env:"ELEVATION_EARLY_CLEANUP_DELAY_MS"`

	// Supervisor settings
	SupervisorWaitDelayMs   int `help:"How long output is copied after the child exits" default:"2000" toml:"supervisor.wait_delay_ms" env:"SUPERVISOR_WAIT_DELAY_MS"`
	SupervisorKillTimeoutMs int `help:"Grace period before SIGKILL when a run is cancelled" default:"5000" toml:"supervisor.kill_timeout_ms" env:"SUPERVISOR_KILL_TIMEOUT_MS"`

	// Output settings
	OutputBufferSize int `help:"Output lines kept for /api/logs" default:"1000" toml:"output.buffer_size" env:"OUTPUT_BUFFER_SIZE"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingRelay      string `help:"Credential relay logging level" default:"" toml:"logging.relay" env:"LOGGING_RELAY"`
	LoggingLocator    string `help:"Tool locator logging level" default:"" toml:"logging.locator" env:"LOGGING_LOCATOR"`
	LoggingAPI        string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
}

// LoggingModules returns the per-module overrides that are set.
func (o *Options) LoggingModules() map[string]string {
	modules := make(map[string]string)
	for name, level := range map[string]string{
		"supervisor": o.LoggingSupervisor,
		"relay":      o.LoggingRelay,
		"locator":    o.LoggingLocator,
		"api":        o.LoggingAPI,
	} {
		if level != "" {
			modules[name] = level
		}
	}
	return modules
}

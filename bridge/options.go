package bridge

// Options represents the command line surface; zero values defer to the config file, then to defaults
type Options struct {
	Addr      string   `short:"a" long:"addr" description:"HTTP listen address (default 127.0.0.1:3001)"`
	Path      string   `short:"p" long:"path" description:"JSON-RPC endpoint path (default /mcp)"`
	Timeout   int      `short:"t" long:"timeout" description:"per request timeout in milliseconds (default 30000)"`
	ConfigURL string   `short:"c" long:"config" description:"YAML config file URL"`
	LogLevel  string   `short:"l" long:"log-level" description:"log level: trace, debug, info, warn, error (default info)"`
	LogFormat string   `long:"log-format" choice:"console" choice:"json" description:"log output format (default console)"`
	Env       []string `short:"e" long:"env" description:"extra KEY=VALUE environment for the subprocess, repeatable"`
	Dir       string   `short:"d" long:"dir" description:"subprocess working directory"`
	Origins   []string `long:"origin" description:"allowed CORS origin, repeatable"`
	Args      struct {
		Command string `positional-arg-name:"command" description:"subprocess command line quoted as a single argument"`
	} `positional-args:"yes"`
}

// Package cli parses the knobd command line surface.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun      Command = "run"
	CommandStatus   Command = "status"
	CommandHide     Command = "hide"
	CommandReload   Command = "reload"
	CommandQuit     Command = "quit"
	CommandSessions Command = "sessions"
	CommandMappings Command = "mappings"
	CommandMap      Command = "map"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:      {},
	CommandStatus:   {},
	CommandHide:     {},
	CommandReload:   {},
	CommandQuit:     {},
	CommandSessions: {},
	CommandMappings: {},
	CommandMap:      {},
	CommandDoctor:   {},
	CommandVersion:  {},
	CommandHelp:     {},
}

// argCounts lists commands that accept trailing positional arguments.
var argCounts = map[Command]int{
	CommandMap: 2,
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			want := argCounts[cmd]
			rest := args[i+1:]
			if len(rest) != want {
				if want == 0 {
					return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
				}
				return Parsed{}, fmt.Errorf("command %q requires %d arguments", arg, want)
			}
			parsed.Args = rest
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  run                     Run the background daemon (input hook + click pipeline)
  status                  Print daemon state
  hide                    Hide all visible volume knobs
  reload                  Reload configuration in the running daemon
  quit                    Stop the running daemon
  sessions                List processes with active audio sessions
  mappings                List stored manual name-to-process mappings
  map <ui-name> <proc>    Add or update one manual mapping
  doctor                  Run configuration and environment checks
  version                 Print version information
  help                    Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/knobd/config.json)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}

// Package awscli builds and runs invocations of the external AWS
// command-line tool. It is the only place karja touches a subprocess;
// everything above it works with parsed results.
package awscli

import (
	"fmt"
	"strings"
)

// DefaultTool is the binary used when configuration does not override it.
const DefaultTool = "aws"

// Command describes one invocation of the external tool. Arguments stay
// discrete tokens end to end; nothing here ever builds a shell string, so
// instance ids, tag values and profile names cannot inject into a shell.
type Command struct {
	Tool    string   // external binary, e.g. "aws"
	Profile string   // credential profile, "" means tool default
	Region  string   // region override, "" means tool default
	Args    []string // subcommand tokens, e.g. "ec2", "describe-instances"
}

// Argv returns the full argument vector: tool, then the --profile pair
// when a profile is set, then the --region pair when a region is set,
// then the caller's tokens.
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+5)
	argv = append(argv, c.Tool)
	if c.Profile != "" {
		argv = append(argv, "--profile", c.Profile)
	}
	if c.Region != "" {
		argv = append(argv, "--region", c.Region)
	}
	return append(argv, c.Args...)
}

// String renders the argv for logs. Display only, never executed.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Validate ensures the command can be executed at all.
func (c Command) Validate() error {
	if c.Tool == "" {
		return fmt.Errorf("command tool cannot be empty")
	}
	if len(c.Args) == 0 {
		return fmt.Errorf("command needs at least one argument token")
	}
	return nil
}

package approval

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ShellCommand represents a parsed command with its arguments.
type ShellCommand struct {
	Name       string   // Command name (e.g., "rm", "git")
	Args       []string // Command arguments
	Subcommand string   // First non-flag argument (e.g., "commit" in "git commit")
}

// ParseShellCommand parses a shell command string into structured commands.
// Compound commands (pipes, && chains, subshells) yield one entry per call.
func ParseShellCommand(command string) ([]ShellCommand, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var commands []ShellCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.CallExpr:
			cmd := extractCommand(n)
			if cmd != nil {
				commands = append(commands, *cmd)
			}
		}
		return true
	})

	return commands, nil
}

func extractCommand(call *syntax.CallExpr) *ShellCommand {
	if len(call.Args) == 0 {
		return nil
	}

	cmd := &ShellCommand{}

	cmd.Name = wordToString(call.Args[0])
	if cmd.Name == "" {
		return nil
	}

	for _, arg := range call.Args[1:] {
		argStr := wordToString(arg)
		cmd.Args = append(cmd.Args, argStr)

		// Find first non-flag argument as subcommand
		if cmd.Subcommand == "" && !strings.HasPrefix(argStr, "-") {
			cmd.Subcommand = argStr
		}
	}

	return cmd
}

// wordToString converts a syntax.Word to a string.
func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			// Variable expansion - return placeholder
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			// Command substitution - ignore the content, mark as dynamic
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// riskyCommands are commands that change files or system state and
// always trigger the shell gate regardless of configured patterns.
var riskyCommands = map[string]bool{
	"rm":    true,
	"cp":    true,
	"mv":    true,
	"dd":    true,
	"chmod": true,
	"chown": true,
	"mkfs":  true,
	"sudo":  true,
	"curl":  true,
	"wget":  true,
}

// IsRiskyCommand checks if a command is in the always-gated list.
func IsRiskyCommand(name string) bool {
	return riskyCommands[name]
}

// MatchShellAction finds the configured action for a command, trying the
// most specific pattern first and defaulting to ask.
func MatchShellAction(cmd ShellCommand, actions map[string]Action) Action {
	if cmd.Subcommand != "" {
		if action, ok := actions[cmd.Name+" "+cmd.Subcommand+" *"]; ok {
			return action
		}
	}

	if action, ok := actions[cmd.Name+" *"]; ok {
		return action
	}

	if action, ok := actions[cmd.Name]; ok {
		return action
	}

	if action, ok := actions["*"]; ok {
		return action
	}

	return ActionAsk
}

// BuildPattern creates a grant pattern for a command.
// For "git commit -m msg", returns "git commit *"
// For "ls -la", returns "ls *"
func BuildPattern(cmd ShellCommand) string {
	if cmd.Subcommand != "" {
		return cmd.Name + " " + cmd.Subcommand + " *"
	}
	return cmd.Name + " *"
}

// BuildPatterns creates grant patterns for multiple commands.
func BuildPatterns(commands []ShellCommand) []string {
	seen := make(map[string]bool)
	var patterns []string

	for _, cmd := range commands {
		pattern := BuildPattern(cmd)
		if !seen[pattern] {
			seen[pattern] = true
			patterns = append(patterns, pattern)
		}
	}

	return patterns
}

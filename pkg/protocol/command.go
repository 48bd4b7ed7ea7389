package protocol

import (
	"errors"
	"strings"
)

// The plaintext phase is one command per message, null-terminated on the
// wire (the terminator is stripped before parsing). The client command set
// is open-ended: anything we don't recognize still parses, and the routing
// decision is the dispatcher's.

var ErrMalformedCommand = errors.New("malformed command")

// Command is one tokenized client message.
type Command struct {
	Name string
	Args []string
}

// ArgSpec declares a known command's argument shape. Greedy means the final
// argument absorbs all remaining tokens, re-joined with single spaces, so
// chat text with embedded whitespace stays one parameter.
type ArgSpec struct {
	Arity  int
	Greedy bool
}

// CommandTable maps lower-case command names (including the leading slash)
// to their argument shape.
type CommandTable map[string]ArgSpec

// ParseCommand tokenizes one command line. Tokens split on spaces and tabs;
// a "quoted" token keeps embedded whitespace, and an unterminated quote is
// malformed. The command name is lower-cased for lookup. Unknown commands
// come back as {name, raw remainder} and are not an error.
func ParseCommand(line []byte, table CommandTable) (Command, error) {
	tokens, ends, err := tokenize(line)
	if err != nil {
		return Command{}, err
	}
	if len(tokens) == 0 || tokens[0] == "" {
		return Command{}, ErrMalformedCommand
	}

	name := strings.ToLower(tokens[0])
	var args []string
	if len(tokens) > 1 {
		args = tokens[1:]
	}

	spec, known := table[name]
	if !known {
		// Raw remainder as a single argument; the dispatcher decides
		// whether to drop or relay it.
		remainder := strings.TrimLeft(string(line[ends[0]:]), " \t")
		if remainder == "" {
			return Command{Name: name}, nil
		}
		return Command{Name: name, Args: []string{remainder}}, nil
	}

	if len(args) < spec.Arity {
		return Command{}, ErrMalformedCommand
	}
	if spec.Greedy && spec.Arity > 0 {
		merged := strings.Join(args[spec.Arity-1:], " ")
		args = append(args[:spec.Arity-1:spec.Arity-1], merged)
	} else if len(args) > spec.Arity {
		return Command{}, ErrMalformedCommand
	}
	return Command{Name: name, Args: args}, nil
}

// tokenize returns the tokens and, for each, the byte offset just past its
// raw text (used to recover the raw remainder for unknown commands).
func tokenize(line []byte) ([]string, []int, error) {
	var tokens []string
	var ends []int
	i := 0
	for i < len(line) {
		switch line[i] {
		case ' ', '\t':
			i++
		case '"':
			j := i + 1
			for j < len(line) && line[j] != '"' {
				j++
			}
			if j == len(line) {
				return nil, nil, ErrMalformedCommand
			}
			tokens = append(tokens, string(line[i+1:j]))
			i = j + 1
			ends = append(ends, i)
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' && line[j] != '"' {
				j++
			}
			tokens = append(tokens, string(line[i:j]))
			i = j
			ends = append(ends, i)
		}
	}
	return tokens, ends, nil
}

// Command nominal is the standalone driver for the Nominal scripting
// language: it executes source files and inline code, and offers a
// read-eval-print loop.
//
// Usage:
//
//	nominal [flags] [file...]
//
// Files execute in order. With -c the given source executes first; with -i
// a REPL starts after every other action. The process exits non-zero when
// any execution failed.
//
// Inside the REPL, an empty line quits and a line starting with ^ dumps
// bytecode: the rest of the line compiled on its own, or the whole
// accumulated program when the rest is empty.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nominal-lang/nominal/pkg/vm"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var errExecutionFailed = errors.New("execution failed")

func main() {
	var interactive bool
	var code string

	root := &cobra.Command{
		Use:   "nominal [flags] [file...]",
		Short: "The Nominal scripting language",
		Long: "nominal evaluates Nominal source files, inline code and an\n" +
			"interactive prompt, sharing one interpreter state across all of them.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			state := vm.NewState()

			if code != "" {
				state.Execute(code)
				if state.Error() {
					reportError(state)
					return errExecutionFailed
				}
			}

			for _, path := range args {
				state.DoFile(path)
				if state.Error() {
					reportError(state)
					return errExecutionFailed
				}
			}

			if interactive {
				repl(state)
			}
			return nil
		},
	}

	root.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"enter a read-eval-print loop prompt after execution")
	root.Flags().StringVarP(&code, "code", "c", "",
		"execute the provided Nominal source code as a string")

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errExecutionFailed) {
			fmt.Fprintln(os.Stderr, errStyle.Render("Error: "+err.Error()))
		}
		os.Exit(1)
	}
}

func reportError(state *vm.State) {
	fmt.Fprintln(os.Stderr, errStyle.Render("Error: "+state.GetError()))
}

// repl reads lines until EOF or an empty line, evaluating each one against
// the shared state so definitions accumulate across inputs.
func repl(state *vm.State) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(promptStyle.Render(":>") + " ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "" {
			break
		}

		if strings.HasPrefix(line, "^") {
			state.DumpBytecode(os.Stdout, strings.TrimSpace(line[1:]))
			if state.Error() {
				reportError(state)
			}
			continue
		}

		result := state.Evaluate(line)
		if state.Error() {
			reportError(state)
			continue
		}
		fmt.Println(resultStyle.Render("=> " + state.ToString(result)))
	}
}

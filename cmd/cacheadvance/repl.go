package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/calvinalkan/cacheadvance/pkg/cacheadvance"
	"github.com/peterh/liner"
)

// REPL is the interactive command loop over an open byte-message cache.
// Commands write through out rather than directly to os.Stdout so dispatch
// can be tested by capturing output into a buffer.
type REPL struct {
	cache *cacheadvance.CacheAdvance[[]byte]
	cfg   Config
	liner *liner.State
	out   io.Writer
}

func (r *REPL) writer() io.Writer {
	if r.out == nil {
		return os.Stdout
	}

	return r.out
}

// historyFile returns the path to the history file: the config's
// HistoryFile if set, otherwise ~/.cacheadvance_history.
func (r *REPL) historyFile() string {
	if r.cfg.HistoryFile != "" {
		return r.cfg.HistoryFile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".cacheadvance_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(r.historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	out := r.writer()

	fmt.Fprintf(out, "cacheadvance - %s (maximum_bytes=%d, overwrites_old_messages=%v)\n",
		r.cache.FileURL(), r.cfg.MaximumBytes, r.cfg.OverwritesOldMessages)
	fmt.Fprintln(out, "Type 'help' for available commands.")
	fmt.Fprintln(out)

	for {
		line, err := r.liner.Prompt("cacheadvance> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(out, "\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		if exit := r.dispatch(line); exit {
			break
		}
	}

	r.saveHistory()

	return nil
}

// dispatch parses one input line and runs the matching command. Exposed
// separately from Run's prompt loop so command behavior can be exercised
// without a real terminal.
func (r *REPL) dispatch(line string) (exit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if r.liner != nil {
		r.liner.AppendHistory(line)
	}

	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	out := r.writer()

	switch cmd {
	case "exit", "quit", "q":
		fmt.Fprintln(out, "Bye!")

		r.saveHistory()

		return true

	case "help", "?":
		r.printHelp()

	case "append", "add", "put":
		r.cmdAppend(args)

	case "messages", "msgs", "ls", "list":
		r.cmdMessages(args)

	case "info":
		r.cmdInfo()

	case "clear", "cls":
		fmt.Fprint(out, "\033[H\033[2J")

	case "bench":
		r.cmdBench(args)

	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	return false
}

func (r *REPL) saveHistory() {
	if r.liner == nil {
		return
	}

	if path := r.historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"append", "add", "put",
		"messages", "msgs", "ls", "list",
		"info", "bench",
		"clear", "cls",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	out := r.writer()
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  append <text>   Append a message, UTF-8 encoded")
	fmt.Fprintln(out, "  messages        List all live messages, oldest first")
	fmt.Fprintln(out, "  info            Show cache info")
	fmt.Fprintln(out, "  bench <count>   Benchmark append performance")
	fmt.Fprintln(out, "  help            Show this help")
	fmt.Fprintln(out, "  exit / quit / q Exit")
}

func (r *REPL) cmdAppend(args []string) {
	out := r.writer()

	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: append <text>")

		return
	}

	message := []byte(strings.Join(args, " "))

	err := r.cache.Append(message)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)

		return
	}

	fmt.Fprintf(out, "OK: appended %d bytes\n", len(message))
}

func (r *REPL) cmdMessages(args []string) {
	out := r.writer()

	msgs, err := r.cache.Messages()
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)

		return
	}

	if len(msgs) == 0 {
		fmt.Fprintln(out, "(empty)")

		return
	}

	limit := len(msgs)

	if len(args) >= 1 {
		limit, err = strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(out, "Error parsing limit: %v\n", err)

			return
		}
	}

	for i, msg := range msgs {
		if i >= limit {
			fmt.Fprintf(out, "... (%d more, use 'messages <limit>' to see more)\n", len(msgs)-limit)

			break
		}

		fmt.Fprintf(out, "%3d. %s\n", i+1, formatMessage(msg))
	}
}

// formatMessage renders a message as text if printable, otherwise hex.
func formatMessage(b []byte) string {
	printable := true

	for _, c := range b {
		if c < 9 || (c > 13 && c < 32) || c == 127 {
			printable = false

			break
		}
	}

	if printable {
		return strconv.Quote(string(b))
	}

	return fmt.Sprintf("% x", b)
}

func (r *REPL) cmdInfo() {
	out := r.writer()

	empty, err := r.cache.IsEmpty()
	if err != nil {
		fmt.Fprintf(out, "Error getting info: %v\n", err)

		return
	}

	fmt.Fprintf(out, "Cache Info:\n")
	fmt.Fprintf(out, "  Path:                    %s\n", r.cache.FileURL())
	fmt.Fprintf(out, "  Maximum bytes:           %d\n", r.cfg.MaximumBytes)
	fmt.Fprintf(out, "  Overwrites old messages: %v\n", r.cfg.OverwritesOldMessages)
	fmt.Fprintf(out, "  Writable:                %v\n", r.cache.IsWritable())
	fmt.Fprintf(out, "  Empty:                   %v\n", empty)

	if r.cfg.Sources.Global != "" {
		fmt.Fprintf(out, "  Global config:           %s\n", r.cfg.Sources.Global)
	}

	if r.cfg.Sources.Project != "" {
		fmt.Fprintf(out, "  Project config:          %s\n", r.cfg.Sources.Project)
	}
}

func (r *REPL) cmdBench(args []string) {
	out := r.writer()

	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: bench <count>")

		return
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 1 {
		fmt.Fprintln(out, "Error: count must be a positive integer")

		return
	}

	payload := []byte("benchmark-message-payload")

	start := time.Now()

	for i := 0; i < count; i++ {
		if err := r.cache.Append(payload); err != nil {
			fmt.Fprintf(out, "Error at append %d: %v\n", i+1, err)

			return
		}
	}

	elapsed := time.Since(start)
	rate := float64(count) / elapsed.Seconds()
	fmt.Fprintf(out, "OK: appended %d messages in %v (%.0f ops/sec)\n", count, elapsed.Round(time.Millisecond), rate)
}

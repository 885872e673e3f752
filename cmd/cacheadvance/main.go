// cacheadvance is a CLI for creating and inspecting CacheAdvance files.
//
// Usage:
//
//	cacheadvance <cache-file>              Open an existing cache file
//	cacheadvance new [opts] <cache-file>   Create a new cache file
//
// Options for 'new' command:
//
//	-m, --maximum-bytes   Total file capacity including the header
//	-o, --circular        Evict oldest messages once full (default)
//	-c, --config          Explicit config file path
//
// Commands (in REPL):
//
//	append <text>   Append a message, UTF-8 encoded
//	messages        List all live messages, oldest first
//	info            Show cache info
//	bench <count>   Benchmark append performance
//	help            Show this help
//	exit / quit / q Exit
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/calvinalkan/cacheadvance/pkg/cacheadvance"
	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return errors.New("missing command or cache file path")
	}

	if os.Args[1] == "new" {
		return runNew(os.Args[2:])
	}

	return runOpen(os.Args[1:])
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  cacheadvance <cache-file>              Open an existing cache file\n")
	fmt.Fprintf(os.Stderr, "  cacheadvance new [opts] <cache-file>   Create a new cache file\n")
	fmt.Fprintf(os.Stderr, "\nRun 'cacheadvance new --help' for options when creating a new cache.\n")
}

func environ() map[string]string {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]

				break
			}
		}
	}

	return env
}

func runNew(args []string) error {
	var helpBuf bytes.Buffer

	flagSet := flag.NewFlagSet("new", flag.ContinueOnError)
	flagSet.SetOutput(&helpBuf)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fmt.Fprintf(w, "Usage: cacheadvance new [options] <cache-file>\n\n")
		fmt.Fprintf(w, "Create a new, empty cache file.\n\n")
		fmt.Fprintf(w, "Options:\n")
		flagSet.PrintDefaults()
	}

	maximumBytes := flagSet.Uint64P("maximum-bytes", "m", 0, "total file capacity including the header")
	circular := flagSet.BoolP("circular", "o", false, "evict oldest messages once full (default)")
	strict := flagSet.Bool("strict", false, "reject appends once full")
	configPath := flagSet.StringP("config", "c", "", "explicit config file path")

	if err := flagSet.Parse(args); err != nil {
		return fmt.Errorf("%w\n\n%s", err, helpBuf.String())
	}

	if flagSet.NArg() < 1 {
		flagSet.Usage()

		return fmt.Errorf("missing cache file path\n\n%s", helpBuf.String())
	}

	cachePath := flagSet.Arg(0)

	if _, err := os.Stat(cachePath); err == nil {
		return fmt.Errorf("cache file already exists: %s (use 'cacheadvance %s' to open it)", cachePath, cachePath)
	}

	if flagSet.Changed("circular") && flagSet.Changed("strict") && *circular == *strict {
		return errors.New("cannot pass both --circular and --strict")
	}

	cfgInput := LoadConfigInput{
		ConfigPath:           *configPath,
		MaximumBytesOverride: *maximumBytes,
		Env:                  environ(),
	}

	if flagSet.Changed("circular") {
		cfgInput.OverwritesOldMessagesIsSet = true
		cfgInput.OverwritesOldMessagesValue = *circular
	} else if flagSet.Changed("strict") {
		cfgInput.OverwritesOldMessagesIsSet = true
		cfgInput.OverwritesOldMessagesValue = !*strict
	}

	cfg, err := LoadConfig(cfgInput)
	if err != nil {
		return err
	}

	// Atomically create the empty file before opening it with the engine:
	// a reader must never observe a half-written file at this path.
	if err := atomic.WriteFile(cachePath, bytes.NewReader(nil)); err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}

	file, err := os.OpenFile(cachePath, os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("opening cache file: %w", err)
	}

	fmt.Printf("\nCreating cache with:\n")
	fmt.Printf("  Path:                    %s\n", cachePath)
	fmt.Printf("  Maximum bytes:           %d\n", cfg.MaximumBytes)
	fmt.Printf("  Overwrites old messages: %v\n", cfg.OverwritesOldMessages)
	fmt.Println()

	cache, err := cacheadvance.OpenBytes(cacheadvance.ByteCacheOptions{
		File:                  file,
		Path:                  cachePath,
		MaximumBytes:          cfg.MaximumBytes,
		OverwritesOldMessages: cfg.OverwritesOldMessages,
	})
	if err != nil {
		file.Close()

		return fmt.Errorf("opening cache: %w", err)
	}

	defer cache.Close()

	repl := &REPL{cache: cache, cfg: cfg}

	return repl.Run()
}

func runOpen(args []string) error {
	var helpBuf bytes.Buffer

	flagSet := flag.NewFlagSet("open", flag.ContinueOnError)
	flagSet.SetOutput(&helpBuf)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fmt.Fprintf(w, "Usage: cacheadvance <cache-file>\n\n")
		fmt.Fprintf(w, "Open an existing cache file.\n")
	}

	configPath := flagSet.StringP("config", "c", "", "explicit config file path")

	if err := flagSet.Parse(args); err != nil {
		return fmt.Errorf("%w\n\n%s", err, helpBuf.String())
	}

	if flagSet.NArg() < 1 {
		flagSet.Usage()

		return fmt.Errorf("missing cache file path\n\n%s", helpBuf.String())
	}

	cachePath := flagSet.Arg(0)

	if _, err := os.Stat(cachePath); os.IsNotExist(err) {
		return fmt.Errorf("cache file does not exist: %s (use 'cacheadvance new %s' to create it)", cachePath, cachePath)
	}

	cfg, err := LoadConfig(LoadConfigInput{
		ConfigPath: *configPath,
		Env:        environ(),
	})
	if err != nil {
		return err
	}

	file, err := os.OpenFile(cachePath, os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("opening cache file: %w", err)
	}

	cache, err := cacheadvance.OpenBytes(cacheadvance.ByteCacheOptions{
		File:                  file,
		Path:                  cachePath,
		MaximumBytes:          cfg.MaximumBytes,
		OverwritesOldMessages: cfg.OverwritesOldMessages,
	})
	if err != nil {
		file.Close()

		return fmt.Errorf("opening cache: %w", err)
	}

	defer cache.Close()

	// OpenBytes does not read the header; IsEmpty does, so a mismatch with
	// the resolved config is reported here.
	if _, err := cache.IsEmpty(); err != nil {
		if errors.Is(err, cacheadvance.ErrFileNotWritable) {
			return fmt.Errorf(
				"opening cache: %w (the file's maximum_bytes or mode does not match the resolved config; "+
					"pass --config or adjust %s)",
				err, ConfigFileName,
			)
		}

		return fmt.Errorf("opening cache: %w", err)
	}

	repl := &REPL{cache: cache, cfg: cfg}

	return repl.Run()
}

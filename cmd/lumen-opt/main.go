// Package main provides the entry point for the Lumen MIR math-call
// optimizer. It reads a textual MIR module, runs the libcall passes over
// every function, and prints the rewritten module.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/lumen-lang/lumen/internal/libcalls"
	"github.com/lumen-lang/lumen/internal/mir"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

var (
	flagUnsafeMath bool
	flagUseNative  []string
	flagLangVer    string
	flagOutput     string
	flagWatch      bool
)

func main() {
	root := &cobra.Command{
		Use:           "lumen-opt",
		Short:         "Lumen device math-call optimizer",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&flagUnsafeMath, "unsafe-math", env.Bool("LUMEN_UNSAFE_MATH"),
		"enable value-changing rewrites for every function")
	pf.StringSliceVar(&flagUseNative, "use-native", envList("LUMEN_USE_NATIVE"),
		"short names eligible for native substitution, or \"all\"")
	pf.StringVar(&flagLangVer, "cl-version", env.Str("LUMEN_CL_VERSION", "2.0"),
		"source language version")
	pf.StringVarP(&flagOutput, "output", "o", "",
		"write the rewritten module to a file instead of stdout")
	pf.BoolVar(&flagWatch, "watch", false,
		"rerun whenever the input file changes")

	root.AddCommand(
		&cobra.Command{
			Use:   "simplify <input.mir>",
			Short: "run the fold chain (tables, constants, algebraic rewrites, pipes)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return process(args[0], simplifyModule)
			},
		},
		&cobra.Command{
			Use:   "usenative <input.mir>",
			Short: "retarget allow-listed calls to native approximate variants",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return process(args[0], useNativeModule)
			},
		},
	)

	log.SetFlags(0)
	log.SetPrefix("lumen-opt: ")
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func envList(key string) []string {
	s := env.Str(key)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func passOptions() libcalls.Options {
	return libcalls.Options{
		UseNative:    flagUseNative,
		UnsafeFPMath: flagUnsafeMath,
		LangVersion:  flagLangVer,
	}
}

func simplifyModule(p *libcalls.Pass, m *mir.Module) bool {
	changed := false
	for _, f := range m.Funcs {
		if p.Simplify(m, f) {
			changed = true
		}
	}
	return changed
}

func useNativeModule(p *libcalls.Pass, m *mir.Module) bool {
	changed := false
	for _, f := range m.Funcs {
		if p.UseNativeCalls(m, f) {
			changed = true
		}
	}
	return changed
}

func process(path string, run func(*libcalls.Pass, *mir.Module) bool) error {
	if err := runOnce(path, run); err != nil {
		return err
	}
	if !flagWatch {
		return nil
	}
	return watch(path, run)
}

func runOnce(path string, run func(*libcalls.Pass, *mir.Module) bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m, err := mir.Parse(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	p := libcalls.New(passOptions())
	changed := run(p, m)
	if err := emit(m); err != nil {
		return err
	}
	if changed {
		log.Printf("%s: rewritten", path)
	} else {
		log.Printf("%s: unchanged", path)
	}
	return nil
}

func emit(m *mir.Module) error {
	out := m.String()
	if flagOutput == "" {
		_, err := fmt.Print(out)
		return err
	}
	return os.WriteFile(flagOutput, []byte(out), 0o644)
}

// watch reruns the pass whenever the input file is rewritten. Editors often
// replace the file rather than write in place, so the watch is re-armed
// after remove/rename events.
func watch(path string, run func(*libcalls.Pass, *mir.Module) bool) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return err
	}
	log.Printf("watching %s", path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := runOnce(path, run); err != nil {
					log.Printf("rerun: %v", err)
				}
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// Best effort; the file may be mid-replace.
				_ = w.Add(path)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		}
	}
}

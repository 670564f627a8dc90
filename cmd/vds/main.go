package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reoring/vds"
	"github.com/reoring/vds/config"
	"github.com/reoring/vds/i18n"
	"github.com/reoring/vds/migrate"
	"github.com/reoring/vds/schema"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "migrate":
		migrateCmd(os.Args[2:])
	case "check":
		checkCmd(os.Args[2:])
	case "gc":
		gcCmd(os.Args[2:])
	case "dump":
		dumpCmd(os.Args[2:])
	case "classes":
		classesCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "vds datasheet tool\n\nUsage:\n  vds migrate [flags] files...\n  vds check [flags] files...\n  vds gc [flags] files...\n  vds dump [flags] file\n  vds classes [flags]\n\nFlags fall back to VDS_BINDING, VDS_ROOT, VDS_LOG_LEVEL, VDS_KEEP_DEPRECATED and VDS_LANG (also read from .env).")
}

type env struct {
	cfg     *config.Config
	binding *schema.Binding
	parser  *vds.Parser
	lib     *vds.Library
	log     zerolog.Logger
}

func setup(name string, args []string) (*env, []string) {
	cfg := config.Load()
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&cfg.BindingPath, "binding", cfg.BindingPath, "binding description (.yaml or .json)")
	fs.StringVar(&cfg.Root, "root", cfg.Root, "resource root directory")
	fs.BoolVar(&cfg.KeepDeprecated, "keep-deprecated", cfg.KeepDeprecated, "write values of unknown members back on save")
	verbose := fs.Bool("v", false, "enable debug logs")
	_ = fs.Parse(args)
	if *verbose {
		cfg.LogLevel = "debug"
	}
	i18n.SetLanguage(cfg.Lang)

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(cfg.Level()).With().Timestamp().Logger()
	b, err := schema.LoadFile(cfg.BindingPath)
	if err != nil {
		fatalf("loading binding: %v", err)
	}
	for _, w := range b.Diag().Warnings() {
		log.Warn().Str("binding", cfg.BindingPath).Msg(w)
	}
	p := vds.NewParser(b)
	p.Logger = log
	p.Options.KeepDeprecatedData = cfg.KeepDeprecated
	return &env{cfg: cfg, binding: b, parser: p, lib: vds.NewLibrary(p, cfg.Root), log: log}, fs.Args()
}

// id maps a file path to a library identifier.
func (e *env) id(file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		fatalf("resolving %s: %v", file, err)
	}
	root, err := filepath.Abs(e.cfg.Root)
	if err != nil {
		fatalf("resolving root %s: %v", e.cfg.Root, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		fatalf("%s is outside the resource root %s", file, e.cfg.Root)
	}
	return filepath.ToSlash(rel)
}

func (e *env) load(file string) *vds.Datasheet {
	ds, err := e.lib.LoadResource(e.id(file))
	if err != nil {
		fatalf("loading %s: %v", file, err)
	}
	return ds
}

func migrateCmd(args []string) {
	e, files := setup("migrate", args)
	for _, f := range files {
		changed, err := migrate.HandleMigration(f, e.binding)
		if err != nil {
			fatalf("%v", err)
		}
		if changed {
			e.log.Info().Str("file", f).Msg("migrated")
		}
	}
}

func checkCmd(args []string) {
	e, files := setup("check", args)
	failed := false
	for _, f := range files {
		ds := e.load(f)
		for _, it := range ds.Diagnostics() {
			fmt.Printf("%s: %s: %s (%s) %s\n", f, it.Path, it.Code, it.Message, it.Hint)
		}
		if iss, ok := vds.AsIssues(ds.Err()); ok {
			e.log.Error().Str("file", f).Int("issues", len(iss)).Msg("datasheet check failed")
			failed = true
		}
		if pending := ds.PendingDependencies(); len(pending) > 0 {
			fmt.Printf("%s: unresolved links: %s\n", f, strings.Join(pending, ", "))
		}
	}
	if failed {
		os.Exit(1)
	}
}

func gcCmd(args []string) {
	e, files := setup("gc", args)
	for _, f := range files {
		ds := e.load(f)
		if !ds.DeleteOrphanedInstanceObjects() {
			continue
		}
		if err := ds.SaveFile(f); err != nil {
			fatalf("%v", err)
		}
		e.log.Info().Str("file", f).Msg("removed orphaned objects")
	}
}

func dumpCmd(args []string) {
	e, files := setup("dump", args)
	if len(files) != 1 {
		fatalf("dump takes exactly one file")
	}
	if err := e.load(files[0]).ExportJSON(os.Stdout); err != nil {
		fatalf("%v", err)
	}
}

func classesCmd(args []string) {
	e, _ := setup("classes", args)
	for _, c := range e.binding.Classes {
		names := make([]string, 0, len(c.AvailableDerivedClasses()))
		for _, d := range c.AvailableDerivedClasses() {
			names = append(names, d.Name)
		}
		base := c.BaseName
		if base == "" {
			base = "-"
		}
		fmt.Printf("%s\tbase=%s\tmembers=%d\tderived=%s\n", c.Name, base, len(c.AllMembers()), strings.Join(names, ","))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

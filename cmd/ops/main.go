package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"streethustle/internal/catalog"
	"streethustle/internal/config"
	"streethustle/internal/ops"
	"streethustle/internal/save"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmds := map[string]func([]string) error{
		"export":  cmdExport,
		"import":  cmdImport,
		"inspect": cmdInspect,
		"schema":  cmdSchema,
		"backup":  cmdBackup,
		"restore": cmdRestore,
		"drill":   cmdDrill,
	}
	run, ok := cmds[os.Args[1]]
	if !ok {
		printUsage()
		os.Exit(2)
	}
	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// openStore opens the store named in the config file at path.
func openStore(ctx context.Context, path string) (save.Store, *config.Config, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, nil, err
	}
	store, err := save.Open(ctx, cfg.Store.Driver, cfg.Store.StoreLocation())
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cfgPath := fs.String("config", "hustle.yml", "config file")
	key := fs.String("key", "", "save key (defaults to the configured key)")
	out := fs.String("out", "", "output file (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()
	store, cfg, err := openStore(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if *key == "" {
		*key = cfg.Store.Key
	}

	env, err := ops.Export(ctx, store, *key, time.Now())
	if err != nil {
		return err
	}
	if *out == "" {
		return ops.WriteEnvelope(os.Stdout, env)
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := ops.WriteEnvelope(f, env); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Println(*out, env.Digest)
	return nil
}

func readEnvelope(path string) (ops.Envelope, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return ops.Envelope{}, err
		}
		defer f.Close()
		r = f
	}
	return ops.ReadEnvelope(r)
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	cfgPath := fs.String("config", "hustle.yml", "config file")
	in := fs.String("in", "-", "envelope file (- for stdin)")
	key := fs.String("key", "", "write under this key instead of the envelope's")
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := readEnvelope(*in)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, _, err := openStore(ctx, *cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return ops.Import(ctx, store, env, *key)
}

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	cfgPath := fs.String("config", "hustle.yml", "config file")
	in := fs.String("in", "-", "envelope file (- for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.LoadWithEnv(*cfgPath)
	if err != nil {
		return err
	}
	env, err := readEnvelope(*in)
	if err != nil {
		return err
	}
	cat := catalog.LoadOrFallback(cfg.Catalog.Path, cfg.Log.Logger(os.Stderr))
	sum, err := ops.Inspect(env, cat, time.Now())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func cmdSchema(args []string) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(catalog.Schema())
}

func cmdBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	dir := fs.String("dir", "data", "file store directory")
	out := fs.String("out", "", "output archive path (.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		ts := time.Now().UTC().Format("20060102T150405Z")
		*out = filepath.Join("backups", "streethustle-"+ts+".tar.gz")
	}
	n, err := ops.BackupSaves(*dir, *out)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d saves)\n", *out, n)
	return nil
}

func cmdRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	archive := fs.String("archive", "", "input backup archive (.tar.gz)")
	target := fs.String("dir", "data-restored", "restore target directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archive == "" {
		return fmt.Errorf("archive is required")
	}
	n, err := ops.RestoreSaves(*archive, *target)
	if err != nil {
		return err
	}
	fmt.Printf("restored %d saves into %s\n", n, *target)
	return nil
}

// cmdDrill backs up, restores into a scratch dir and compares digests.
func cmdDrill(args []string) error {
	fs := flag.NewFlagSet("drill", flag.ContinueOnError)
	dir := fs.String("dir", "data", "file store directory")
	workDir := fs.String("work-dir", os.TempDir(), "scratch directory for drill artifacts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := os.MkdirAll(*workDir, 0o755); err != nil {
		return err
	}
	ts := time.Now().UTC().Format("20060102T150405Z")
	archive := filepath.Join(*workDir, "streethustle-drill-"+ts+".tar.gz")
	restoreDir := filepath.Join(*workDir, "streethustle-drill-restore-"+ts)

	if _, err := ops.BackupSaves(*dir, archive); err != nil {
		return err
	}
	if _, err := ops.RestoreSaves(archive, restoreDir); err != nil {
		return err
	}
	want, err := ops.DirDigest(*dir)
	if err != nil {
		return err
	}
	got, err := ops.DirDigest(restoreDir)
	if err != nil {
		return err
	}
	if want != got {
		return fmt.Errorf("%w after restore: src=%s restored=%s", ops.ErrDigestMismatch, want, got)
	}
	fmt.Println("backup:", archive)
	fmt.Println("restored:", restoreDir)
	fmt.Println("digest:", want)
	return nil
}

func printUsage() {
	fmt.Println("usage:")
	fmt.Println("  hustle-ops export  --config hustle.yml [--key K] [--out save.json]")
	fmt.Println("  hustle-ops import  --config hustle.yml --in save.json [--key K]")
	fmt.Println("  hustle-ops inspect --config hustle.yml --in save.json")
	fmt.Println("  hustle-ops schema")
	fmt.Println("  hustle-ops backup  --dir data --out backups/saves.tar.gz")
	fmt.Println("  hustle-ops restore --archive backups/saves.tar.gz --dir data-restored")
	fmt.Println("  hustle-ops drill   --dir data --work-dir /tmp")
}

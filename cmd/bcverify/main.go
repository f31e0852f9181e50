// bcverify - verify method bodies of a stack-machine bytecode format
package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/bcverify/batch"
	"github.com/chazu/bcverify/bytecode"
	"github.com/chazu/bcverify/hierarchy"
	"github.com/chazu/bcverify/manifest"
	"github.com/chazu/bcverify/wire"
)

var log = commonlog.GetLogger("bcverify")

func main() {
	verbose := flag.Int("v", -1, "Log verbosity (overrides bcverify.toml)")
	dir := flag.String("C", ".", "Directory to search for bcverify.toml")
	dumpFrames := flag.Bool("dump", false, "Include every block's entry frame in the reports")
	workers := flag.Int("workers", -1, "Number of parallel verifiers (0 = one per CPU)")
	output := flag.String("o", "", "Write CBOR reports to this file")
	importOnly := flag.Bool("import", false, "Import the configured class files into the class database and exit")
	noCache := flag.Bool("no-cache", false, "Ignore and do not update the verdict cache")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bcverify [options] <bundle.cbor>...\n\n")
		fmt.Fprintf(os.Stderr, "Verifies every method in the given method bundles.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bcverify app.cbor               # Verify, print one line per method\n")
		fmt.Fprintf(os.Stderr, "  bcverify -dump -o out.cbor a.cbor  # Write reports with frame dumps\n")
		fmt.Fprintf(os.Stderr, "  bcverify -import                # Load class files into the database\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default(*dir)
	}
	if *verbose >= 0 {
		m.Log.Verbosity = *verbose
	}
	commonlog.Configure(m.Log.Verbosity, m.LogFile())

	if err := run(m, *dumpFrames, *workers, *output, *importOnly, *noCache, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// errFailed signals that at least one method failed verification.
var errFailed = fmt.Errorf("verification failed")

func run(m *manifest.Manifest, dumpFrames bool, workers int, output string, importOnly, noCache bool, paths []string) error {
	reg, err := m.LoadRegistry()
	if err != nil {
		return err
	}

	var store *hierarchy.Store
	if path := m.DatabasePath(); path != "" {
		store, err = hierarchy.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	if importOnly {
		return importClasses(m, store)
	}
	if len(paths) == 0 {
		flag.Usage()
		return fmt.Errorf("no method bundles given")
	}

	var methods []*bytecode.Method
	for _, path := range paths {
		b, err := wire.ReadBundle(path)
		if err != nil {
			return err
		}
		methods = append(methods, b.Methods...)
	}

	opts := batch.Options{
		Workers:    m.Verifier.Workers,
		DumpFrames: dumpFrames || m.Verifier.DumpFrames,
	}
	if workers >= 0 {
		opts.Workers = workers
	}
	var classes hierarchy.Resolver = reg
	if store != nil {
		classes = hierarchy.Chain{reg, store}
		if m.CacheResults() && !noCache {
			opts.Cache = store
			opts.Salt, err = classpathSalt(m)
			if err != nil {
				return err
			}
		}
	}

	pool := batch.NewPool(classes, opts)
	reports := pool.VerifyAll(methods)
	pool.Stop()

	failed := 0
	for _, r := range reports {
		fmt.Println(r)
		if !r.OK {
			failed++
			if r.Frame != "" {
				fmt.Printf("    at %s\n", r.Frame)
			}
		}
		for _, f := range r.Frames {
			if f.Reached {
				fmt.Printf("    %s: stack %v locals %v\n", bytecode.BlockID(f.Block), f.Stack, f.Locals)
			} else {
				fmt.Printf("    %s: unreached\n", bytecode.BlockID(f.Block))
			}
		}
	}
	log.Infof("verified %d methods, %d failed", len(reports), failed)

	if output != "" {
		if err := wire.WriteReports(output, reports); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d methods", errFailed, failed, len(reports))
	}
	return nil
}

// importClasses copies the class file definitions into the database.
func importClasses(m *manifest.Manifest, store *hierarchy.Store) error {
	if store == nil {
		return fmt.Errorf("no class database configured in %s", manifest.FileName)
	}
	n := 0
	for _, path := range m.ClassFilePaths() {
		classes, err := manifest.LoadClasses(path)
		if err != nil {
			return err
		}
		for _, c := range classes {
			if err := store.Put(c); err != nil {
				return err
			}
			n++
		}
	}
	fmt.Printf("Imported %d classes into %s\n", n, m.DatabasePath())
	return nil
}

// classpathSalt fingerprints the class files so cached verdicts are not
// reused after the hierarchy changes.
func classpathSalt(m *manifest.Manifest) ([]byte, error) {
	h := sha256.New()
	for _, path := range m.ClassFilePaths() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		h.Write([]byte(path))
		h.Write(data)
	}
	return h.Sum(nil), nil
}

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/config"
	"github.com/mogaika/badger_converter/exporter"
	"github.com/mogaika/badger_converter/fbxscene"
	"github.com/mogaika/badger_converter/importer"
	"github.com/mogaika/badger_converter/resources"
	"github.com/mogaika/badger_converter/scene"
	"github.com/mogaika/badger_converter/utils/gltfutils"
	"github.com/mogaika/badger_converter/web"
)

const usage = `Usage:
  badger_converter [flags] export <asset-pack-root> <model-name> <output-path>
  badger_converter [flags] import <input-scene-file> <output-directory>
  badger_converter [flags] serve <asset-pack-root>

Flags:
`

type options struct {
	config  string
	verbose bool
	gltf    string
	addr    string
}

func parseArgs(args []string, out io.Writer) (*options, []string, error) {
	var o options
	fs := flag.NewFlagSet("badger_converter", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.config, "config", "", "Path to yaml or toml config")
	fs.BoolVar(&o.verbose, "v", false, "Verbose logging")
	fs.StringVar(&o.gltf, "gltf", "", "Also write glb of exported scene to this path")
	fs.StringVar(&o.addr, "i", ":8000", "Address of server")
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return &o, fs.Args(), nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Prepare()
	}
	return config.Load(path)
}

// packRoots puts command line packs before configured ones
func packRoots(cfg *config.Config, pathList string) ([]string, error) {
	roots, err := resources.DiscoverPacks(pathList)
	if err != nil {
		return nil, err
	}
	for _, p := range cfg.Packs {
		more, err := resources.DiscoverPacks(p)
		if err != nil {
			return nil, err
		}
		roots = append(roots, more...)
	}
	if len(roots) == 0 {
		return nil, errors.Errorf("No asset packs found in %q", pathList)
	}
	return roots, nil
}

func exportScene(cfg *config.Config, o *options, packs, model, output string) error {
	roots, err := packRoots(cfg, packs)
	if err != nil {
		return err
	}
	log.Info("Using asset packs", "roots", roots)

	s, err := importer.New(cfg, resources.NewLoader(cfg, roots...)).Import(model)
	if err != nil {
		return errors.Wrapf(err, "Failed to import model %q", model)
	}
	if strings.EqualFold(filepath.Ext(output), ".zip") {
		err = writeZip(s, output)
	} else {
		err = fbxscene.WriteFile(s, output)
	}
	if err != nil {
		return err
	}
	log.Infof("Scene written to %s", output)

	if o.gltf != "" {
		f, err := os.Create(o.gltf)
		if err != nil {
			return errors.Wrapf(err, "Failed to create %q", o.gltf)
		}
		defer f.Close()
		if err := gltfutils.ExportScene(s, f, gltfutils.Options{
			MaxTextureSize: cfg.MaxTextureSize,
			WebP:           cfg.WebPTextures,
		}); err != nil {
			return errors.Wrapf(err, "Failed to export glb")
		}
		log.Infof("glTF written to %s", o.gltf)
	}
	return nil
}

// writeZip bundles scene with its textures
func writeZip(s *scene.Scene, output string) error {
	f, err := os.Create(output)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", output)
	}
	defer f.Close()
	return fbxscene.WriteZip(s, f)
}

func importScene(cfg *config.Config, input, outputDir string) error {
	s, err := fbxscene.ReadFile(input)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))

	result, err := exporter.New(cfg).Export(s, name)
	if err != nil {
		return errors.Wrapf(err, "Failed to export %q", input)
	}
	if err := result.Write(outputDir); err != nil {
		return err
	}
	log.Infof("Assets of %q written to %s", name, outputDir)
	return nil
}

func run(args []string, out io.Writer) error {
	o, rest, err := parseArgs(args, out)
	if err != nil {
		return err
	}
	if o.verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := loadConfig(o.config)
	if err != nil {
		return err
	}

	if len(rest) == 0 {
		return errors.Errorf("No command given")
	}
	command, rest := rest[0], rest[1:]
	expect := func(n int) error {
		if len(rest) != n {
			return errors.Errorf("%s expects %d arguments, got %d", command, n, len(rest))
		}
		return nil
	}

	switch command {
	case "export":
		if err := expect(3); err != nil {
			return err
		}
		return exportScene(cfg, o, rest[0], rest[1], rest[2])
	case "import":
		if err := expect(2); err != nil {
			return err
		}
		return importScene(cfg, rest[0], rest[1])
	case "serve":
		if err := expect(1); err != nil {
			return err
		}
		roots, err := packRoots(cfg, rest[0])
		if err != nil {
			return err
		}
		return web.StartServer(o.addr, cfg, roots)
	}
	return errors.Errorf("Unknown command %q", command)
}

func main() {
	log.SetPrefix("badger")
	log.SetReportTimestamp(true)

	if err := run(os.Args[1:], os.Stderr); err != nil {
		if err != flag.ErrHelp {
			log.Errorf("%v", err)
		}
		os.Exit(-1)
	}
}

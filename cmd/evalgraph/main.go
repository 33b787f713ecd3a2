// Command evalgraph evaluates a node graph described in HCL or YAML.
//
// Usage:
//
//	evalgraph [flags] graph.hcl
//
// Shader nodes load their programs from <programs>/<type>.wgsl. The stock
// native nodes image_read, image_write and stream_write are always
// available; streams are written under -out.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/evalgraph"
	"github.com/gogpu/evalgraph/gpu"
	"github.com/gogpu/evalgraph/graphfile"
	"github.com/gogpu/evalgraph/native"
	"github.com/gogpu/evalgraph/stream"
	_ "github.com/gogpu/wgpu/hal/allbackends"
	"golang.org/x/text/unicode/norm"
)

type config struct {
	graph    string
	programs string
	out      string
	output   string
	backend  string
	mode     string
	node     string
	frames   int
	fps      int
	width    int
	height   int
	verbose  bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.programs, "programs", "", "directory of <type>.wgsl shader programs")
	flag.StringVar(&cfg.out, "out", ".", "root directory for output streams")
	flag.StringVar(&cfg.output, "o", "", "write face 0 of the target node to this PNG")
	flag.StringVar(&cfg.backend, "backend", "", "GPU backend: vulkan, metal, dx12, gl or empty (default best available)")
	flag.StringVar(&cfg.mode, "mode", "all", "run mode: all, dirty, backward or single")
	flag.StringVar(&cfg.node, "node", "", "target node for backward, single and -o (default last in order)")
	flag.IntVar(&cfg.frames, "frames", 1, "number of frames to evaluate")
	flag.IntVar(&cfg.fps, "fps", 30, "frames per second for frame time")
	flag.IntVar(&cfg.width, "width", 0, "default output width (overrides the graph file)")
	flag.IntVar(&cfg.height, "height", 0, "default output height (overrides the graph file)")
	flag.BoolVar(&cfg.verbose, "v", false, "verbose logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: evalgraph [flags] graph.hcl|graph.yaml")
		flag.PrintDefaults()
		os.Exit(2)
	}
	cfg.graph = flag.Arg(0)

	if err := run(cfg); err != nil {
		log.Fatalf("evalgraph: %v", err)
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(cfg config) error {
	if cfg.frames < 1 || cfg.fps < 1 {
		return fmt.Errorf("frames and fps must be positive")
	}
	logger := newLogger(cfg.verbose)
	evalgraph.SetLogger(logger)
	graphfile.SetLogger(logger)
	stream.SetLogger(logger)

	file, err := graphfile.Load(cfg.graph)
	if err != nil {
		return err
	}

	dev, err := openDevice(cfg.backend, logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	backend, err := gpu.New(dev.device, dev.queue, gpu.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("evalgraph: backend close failed", "err", err)
		}
	}()
	if err := loadPrograms(backend, cfg.programs, file); err != nil {
		return err
	}

	table := native.NewTable()
	table.RegisterStock()

	g, ids, err := file.Build(evalgraph.WithCatalog(evalgraph.BackendCatalog{
		Shader: backend,
		Native: table,
	}))
	if err != nil {
		return err
	}
	target, err := targetNode(g, ids, cfg.node)
	if err != nil {
		return err
	}

	width, height := file.Width, file.Height
	if cfg.width > 0 && cfg.height > 0 {
		width, height = cfg.width, cfg.height
	}
	ctx, err := evalgraph.NewContext(g,
		evalgraph.WithShaderBackend(backend),
		evalgraph.WithNativeTable(table),
		evalgraph.WithStreamFactory(stream.Factory{Root: cfg.out, Logger: logger}.New),
		evalgraph.WithDefaultSize(width, height),
	)
	if err != nil {
		return err
	}

	var faults []error
	for frame := 0; frame < cfg.frames; frame++ {
		seconds := float32(frame) / float32(cfg.fps)
		ctx.SetFrame(frame, seconds)
		if frame > 0 {
			ctx.SetAllDirty()
		}
		report, err := runMode(ctx, cfg.mode, target, frame, seconds)
		if err != nil {
			_ = ctx.Close()
			return err
		}
		if err := report.Err(); err != nil {
			logger.Warn("evalgraph: frame had faults", "frame", frame, "faults", len(report.Faults))
			faults = append(faults, fmt.Errorf("frame %d: %w", frame, err))
		}
	}

	if cfg.output != "" {
		if err := writeOutput(ctx, backend, target, cfg.output); err != nil {
			_ = ctx.Close()
			return err
		}
	}

	st := backend.Stats()
	logger.Info("evalgraph: done",
		"frames", cfg.frames, "passes", st.Passes, "pipelines", st.Pipelines, "samplers", st.Samplers)
	return errors.Join(append(faults, ctx.Close())...)
}

func runMode(ctx *evalgraph.Context, mode string, target evalgraph.NodeID, frame int, seconds float32) (*evalgraph.Report, error) {
	switch mode {
	case "all":
		return ctx.RunAll()
	case "dirty":
		return ctx.RunDirty()
	case "backward":
		return ctx.RunBackward(target)
	case "single":
		return ctx.RunSingle(target, evalgraph.EvaluationInfo{
			ViewRot: evalgraph.Identity,
			Frame:   frame,
			Time:    seconds,
		})
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// targetNode resolves name, defaulting to the last node in evaluation order.
func targetNode(g *evalgraph.Graph, ids map[string]evalgraph.NodeID, name string) (evalgraph.NodeID, error) {
	if name != "" {
		id, ok := ids[norm.NFC.String(name)]
		if !ok {
			return evalgraph.NoInput, fmt.Errorf("%w: %q", graphfile.ErrUnknownNode, name)
		}
		return id, nil
	}
	order := g.GetForwardEvaluationOrder()
	if len(order) == 0 {
		return evalgraph.NoInput, fmt.Errorf("graph has no nodes")
	}
	return order[len(order)-1], nil
}

// loadPrograms registers <dir>/<type>.wgsl for every shader node type.
func loadPrograms(b *gpu.Backend, dir string, file *graphfile.File) error {
	seen := make(map[string]bool)
	for _, n := range file.Nodes {
		if seen[n.Type] || !usesShader(n.Backends) {
			continue
		}
		seen[n.Type] = true
		if dir == "" {
			return fmt.Errorf("node type %q needs a shader program; set -programs", n.Type)
		}
		src, err := os.ReadFile(filepath.Join(dir, n.Type+".wgsl"))
		if err != nil {
			return err
		}
		if err := b.RegisterProgram(n.Type, string(src)); err != nil {
			return fmt.Errorf("program %q: %w", n.Type, err)
		}
	}
	return nil
}

func usesShader(backends []string) bool {
	if len(backends) == 0 {
		return true
	}
	for _, b := range backends {
		if strings.EqualFold(b, "shader") {
			return true
		}
	}
	return false
}

func writeOutput(ctx *evalgraph.Context, b *gpu.Backend, id evalgraph.NodeID, path string) error {
	tex := ctx.GetEvaluationTexture(id)
	if tex == nil {
		return fmt.Errorf("node %d produced no output", id)
	}
	img, err := b.Download(tex, 0)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

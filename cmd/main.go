package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	api "github.com/richinsley/glowsaver/api"
	catalog "github.com/richinsley/glowsaver/catalog"
	glfwcontext "github.com/richinsley/glowsaver/glfwcontext"
	graphics "github.com/richinsley/glowsaver/graphics"
	options "github.com/richinsley/glowsaver/options"
	renderer "github.com/richinsley/glowsaver/renderer"
	shader "github.com/richinsley/glowsaver/shader"
	store "github.com/richinsley/glowsaver/store"
	translator "github.com/richinsley/glowsaver/translator"
	watch "github.com/richinsley/glowsaver/watch"
)

func init() {
	runtime.LockOSThread()
}

const usage = `Usage: glowsaver [-config file] <command> [flags]

Commands:
  run       render the selected shader in a window or fullscreen
  record    render the selected shader offscreen to a video file
  sync      fetch new shaders from Shadertoy into the local catalog
  list      list the local catalog
  import    add a shader body from a file to the catalog
  select    make a catalog shader the default for run and record
  favorite  mark or unmark a catalog shader as favorite
`

func main() {
	defaultConfig, err := options.DefaultPath()
	if err != nil {
		defaultConfig = "glowsaver.toml"
	}
	configPath := flag.String("config", defaultConfig, "Path to the configuration file")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	opts, err := options.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "run":
		err = runCommand(opts, args, false)
	case "record":
		err = runCommand(opts, args, true)
	case "sync":
		err = syncCommand(opts, args)
	case "list":
		err = listCommand(opts, args)
	case "import":
		err = importCommand(opts, args)
	case "select":
		err = selectCommand(opts, *configPath, args)
	case "favorite":
		err = favoriteCommand(opts, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func newFlagSet(name string, opts *options.Options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	opts.RegisterFlags(fs)
	return fs
}

func openStore(opts *options.Options) (*store.Store, error) {
	st, err := store.New(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", opts.Database, err)
	}
	return st, nil
}

func newClient(opts *options.Options) *api.Client {
	return api.NewClient(opts.BaseURL, opts.APIKey, &http.Client{Timeout: opts.Timeout()})
}

// shaderSource resolves the fragment body to render. A file source also
// yields a channel of later edits.
func shaderSource(ctx context.Context, opts *options.Options, id int64, remote, file string) (string, <-chan string, error) {
	switch {
	case file != "":
		ch, err := watch.File(ctx, file)
		if err != nil {
			return "", nil, err
		}
		return <-ch, ch, nil

	case remote != "":
		log.Printf("Fetching shader with ID: %s", remote)
		sh, err := newClient(opts).ShaderByID(ctx, remote)
		if err != nil {
			return "", nil, fmt.Errorf("error fetching shader %s: %w", remote, err)
		}
		log.Printf("Successfully fetched shader: %s by %s", sh.Info.Name, sh.Info.Username)
		return sh.ImageCode(), nil, nil
	}

	st, err := openStore(opts)
	if err != nil {
		return "", nil, err
	}
	defer st.Close()

	if id == 0 {
		list, err := st.List(ctx, true)
		if err != nil {
			return "", nil, err
		}
		if len(list) == 0 {
			return "", nil, fmt.Errorf("the catalog is empty, run sync or import first")
		}
		id = list[0].ID
		log.Printf("Warning: no shader selected, using %q", list[0].Name)
	}
	sh, err := st.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	code, err := st.Source(ctx, id)
	if err != nil {
		return "", nil, err
	}
	log.Printf("Loaded shader %d: %s", sh.ID, sh.Name)
	return code, nil, nil
}

func runCommand(opts *options.Options, args []string, record bool) error {
	name := "run"
	if record {
		name = "record"
	}
	fs := newFlagSet(name, opts)
	shaderID := fs.Int64("shader", opts.ShaderID, "Local catalog shader id (default: selected shader)")
	remote := fs.String("remote", "", "Shadertoy shader ID to fetch and render")
	file := fs.String("file", "", "Shader body file to render, reloaded on change")
	fs.Parse(args)
	if err := opts.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, reload, err := shaderSource(ctx, opts, *shaderID, *remote, *file)
	if err != nil {
		return err
	}

	var tr shader.Translator
	if opts.Translate {
		w, err := translator.NewWebGL()
		if err != nil {
			return fmt.Errorf("failed to create translator: %w", err)
		}
		tr = w
	}

	if err := glfwcontext.InitGraphics(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	defer glfwcontext.TerminateGraphics()

	// Recording renders into a hidden window.
	surface, err := glfwcontext.New(opts, !record)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer surface.Shutdown()
	surface.MakeCurrent()

	g, err := graphics.NewCore()
	if err != nil {
		return fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Printf("OpenGL version: %s", g.Version())

	r, err := renderer.NewRenderer(g, surface, renderer.Options{
		Translator: tr,
		ShowFPS:    opts.ShowFPS,
	})
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	defer r.Shutdown()

	if d := r.LoadFragment(source); d != nil && d.Fatal && record {
		return fmt.Errorf("shader does not compile: %s", d)
	}

	if record {
		err := r.RunOffscreen(renderer.RecordOptions{
			Duration: opts.Record.Duration,
			FPS:      opts.Record.FPS,
			Encoder:  renderer.FFmpegEncoder(opts.Record.Output, opts.Record.FFmpeg),
		})
		if err != nil {
			return fmt.Errorf("offscreen rendering failed: %w", err)
		}
		log.Printf("Successfully rendered to %s", opts.Record.Output)
		return nil
	}

	log.Println("Starting interactive render loop...")
	r.Run(reload)
	return nil
}

func syncCommand(opts *options.Options, args []string) error {
	fs := newFlagSet("sync", opts)
	quiet := fs.Bool("quiet", false, "Do not print per-shader progress")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := newClient(opts)
	if err := client.ValidateKey(ctx); err != nil {
		return err
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	task := catalog.Start(ctx, catalog.NewSyncer(client, st, opts.Concurrency))
	for p := range task.Progress() {
		if *quiet {
			continue
		}
		fmt.Printf("\r[%d/%d] %-9s %-8s %-40.40s", p.Index, p.Total, p.Outcome, p.ID, p.Name)
	}
	if !*quiet {
		fmt.Println()
	}

	n, err := task.Result()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("Sync cancelled, no shaders were added")
		}
		return err
	}
	log.Printf("Added %d shaders to %s", n, opts.Database)
	return nil
}

func listCommand(opts *options.Options, args []string) error {
	fs := newFlagSet("list", opts)
	favorites := fs.Bool("favorites", false, "Only list favorites")
	fs.Parse(args)

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	list, err := st.List(context.Background(), true)
	if err != nil {
		return err
	}
	for _, sh := range list {
		if *favorites && !sh.Favorite {
			continue
		}
		mark := " "
		if sh.Favorite {
			mark = "*"
		}
		if sh.ID == opts.ShaderID {
			mark = ">"
		}
		remote := sh.ShadertoyID
		if remote == "" {
			remote = "(local)"
		}
		fmt.Printf("%s %6d  %-8s  %s by %s\n", mark, sh.ID, remote, sh.Name, sh.Author)
	}
	return nil
}

func importCommand(opts *options.Options, args []string) error {
	fs := newFlagSet("import", opts)
	name := fs.String("name", "", "Shader name (default: file name)")
	author := fs.String("author", os.Getenv("USER"), "Shader author")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("expected one shader file")
	}
	path := fs.Arg(0)

	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if *name == "" {
		*name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.Import(context.Background(), *name, *author, string(code))
	if err != nil {
		return err
	}
	log.Printf("Imported %s as shader %d", *name, id)
	return nil
}

func parseID(fs *flag.FlagSet) (int64, error) {
	if fs.NArg() < 1 {
		return 0, fmt.Errorf("expected a shader id")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid shader id %q: %w", fs.Arg(0), err)
	}
	return id, nil
}

func selectCommand(opts *options.Options, configPath string, args []string) error {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	fs.Parse(args)
	id, err := parseID(fs)
	if err != nil {
		return err
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	sh, err := st.Get(context.Background(), id)
	if err != nil {
		return err
	}
	opts.ShaderID = sh.ID
	if err := opts.Save(configPath); err != nil {
		return err
	}
	log.Printf("Selected shader %d: %s", sh.ID, sh.Name)
	return nil
}

func favoriteCommand(opts *options.Options, args []string) error {
	fs := newFlagSet("favorite", opts)
	fs.Parse(args)
	id, err := parseID(fs)
	if err != nil {
		return err
	}
	on := true
	if fs.NArg() > 1 {
		switch fs.Arg(1) {
		case "on":
		case "off":
			on = false
		default:
			return fmt.Errorf("expected on or off, got %q", fs.Arg(1))
		}
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SetFavorite(context.Background(), id, on)
}

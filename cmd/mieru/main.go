// Package main is the mieru CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mieru/internal/cli"
	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/embedding"
	"github.com/hyperjump/mieru/internal/extract"
	"github.com/hyperjump/mieru/internal/importer"
	"github.com/hyperjump/mieru/internal/keyword"
	"github.com/hyperjump/mieru/internal/metrics"
	"github.com/hyperjump/mieru/internal/models"
	"github.com/hyperjump/mieru/internal/projection"
	"github.com/hyperjump/mieru/internal/search"
	"github.com/hyperjump/mieru/internal/server"
	"github.com/hyperjump/mieru/internal/storage"
	"github.com/hyperjump/mieru/internal/tui"
	"github.com/hyperjump/mieru/internal/watcher"
	"github.com/hyperjump/mieru/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mieru/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve":
		runServe()
	case "explore":
		runExplore()
	case "import":
		runImport()
	case "insert":
		runInsert()
	case "search":
		runSearch()
	case "delete":
		runDelete()
	case "collections":
		runCollections()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("mieru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (file imports, watch events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	imp := components.Importer
	exts := cfg.Watch.Extensions
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(
		&cfg.Watch,
		func(path string) {
			if _, err := imp.ImportFile(context.Background(), path, exts); err != nil {
				logger.Warn("watch import file failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := imp.DeleteFile(context.Background(), path); err != nil {
				logger.Warn("watch delete by path failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	projector := projection.NewEngine(projection.WithIterations(cfg.Viz.Iterations))
	srv := server.NewServer(
		components.Storage,
		components.Engine,
		projector,
		cfg,
		logger,
		server.WithKeywordIndex(components.KeywordIndex),
		server.WithMetrics(components.Recorder),
		server.WithWatcher(watchSvc, resolvedConfigPath),
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runExplore() {
	fs := flag.NewFlagSet("explore", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	collection := fs.String("collection", "", "collection to explore (default: import collection)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// The TUI owns the terminal; keep the logger quiet.
	logger := zap.NewNop()

	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	name := *collection
	if name == "" {
		name = cfg.Import.Collection
	}
	if _, err := components.Storage.GetCollection(context.Background(), name); err != nil {
		fmt.Fprintf(os.Stderr, "Collection %q not found. Import documents or insert vectors first.\n", name)
		os.Exit(1)
	}
	if err := tui.Run(components.Storage, components.Engine, cfg, name); err != nil {
		fmt.Fprintf(os.Stderr, "Explorer failed: %v\n", err)
		os.Exit(1)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mieru import [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Importer.ImportDirectory(ctx, path, cfg.Import.Extensions)
		if err != nil {
			fmt.Printf("Import directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Imported %d file(s) from %s into collection %q\n",
			n, path, components.Importer.Collection())
		return
	}
	// Single file: no extension filter.
	ids, err := components.Importer.ImportFile(ctx, path, nil)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	if ids == nil {
		fmt.Printf("Unchanged, skipped: %s\n", path)
		return
	}
	fmt.Printf("Imported %s: %d record(s) into collection %q\n",
		path, len(ids), components.Importer.Collection())
}

// parseVector parses a comma-separated list of floats.
func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec = append(vec, float32(f))
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	return vec, nil
}

func runInsert() {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	collection := fs.String("collection", "", "target collection (required)")
	metadataJSON := fs.String("metadata", "", "record metadata as a JSON object")
	create := fs.Bool("create", false, "create the collection if it does not exist")
	distance := fs.String("distance", "cosine", "distance for a created collection: cosine, dot, or euclidean")
	_ = fs.Parse(os.Args[2:])

	if *collection == "" || fs.NArg() < 1 {
		fmt.Println("Usage: mieru insert -collection <name> [flags] <v1,v2,...>")
		os.Exit(1)
	}
	vec, err := parseVector(fs.Arg(0))
	if err != nil {
		fmt.Printf("Invalid vector: %v\n", err)
		os.Exit(1)
	}
	var metadata map[string]interface{}
	if *metadataJSON != "" {
		if err := json.Unmarshal([]byte(*metadataJSON), &metadata); err != nil {
			fmt.Printf("Invalid metadata JSON: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	if _, err := components.Storage.GetCollection(ctx, *collection); err != nil {
		if !*create {
			fmt.Printf("Collection %q not found (use -create to create it)\n", *collection)
			os.Exit(1)
		}
		if err := components.Storage.CreateCollection(ctx, &models.Collection{
			Name:       *collection,
			Dimensions: len(vec),
			Distance:   *distance,
		}); err != nil {
			fmt.Printf("Failed to create collection: %v\n", err)
			os.Exit(1)
		}
	}
	id, err := components.Storage.InsertVector(ctx, *collection, &models.VectorRecord{
		Vector:   vec,
		Metadata: metadata,
	})
	if err != nil {
		fmt.Printf("Insert failed: %v\n", err)
		os.Exit(1)
	}
	if len(metadata) > 0 {
		if err := components.KeywordIndex.Index(ctx, id, metadata); err != nil {
			fmt.Printf("Keyword indexing failed: %v\n", err)
		}
	}
	components.Engine.Invalidate(*collection)
	fmt.Printf("Inserted record %d (%d dimensions) into %q\n", id, len(vec), *collection)
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "mieru search \"query\" -k 5"
// would otherwise leave -k unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	collection := fs.String("collection", "", "collection to search (default: import collection)")
	k := fs.Int("k", 10, "number of results")
	vectorArg := fs.String("vector", "", "query vector as comma-separated floats (overrides text)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if *vectorArg == "" && text == "" {
		fmt.Println("Usage: mieru search [flags] <query text>")
		fmt.Println("       mieru search -vector 0.1,0.2,... [flags]")
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	query := &models.SimilarityQuery{
		Collection: *collection,
		Text:       text,
		K:          *k,
	}
	if *vectorArg != "" {
		vec, err := parseVector(*vectorArg)
		if err != nil {
			fmt.Printf("Invalid vector: %v\n", err)
			os.Exit(1)
		}
		query.Vector = vec
		query.Text = ""
	}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids SQLite/Bleve
		// lock conflicts with a serving process).
		if query.Collection == "" {
			query.Collection = "documents"
		}
		response, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct storage access (when the server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if query.Collection == "" {
		query.Collection = cfg.Import.Collection
	}
	logger := zap.NewNop()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	response, err := components.Engine.Search(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SimilarityQuery) (*models.SimilarityResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SimilarityResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	collection := fs.String("collection", "", "collection containing the record (default: import collection)")
	source := fs.String("source", "", "delete all records imported from this file path instead of by id")
	_ = fs.Parse(os.Args[2:])

	if *source == "" && fs.NArg() < 1 {
		fmt.Println("Usage: mieru delete [flags] <record-id>")
		fmt.Println("       mieru delete -source <file-path>")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	if *source != "" {
		if err := components.Importer.DeleteFile(ctx, *source); err != nil {
			fmt.Printf("Deletion failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Records from %s deleted\n", *source)
		return
	}

	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		fmt.Printf("Invalid record id %q\n", fs.Arg(0))
		os.Exit(1)
	}
	name := *collection
	if name == "" {
		name = cfg.Import.Collection
	}
	if err := components.Storage.DeleteVector(ctx, name, id); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.KeywordIndex.Delete(ctx, id); err != nil {
		fmt.Printf("Keyword index cleanup failed: %v\n", err)
	}
	components.Engine.Invalidate(name)
	fmt.Printf("Record %d deleted from %q\n", id, name)
}

func runCollections() {
	sub := "list"
	args := os.Args[2:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		sub = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("collections", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dimensions := fs.Int("dims", 0, "dimensions for a created collection")
	distance := fs.String("distance", "cosine", "distance for a created collection: cosine, dot, or euclidean")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	switch sub {
	case "list":
		collections, err := components.Storage.ListCollections(ctx)
		if err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		counts := make(map[string]int64, len(collections))
		for _, col := range collections {
			n, err := components.Storage.CountVectors(ctx, col.Name)
			if err != nil {
				fmt.Printf("Count failed: %v\n", err)
				os.Exit(1)
			}
			counts[col.Name] = n
		}
		format := cli.OutputText
		if *outputFormat == "json" {
			format = cli.OutputJSON
		}
		if err := cli.WriteCollections(os.Stdout, collections, counts, format); err != nil {
			fmt.Printf("Output failed: %v\n", err)
			os.Exit(1)
		}
	case "create":
		if fs.NArg() < 1 || *dimensions <= 0 {
			fmt.Println("Usage: mieru collections create -dims <n> [-distance cosine] <name>")
			os.Exit(1)
		}
		col := &models.Collection{Name: fs.Arg(0), Dimensions: *dimensions, Distance: *distance}
		if err := components.Storage.CreateCollection(ctx, col); err != nil {
			fmt.Printf("Create failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Collection %q created (%d dimensions, %s)\n", col.Name, col.Dimensions, col.Distance)
	case "drop":
		if fs.NArg() < 1 {
			fmt.Println("Usage: mieru collections drop <name>")
			os.Exit(1)
		}
		if err := components.Storage.DeleteCollection(ctx, fs.Arg(0)); err != nil {
			fmt.Printf("Drop failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Collection %q dropped\n", fs.Arg(0))
	default:
		fmt.Printf("Unknown collections subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Collections    int64                  `json:"collections"`
	Records        int64                  `json:"records"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger := zap.NewNop()
		components, err := initializeComponents(cfg, logger, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		collectionCount, err := components.Storage.CountCollections(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count collections failed: %v\n", err)
			os.Exit(1)
		}
		collections, err := components.Storage.ListCollections(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List collections failed: %v\n", err)
			os.Exit(1)
		}
		var recordCount int64
		for _, col := range collections {
			n, err := components.Storage.CountVectors(ctx, col.Name)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Count records failed: %v\n", err)
				os.Exit(1)
			}
			recordCount += n
		}
		status = statusResponse{
			Collections: collectionCount,
			Records:     recordCount,
			Config: map[string]interface{}{
				"embedding_provider":   cfg.Embedding.Provider,
				"embedding_dimensions": cfg.Embedding.Dimensions,
				"database_path":        cfg.Storage.DatabasePath,
				"bleve_index_path":     cfg.Storage.BleveIndexPath,
			},
		}
		diskBytes, err := storage.DiskUsageBytes(
			cfg.Storage.DatabasePath,
			cfg.Storage.MetricsPath,
			cfg.Storage.BleveIndexPath,
			cfg.Storage.VectorIndexPath,
		)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("collections:       %d\n", status.Collections)
		fmt.Printf("records:           %d\n", status.Records)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:  %d\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"embedding_provider", "embedding_dimensions", "database_path", "bleve_index_path"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-20s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: mieru watch <add|remove|list> [path]")
		fmt.Println("  mieru watch add <path>     Add directory to watch")
		fmt.Println("  mieru watch remove <path>  Remove directory from watch")
		fmt.Println("  mieru watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: mieru watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: mieru watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	KeywordIndex keyword.KeywordIndex
	Recorder     *metrics.Recorder
	Engine       *search.Engine
	Importer     *importer.Importer
}

func (c *Components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Recorder != nil {
		_ = c.Recorder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.NewEmbedder(
		cfg.Embedding.Provider,
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		// Fall back to the mock so read-only commands still work without a model.
		if logger != nil {
			logger.Warn("failed to create embedder, falling back to mock",
				zap.String("provider", cfg.Embedding.Provider),
				zap.Error(err))
		}
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	recorder, err := metrics.NewRecorder(cfg.Storage.MetricsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if err := recorder.RecordConnection(context.Background(), cfg.Storage.DatabasePath); err != nil && logger != nil {
		logger.Warn("failed to record connection", zap.Error(err))
	}

	engine := search.NewEngine(store, embedder, &cfg.Search)

	impOpts := []importer.Option{importer.WithInvalidator(engine.Invalidate)}
	if debug && logger != nil {
		impOpts = append(impOpts, importer.WithLogger(logger))
	}
	imp := importer.New(store, embedder, keywordIndex, extract.NewExtractor(), &cfg.Import, impOpts...)

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		KeywordIndex: keywordIndex,
		Recorder:     recorder,
		Engine:       engine,
		Importer:     imp,
	}, nil
}

func printUsage() {
	fmt.Println(`mieru - embedding collection explorer

Usage:
  mieru serve [flags]                Start the HTTP server
  mieru explore [flags]              Open the interactive scatter-plot explorer
  mieru import [flags] <path>        Import a document file or directory
  mieru insert [flags] <v1,v2,...>   Insert a raw vector record
  mieru search [flags] <query>       Similarity search by text or vector
  mieru delete [flags] <id>          Delete a record (or -source <path>)
  mieru collections [list|create|drop]  Manage collections
  mieru status [flags]               Show storage and config status
  mieru watch <add|remove|list>      Manage watched directories
  mieru version                      Show version
  mieru help                         Show this help

Serve Flags:
  --config string    Config file path (default: /usr/local/etc/mieru/config.yaml)
  --debug            Enable debug logging (file imports, watch events, etc.)

Explore Flags:
  --config string      Config file path
  --collection string  Collection to explore (default: import collection)

Search Flags:
  --config string      Config file path (for direct storage mode)
  --server string      Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --collection string  Collection to search (default: import collection)
  --k int              Number of results (default: 10)
  --vector string      Query vector as comma-separated floats (overrides text)
  --output string      Output format: text or json (default: text)

Insert Flags:
  --collection string  Target collection (required)
  --metadata string    Record metadata as a JSON object
  --create             Create the collection if missing
  --distance string    Distance for a created collection (default: cosine)

Examples:
  mieru serve
  mieru import ~/Documents/notes
  mieru explore
  mieru search "neural networks"
  mieru search -vector 0.1,0.4,0.2 -collection embeddings
  mieru insert -collection embeddings -create -metadata '{"label":"a"}' 0.1,0.2,0.3
  mieru collections create -dims 384 embeddings
  mieru collections
  mieru status --output json
  mieru watch add ~/Documents/notes`)
}

// Package main provides the SOWGraph CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orneryd/sowgraph/pkg/auth"
	"github.com/orneryd/sowgraph/pkg/bridge"
	"github.com/orneryd/sowgraph/pkg/config"
	"github.com/orneryd/sowgraph/pkg/inference"
	"github.com/orneryd/sowgraph/pkg/rules"
	"github.com/orneryd/sowgraph/pkg/server"
	"github.com/orneryd/sowgraph/pkg/sow"
	"github.com/orneryd/sowgraph/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sowgraph",
		Short: "SOWGraph - Rule-driven SOW opportunity inference over a property graph",
		Long: `SOWGraph stores business requirements, domain entities, and inference
rules in an embedded property graph and discovers analytical opportunities
from them.

Features:
  • Rule-based opportunity inference with confidence scoring
  • Cross-domain pattern transfer between industries
  • Full provenance edges for every discovered opportunity
  • Centrality analysis over discovery neighborhoods
  • HTTP API with analytics projections`,
	}

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("SOWGraph v%s (%s)\n", version, commit)
		},
	})

	// Serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SOWGraph server",
		Long:  "Start the SOWGraph HTTP API server over an embedded graph store",
		RunE:  runServe,
	}
	serveCmd.Flags().Int("http-port", 0, "HTTP API port (overrides SOWGRAPH_HTTP_PORT)")
	serveCmd.Flags().String("data-dir", "", "Data directory (overrides SOWGRAPH_DATA_DIR)")
	serveCmd.Flags().String("seed-dir", "", "Seed directory imported on startup")
	serveCmd.Flags().Bool("in-memory", false, "Run without persistence")
	serveCmd.Flags().Bool("no-auth", false, "Disable authentication")
	rootCmd.AddCommand(serveCmd)

	// Init command
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new SOWGraph data directory with seed templates",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", "./data", "Data directory")
	initCmd.Flags().String("seed-dir", "./seed", "Seed directory to create")
	rootCmd.AddCommand(initCmd)

	// Import command
	importCmd := &cobra.Command{
		Use:   "import [directory]",
		Short: "Import requirements, entities, and rules from a seed directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	importCmd.Flags().String("data-dir", "./data", "Data directory")
	rootCmd.AddCommand(importCmd)

	// Discover command
	discoverCmd := &cobra.Command{
		Use:   "discover [requirement-id]",
		Short: "Run opportunity discovery for one requirement",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiscover,
	}
	discoverCmd.Flags().String("data-dir", "./data", "Data directory")
	rootCmd.AddCommand(discoverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore opens the configured storage backend.
func openStore(cfg *config.Config) (storage.Engine, error) {
	if cfg.Database.InMemory {
		return storage.NewBadgerEngineInMemory()
	}
	if err := os.MkdirAll(cfg.Database.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
		DataDir:      cfg.Database.DataDir,
		SyncWrites:   cfg.Database.SyncWrites,
		MemTableSize: cfg.Database.MemTableSize,
	})
}

// buildCatalog loads the rule catalog from the store, falling back to the
// built-in rules when the store has none yet.
func buildCatalog(cfg *config.Config, store storage.Engine) (*rules.Catalog, error) {
	catalog := rules.NewCatalog(store)
	catalog.SetMinSuccessRate(cfg.Inference.MinSuccessRate)

	if err := catalog.LoadFromStore(); err != nil {
		return nil, fmt.Errorf("loading rule catalog: %w", err)
	}
	if catalog.Len() == 0 {
		defaults := rules.DefaultRules()
		if err := catalog.Load(defaults); err != nil {
			return nil, fmt.Errorf("loading default rules: %w", err)
		}
		for i := range defaults {
			if err := store.UpsertNode(sow.RuleNode(&defaults[i])); err != nil {
				return nil, fmt.Errorf("persisting default rule %s: %w", defaults[i].ID, err)
			}
		}
		fmt.Printf("   Installed %d built-in rules\n", len(defaults))
	}
	return catalog, nil
}

// inferenceConfig applies the environment overrides onto the inference
// defaults.
func inferenceConfig(cfg *config.Config) *inference.Config {
	ic := inference.DefaultConfig()
	ic.PhraseMultiplier = cfg.Inference.PhraseMultiplier
	ic.TokenMultiplier = cfg.Inference.TokenMultiplier
	ic.CrossDomainLimit = cfg.Inference.CrossDomainLimit
	ic.CrossDomainConfidence = cfg.Inference.CrossDomainConfidence
	return ic
}

func bridgeConfig(cfg *config.Config) *bridge.Config {
	bc := bridge.DefaultConfig()
	bc.BetweennessWeight = cfg.Bridge.BetweennessWeight
	bc.DegreeWeight = cfg.Bridge.DegreeWeight
	bc.ClosenessWeight = cfg.Bridge.ClosenessWeight
	bc.MaxDepth = cfg.Bridge.MaxDepth
	bc.PathCutoff = cfg.Bridge.PathCutoff
	bc.MaxNodes = cfg.Bridge.MaxNodes
	return bc
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()

	// Flags override environment
	if port, _ := cmd.Flags().GetInt("http-port"); port > 0 {
		cfg.Server.HTTPPort = port
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Database.DataDir = dataDir
	}
	if seedDir, _ := cmd.Flags().GetString("seed-dir"); seedDir != "" {
		cfg.Database.SeedDir = seedDir
	}
	if inMemory, _ := cmd.Flags().GetBool("in-memory"); inMemory {
		cfg.Database.InMemory = true
	}
	if noAuth, _ := cmd.Flags().GetBool("no-auth"); noAuth {
		cfg.Auth.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("Starting SOWGraph v%s\n", version)
	fmt.Printf("   Config: %s\n", cfg)
	fmt.Println()

	fmt.Println("Opening graph store...")
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()
	if !cfg.Database.InMemory {
		memTable := cfg.Database.MemTableSize
		if memTable <= 0 {
			memTable = storage.DefaultMemTableSize
		}
		fmt.Printf("   Data dir: %s (memtable %s)\n",
			cfg.Database.DataDir, config.FormatMemorySize(memTable))
	}

	if cfg.Database.SeedDir != "" {
		fmt.Printf("Importing seed from %s...\n", cfg.Database.SeedDir)
		seed, err := sow.LoadSeedDir(cfg.Database.SeedDir)
		if err != nil {
			return fmt.Errorf("loading seed: %w", err)
		}
		if err := seed.Import(store); err != nil {
			return fmt.Errorf("importing seed: %w", err)
		}
		fmt.Printf("   Imported %d requirements, %d entities, %d rules\n",
			len(seed.Requirements), len(seed.Entities), len(seed.Rules))
	}

	catalog, err := buildCatalog(cfg, store)
	if err != nil {
		return err
	}

	engine := inference.NewEngine(store, catalog, inferenceConfig(cfg))
	analyzer := bridge.NewAnalyzer(store, bridgeConfig(cfg))

	var authenticator *auth.Authenticator
	if cfg.Auth.Enabled {
		authenticator, err = auth.NewAuthenticator(auth.Config{
			Username:          cfg.Auth.Username,
			Password:          cfg.Auth.Password,
			MinPasswordLength: cfg.Auth.MinPasswordLength,
		})
		if err != nil {
			return fmt.Errorf("creating authenticator: %w", err)
		}
	} else {
		fmt.Println("Authentication disabled")
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Address = cfg.Server.HTTPAddress
	serverConfig.Port = cfg.Server.HTTPPort
	serverConfig.AccessLogEnabled = cfg.Logging.AccessLogEnabled

	httpServer, err := server.New(store, engine, analyzer, authenticator, serverConfig)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	fmt.Println()
	fmt.Println("SOWGraph is ready")
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Printf("  • Health:        http://localhost:%d/health\n", cfg.Server.HTTPPort)
	fmt.Printf("  • Discovery:     POST http://localhost:%d/sow/discover/{requirement-id}\n", cfg.Server.HTTPPort)
	fmt.Printf("  • Opportunities: http://localhost:%d/sow/opportunities\n", cfg.Server.HTTPPort)
	fmt.Printf("  • Analytics:     http://localhost:%d/sow/analytics/methods\n", cfg.Server.HTTPPort)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	// Block until shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	catalog.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Stop(ctx); err != nil {
		return fmt.Errorf("stopping server: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	seedDir, _ := cmd.Flags().GetString("seed-dir")

	fmt.Printf("Initializing SOWGraph in %s\n", dataDir)

	for _, dir := range []string{dataDir, seedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	templates := map[string]string{
		sow.SeedRequirementsFile: `# Business requirements to analyze.
requirements:
  - id: REQ_001
    description: Implement supplier tracking system for automotive parts
    priority: 1
    domain: manufacturing
    complexity: high
`,
		sow.SeedEntitiesFile: `# Domain entity profiles for cross-domain transfer.
entities:
  - id: ENT_001
    name: Example Retail Co
    entity_type: company
    industry: retail
    maturity_level: enterprise
    technology_stack: [kafka, spark, snowflake]
    data_maturity: optimized
`,
		sow.SeedRulesFile: `# Extra inference rules. The built-in catalog is installed automatically.
rules: []

# Ownership links between requirements and entities.
ownership: []
`,
	}

	for name, content := range templates {
		path := filepath.Join(seedDir, name)
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("   Keeping existing %s\n", path)
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	fmt.Println("Initialized successfully")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit the seed files in", seedDir)
	fmt.Println("  2. Import them:       sowgraph import", seedDir, "--data-dir", dataDir)
	fmt.Println("  3. Start the server:  sowgraph serve --data-dir", dataDir)

	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	seedDir := args[0]
	dataDir, _ := cmd.Flags().GetString("data-dir")

	fmt.Printf("Importing seed from %s\n", seedDir)

	seed, err := sow.LoadSeedDir(seedDir)
	if err != nil {
		return fmt.Errorf("loading seed: %w", err)
	}

	store, err := storage.NewBadgerEngine(dataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := seed.Import(store); err != nil {
		return fmt.Errorf("importing seed: %w", err)
	}

	fmt.Printf("Imported %d requirements, %d entities, %d rules, %d ownership links\n",
		len(seed.Requirements), len(seed.Entities), len(seed.Rules), len(seed.Ownership))
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	requirementID := args[0]
	dataDir, _ := cmd.Flags().GetString("data-dir")

	cfg := config.LoadFromEnv()
	cfg.Database.DataDir = dataDir
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.NewBadgerEngine(dataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	catalog, err := buildCatalog(cfg, store)
	if err != nil {
		return err
	}

	engine := inference.NewEngine(store, catalog, inferenceConfig(cfg))

	fmt.Printf("Discovering opportunities for %s...\n", requirementID)
	opportunities, err := engine.DiscoverOpportunities(cmd.Context(), requirementID)
	catalog.Flush()

	var partial *inference.PartialFailure
	switch {
	case err == nil:
	case errors.As(err, &partial):
		for _, cause := range partial.Causes {
			fmt.Printf("   ⚠ %s: %v\n", cause.SourceID, cause.Err)
		}
	default:
		return fmt.Errorf("discovery failed: %w", err)
	}

	sort.Slice(opportunities, func(i, j int) bool { return opportunities[i].ID < opportunities[j].ID })
	fmt.Printf("Found %d opportunities:\n", len(opportunities))
	for _, opp := range opportunities {
		fmt.Printf("  • %-22s %-10s conf=%.3f value=%.2f hours=%d\n",
			opp.ID, opp.Complexity, opp.ConfidenceScore, opp.BusinessValue, opp.EstimatedHours)
		fmt.Printf("      %s\n", opp.Description)
	}
	return nil
}

package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/mieru/data/db/vectors.db"
	}
	if cfg.Storage.MetricsPath == "" {
		cfg.Storage.MetricsPath = "/usr/local/var/mieru/data/db/metrics.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/mieru/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/mieru/data/indices/vectors"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Import.Collection == "" {
		cfg.Import.Collection = "documents"
	}
	if cfg.Import.ChunkSize == 0 {
		cfg.Import.ChunkSize = 512
	}
	if cfg.Import.ChunkOverlap == 0 {
		cfg.Import.ChunkOverlap = 50
	}
	if cfg.Import.Extensions == nil {
		cfg.Import.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = cfg.Import.Extensions
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Viz.Iterations == 0 {
		cfg.Viz.Iterations = 50
	}
	if cfg.Viz.Padding == 0 {
		cfg.Viz.Padding = 40
	}
	if cfg.Viz.HitRadius == 0 {
		cfg.Viz.HitRadius = 20
	}
}

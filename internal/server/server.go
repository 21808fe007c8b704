package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graphweave/graphweave/internal/config"
	"github.com/graphweave/graphweave/internal/core/community"
	"github.com/graphweave/graphweave/internal/core/importance"
	"github.com/graphweave/graphweave/internal/core/model"
	"github.com/graphweave/graphweave/internal/core/query"
	"github.com/graphweave/graphweave/internal/core/summary"
	"github.com/graphweave/graphweave/internal/driver"
	"github.com/graphweave/graphweave/internal/graph"
	"github.com/graphweave/graphweave/internal/llm"
	"github.com/graphweave/graphweave/internal/storage"
)

type Server struct {
	Graph    graph.Accessor
	Detector *community.Detector
	Scorer   *importance.Scorer
	Pipeline *summary.Pipeline
	Query    *query.Engine
	Store    storage.Store
	Driver   driver.GraphDriver
}

// Close releases the result store and the graph driver.
func (s *Server) Close(ctx context.Context) {
	if err := s.Store.Close(); err != nil {
		log.Printf("Failed to close result store: %v", err)
	}
	if err := s.Driver.Close(ctx); err != nil {
		log.Printf("Failed to close graph driver: %v", err)
	}
}

func NewServer() *Server {
	// Load Config
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Warning: could not load %s: %v. Using defaults with env overrides", cfgPath, err)
		cfg = &config.Config{}
	}

	// Override config with env vars if present (simple override logic)
	if envURI := os.Getenv("MEMGRAPH_URI"); envURI != "" {
		cfg.Memgraph.URI = envURI
	}
	if envUser := os.Getenv("MEMGRAPH_USER"); envUser != "" {
		cfg.Memgraph.User = envUser
	}
	if envPass := os.Getenv("MEMGRAPH_PASSWORD"); envPass != "" {
		cfg.Memgraph.Password = envPass
	}
	if envProvider := os.Getenv("LLM_PROVIDER"); envProvider != "" {
		cfg.LLM.Provider = envProvider
	}
	if envModel := os.Getenv("LLM_MODEL"); envModel != "" {
		cfg.LLM.Model = envModel
	}
	if envAPIKey := os.Getenv("LLM_API_KEY"); envAPIKey != "" {
		cfg.LLM.APIKey = envAPIKey
	}
	if envBaseURL := os.Getenv("LLM_BASE_URL"); envBaseURL != "" {
		cfg.LLM.BaseURL = envBaseURL
	}
	if envStorage := os.Getenv("STORAGE_PATH"); envStorage != "" {
		cfg.Storage.Path = envStorage
	}

	if cfg.Memgraph.URI == "" {
		cfg.Memgraph.URI = "bolt://localhost:7687"
	}
	// Default to Ollama if provider is empty
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
		cfg.LLM.Model = "gpt-oss:latest"
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.Storage.Path == "" && !cfg.Storage.InMemory {
		cfg.Storage.Path = "data/graphweave"
	}

	d, err := driver.NewMemgraphDriver(cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
	if err != nil {
		log.Fatalf("Failed to connect to Memgraph: %v", err)
	}
	if err := d.BuildIndices(context.Background()); err != nil {
		log.Printf("Warning: failed to build indices: %v", err)
	}

	llmClient, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	store, err := storage.NewBadgerStore(storage.Options{
		Path:     cfg.Storage.Path,
		InMemory: cfg.Storage.InMemory,
	})
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}

	accessor := graph.NewService(d)

	detector := community.NewDetector(accessor, community.Config{
		Resolution:           cfg.Detection.Resolution,
		MaxPasses:            cfg.Detection.MaxPasses,
		MaxLevels:            cfg.Detection.MaxLevels,
		IncrementalHopRadius: cfg.Detection.IncrementalHopRadius,
		IncrementalThreshold: cfg.Detection.IncrementalThreshold,
	})

	scorerCfg := importance.Config{
		CacheTTL: time.Duration(cfg.Importance.CacheTTLSeconds) * time.Second,
	}
	if cfg.Importance.PageRankWeight != nil || cfg.Importance.BetweennessWeight != nil || cfg.Importance.MentionWeight != nil {
		w := model.DefaultWeights()
		if cfg.Importance.PageRankWeight != nil {
			w.PageRank = *cfg.Importance.PageRankWeight
		}
		if cfg.Importance.BetweennessWeight != nil {
			w.Betweenness = *cfg.Importance.BetweennessWeight
		}
		if cfg.Importance.MentionWeight != nil {
			w.MentionFrequency = *cfg.Importance.MentionWeight
		}
		scorerCfg.Weights = &w
	}
	scorer := importance.NewScorer(accessor, scorerCfg)

	pipeline := summary.NewPipeline(detector, accessor, llmClient, store, cfg.Prompts, summary.Config{
		MinCommunitySize:         cfg.Summary.MinCommunitySize,
		BatchSize:                cfg.Summary.BatchSize,
		BatchDelay:               time.Duration(cfg.Summary.BatchDelayMillis) * time.Millisecond,
		CacheSize:                cfg.Summary.CacheSize,
		CacheTTL:                 time.Duration(cfg.Summary.CacheTTLSeconds) * time.Second,
		MaxEntitiesInPrompt:      cfg.Summary.MaxEntitiesInPrompt,
		MaxRelationshipsInPrompt: cfg.Summary.MaxRelationshipsInPrompt,
		MaxSummaryTokens:         cfg.Summary.MaxSummaryTokens,
	})

	engine := query.NewEngine(pipeline, llmClient, cfg.Prompts, query.Config{
		MaxCommunities:  cfg.Query.MaxCommunities,
		TopPartials:     cfg.Query.TopPartials,
		MaxAnswerTokens: cfg.Query.MaxAnswerTokens,
	})

	return &Server{
		Graph:    accessor,
		Detector: detector,
		Scorer:   scorer,
		Pipeline: pipeline,
		Query:    engine,
		Store:    store,
		Driver:   d,
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)

	r.POST("/communities/detect", s.DetectCommunities)
	r.POST("/communities/summaries", s.GenerateSummaries)
	r.POST("/communities/summaries/refresh", s.RefreshSummaries)
	r.POST("/communities/subgraph/summaries", s.SummarizeSubgraph)
	r.GET("/summaries", s.ListSummaries)

	r.POST("/importance/calculate", s.CalculateImportance)
	r.POST("/importance/apply", s.ApplyImportance)

	r.POST("/query/global", s.GlobalQuery)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type DetectRequest struct {
	Resolution  float64 `json:"resolution"`
	Incremental bool    `json:"incremental"`
}

func (s *Server) DetectCommunities(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()

	if req.Incremental {
		run, err := s.Store.GetLatestDetectionRun(ctx)
		if err != nil {
			log.Printf("Failed to read last detection run: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read last detection run"})
			return
		}
		var result *model.DetectionResult
		if run == nil {
			result, err = s.Detector.Detect(ctx, req.Resolution)
		} else {
			result, err = s.Detector.DetectSmart(ctx, &run.Result, run.PersistedAt)
		}
		if err != nil {
			log.Printf("Failed to detect communities: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to detect communities"})
			return
		}

		if !result.Metadata.NoChanges {
			if _, err := s.Store.StoreDetectionRun(ctx, result); err != nil {
				log.Printf("Failed to persist detection run: %v", err)
			}
		}
		c.JSON(http.StatusOK, result)
		return
	}

	result, err := s.Detector.Detect(ctx, req.Resolution)
	if err != nil {
		log.Printf("Failed to detect communities: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to detect communities"})
		return
	}

	if _, err := s.Store.StoreDetectionRun(ctx, result); err != nil {
		log.Printf("Failed to persist detection run: %v", err)
	}
	c.JSON(http.StatusOK, result)
}

type GenerateSummariesRequest struct {
	Resolution       float64 `json:"resolution"`
	MinCommunitySize int     `json:"min_community_size"`
}

func (s *Server) GenerateSummaries(c *gin.Context) {
	var req GenerateSummariesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := s.Pipeline.GenerateAllSummaries(c.Request.Context(), summary.GenerateOptions{
		Resolution:       req.Resolution,
		MinCommunitySize: req.MinCommunitySize,
	})
	if err != nil {
		log.Printf("Failed to generate summaries: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate summaries"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) RefreshSummaries(c *gin.Context) {
	result, err := s.Pipeline.UpdateSummariesIncremental(c.Request.Context())
	if err != nil {
		log.Printf("Failed to refresh summaries: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh summaries"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type SubgraphSummariesRequest struct {
	NodeIDs []string `json:"node_ids" binding:"required"`
}

func (s *Server) SummarizeSubgraph(c *gin.Context) {
	var req SubgraphSummariesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	snapshot, err := s.Graph.GetSubgraph(ctx, req.NodeIDs)
	if err != nil {
		log.Printf("Failed to fetch subgraph: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subgraph"})
		return
	}

	summaries := s.Pipeline.GenerateSummariesForSubgraph(ctx, snapshot.Nodes, snapshot.Edges)
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func (s *Server) ListSummaries(c *gin.Context) {
	summaries := s.Pipeline.AvailableSummaries(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

type ImportanceRequest struct {
	PageRankWeight    *float64 `json:"page_rank_weight"`
	BetweennessWeight *float64 `json:"betweenness_weight"`
	MentionWeight     *float64 `json:"mention_weight"`
	ForceRefresh      bool     `json:"force_refresh"`
}

func (s *Server) CalculateImportance(c *gin.Context) {
	var req ImportanceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	opts := importance.Options{ForceRefresh: req.ForceRefresh}
	if req.PageRankWeight != nil || req.BetweennessWeight != nil || req.MentionWeight != nil {
		w := model.DefaultWeights()
		if req.PageRankWeight != nil {
			w.PageRank = *req.PageRankWeight
		}
		if req.BetweennessWeight != nil {
			w.Betweenness = *req.BetweennessWeight
		}
		if req.MentionWeight != nil {
			w.MentionFrequency = *req.MentionWeight
		}
		opts.Weights = &w
	}

	result, err := s.Scorer.CalculateImportance(c.Request.Context(), opts)
	if err != nil {
		log.Printf("Failed to calculate importance: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to calculate importance"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ApplyImportance(c *gin.Context) {
	result, err := s.Scorer.UpdateEntityImportanceScores(c.Request.Context())
	if err != nil {
		log.Printf("Failed to apply importance scores: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply importance scores"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type GlobalQueryRequest struct {
	Query string `json:"query" binding:"required"`
}

func (s *Server) GlobalQuery(c *gin.Context) {
	var req GlobalQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	answer := s.Query.GlobalQuery(c.Request.Context(), req.Query)
	c.JSON(http.StatusOK, answer)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/chunker"
	cfgPkg "github.com/xhad/askdocs/pkg/config"
	"github.com/xhad/askdocs/pkg/extract"
	"github.com/xhad/askdocs/pkg/history"
	"github.com/xhad/askdocs/pkg/ingest"
	"github.com/xhad/askdocs/pkg/llm"
	"github.com/xhad/askdocs/pkg/rag"
	"github.com/xhad/askdocs/pkg/retriever"
	"github.com/xhad/askdocs/pkg/store"
	"github.com/xhad/askdocs/server"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "ingest":
		err = runIngest(os.Args[2:])
	case "query":
		err = runQuery(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "delete":
		err = runDelete(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: askdocs <command> [flags]

Commands:
  serve    start the HTTP API
  ingest   index one or more .pdf/.docx/.txt files
  query    ask a question against the index
  list     list indexed documents
  delete   remove a document and its chunks`)
}

type app struct {
	config    *cfgPkg.Config
	index     store.VectorStore
	meta      *history.SQLite
	chat      *llm.ChatEngine
	embedder  *llm.Embedder
	pipeline  *ingest.Pipeline
	retriever *retriever.Retriever
	engine    *rag.Engine
}

func buildApp(configPath string) (*app, error) {
	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if verrs := config.Validate(); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return nil, fmt.Errorf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
	}

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       config.LLM.Model,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
		BaseURL:     config.LLM.BaseURL,
		RateLimit:   config.LLM.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   config.Embedding.Model,
		BaseURL: config.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %v", err)
	}

	var index store.VectorStore
	switch config.Index.Backend {
	case "pgvector":
		index, err = store.NewPGStoreWithConfig(store.PGStoreConfig{
			ConnString: config.Index.URL,
			TableName:  config.Index.TableName,
			VectorDim:  config.Index.VectorDim,
		})
	default:
		index, err = store.Open(store.FileStoreConfig{
			Path:      config.Index.Path,
			VectorDim: config.Index.VectorDim,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %v", err)
	}

	meta, err := history.OpenSQLite(config.Metadata.Path)
	if err != nil {
		index.Close()
		return nil, err
	}

	split := chunker.NewWithConfig(chunker.ChunkerConfig{
		ChunkSize:    config.Chunker.ChunkSize,
		ChunkOverlap: config.Chunker.ChunkOverlap,
	})

	retr := retriever.NewWithConfig(retriever.RetrieverConfig{
		Expansions: config.Retrieval.Expansions,
		KPerQuery:  config.Retrieval.KPerQuery,
		FinalK:     config.Retrieval.FinalK,
	}, chatEngine, embedder, index)

	engine := rag.NewEngine(rag.EngineConfig{
		Model:         config.LLM.Model,
		HistoryWindow: config.Retrieval.HistoryWindow,
		KPerQuery:     config.Retrieval.KPerQuery,
		DomainQuery:   config.Retrieval.DomainQuery,
	}, chatEngine, retr, meta)

	return &app{
		config:    config,
		index:     index,
		meta:      meta,
		chat:      chatEngine,
		embedder:  embedder,
		pipeline:  ingest.New(split, embedder, index),
		retriever: retr,
		engine:    engine,
	}, nil
}

func (a *app) Close() {
	a.index.Close()
	a.meta.Close()
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	fs.Parse(args)

	a, err := buildApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if *addr != "" {
		a.config.Server.Addr = *addr
	}

	srv := server.New(server.Config{
		Addr:           a.config.Server.Addr,
		UploadDir:      a.config.Server.UploadDir,
		MaxUploadBytes: a.config.Server.MaxUploadBytes,
	}, a.engine, a.pipeline, a.index, a.meta)

	color.Cyan("askdocs API listening on %s", a.config.Server.Addr)
	return srv.ListenAndServe()
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("ingest: at least one file is required")
	}

	a, err := buildApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	failed, err := ingestFiles(context.Background(), a.meta, a.pipeline, files)
	if err != nil {
		return err
	}

	color.Green("✓ Indexed %d of %d documents", len(files)-failed, len(files))
	return nil
}

// ingestFiles indexes each file, recording it under its base name so list
// output matches uploads through the API, and rolls the record back when
// indexing fails. Returns how many files were skipped or failed.
func ingestFiles(ctx context.Context, docs history.DocumentStore, pipeline server.Ingestor, files []string) (int, error) {
	bar := getProgressBar(len(files), " Indexing documents")
	failed := 0

	for _, path := range files {
		if !extract.Supported(path) {
			color.Yellow("skipping %s: unsupported file type", path)
			failed++
			bar.Add(1)
			continue
		}

		fileID, err := docs.CreateDocument(ctx, filepath.Base(path))
		if err != nil {
			return failed, err
		}

		if err := pipeline.Ingest(ctx, path, fileID); err != nil {
			if _, delErr := docs.DeleteDocument(ctx, fileID); delErr != nil {
				color.Red("failed to roll back record for %s: %v", path, delErr)
			}
			color.Red("failed to index %s: %v", path, err)
			failed++
		}
		bar.Add(1)
	}
	bar.Finish()

	return failed, nil
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	sessionID := fs.String("session", "", "Session id to continue a conversation")
	fs.Parse(args)

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("query: a question is required")
	}

	a, err := buildApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	spinner := getSpinner(" Thinking...")
	response, err := a.engine.Answer(context.Background(), models.QueryInput{
		Question:  question,
		SessionID: *sessionID,
	})
	spinner.Finish()
	if err != nil {
		return err
	}

	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	assistantPrompt("\nAssistant: %s\n", response.Answer)
	color.Blue("session: %s", response.SessionID)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	a, err := buildApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.meta.ListDocuments(context.Background())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		color.Yellow("no documents indexed")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%6d  %s  %s\n", rec.FileID,
			rec.UploadedAt.Format("2006-01-02 15:04"), rec.Filename)
	}
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fileID := fs.Int64("id", 0, "Document file_id to delete")
	fs.Parse(args)

	if *fileID <= 0 {
		return fmt.Errorf("delete: -id is required")
	}

	a, err := buildApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	removed, err := a.index.DeleteByDocument(ctx, *fileID)
	if err != nil {
		return err
	}

	deleted, err := a.meta.DeleteDocument(ctx, *fileID)
	if err != nil {
		return err
	}

	if removed == 0 && !deleted {
		color.Yellow("no document found with file_id %d", *fileID)
		return nil
	}

	color.Green("✓ Deleted document %d (%d chunks)", *fileID, removed)
	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/pkg/blob"
	"github.com/parleylabs/parley/pkg/copilot"
	"github.com/parleylabs/parley/pkg/gateway"
	"github.com/parleylabs/parley/pkg/infer"
	"github.com/parleylabs/parley/pkg/transcribe"
)

var flagConfig string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the copilot session server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagConfig, "config", "c", "config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	level, err := cfg.logLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	oc := openaiClient(cfg.OpenAI)
	inference := &infer.OpenAI{
		Client:      oc,
		Model:       cfg.OpenAI.ChatModel,
		Temperature: cfg.OpenAI.Temperature,
	}
	transcriber := &transcribe.Whisper{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.WhisperModel,
	}

	blobs, err := blobStore(cfg.Storage)
	if err != nil {
		return err
	}

	var archive copilot.Archiver
	if cfg.Archive.Dir != "" || cfg.Archive.InMemory {
		ba, err := copilot.OpenBadgerArchiver(copilot.BadgerArchiverOptions{
			Dir:      cfg.Archive.Dir,
			InMemory: cfg.Archive.InMemory,
		})
		if err != nil {
			return err
		}
		defer ba.Close()
		archive = ba
	}

	registry, err := copilot.New(copilot.Options{
		Transcriber:  transcriber,
		Inference:    inference,
		Blobs:        blobs,
		Archive:      archive,
		Logger:       logger,
		LanguageHint: cfg.OpenAI.LanguageHint,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", gateway.NewServer(registry, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{Addr: cfg.Listen, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("parleyd: listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("parleyd: shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("parleyd: http shutdown", "error", err)
	}
	// Ends and archives every live session before exit.
	if err := registry.Close(); err != nil {
		logger.Warn("parleyd: registry close", "error", err)
	}
	return nil
}

func openaiClient(cfg OpenAIConfig) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	c := openai.NewClient(opts...)
	return &c
}

func blobStore(cfg StorageConfig) (blob.Store, error) {
	switch cfg.Backend {
	case "s3":
		s3cfg := cfg.S3
		client := s3.New(s3.Options{
			Region: s3cfg.Region,
			Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     s3cfg.AccessKeyID,
					SecretAccessKey: s3cfg.SecretAccessKey,
				}, nil
			}),
			BaseEndpoint: endpointPtr(s3cfg.Endpoint),
			UsePathStyle: s3cfg.Endpoint != "",
		})
		return blob.NewS3(client, s3cfg.Bucket, s3cfg.Prefix, s3cfg.PublicBaseURL), nil
	case "local":
		return blob.NewLocal(cfg.Local.Dir, cfg.Local.BaseURL), nil
	case "memory":
		return blob.NewMem(), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func endpointPtr(endpoint string) *string {
	if endpoint == "" {
		return nil
	}
	return aws.String(endpoint)
}

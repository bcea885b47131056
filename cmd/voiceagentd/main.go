// Copyright 2025 The NLP Odyssey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command voiceagentd runs the phone-call agent server: the Twilio
// voice webhooks and the Retell custom-LLM websocket endpoint, wired to
// a shared conversation orchestrator.
package main

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/spf13/cobra"

	"github.com/nlpodyssey/voiceagent-go/retell"
	"github.com/nlpodyssey/voiceagent-go/twilio"
	"github.com/nlpodyssey/voiceagent-go/voiceagent"
)

const version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "voiceagentd",
		Short:         "Phone-call conversational agent server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newServeCommand(), newVersionCommand())
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the voiceagentd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "voiceagentd", version)
		},
	}
}

func newServeCommand() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				voiceagent.EnableVerboseStdoutLogging()
			}
			config, err := LoadServerConfig(configPath)
			if err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), config)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on stdout")
	return cmd
}

func serve(ctx context.Context, config ServerConfig) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model := voiceagent.NewOpenAIModel(voiceagent.OpenAIModelParams{
		Model:     openai.ChatModel(config.OpenAI.Model),
		APIKey:    config.OpenAI.APIKey,
		BaseURL:   optString(config.OpenAI.BaseURL),
		Streaming: config.OpenAI.Streaming,
		Timeout:   time.Duration(config.OpenAI.Timeout),
	})

	orchestrator := voiceagent.NewOrchestrator(voiceagent.OrchestratorParams{
		Model: model,
		Config: voiceagent.Config{
			SystemPrompt:       config.Agent.SystemPrompt,
			Greeting:           config.Agent.Greeting,
			SessionIdleTimeout: time.Duration(config.Agent.SessionIdleTimeout),
		},
	})
	defer orchestrator.Close()

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Mount("/twilio", twilio.NewHandler(orchestrator, twilio.Config{
		AuthToken:     config.Twilio.AuthToken,
		PublicURL:     config.PublicURL,
		GatherTimeout: config.Twilio.GatherTimeout,
		Language:      config.Twilio.Language,
		Voice:         config.Twilio.Voice,
	}).Routes())
	mux.Mount("/retell", retell.NewHandler(orchestrator).Routes())

	server := &http.Server{
		Addr:              config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		voiceagent.Logger().Info("server listening",
			slog.String("address", config.ListenAddress))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	voiceagent.Logger().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func optString(s string) param.Opt[string] {
	if s == "" {
		return param.Opt[string]{}
	}
	return param.NewOpt(s)
}

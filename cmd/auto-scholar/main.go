// Command auto-scholar is a minimal CLI front end for the literature-review
// graph: it builds an agents.Deps from the environment (spec §6's env var
// table), starts a thread, prints the candidate count and the run's logs,
// approves all candidates, and prints the thread's status (whether a draft
// exists, and the candidate and approved counts). It exists to exercise the runtime
// package end to end the way the teacher's examples/*/main.go files each
// drive one workflow from the command line.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/dshills/langgraph-go/graph/model/anthropic"
	"github.com/dshills/langgraph-go/graph/model/google"
	"github.com/dshills/langgraph-go/graph/model/openai"

	"github.com/CAICAIIs/Auto-Scholar/adapters"
	"github.com/CAICAIIs/Auto-Scholar/agents"
	"github.com/CAICAIIs/Auto-Scholar/citation"
	"github.com/CAICAIIs/Auto-Scholar/llm"
	"github.com/CAICAIIs/Auto-Scholar/router"
	"github.com/CAICAIIs/Auto-Scholar/runtime"
	"github.com/CAICAIIs/Auto-Scholar/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	reg, err := router.LoadRegistry(os.Getenv("MODEL_CONFIG_PATH"), "MODEL_REGISTRY")
	if err != nil {
		return fmt.Errorf("loading model registry: %w", err)
	}

	models := buildBackends(reg)
	if len(models) == 0 {
		return fmt.Errorf("no model backends resolved; set LLM_API_KEY or a provider-specific key env var")
	}

	tracker := llm.NewCostTracker("auto-scholar-cli", "USD", nil)
	tokens, err := llm.NewTokenCounter()
	if err != nil {
		return fmt.Errorf("loading token encoder: %w", err)
	}

	deps := &agents.Deps{
		Registry: reg,
		Models:   models,
		Tracker:  tracker,
		Tokens:   tokens,
		Sources: map[string]adapters.SourceAdapter{
			session.SourceSemanticScholar: &adapters.MemorySourceAdapter{Name: session.SourceSemanticScholar},
			session.SourceArxiv:           &adapters.MemorySourceAdapter{Name: session.SourceArxiv},
			session.SourcePubMed:          &adapters.MemorySourceAdapter{Name: session.SourcePubMed},
		},
		FullText:            adapters.NoopFullTextAdapter{},
		FailureTracker:       adapters.NewFailureTracker(3, 120*time.Second),
		LLMConcurrency:       agents.EnvInt("LLM_CONCURRENCY", agents.DefaultLLMConcurrency),
		FullTextConcurrency:  agents.EnvInt("FULLTEXT_CONCURRENCY", agents.DefaultFullTextConcurrency),
		RNG:                  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if claimModel, claimID, ok := deps.ModelForVerification(); ok && os.Getenv("CLAIM_VERIFICATION_ENABLED") == "true" {
		deps.Verifier = &citation.Verifier{
			Model:       claimModel,
			ModelID:     claimID,
			Tracker:     tracker,
			Tokens:      tokens,
			Concurrency: agents.EnvInt("CLAIM_VERIFICATION_CONCURRENCY", citation.DefaultVerificationConcurrency),
		}
	}

	sched, err := runtime.New(deps, runtime.EnvOptions())
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	query := strings.Join(os.Args[1:], " ")
	if query == "" {
		query = "transformer architectures for long-context reasoning"
	}

	start, err := sched.Start(ctx, query, string(session.LanguageEN),
		[]string{session.SourceSemanticScholar, session.SourceArxiv}, "")
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	fmt.Printf("thread %s: %d candidates\n", start.ThreadID, len(start.CandidatePapers))
	for _, line := range start.Logs {
		fmt.Println(line)
	}

	ids := make([]string, 0, len(start.CandidatePapers))
	for _, p := range start.CandidatePapers {
		ids = append(ids, p.PaperID)
	}
	approved, err := sched.Approve(ctx, start.ThreadID, ids)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	fmt.Printf("approved %d papers\n", approved.ApprovedCount)

	status, err := sched.Status(start.ThreadID)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Printf("has_draft=%v candidates=%d approved=%d\n", status.HasDraft, status.CandidateCount, status.ApprovedCount)

	return nil
}

// buildBackends resolves one llm.ChatModel per enabled registry profile,
// keyed by profile id, constructing the concrete backend the profile's
// provider names. A profile whose api_key_env is unset falls back to
// LLM_API_KEY; a non-local profile with neither key, or with a provider
// other than openai, anthropic, google or gemini, is skipped rather than
// failing the whole process.
func buildBackends(reg *router.Registry) map[string]llm.ChatModel {
	backends := make(map[string]llm.ChatModel)
	for _, p := range reg.Enabled() {
		apiKey := os.Getenv(p.APIKeyEnv)
		if apiKey == "" {
			apiKey = os.Getenv("LLM_API_KEY")
		}
		if apiKey == "" && !p.IsLocal {
			continue
		}
		switch p.Provider {
		case "openai":
			backends[p.ID] = openai.NewChatModel(apiKey, p.ModelName)
		case "anthropic":
			backends[p.ID] = anthropic.NewChatModel(apiKey, p.ModelName)
		case "google", "gemini":
			backends[p.ID] = google.NewChatModel(apiKey, p.ModelName)
		}
	}
	return backends
}

// providercheck verifies provider credentials from the command line: it
// builds the configured clients and optionally looks up the status of an
// existing task to prove end-to-end connectivity.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music/mureka"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/providers/music/suno"
)

func main() {
	var (
		providerFlag string
		taskFlag     string
	)
	flag.StringVar(&providerFlag, "provider", "suno", "Provider to check (suno or mureka)")
	flag.StringVar(&taskFlag, "task", "", "Optional task id to query for a live status check")
	flag.Parse()

	_ = godotenv.Load()

	var adapter music.Adapter
	switch strings.TrimSpace(strings.ToLower(providerFlag)) {
	case "suno":
		adapter = suno.NewClient(suno.Options{
			APIKey:  os.Getenv("SUNO_API_KEY"),
			BaseURL: os.Getenv("SUNO_BASE_URL"),
			Model:   os.Getenv("SUNO_MODEL"),
		})
	case "mureka":
		adapter = mureka.NewClient(mureka.Options{
			APIKey:  os.Getenv("MUREKA_API_KEY"),
			BaseURL: os.Getenv("MUREKA_BASE_URL"),
			Model:   os.Getenv("MUREKA_MODEL"),
		})
	default:
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	if !adapter.HasCredentials() {
		fmt.Fprintf(os.Stderr, "%s: no API key configured\n", adapter.Name())
		os.Exit(1)
	}
	fmt.Printf("%s: credentials present\n", adapter.Name())

	if taskFlag == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	status, err := adapter.CheckStatus(ctx, taskFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: status check failed: %v\n", adapter.Name(), err)
		os.Exit(1)
	}
	fmt.Printf("%s: task %s state=%s progress=%d", adapter.Name(), taskFlag, status.State, status.Progress)
	if status.ResultURL != "" {
		fmt.Printf(" result=%s", status.ResultURL)
	}
	if status.Message != "" {
		fmt.Printf(" message=%q", status.Message)
	}
	fmt.Println()
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// Runs screenshot-batch with the given arguments and exposes the summary of
// the report it wrote as step outputs. The report path is taken from REPORT.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ghadapter screenshot-batch [flags] manifest.yaml")
		os.Exit(1)
	}
	reportPath := os.Getenv("REPORT")
	if reportPath == "" {
		fmt.Fprintln(os.Stderr, "REPORT must be set")
		os.Exit(1)
	}

	cmd := exec.Command(os.Args[1], os.Args[2:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	runErr := cmd.Run()

	b, err := os.ReadFile(reportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read report: %v\n", err)
		os.Exit(1)
	}
	var summary struct {
		Succeeded int    `json:"succeeded"`
		Failed    int    `json:"failed"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(b, &summary); err != nil {
		fmt.Fprintf(os.Stderr, "failed to decode report: %v\n", err)
		os.Exit(1)
	}

	if githubOutput := os.Getenv("GITHUB_OUTPUT"); githubOutput != "" {
		f, err := os.OpenFile(githubOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open GITHUB_OUTPUT: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		_, _ = fmt.Fprintf(f, "succeeded=%d\n", summary.Succeeded)
		_, _ = fmt.Fprintf(f, "failed=%d\n", summary.Failed)
		_, _ = fmt.Fprintf(f, "rejected=%t\n", summary.Error != "")
	}

	if runErr != nil || summary.Failed > 0 {
		os.Exit(1)
	}
}

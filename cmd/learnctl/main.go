// Package main implements the learnctl CLI for manual operations against the
// learnd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
	"github.com/fyrsmithlabs/learnd/internal/reflection"
)

var (
	// serverURL is the base URL for the learnd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "learnctl",
	Short: "CLI for learnd HTTP server operations",
	Long: `learnctl is a command-line interface for the learnd HTTP server.
It records interactions, lists learned insights, triggers reflection,
checks server health and opens a live dashboard.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9191", "learnd server URL")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(interactCmd)
	rootCmd.AddCommand(reflectCmd)

	insightsCmd.Flags().StringSlice("category", nil, "filter by category (repeatable)")
	insightsCmd.Flags().Float64("min-confidence", 0, "minimum confidence")
	insightsCmd.Flags().Int("limit", 20, "maximum number of insights")
	insightsCmd.Flags().Bool("all", false, "include inactive insights")

	interactCmd.Flags().String("type", string(interaction.TypeMessageSent), "interaction type")
	interactCmd.Flags().Int("rating", 0, "attach explicit feedback with this rating (1-5)")
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check learnd server health",
	Long: `Check the health status of the learnd HTTP server.

Examples:
  # Check health
  learnctl health

  # Check health on a different server
  learnctl health --server http://localhost:8080`,
	RunE: runHealth,
}

// insightsCmd lists learned insights
var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "List learned insights",
	Long: `List insights learned about the user, highest confidence first.

Examples:
  learnctl insights
  learnctl insights --category COMMUNICATION_STYLE --min-confidence 0.5`,
	RunE: runInsights,
}

// interactCmd records one interaction
var interactCmd = &cobra.Command{
	Use:   "interact [content]",
	Short: "Record an interaction",
	Long: `Record an interaction with the learning engine. Content is read from
the argument, or from stdin when the argument is "-" or missing.

Examples:
  learnctl interact "thanks, that was helpful"
  echo "ok" | learnctl interact -
  learnctl interact --type EXPLICIT_FEEDBACK --rating 5 "great answer"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInteract,
}

// reflectCmd generates meta-insights
var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Generate meta-cognitive insights about the knowledge base",
	RunE:  runReflect,
}

// HealthResponse matches internal/http HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
}

// insightView is the subset of an insight the CLI prints.
type insightView struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Level       string  `json:"level"`
	Active      bool    `json:"active"`
}

// transitionView is the subset of an insight transition the CLI prints.
type transitionView struct {
	InsightID  string  `json:"insight_id"`
	Category   string  `json:"category"`
	Kind       string  `json:"kind"`
	To         string  `json:"to"`
	Confidence float64 `json:"confidence"`
}

func newClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// doJSON sends body (when non-nil) to path and decodes the response into out.
func doJSON(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		reqJSON, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(reqJSON)
	}

	u := serverURL + path
	httpReq, err := http.NewRequest(method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := newClient(30 * time.Second).Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var healthResp HealthResponse
	if err := doJSON(http.MethodGet, "/health", nil, &healthResp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", healthResp.Status)
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)
	return nil
}

// runInsights handles the insights command
func runInsights(cmd *cobra.Command, args []string) error {
	categories, _ := cmd.Flags().GetStringSlice("category")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	limit, _ := cmd.Flags().GetInt("limit")
	all, _ := cmd.Flags().GetBool("all")

	q := url.Values{}
	for _, c := range categories {
		q.Add("category", c)
	}
	if minConfidence > 0 {
		q.Set("min_confidence", fmt.Sprintf("%g", minConfidence))
	}
	q.Set("limit", fmt.Sprintf("%d", limit))
	if all {
		q.Set("active", "false")
	}

	var resp struct {
		Insights []insightView `json:"insights"`
	}
	if err := doJSON(http.MethodGet, "/api/v1/insights?"+q.Encode(), nil, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Insights) == 0 {
		fmt.Fprintln(out, "No insights yet.")
		return nil
	}
	for _, ins := range resp.Insights {
		state := ""
		if !ins.Active {
			state = " (inactive)"
		}
		fmt.Fprintf(out, "[%s] %.2f %s %s%s\n", ins.Level, ins.Confidence, ins.Category, ins.Description, state)
	}
	return nil
}

// runInteract handles the interact command
func runInteract(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content = []byte(args[0])
	}

	typ, _ := cmd.Flags().GetString("type")
	rating, _ := cmd.Flags().GetInt("rating")

	req := interaction.Interaction{
		Type:    interaction.Type(strings.ToUpper(typ)),
		Content: strings.TrimSpace(string(content)),
	}
	if rating != 0 {
		req.Feedback = &interaction.Feedback{Rating: rating}
	}
	if err := req.Validate(); err != nil {
		return err
	}

	var resp struct {
		InteractionID string           `json:"interaction_id"`
		Transitions   []transitionView `json:"transitions"`
	}
	if err := doJSON(http.MethodPost, "/api/v1/interactions", req, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recorded interaction %s\n", resp.InteractionID)
	for _, tr := range resp.Transitions {
		fmt.Fprintf(out, "  %s %s %s -> %s (%.2f)\n", tr.Kind, tr.Category, tr.InsightID, tr.To, tr.Confidence)
	}
	return nil
}

// runReflect handles the reflect command
func runReflect(cmd *cobra.Command, args []string) error {
	var resp struct {
		Insights []reflection.MetaInsight `json:"insights"`
	}
	if err := doJSON(http.MethodPost, "/api/v1/reflection/generate", nil, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Insights) == 0 {
		fmt.Fprintln(out, "Nothing to reflect on yet.")
		return nil
	}
	for _, mi := range resp.Insights {
		fmt.Fprintf(out, "[%s] %.2f %s\n", mi.Type, mi.Confidence, mi.Text)
		for _, rec := range mi.Recommendations {
			fmt.Fprintf(out, "  - %s\n", rec)
		}
	}
	return nil
}

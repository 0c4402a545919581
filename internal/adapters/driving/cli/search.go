package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/core/services"
)

var (
	searchLimit   int
	searchFilters []string
	searchJSON    bool
)

// snippetLength caps the chunk text shown per result.
const snippetLength = 160

var searchCmd = &cobra.Command{
	Use:   "search <source> <query>",
	Short: "Search a source's index",
	Long: `Embeds the query with the configured model and returns the closest
chunks from the source's index. Filters match metadata exactly; list
metadata such as labels matches when it contains the value.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "k", services.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil, "metadata filter key=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errNotConfigured
	}

	filter, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}

	matches, err := searchService.Search(contextOf(cmd), args[0], args[1], driving.SearchOptions{
		Limit:  searchLimit,
		Filter: filter,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, matches)
	}
	outputSearchTable(cmd, matches)
	return nil
}

func parseFilters(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filter := make(map[string]any, len(raw))
	for _, f := range raw {
		key, value, ok := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: filter %q must be key=value", domain.ErrInvalidInput, f)
		}
		filter[key] = strings.TrimSpace(value)
	}
	return filter, nil
}

func outputSearchJSON(cmd *cobra.Command, matches []domain.Match) error {
	if matches == nil {
		matches = []domain.Match{}
	}
	data, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, matches []domain.Match) {
	if len(matches) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, m := range matches {
		// Format: [N] Title - Snippet (Score)
		title, _ := m.Metadata[domain.MetaTitle].(string)
		if title == "" {
			title = m.ID
		}
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, m.Score)
		if url := resultURL(m.Metadata); url != "" {
			cmd.Printf("      %s\n", url)
		}
		if text, _ := m.Metadata[domain.MetaText].(string); text != "" {
			cmd.Printf("      %s\n", snippet(text))
		}
		cmd.Println()
	}
}

func resultURL(md map[string]any) string {
	for _, key := range []string{"ticket_url", "url"} {
		if s, ok := md[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}

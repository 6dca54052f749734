package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/agentcore/pkg/execution"
	"github.com/harun/agentcore/pkg/tool"
)

// ToolName is the name under which the search tool is offered to models.
const ToolName = "searchKnowledgeBase"

const snippetLength = 500

// Hit is a search result formatted for the model.
type Hit struct {
	Rank           int       `json:"rank"`
	Title          string    `json:"title"`
	ContentSnippet string    `json:"contentSnippet"`
	Similarity     float64   `json:"similarity"`
	Type           string    `json:"type,omitempty"`
	CollectionID   string    `json:"collectionId,omitempty"`
	SourceID       string    `json:"sourceId,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

// ToolResult is what the search tool returns to the model. Search failures
// are reported here with Success false so the model can react to them.
type ToolResult struct {
	Success      bool                   `json:"success"`
	Message      string                 `json:"message"`
	Error        string                 `json:"error,omitempty"`
	Query        string                 `json:"query"`
	ResultsCount int                    `json:"resultsCount"`
	Results      []Hit                  `json:"results"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewSearchTool builds the searchKnowledgeBase tool over s.
func NewSearchTool(s Searcher) *tool.Tool {
	return tool.MustNew(ToolName,
		"Search the workspace's knowledge base for relevant information using semantic search. "+
			"Returns documents, content snippets, and relevance scores. Use this when you need information "+
			"from uploaded documents, URLs, or text content.",
		map[string]tool.Param{
			"query": {
				Type:        "string",
				Description: "The search query. Use natural language to describe what information you're looking for.",
			},
			"collectionId": {
				Type:        "string",
				Description: "Limit the search to one collection. Searches all collections when omitted.",
				Optional:    true,
			},
			"limit": {
				Type:        "number",
				Description: fmt.Sprintf("Maximum number of results to return (default: %d, max: %d)", DefaultLimit, MaxLimit),
				Optional:    true,
			},
		},
		func(ctx context.Context, args map[string]interface{}, ec *execution.Context) (interface{}, error) {
			if ec == nil || ec.TenantID == "" {
				return nil, fmt.Errorf("knowledge search requires tenant context")
			}

			query, _ := args["query"].(string)
			collectionID, _ := args["collectionId"].(string)
			limit := 0
			if l, ok := args["limit"].(float64); ok {
				limit = int(l)
			}

			resp, err := s.Search(ctx, ec.TenantID, SearchRequest{
				Query:        query,
				CollectionID: collectionID,
				Limit:        ClampLimit(limit),
			})
			if err != nil {
				log.Warn().Err(err).Str("tenant_id", ec.TenantID).Msg("Knowledge search failed")
				return &ToolResult{
					Success: false,
					Error:   err.Error(),
					Message: "Failed to search knowledge base: " + err.Error(),
					Query:   query,
					Results: []Hit{},
				}, nil
			}

			return formatResults(query, collectionID, resp.Results), nil
		},
	)
}

func formatResults(query, collectionID string, docs []Document) *ToolResult {
	if len(docs) == 0 {
		return &ToolResult{
			Success: true,
			Message: "No relevant information found in the knowledge base for this query.",
			Query:   query,
			Results: []Hit{},
		}
	}

	hits := make([]Hit, 0, len(docs))
	total := 0.0
	for i, d := range docs {
		hits = append(hits, Hit{
			Rank:           i + 1,
			Title:          d.Title,
			ContentSnippet: snippet(d.Content),
			Similarity:     d.Similarity,
			Type:           d.Type,
			CollectionID:   d.CollectionID,
			SourceID:       d.ID,
			CreatedAt:      d.CreatedAt,
		})
		total += d.Similarity
	}

	var searched interface{} = "all"
	if collectionID != "" {
		searched = []string{collectionID}
	}

	return &ToolResult{
		Success:      true,
		Message:      fmt.Sprintf("Found %d relevant document(s) in the knowledge base.", len(hits)),
		Query:        query,
		ResultsCount: len(hits),
		Results:      hits,
		Metadata: map[string]interface{}{
			"searchedCollections": searched,
			"averageSimilarity":   total / float64(len(hits)),
			"timestamp":           time.Now().UTC().Format(time.RFC3339),
		},
	}
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLength {
		return content
	}
	return string(runes[:snippetLength]) + "..."
}

// FormatCitations renders hits as numbered source lines with percentage similarity.
func FormatCitations(hits []Hit) string {
	if len(hits) == 0 {
		return "No sources found."
	}
	lines := make([]string, 0, len(hits))
	for i, h := range hits {
		lines = append(lines, fmt.Sprintf("[%d] %s (similarity: %.0f%%)", i+1, h.Title, h.Similarity*100))
	}
	return strings.Join(lines, "\n")
}

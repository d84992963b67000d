package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// GraphQLConfig points the enrichment client at the GraphQL server.
type GraphQLConfig struct {
	Endpoint string            `mapstructure:"endpoint"`
	Headers  map[string]string `mapstructure:"headers"`
}

// GraphQLClient fetches enrichment data for relay payload construction. The
// inbound event payload is passed through as query variables.
type GraphQLClient struct {
	endpoint string
	headers  map[string]string
	http     *HTTPClient
}

// NewGraphQLClient builds a GraphQLClient reusing the retrying HTTP
// transport.
func NewGraphQLClient(cfg GraphQLConfig, httpClient *HTTPClient) *GraphQLClient {
	return &GraphQLClient{
		endpoint: cfg.Endpoint,
		headers:  cfg.Headers,
		http:     httpClient,
	}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   map[string]interface{} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Fetch executes query with the given variables and returns the data
// mapping to merge into the relay context.
func (c *GraphQLClient) Fetch(ctx context.Context, query string, variables map[string]interface{}) (map[string]interface{}, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	body, err := c.http.do(ctx, http.MethodPost, c.endpoint, c.headers, payload)
	if err != nil {
		return nil, fmt.Errorf("graphql fetch: %w", err)
	}

	var resp graphqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(resp.Errors) > 0 {
		messages := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			messages[i] = e.Message
		}
		return nil, fmt.Errorf("graphql server returned errors: %s", strings.Join(messages, ", "))
	}
	return resp.Data, nil
}

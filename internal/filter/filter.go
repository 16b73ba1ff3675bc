// Package filter evaluates JMESPath queries against captured realtime
// frames for the inspector view.
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/jmespath/go-jmespath"
)

// Apply evaluates a JMESPath expression against a JSON document and
// returns the result re-indented. An empty expression returns the
// document pretty-printed as-is.
func Apply(body string, query string) (string, error) {
	var data interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	if query != "" {
		jp, err := jmespath.Compile(query)
		if err != nil {
			return "", fmt.Errorf("invalid JMESPath expression '%s': %w", query, err)
		}

		data, err = jp.Search(data)
		if err != nil {
			return "", fmt.Errorf("JMESPath search failed: %w", err)
		}
	}

	if data == nil {
		return "null", nil
	}

	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	return string(output), nil
}

// IsValidJMESPath checks if an expression is valid JMESPath syntax
func IsValidJMESPath(expression string) bool {
	_, err := jmespath.Compile(expression)
	return err == nil
}

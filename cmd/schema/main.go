// Command schema regenerates the JSON schema embedded by pkg/config.
// Run from pkg/config via go:generate so the output lands next to the
// go:embed directive that consumes it.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"aidigest/pkg/config"
)

func main() {
	schema, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("failed to generate config schema: %v", err)
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal config schema: %v", err)
	}

	outputPath := "schema.json"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	if err := os.WriteFile(outputPath, data, 0o600); err != nil { //nolint:gosec // schema file is not sensitive
		log.Fatalf("failed to write %s: %v", outputPath, err)
	}

	fmt.Printf("aidigest config schema written to %s\n", outputPath)
}

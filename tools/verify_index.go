// Standalone check that the annotated-signature index for a project actually
// holds points. Usage: go run ./tools [project-root]
package main

import (
	"fmt"
	"os"

	qdrantpb "github.com/qdrant/go-client/qdrant"

	"github.com/jchiru21/tech-debt-assassin/internal/config"
	"github.com/jchiru21/tech-debt-assassin/internal/qdrant"
	"github.com/jchiru21/tech-debt-assassin/internal/retrieval"
	"github.com/jchiru21/tech-debt-assassin/internal/utils"
)

func main() {
	if err := config.LoadFromUserConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
	}

	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	projectID, err := utils.ComputeProjectID(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to compute project id: %v\n", err)
		os.Exit(1)
	}
	collection := retrieval.CollectionName(projectID)

	qc, err := qdrant.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create qdrant client: %v\n", err)
		os.Exit(1)
	}
	defer qc.Close()

	fmt.Printf("Checking collection: %s\n", collection)

	perFile := map[string]int{}
	total := 0
	var offset *qdrantpb.PointId
	limit := uint32(100)

	for {
		points, nextOffset, err := qc.Scroll(collection, limit, offset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error scrolling: %v\n", err)
			break
		}

		total += len(points)
		for _, p := range points {
			perFile[qdrant.StringPayload(p.Payload, "file_path")]++
		}

		if nextOffset == nil || len(points) == 0 {
			break
		}
		offset = nextOffset
	}

	for file, n := range perFile {
		fmt.Printf("  %s: %d signatures\n", file, n)
	}
	fmt.Printf("\n✓ Total indexed signatures: %d\n", total)
}

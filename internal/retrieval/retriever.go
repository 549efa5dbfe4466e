// Package retrieval maintains an optional index of fully-annotated function
// signatures and retrieves the most similar ones as extra examples for a
// repair request. Annotation style tends to cluster: the types a project
// already wrote for similar code are strong evidence for types it is missing.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	qdrantpb "github.com/qdrant/go-client/qdrant"

	"github.com/jchiru21/tech-debt-assassin/internal/config"
	"github.com/jchiru21/tech-debt-assassin/internal/embeddings"
	"github.com/jchiru21/tech-debt-assassin/internal/models"
	"github.com/jchiru21/tech-debt-assassin/internal/qdrant"
	"github.com/jchiru21/tech-debt-assassin/internal/scanner"
	"github.com/jchiru21/tech-debt-assassin/internal/utils"
)

const collectionPrefix = "tda_"

// Enabled reports whether an example index endpoint is configured at all.
func Enabled() bool {
	return config.Get("QDRANT_URL", "qdrant_url") != ""
}

// CollectionName returns the Qdrant collection for a project fingerprint.
func CollectionName(projectID string) string {
	return collectionPrefix + projectID
}

// Retriever is scoped to a single project root.
type Retriever struct {
	qdrant     *qdrant.Client
	embed      *embeddings.Client
	projectID  string
	collection string
}

// New connects the retriever for projectRoot.
func New(projectRoot string) (*Retriever, error) {
	projectID, err := utils.ComputeProjectID(projectRoot)
	if err != nil {
		return nil, err
	}

	qc, err := qdrant.NewClient()
	if err != nil {
		return nil, err
	}

	return &Retriever{
		qdrant:     qc,
		embed:      embeddings.NewClient(),
		projectID:  projectID,
		collection: CollectionName(projectID),
	}, nil
}

func (r *Retriever) Close() error {
	return r.qdrant.Close()
}

// IndexProject embeds every fully-annotated function in the project and
// upserts it into the example collection. Indexing is incremental: files
// whose content hash is unchanged since the last run are skipped.
func (r *Retriever) IndexProject(ctx context.Context, root string, exclude map[string]bool) error {
	result, err := scanner.Scan(root, scanner.Options{Exclude: exclude})
	if err != nil {
		return err
	}

	annotated := make(map[string][]models.FunctionSignature)
	for _, sig := range result.Functions {
		if sig.MissingHints() {
			continue
		}
		annotated[sig.FilePath] = append(annotated[sig.FilePath], sig)
	}

	prevHashes, err := loadFileHashes(r.projectID)
	if err != nil {
		return fmt.Errorf("failed to load file hashes: %w", err)
	}

	currentHashes := make(map[string]string, len(annotated))
	var changed []string
	for path := range annotated {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ Failed to hash %s: %v\n", path, err)
			continue
		}
		hash := utils.HashContent(string(data))
		currentHashes[path] = hash
		if prevHashes[path] != hash {
			changed = append(changed, path)
		}
	}

	fmt.Printf("→ Incremental index: %d changed of %d files with annotated functions\n",
		len(changed), len(annotated))

	for _, path := range changed {
		if err := r.indexFile(ctx, path, annotated[path]); err != nil {
			fmt.Fprintf(os.Stderr, "✗ Error indexing %s: %v\n", path, err)
			delete(currentHashes, path)
		}
	}

	if err := saveFileHashes(r.projectID, currentHashes); err != nil {
		return fmt.Errorf("failed to save file hashes: %w", err)
	}

	fmt.Println("✓ Example index up to date")
	return nil
}

func (r *Retriever) indexFile(ctx context.Context, path string, sigs []models.FunctionSignature) error {
	// Clear stale points so removed functions do not linger. The collection
	// may not exist yet on the first run, so the error is ignored.
	_ = r.qdrant.DeleteByFilePath(r.collection, path)

	texts := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		texts = append(texts, embeddingText(sig))
	}

	vectors, err := r.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return fmt.Errorf("no embedding vectors returned")
	}

	if err := r.qdrant.EnsureCollection(r.collection, uint64(len(vectors[0]))); err != nil {
		return err
	}

	points := make([]*qdrantpb.PointStruct, 0, len(sigs))
	for i, sig := range sigs {
		decl := declLine(sig)
		points = append(points, &qdrantpb.PointStruct{
			Id: &qdrantpb.PointId{
				PointIdOptions: &qdrantpb.PointId_Num{
					Num: pointID(path + "#" + sig.Name + "#" + decl),
				},
			},
			Vectors: &qdrantpb.Vectors{
				VectorsOptions: &qdrantpb.Vectors_Vector{
					Vector: &qdrantpb.Vector{Data: vectors[i]},
				},
			},
			Payload: qdrant.MapToPayload(map[string]interface{}{
				"file_path": path,
				"function":  sig.Name,
				"decl_line": sig.DeclLine,
				"signature": decl,
				"doc":       sig.Doc,
			}),
		})
	}

	fmt.Printf("→ Indexed %s (%d annotated functions)\n", path, len(points))
	return r.qdrant.Upsert(r.collection, points)
}

// SimilarSignatures retrieves up to topK annotated declarations most similar
// to funcSource, rendered ready for prompt inclusion.
func (r *Retriever) SimilarSignatures(ctx context.Context, funcSource string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 5
	}

	vec, err := r.embed.Embed(ctx, funcSource)
	if err != nil {
		return nil, err
	}

	results, err := r.qdrant.Search(r.collection, vec, uint64(topK))
	if err != nil {
		return nil, err
	}

	examples := make([]string, 0, len(results))
	for _, point := range results {
		sigText := qdrant.StringPayload(point.Payload, "signature")
		if sigText == "" {
			continue
		}
		path := qdrant.StringPayload(point.Payload, "file_path")
		line := qdrant.IntPayload(point.Payload, "decl_line")
		examples = append(examples, fmt.Sprintf("# %s:%d\n%s", filepath.Base(path), line, sigText))
	}
	return examples, nil
}

// Clear drops the project's example collection and its local hash state.
func (r *Retriever) Clear() error {
	if err := r.qdrant.DeleteCollection(r.collection); err != nil {
		return err
	}
	return clearFileHashes(r.projectID)
}

func embeddingText(sig models.FunctionSignature) string {
	lines := []string{
		"function: " + sig.Name,
		"signature: " + declLine(sig),
	}
	if sig.Doc != "" {
		lines = append(lines, "doc: "+sig.Doc)
	}
	return strings.Join(lines, "\n")
}

func declLine(sig models.FunctionSignature) string {
	line, _, _ := strings.Cut(sig.Source, "\n")
	return strings.TrimSpace(line)
}

// pointID folds an identity string into the 64-bit numeric ID Qdrant accepts.
func pointID(identity string) uint64 {
	h := sha256.Sum256([]byte(identity))
	return binary.BigEndian.Uint64(h[:8])
}

package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// chunkNamespace scopes the name based UUIDs of index entries
var chunkNamespace = uuid.MustParse("5b0c9a55-2f0d-4c8e-9d42-6f1c2e0b7a31")

// ChunkID returns a stable id for a chunk so that indexing the same
// source again overwrites its previous entries.
func ChunkID(source string, page, chunk int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d#%d", source, page, chunk))).String()
}

// CreateFolder creates path and its parents if needed
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// pretty print
func PrettyPrint(w io.Writer, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return
	}
	fmt.Fprintln(w, string(b))
}

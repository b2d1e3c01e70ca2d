package filestore

import (
	"bufio"
	"os"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

// catalogFile is the on-disk shape of catalog.json: a flat map of ID to
// summary, tombstones included so prune/compaction can find them later.
type catalogFile struct {
	Items map[string]memory.MemoryItemSummary `json:"items"`
}

func loadCatalog(path string) (map[string]memory.MemoryItemSummary, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return make(map[string]memory.MemoryItemSummary), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cf catalogFile
	if err := jsonAPI.NewDecoder(bufio.NewReader(f)).Decode(&cf); err != nil {
		return nil, err
	}
	if cf.Items == nil {
		cf.Items = make(map[string]memory.MemoryItemSummary)
	}
	return cf.Items, nil
}

// saveCatalog writes items to path atomically: tmp file, fsync, rename.
func saveCatalog(path string, items map[string]memory.MemoryItemSummary) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := jsonAPI.NewEncoder(bw).Encode(catalogFile{Items: items}); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

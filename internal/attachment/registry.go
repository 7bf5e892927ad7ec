package attachment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"roomchat/internal/constants"
	"roomchat/internal/models"
)

// FileHandle is what the host hands over when the user picks a file
type FileHandle struct {
	Name string
	Size int64
	// Type is the MIME type reported by the host, possibly empty
	Type string
}

// FromPath builds a FileHandle from a local file
func FromPath(path string) (FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileHandle{}, fmt.Errorf("failed to stat attachment: %w", err)
	}
	if info.IsDir() {
		return FileHandle{}, fmt.Errorf("attachment is a directory: %s", path)
	}
	return FileHandle{Name: filepath.Base(path), Size: info.Size()}, nil
}

// FormatSize renders a byte count the way the composer shows it: plain bytes
// below 1 KB, otherwise KB or MB with one decimal.
func FormatSize(bytes int64) string {
	switch {
	case bytes < constants.BytesPerKilobyte:
		return fmt.Sprintf("%d B", bytes)
	case bytes < constants.BytesPerMegabyte:
		return fmt.Sprintf("%.1f KB", float64(bytes)/constants.BytesPerKilobyte)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/constants.BytesPerMegabyte)
	}
}

// DetectKind returns the reported MIME type, else one inferred from the file
// extension, else the generic binary type.
func DetectKind(name, reported string) string {
	if reported = strings.TrimSpace(reported); reported != "" {
		return reported
	}
	if kind, ok := constants.MimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return kind
	}
	return constants.DefaultMimeType
}

// Batch holds the attachments picked for the next message
type Batch struct {
	mu      sync.Mutex
	nextID  int64
	pending []models.Attachment
}

// NewBatch creates an empty pending batch
func NewBatch() *Batch {
	return &Batch{}
}

// PickFiles normalizes host file handles into descriptors and appends them to
// the batch. Picking nothing is a no-op.
func (b *Batch) PickFiles(files []FileHandle) []models.Attachment {
	if len(files) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	added := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		b.nextID++
		added = append(added, models.Attachment{
			ID:        b.nextID,
			Name:      f.Name,
			SizeLabel: FormatSize(f.Size),
			Kind:      DetectKind(f.Name, f.Type),
		})
	}
	b.pending = append(b.pending, added...)

	out := make([]models.Attachment, len(added))
	copy(out, added)
	return out
}

// Remove drops one pending attachment; unknown ids are ignored
func (b *Batch) Remove(id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, a := range b.pending {
		if a.ID == id {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Take hands the pending attachments over to the caller and empties the batch
func (b *Batch) Take() []models.Attachment {
	b.mu.Lock()
	defer b.mu.Unlock()

	taken := b.pending
	b.pending = nil
	return taken
}

// List returns a copy of the pending attachments
func (b *Batch) List() []models.Attachment {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Attachment, len(b.pending))
	copy(out, b.pending)
	return out
}

// Len returns the number of pending attachments
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Clear discards the pending attachments and restarts id assignment
func (b *Batch) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = nil
	b.nextID = 0
}

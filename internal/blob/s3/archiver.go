package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

// Archiver implements domain.RoundArchiver by serializing a round's event
// journal to JSONL and uploading it to object storage. A round is archived
// once, after its pool has been drained by the final draw.
//
// The reporting database keeps its rows; the archive is the off-system copy.
type Archiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver that uploads through writer and records
// each upload in the audit log. audit may be nil, in which case uploads are
// not audited.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, audit: audit}
}

// ArchiveRound uploads the round's journal to archive/rounds/{address}.jsonl
// and logs the archival event. An empty journal is skipped without error.
func (a *Archiver) ArchiveRound(ctx context.Context, round common.Address, journal []domain.Event) error {
	if len(journal) == 0 {
		return nil
	}

	buf, err := marshalJSONL(journal)
	if err != nil {
		return fmt.Errorf("s3blob: archive round %s marshal: %w", round.Hex(), err)
	}

	path := archivePath(round)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive round %s upload: %w", round.Hex(), err)
	}

	if a.audit == nil {
		return nil
	}
	if err := a.audit.Log(ctx, "archive.round", map[string]any{
		"round":  round.Hex(),
		"path":   path,
		"events": len(journal),
		"at":     time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("s3blob: archive round %s audit log: %w", round.Hex(), err)
	}
	return nil
}

// archivePath builds the S3 key for a round's journal.
//
//	archive/rounds/0xabc...def.jsonl
func archivePath(round common.Address) string {
	return fmt.Sprintf("archive/rounds/%s.jsonl", round.Hex())
}

// marshalJSONL serialises events as newline-delimited JSON, one compact line
// per event.
func marshalJSONL(events []domain.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return nil, fmt.Errorf("jsonl encode event %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.RoundArchiver = (*Archiver)(nil)

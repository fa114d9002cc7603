package domain

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/common"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// RoundArchiver moves a drained round's event journal to cold storage.
type RoundArchiver interface {
	ArchiveRound(ctx context.Context, round common.Address, journal []Event) error
}

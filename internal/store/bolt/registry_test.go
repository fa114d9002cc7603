package bolt

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Dimo99/NFT-Lotary/internal/domain"
)

func openTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, path
}

func testRecord(addr common.Address) domain.RoundRecord {
	return domain.RoundRecord{
		Address:     addr,
		Operator:    common.HexToAddress("0x01"),
		Name:        "Round",
		Symbol:      "RND",
		StartBlock:  10,
		EndBlock:    20,
		TicketPrice: big.NewInt(100),
		BaseURI:     "ipfs://tickets/",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestRegistryPutGet(t *testing.T) {
	r, _ := openTestRegistry(t)
	ctx := context.Background()
	addr := common.HexToAddress("0xaa")

	rec := testRecord(addr)
	require.NoError(t, r.Put(ctx, rec))

	got, err := r.Get(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, rec.Address, got.Address)
	require.Equal(t, rec.Operator, got.Operator)
	require.Equal(t, rec.Name, got.Name)
	require.Equal(t, rec.StartBlock, got.StartBlock)
	require.Equal(t, rec.EndBlock, got.EndBlock)
	require.Equal(t, rec.TicketPrice, got.TicketPrice)
	require.Equal(t, rec.BaseURI, got.BaseURI)
	require.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	_, err = r.Get(ctx, common.HexToAddress("0xbb"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistryHasAndAddresses(t *testing.T) {
	r, _ := openTestRegistry(t)
	ctx := context.Background()

	addrs := []common.Address{
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
		common.HexToAddress("0x03"),
	}
	for _, a := range addrs {
		require.NoError(t, r.Put(ctx, testRecord(a)))
	}

	has, err := r.Has(ctx, addrs[1])
	require.NoError(t, err)
	require.True(t, has)

	has, err = r.Has(ctx, common.HexToAddress("0x99"))
	require.NoError(t, err)
	require.False(t, has)

	listed, err := r.Addresses(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, addrs, listed)
}

func TestRegistrySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	addr := common.HexToAddress("0xaa")

	r, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r.Put(context.Background(), testRecord(addr)))
	require.NoError(t, r.Close())

	r, err = Open(path)
	require.NoError(t, err)
	defer r.Close()

	has, err := r.Has(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, has)
}

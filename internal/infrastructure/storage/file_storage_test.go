package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveReadExists(t *testing.T) {
	store := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	assert.False(t, store.Exists(ctx, "vouchers/payroll/r1.xlsx"))

	require.NoError(t, store.Save(ctx, "vouchers/payroll/r1.xlsx", []byte("first")))
	require.NoError(t, store.Save(ctx, "vouchers/payroll/r1.xlsx", []byte("second")))

	assert.True(t, store.Exists(ctx, "vouchers/payroll/r1.xlsx"))
	assert.False(t, store.Exists(ctx, "vouchers/payroll"))
	assert.False(t, store.Exists(ctx, "vouchers/payroll/r1.xlsx.tmp"))

	content, err := store.Read(ctx, "vouchers/payroll/r1.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestLocalFileStorage_RejectsEscapingPaths(t *testing.T) {
	store := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, "../outside.txt", []byte("x")))
	_, err := store.Read(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.False(t, store.Exists(ctx, "../outside.txt"))
}

package injection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessHandle_CloseIsIdempotent(t *testing.T) {
	fake := newFakeOS()
	proc, err := openProcess(fake, 42, AccessVMRead)
	require.NoError(t, err)

	assert.Equal(t, uint32(42), proc.PID())
	require.NoError(t, proc.Close())
	require.NoError(t, proc.Close())
	require.NoError(t, proc.Close())

	assert.Equal(t, 1, fake.countOf("close_handle"))
}

func TestProcessHandle_RawAfterClose(t *testing.T) {
	fake := newFakeOS()
	proc, err := openProcess(fake, 42, AccessVMRead)
	require.NoError(t, err)

	raw, err := proc.Raw()
	require.NoError(t, err)
	assert.NotZero(t, raw)

	require.NoError(t, proc.Close())

	_, err = proc.Raw()
	assert.ErrorIs(t, err, errClosed)
}

func TestProcessHandle_OpenFailureKind(t *testing.T) {
	fake := newFakeOS()
	fake.openErr = errors.New("gone")

	_, err := openProcess(fake, 42, AccessVMRead)

	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTargetUnreachable, kind)
}

func TestRemoteAllocation_FreeIsIdempotent(t *testing.T) {
	fake := newFakeOS()
	region := &RemoteAllocation{os: fake, proc: 1, base: 0x1000, size: 64}

	require.NoError(t, region.free())
	require.NoError(t, region.free())

	assert.Equal(t, 1, fake.countOf("virtual_free"))
	assert.Equal(t, []uintptr{0x1000}, fake.freed)
}

func TestRemoteAllocation_PersistentIsNeverFreed(t *testing.T) {
	fake := newFakeOS()
	region := &RemoteAllocation{os: fake, proc: 1, base: 0x1000, size: 64}
	region.markPersistent()

	require.NoError(t, region.free())

	assert.Zero(t, fake.countOf("virtual_free"))
}

func TestRemoteAllocation_Accessors(t *testing.T) {
	region := &RemoteAllocation{base: 0x2000, size: 128}

	assert.Equal(t, uintptr(0x2000), region.Base())
	assert.Equal(t, uintptr(128), region.Size())
}

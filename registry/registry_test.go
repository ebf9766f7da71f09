package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	u1 := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	u2 := uuid.MustParse("ffeeddcc-bbaa-9988-7766-554433221100")

	require.NoError(t, r.Register(1<<16, u1))
	require.NoError(t, r.Register(1<<16+1, u2))
	require.Equal(t, 2, r.Len())

	require.Equal(t, int32(1<<16), r.LookupUUID(u1))
	require.Equal(t, int32(1<<16+1), r.LookupUUID(u2))

	got, ok := r.UUID(1 << 16)
	require.True(t, ok)
	require.Equal(t, u1, got)
}

func TestLookupUnknown(t *testing.T) {
	r := New()
	require.Equal(t, TypeUnknown, r.LookupUUID(uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")))

	_, ok := r.UUID(7)
	require.False(t, ok)
}

func TestRegisterRejects(t *testing.T) {
	r := New()
	u := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	require.NoError(t, r.Register(5, u))

	require.ErrorIs(t, r.Register(5, uuid.MustParse("ffeeddcc-bbaa-9988-7766-554433221100")), ErrDuplicateType)
	require.ErrorIs(t, r.Register(6, u), ErrDuplicateUUID)
	require.ErrorIs(t, r.Register(-2, uuid.MustParse("11111111-2222-3333-4444-555555555555")), ErrNegativeType)
	require.ErrorIs(t, r.Register(7, uuid.Nil), ErrNilUUID)
}

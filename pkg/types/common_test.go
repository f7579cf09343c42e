package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileID(t *testing.T) {
	u := uuid.New()

	tests := []struct {
		name       string
		input      string
		wantNative bool
	}{
		{name: "Canonical UUID", input: u.String(), wantNative: true},
		{name: "Arbitrary String", input: "an_arbitrary_id", wantNative: false},
		{name: "Empty", input: "", wantNative: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseFileID(tt.input)
			assert.Equal(t, tt.wantNative, ok)
			assert.Equal(t, tt.wantNative, id.IsNative())
		})
	}
}

func TestFileID_ZeroAndString(t *testing.T) {
	var zero FileID
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", zero.String())

	raw := RawFileID("an_arbitrary_id")
	assert.False(t, raw.IsZero())
	assert.False(t, raw.IsNative())
	assert.Equal(t, "an_arbitrary_id", raw.String())

	id := NewFileID()
	u, ok := id.UUID()
	require.True(t, ok)
	assert.Equal(t, u.String(), id.String())

	// 同一个 uuid 两种构造方式应当相等
	parsed, ok := ParseFileID(u.String())
	require.True(t, ok)
	assert.Equal(t, id, parsed)
}

func TestByteRange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       ByteRange
		wantErr bool
		wantLen int64
	}{
		{name: "Bounded", r: NewRange(2, 4), wantLen: 3},
		{name: "Single Byte", r: NewRange(5, 5), wantLen: 1},
		{name: "Open Ended", r: From(3), wantLen: -1},
		{name: "End Before Start", r: NewRange(4, 2), wantErr: true},
		{name: "Negative Start", r: From(-1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, tt.r.Len())
		})
	}
}

func TestFileInfo_NumChunks(t *testing.T) {
	assert.Equal(t, int64(0), (&FileInfo{Length: 0, ChunkSize: 4}).NumChunks())
	assert.Equal(t, int64(1), (&FileInfo{Length: 4, ChunkSize: 4}).NumChunks())
	assert.Equal(t, int64(3), (&FileInfo{Length: 11, ChunkSize: 4}).NumChunks())
	assert.True(t, ModeAppend.IsWrite())
	assert.False(t, ModeRead.IsWrite())
}

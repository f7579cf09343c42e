package service

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	gsrpc "gridstream/pkg/api/gsrpc/v1"
)

// MockUploadStream 模拟客户端流式发送
type MockUploadStream struct {
	Frames []*anypb.Any
	cursor int
}

func (m *MockUploadStream) Recv() (*anypb.Any, error) {
	if m.cursor >= len(m.Frames) {
		return nil, io.EOF
	}
	f := m.Frames[m.cursor]
	m.cursor++
	return f, nil
}

// MockDownloadStream 捕获服务端发送的帧
type MockDownloadStream struct {
	Sent [][]byte
	Err  error
}

func (m *MockDownloadStream) Send(b *wrapperspb.BytesValue) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, b.GetValue())
	return nil
}

func dataFrame(t *testing.T, s string) *anypb.Any {
	t.Helper()
	a, err := gsrpc.DataFrame([]byte(s))
	require.NoError(t, err)
	return a
}

func TestGrpcStreamReader_ConcatenatesFrames(t *testing.T) {
	stream := &MockUploadStream{Frames: []*anypb.Any{
		dataFrame(t, "hello"),
		dataFrame(t, ""),
		dataFrame(t, " world"),
	}}
	got, err := io.ReadAll(NewGrpcStreamReader(stream))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestGrpcStreamReader_SmallBuffer(t *testing.T) {
	r := NewGrpcStreamReader(&MockUploadStream{Frames: []*anypb.Any{dataFrame(t, "abcdef")}})
	p := make([]byte, 4)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(p[:n]))
	n, err = r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(p[:n]))
	_, err = r.Read(p)
	assert.Equal(t, io.EOF, err)
}

func TestGrpcStreamReader_OptionsAfterData(t *testing.T) {
	opts, err := gsrpc.OptionsFrame(map[string]any{"filename": "late"})
	require.NoError(t, err)
	r := NewGrpcStreamReader(&MockUploadStream{Frames: []*anypb.Any{dataFrame(t, "x"), opts}})

	_, err = io.ReadAll(r)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGrpcStreamWriter(t *testing.T) {
	stream := &MockDownloadStream{}
	w := NewGrpcStreamWriter(stream)
	n, err := w.Write([]byte("chunk"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, [][]byte{[]byte("chunk")}, stream.Sent)

	stream.Err = errors.New("client gone")
	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, stream.Err)
}

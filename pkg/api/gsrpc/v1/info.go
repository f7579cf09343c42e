package gsrpcv1

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"gridstream/pkg/types"
)

// InfoToStruct 把文件信息编码成 Upload 的响应
func InfoToStruct(info *types.FileInfo) (*structpb.Struct, error) {
	m := map[string]any{
		"_id":         info.ID.String(),
		"native":      info.ID.IsNative(),
		"root":        info.Root,
		"filename":    info.Filename,
		"contentType": info.ContentType,
		"length":      info.Length,
		"chunkSize":   info.ChunkSize,
		"uploadDate":  info.UploadDate.UTC().Format(time.RFC3339Nano),
	}
	if len(info.Metadata) > 0 {
		m["metadata"] = info.Metadata
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode file info: %w", err)
	}
	return s, nil
}

// InfoFromStruct 是 InfoToStruct 的逆操作。数值经过 JSON 语义变成 float64。
func InfoFromStruct(s *structpb.Struct) (*types.FileInfo, error) {
	fields := s.GetFields()
	info := &types.FileInfo{
		Root:        fields["root"].GetStringValue(),
		Filename:    fields["filename"].GetStringValue(),
		ContentType: fields["contentType"].GetStringValue(),
		Length:      int64(fields["length"].GetNumberValue()),
		ChunkSize:   int(fields["chunkSize"].GetNumberValue()),
	}

	rawID := fields["_id"].GetStringValue()
	if fields["native"].GetBoolValue() {
		id, ok := types.ParseFileID(rawID)
		if !ok {
			return nil, fmt.Errorf("decode file info: bad native id %q", rawID)
		}
		info.ID = id
	} else {
		info.ID = types.RawFileID(rawID)
	}

	if d := fields["uploadDate"].GetStringValue(); d != "" {
		t, err := time.Parse(time.RFC3339Nano, d)
		if err != nil {
			return nil, fmt.Errorf("decode file info: %w", err)
		}
		info.UploadDate = t
	}
	if md := fields["metadata"].GetStructValue(); md != nil {
		info.Metadata = md.AsMap()
	}
	return info, nil
}

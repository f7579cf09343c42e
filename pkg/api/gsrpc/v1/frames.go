package gsrpcv1

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var ErrUnknownFrame = errors.New("unknown upload frame")

// OptionsFrame 包装 Upload 的第一帧
func OptionsFrame(opts map[string]any) (*anypb.Any, error) {
	s, err := structpb.NewStruct(opts)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	return anypb.New(s)
}

// DataFrame 包装一块数据
func DataFrame(p []byte) (*anypb.Any, error) {
	return anypb.New(wrapperspb.Bytes(p))
}

// Frame 是解开后的 Upload 帧，二者恰有一个非空
type Frame struct {
	Options *structpb.Struct
	Data    *wrapperspb.BytesValue
}

func UnpackFrame(a *anypb.Any) (Frame, error) {
	switch {
	case a.MessageIs((*structpb.Struct)(nil)):
		s := new(structpb.Struct)
		if err := a.UnmarshalTo(s); err != nil {
			return Frame{}, err
		}
		return Frame{Options: s}, nil
	case a.MessageIs((*wrapperspb.BytesValue)(nil)):
		b := new(wrapperspb.BytesValue)
		if err := a.UnmarshalTo(b); err != nil {
			return Frame{}, err
		}
		return Frame{Data: b}, nil
	}
	return Frame{}, fmt.Errorf("%w: %s", ErrUnknownFrame, a.GetTypeUrl())
}

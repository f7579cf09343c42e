package grid

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"gridstream/pkg/event"
	"gridstream/pkg/types"
)

// Options 是创建流 / 查询文件时可识别的全部选项
type Options struct {
	// ID 对应 "_id"：uuid / FileID 原样使用，字符串先尝试解析，失败则作为原始 ID 透传
	ID          any
	Filename    string
	Mode        types.Mode
	ContentType string
	Root        string
	// Limit 是写队列的软上限，0 表示不限
	Limit     int
	Range     *types.ByteRange
	ChunkSize int
	Metadata  map[string]any
	// ImmediateDestroySoon 为 true 时 DestroySoon 直接丢弃队列，否则先刷完再销毁
	ImmediateDestroySoon bool
}

// Filename 是只指定文件名的简写
func Filename(name string) Options { return Options{Filename: name} }

// Lookup 把一个 "id 或文件名" 的字符串转成选项：能解析成原生 ID 就按 ID 查，否则按文件名
func Lookup(s string) Options {
	if id, ok := types.ParseFileID(s); ok {
		return Options{ID: id}
	}
	return Options{Filename: s}
}

// OptionsFromMap 解析映射形式的选项 (RPC / CLI 使用)。
// 数值可以是任意整数类型或 float64 (来自 JSON / structpb)。
func OptionsFromMap(m map[string]any) (Options, error) {
	var o Options
	for k, v := range m {
		if v == nil {
			continue
		}
		switch k {
		case "_id", "id":
			o.ID = v
		case "filename":
			s, ok := v.(string)
			if !ok {
				return o, fmt.Errorf("option %q: want string, got %T", k, v)
			}
			o.Filename = s
		case "mode":
			s, ok := v.(string)
			if !ok {
				return o, fmt.Errorf("option %q: want string, got %T", k, v)
			}
			o.Mode = types.Mode(s)
		case "content_type", "contentType":
			s, ok := v.(string)
			if !ok {
				return o, fmt.Errorf("option %q: want string, got %T", k, v)
			}
			o.ContentType = s
		case "root":
			s, ok := v.(string)
			if !ok {
				return o, fmt.Errorf("option %q: want string, got %T", k, v)
			}
			o.Root = s
		case "limit":
			n, err := toInt64(k, v)
			if err != nil {
				return o, err
			}
			o.Limit = int(n)
		case "chunkSize", "chunk_size":
			n, err := toInt64(k, v)
			if err != nil {
				return o, err
			}
			o.ChunkSize = int(n)
		case "range":
			r, err := rangeFromMap(v)
			if err != nil {
				return o, err
			}
			o.Range = r
		case "immediateDestroySoon":
			b, ok := v.(bool)
			if !ok {
				return o, fmt.Errorf("option %q: want bool, got %T", k, v)
			}
			o.ImmediateDestroySoon = b
		case "metadata":
			md, ok := v.(map[string]any)
			if !ok {
				return o, fmt.Errorf("option %q: want object, got %T", k, v)
			}
			o.Metadata = md
		}
	}
	return o, nil
}

// Map 是 OptionsFromMap 的逆操作，只输出已设置的字段
func (o Options) Map() map[string]any {
	m := make(map[string]any)
	if id := resolveID(o.ID); !id.IsZero() {
		m["_id"] = id.String()
	}
	if o.Filename != "" {
		m["filename"] = o.Filename
	}
	if o.Mode != "" {
		m["mode"] = string(o.Mode)
	}
	if o.ContentType != "" {
		m["content_type"] = o.ContentType
	}
	if o.Root != "" {
		m["root"] = o.Root
	}
	if o.Limit > 0 {
		m["limit"] = o.Limit
	}
	if o.ChunkSize > 0 {
		m["chunkSize"] = o.ChunkSize
	}
	if o.Range != nil {
		r := map[string]any{"startPos": o.Range.StartPos}
		if o.Range.Bounded {
			r["endPos"] = o.Range.EndPos
		}
		m["range"] = r
	}
	if len(o.Metadata) > 0 {
		m["metadata"] = o.Metadata
	}
	if o.ImmediateDestroySoon {
		m["immediateDestroySoon"] = true
	}
	return m
}

func rangeFromMap(v any) (*types.ByteRange, error) {
	rm, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("option \"range\": want object, got %T", v)
	}
	var r types.ByteRange
	if s, ok := rm["startPos"]; ok && s != nil {
		n, err := toInt64("range.startPos", s)
		if err != nil {
			return nil, err
		}
		r.StartPos = n
	}
	if e, ok := rm["endPos"]; ok && e != nil {
		n, err := toInt64("range.endPos", e)
		if err != nil {
			return nil, err
		}
		r.EndPos = n
		r.Bounded = true
	}
	return &r, nil
}

func toInt64(key string, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("option %q: %v is not an integer", key, n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("option %q: want number, got %T", key, v)
}

// resolveID 把 "_id" 选项规整成 FileID，解析失败时退化为原始值
func resolveID(v any) types.FileID {
	switch id := v.(type) {
	case nil:
		return types.FileID{}
	case types.FileID:
		return id
	case *types.FileID:
		if id == nil {
			return types.FileID{}
		}
		return *id
	case uuid.UUID:
		return types.FromUUID(id)
	case string:
		return idFromString(id)
	default:
		return idFromString(fmt.Sprint(id))
	}
}

func idFromString(s string) types.FileID {
	if s == "" {
		return types.FileID{}
	}
	if id, ok := types.ParseFileID(s); ok {
		return id
	}
	return types.RawFileID(s)
}

// StreamOption 配置单个流
type StreamOption func(*streamConfig)

type streamConfig struct {
	hooks []event.Hooks
}

// Hooks 在流启动之前挂上，保证不会错过 open 等早期事件
type Hooks = event.Hooks

func WithHooks(h Hooks) StreamOption {
	return func(c *streamConfig) { c.hooks = append(c.hooks, h) }
}

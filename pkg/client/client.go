package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gsrpc "gridstream/pkg/api/gsrpc/v1"
	"gridstream/pkg/grid"
	"gridstream/pkg/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// FrameSize 是上传时每个数据帧的大小
const FrameSize = 64 * 1024

// GSClient 封装了与 gridstream 服务端的连接
type GSClient struct {
	conn *grpc.ClientConn
	File gsrpc.FileServiceClient
}

// NewGSClient 创建并初始化客户端；连接在后台建立，网络不通不会在这里报错
func NewGSClient(addr string, extra ...grpc.DialOption) (*GSClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(64*1024*1024),
			grpc.MaxCallSendMsgSize(64*1024*1024),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	conn, err := grpc.NewClient(addr, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}
	return &GSClient{conn: conn, File: gsrpc.NewFileServiceClient(conn)}, nil
}

// Upload 先发选项帧，再把 r 切成 FrameSize 的数据帧发送，返回服务端关闭后的文件信息
func (c *GSClient) Upload(ctx context.Context, opts grid.Options, r io.Reader) (*types.FileInfo, error) {
	stream, err := c.File.Upload(ctx)
	if err != nil {
		return nil, err
	}

	first, err := gsrpc.OptionsFrame(opts.Map())
	if err != nil {
		return nil, err
	}
	if err := stream.Send(first); err != nil {
		return nil, fmt.Errorf("send options: %w", err)
	}

	buf := make([]byte, FrameSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			frame, err := gsrpc.DataFrame(buf[:n])
			if err != nil {
				return nil, err
			}
			if err := stream.Send(frame); err != nil {
				// 服务端提前结束时真正的错误在 CloseAndRecv 里
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("send data: %w", err)
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return nil, rerr
		}
	}

	reply, err := stream.CloseAndRecv()
	if err != nil {
		return nil, err
	}
	return gsrpc.InfoFromStruct(reply)
}

// Download 把文件 (或 opts.Range 指定的区间) 写入 w
func (c *GSClient) Download(ctx context.Context, opts grid.Options, w io.Writer) (int64, error) {
	req, err := structpb.NewStruct(opts.Map())
	if err != nil {
		return 0, fmt.Errorf("encode options: %w", err)
	}
	stream, err := c.File.Download(ctx, req)
	if err != nil {
		return 0, err
	}

	var total int64
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(msg.GetValue())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}

func (c *GSClient) Exist(ctx context.Context, opts grid.Options) (bool, error) {
	req, err := structpb.NewStruct(opts.Map())
	if err != nil {
		return false, fmt.Errorf("encode options: %w", err)
	}
	resp, err := c.File.Exist(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.GetValue(), nil
}

func (c *GSClient) Remove(ctx context.Context, opts grid.Options) error {
	req, err := structpb.NewStruct(opts.Map())
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = c.File.Remove(ctx, req)
	return err
}

// Close 关闭底层连接
func (c *GSClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

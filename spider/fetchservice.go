package spider

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/corpix/uarand"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type FetchType int

const (
	BaseFetchType FetchType = iota
	BrowserFetchType
)

type Fetcher interface {
	/*
	   输入一个上下文和一个请求，输出一个字节数组和一个错误

	   该方法用于发起请求并将响应体转换为utf-8编码后返回
	*/
	Get(ctx context.Context, req *Request) ([]byte, error)
}

/*
输入一个FetchType类型的参数，输出一个Fetcher接口类型的实例

该方法用于创建一个Fetcher接口类型的实例，根据输入的FetchType类型参数选择不同的实现方式，返回对应的Fetcher接口类型的实例
*/
func NewFetchService(typ FetchType) Fetcher {
	switch typ {
	case BaseFetchType:
		return &baseFetch{}
	case BrowserFetchType:
		return &browserFetch{}
	default:
		return &browserFetch{}
	}
}

// 根据配置中的采集器名称返回采集器类型，未知名称按browser处理
func ParseFetchType(name string) FetchType {
	switch name {
	case "base":
		return BaseFetchType
	default:
		return BrowserFetchType
	}
}

type baseFetch struct{}

/*
输入一个上下文和一个请求，输出一个字节数组和一个错误

该方法用于发送HTTP GET请求并获取响应，若响应状态码不为200，则返回错误，否则将响应体转换为UTF-8编码，并返回响应体的字节数组和nil错误
*/
func (*baseFetch) Get(ctx context.Context, req *Request) ([]byte, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Url, nil)
	if err != nil {
		return nil, fmt.Errorf("get url failed:%w", err)
	}

	client := &http.Client{}
	if req.Task != nil {
		client.Timeout = req.Task.Timeout
	}

	resp, err := client.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error status code:%d", resp.StatusCode)
	}

	return readUTF8(resp.Body, resp.Header.Get("Content-Type"))
}

type browserFetch struct{}

/*
输入一个上下文和一个请求，输出一个字节数组和一个错误

该方法用于发送模拟浏览器的get请求，设置代理服务器、随机User-Agent和Cookie，检测编码并转换为utf-8
*/
func (b *browserFetch) Get(ctx context.Context, request *Request) ([]byte, error) {
	task := request.Task

	client := &http.Client{
		Timeout: task.Timeout,
	}

	if task.Proxy != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = task.Proxy
		client.Transport = transport
	}

	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, request.Url, nil)
	if err != nil {
		return nil, fmt.Errorf("get url failed:%w", err)
	}

	if len(task.Cookie) > 0 {
		req.Header.Set("Cookie", task.Cookie)
	}

	req.Header.Set("User-Agent", uarand.GetRandom())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error status code:%d", resp.StatusCode)
	}

	return readUTF8(resp.Body, resp.Header.Get("Content-Type"))
}

func readUTF8(body io.Reader, contentType string) ([]byte, error) {
	bodyReader := bufio.NewReader(body)
	e := DeterminEncoding(bodyReader, contentType)
	utf8Reader := transform.NewReader(bodyReader, e.NewDecoder())

	return io.ReadAll(utf8Reader)
}

/*
输入一个带缓冲的读取器和响应的Content-Type，输出检测到的编码

结合Content-Type与前1024字节推断网页编码，内容不足1024字节时使用已读到的部分推断
*/
func DeterminEncoding(r *bufio.Reader, contentType string) encoding.Encoding {
	bytes, err := r.Peek(1024)

	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		zap.L().Error("fetch failed", zap.Error(err))

		return unicode.UTF8
	}

	e, _, _ := charset.DetermineEncoding(bytes, contentType)

	return e
}

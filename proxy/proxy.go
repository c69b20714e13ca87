package proxy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

var ErrEmptyProxy = errors.New("proxy url list is empty")

// 与http.Transport.Proxy签名一致的代理选择函数
type ProxyFunc func(*http.Request) (*url.URL, error)

type roundRobinSwitcher struct {
	proxyURLs []*url.URL
	index     uint32
}

// 按轮询顺序为每个请求挑选一个代理地址，可并发调用
func (r *roundRobinSwitcher) GetProxy(_ *http.Request) (*url.URL, error) {
	if len(r.proxyURLs) == 0 {
		return nil, ErrEmptyProxy
	}
	index := atomic.AddUint32(&r.index, 1) - 1
	return r.proxyURLs[index%uint32(len(r.proxyURLs))], nil
}

/*
输入一个或多个代理地址，输出一个代理选择函数和一个错误

代理地址必须带有协议和主机，例如 http://127.0.0.1:8888，任何一个地址不合法都会返回错误
*/
func RoundRobinProxySwitcher(proxyURLs ...string) (ProxyFunc, error) {
	if len(proxyURLs) < 1 {
		return nil, ErrEmptyProxy
	}
	urls := make([]*url.URL, len(proxyURLs))
	for i, u := range proxyURLs {
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", u, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("proxy %q: scheme and host are required", u)
		}
		urls[i] = parsed
	}
	return (&roundRobinSwitcher{proxyURLs: urls}).GetProxy, nil
}

/*
输入配置文件中逗号分隔的代理列表，输出一个代理选择函数和一个错误

列表为空时返回nil函数和nil错误，表示直连
*/
func FromList(list string) (ProxyFunc, error) {
	var urls []string
	for _, u := range strings.Split(list, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, nil
	}
	return RoundRobinProxySwitcher(urls...)
}

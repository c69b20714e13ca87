package filestorage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/dszqbsm/quotecrawler/spider"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var metaKeys = []string{"_task", "_rule", "_url", "_time"}

// 把数据单元以feed的形式写入文件
type FileStore struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	closer io.Closer

	csv     *csv.Writer
	header  []string // csv最近一次写出的表头
	yaml    *yaml.Encoder
	written int

	options
}

/*
输入一个输出流和配置选项，输出一个FileStore和一个错误

格式未指定时使用jsonl
*/
func New(w io.Writer, opts ...Option) (*FileStore, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.format == "" {
		options.format = FormatJSONL
	}

	s := &FileStore{buf: bufio.NewWriter(w), options: options}
	switch options.format {
	case FormatJSONL:
	case FormatCSV:
		s.csv = csv.NewWriter(s.buf)
	case FormatYAML:
		s.yaml = yaml.NewEncoder(s.buf)
		s.yaml.SetIndent(2)
	default:
		return nil, fmt.Errorf("unsupported feed format %q", options.format)
	}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

// 创建或截断path指向的文件，未指定格式时按扩展名推断
func Open(path string, opts ...Option) (*FileStore, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.format == "" {
		opts = append(opts, WithFormat(FormatFromPath(path)))
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	s, err := New(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// 根据扩展名推断格式，无法识别时为jsonl
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSONL
	}
}

/*
输入一个或多个数据单元，输出一个错误

无效的数据单元被跳过，错误合并后返回
*/
func (s *FileStore) Save(datas ...*spider.DataCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs error
	for _, cell := range datas {
		if cell == nil {
			errs = multierr.Append(errs, spider.ErrInvalidCell)
			continue
		}
		rec, err := cell.GetRecord()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := s.write(cell, rec); err != nil {
			s.logger.Error("write feed failed", zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		s.written++
	}
	return errs
}

func (s *FileStore) write(cell *spider.DataCell, rec map[string]interface{}) error {
	switch s.format {
	case FormatCSV:
		return s.writeCSV(cell, rec)
	case FormatYAML:
		return s.yaml.Encode(s.record(cell, rec))
	default:
		b, err := json.Marshal(s.record(cell, rec))
		if err != nil {
			return err
		}
		if _, err := s.buf.Write(b); err != nil {
			return err
		}
		return s.buf.WriteByte('\n')
	}
}

// 记录字段加上可选的元数据字段
func (s *FileStore) record(cell *spider.DataCell, rec map[string]interface{}) map[string]interface{} {
	if !s.meta {
		return rec
	}
	out := make(map[string]interface{}, len(rec)+len(metaKeys))
	for k, v := range rec {
		out[k] = v
	}
	for i, v := range metaValues(cell) {
		out[metaKeys[i]] = v
	}
	return out
}

func metaValues(cell *spider.DataCell) []string {
	task, _ := cell.GetTaskName()
	rule, _ := cell.GetRuleName()
	u, _ := cell.Data["Url"].(string)
	ts, _ := cell.Data["Time"].(string)
	return []string{task, rule, u, ts}
}

/*
输入数据单元和记录，输出一个错误

表头取规则的字段列表，字段列表变化时重新写一行表头；列表类型的值以逗号连接，nil写为空
*/
func (s *FileStore) writeCSV(cell *spider.DataCell, rec map[string]interface{}) error {
	fields := cell.ItemFields()
	if len(fields) == 0 {
		fields = make([]string, 0, len(rec))
		for k := range rec {
			fields = append(fields, k)
		}
		sort.Strings(fields)
	}

	header := fields
	if s.meta {
		header = append(append([]string{}, fields...), metaKeys...)
	}
	if !slices.Equal(header, s.header) {
		if err := s.csv.Write(header); err != nil {
			return err
		}
		s.header = header
	}

	row := make([]string, 0, len(header))
	for _, f := range fields {
		row = append(row, csvValue(rec[f]))
	}
	if s.meta {
		row = append(row, metaValues(cell)...)
	}
	return s.csv.Write(row)
}

func csvValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, csvValue(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

// 已写出的记录数
func (s *FileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *FileStore) flush() error {
	if s.csv != nil {
		s.csv.Flush()
		if err := s.csv.Error(); err != nil {
			return err
		}
	}
	return s.buf.Flush()
}

// 刷新缓冲并关闭底层文件
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.flush()
	if s.yaml != nil {
		err = multierr.Append(err, s.yaml.Close())
		err = multierr.Append(err, s.buf.Flush())
	}
	if s.closer != nil {
		err = multierr.Append(err, s.closer.Close())
	}
	return err
}

package sqlstorage

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/dszqbsm/quotecrawler/spider"
	"github.com/dszqbsm/quotecrawler/sqldb"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// 把数据单元分批写入SQL数据库，每个任务一张表
type SqlStore struct {
	mu         sync.Mutex
	dataDocker []*spider.DataCell   // 待写入的数据单元，同一批次属于同一张表
	db         sqldb.DBer
	Table      map[string]struct{} // 已创建的表
	options
}

func New(opts ...Option) (*SqlStore, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	db, err := sqldb.New(
		sqldb.WithConnURL(options.sqlURL),
		sqldb.WithDriver(options.driver),
		sqldb.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}
	return newStore(db, options), nil
}

func newStore(db sqldb.DBer, options options) *SqlStore {
	if options.BatchCount < 1 {
		options.BatchCount = 1
	}
	return &SqlStore{
		db:      db,
		Table:   make(map[string]struct{}),
		options: options,
	}
}

/*
输入一个或多个数据单元，输出一个错误

首次遇到某个任务时按字段列表建表；缓冲区中的数据属于另一张表或另一条规则时先写入已有数据。
缺少Task、Rule或Data的数据单元被丢弃，错误合并后返回
*/
func (s *SqlStore) Save(dataCells ...*spider.DataCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs error
	for _, cell := range dataCells {
		if err := validate(cell); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		name, _ := cell.GetTableName()
		if _, ok := s.Table[name]; !ok {
			err := s.db.CreateTable(sqldb.TableData{
				TableName:   name,
				ColumnNames: getFields(cell),
				AutoKey:     true,
			})
			if err != nil {
				s.logger.Error("create table failed", zap.String("table", name), zap.Error(err))
				errs = multierr.Append(errs, err)
				continue
			}
			s.Table[name] = struct{}{}
		}

		if len(s.dataDocker) > 0 && !sameBatch(s.dataDocker[0], cell) {
			errs = multierr.Append(errs, s.flush())
		}
		s.dataDocker = append(s.dataDocker, cell)
		if len(s.dataDocker) >= s.BatchCount {
			errs = multierr.Append(errs, s.flush())
		}
	}
	return errs
}

// 立即写入缓冲区中的全部数据
func (s *SqlStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

// 写入剩余数据后关闭数据库连接
func (s *SqlStore) Close() error {
	err := s.Flush()
	if c, ok := s.db.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}

/*
无输入，输出一个错误

字符串原样写入，nil写为空字符串，其余类型（如标签列表）编码为JSON；无论成功与否缓冲区都会被清空
*/
func (s *SqlStore) flush() error {
	if len(s.dataDocker) == 0 {
		return nil
	}
	defer func() {
		s.dataDocker = nil
	}()

	columns := getFields(s.dataDocker[0])
	fields := s.dataDocker[0].ItemFields()
	args := make([]interface{}, 0, len(columns)*len(s.dataDocker))
	for _, cell := range s.dataDocker {
		data, _ := cell.GetRecord()
		for _, field := range fields {
			args = append(args, columnValue(data[field]))
		}
		u, _ := cell.Data["Url"].(string)
		ts, _ := cell.Data["Time"].(string)
		args = append(args, u, ts)
	}

	table, _ := s.dataDocker[0].GetTableName()
	err := s.db.Insert(sqldb.TableData{
		TableName:   table,
		ColumnNames: columns,
		Args:        args,
		DataCount:   len(s.dataDocker),
	})
	if err != nil {
		s.logger.Error("insert data failed", zap.String("table", table), zap.Error(err))
		return err
	}
	s.logger.Debug("insert data", zap.String("table", table), zap.Int("rows", len(s.dataDocker)))
	return nil
}

func columnValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		j, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(j)
	}
}

func validate(cell *spider.DataCell) error {
	if cell == nil {
		return spider.ErrInvalidCell
	}
	if _, err := cell.GetTaskName(); err != nil {
		return err
	}
	if _, err := cell.GetRuleName(); err != nil {
		return err
	}
	if _, err := cell.GetRecord(); err != nil {
		return err
	}
	if len(cell.ItemFields()) == 0 {
		task, _ := cell.GetTaskName()
		rule, _ := cell.GetRuleName()
		return fmt.Errorf("no item fields for %s/%s", task, rule)
	}
	return nil
}

func sameBatch(a, b *spider.DataCell) bool {
	ta, _ := a.GetTableName()
	tb, _ := b.GetTableName()
	ra, _ := a.GetRuleName()
	rb, _ := b.GetRuleName()
	return ta == tb && ra == rb
}

// 字段列表加上Url和Time两列
func getFields(cell *spider.DataCell) []sqldb.Field {
	fields := cell.ItemFields()
	columnNames := make([]sqldb.Field, 0, len(fields)+2)
	for _, field := range fields {
		columnNames = append(columnNames, sqldb.Field{Title: field})
	}
	columnNames = append(columnNames,
		sqldb.Field{Title: "Url", Type: "VARCHAR(255)"},
		sqldb.Field{Title: "Time", Type: "VARCHAR(255)"},
	)
	return columnNames
}

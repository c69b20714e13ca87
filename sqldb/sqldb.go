package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var (
	ErrEmptyColumn       = errors.New("column can not be empty")
	ErrUnsupportedDriver = errors.New("unsupported sql driver")
)

// 建表与批量插入的统一接口
type DBer interface {
	CreateTable(t TableData) error
	Insert(t TableData) error
}

// 不同数据库在建表语句上的差异
type dialect struct {
	textType string // 字段未指定类型时使用的类型
	autoKey  string // 自增主键的定义
	suffix   string // 建表语句的结尾
}

var dialects = map[string]dialect{
	DriverMySQL: {
		textType: "MEDIUMTEXT",
		autoKey:  "`id` INT(12) NOT NULL PRIMARY KEY AUTO_INCREMENT",
		suffix:   " ENGINE=MyISAM DEFAULT CHARSET=utf8mb4",
	},
	DriverSQLite: {
		textType: "TEXT",
		autoKey:  "`id` INTEGER PRIMARY KEY AUTOINCREMENT",
	},
}

type Sqldb struct {
	options
	dialect dialect
	db      *sql.DB
}

// 数据库表中的一列
type Field struct {
	Title string
	Type  string // 为空时使用方言默认的文本类型
}

// 一次建表或插入操作涉及的数据
type TableData struct {
	TableName   string
	ColumnNames []Field
	Args        []interface{} // 按行展开的参数，长度为 len(ColumnNames)*DataCount
	DataCount   int           // 插入的行数
	AutoKey     bool
}

// 创建并打开数据库连接
func New(opts ...Option) (*Sqldb, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	dl, ok := dialects[options.driver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, options.driver)
	}
	d := &Sqldb{options: options, dialect: dl}
	if err := d.OpenDB(); err != nil {
		return nil, err
	}
	return d, nil
}

/*
无输入，输出一个错误

打开连接并ping测试；sqlite只允许一个写连接，因此连接池上限为1
*/
func (d *Sqldb) OpenDB() error {
	db, err := sql.Open(d.driver, d.sqlURL)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.driver, err)
	}
	switch d.driver {
	case DriverSQLite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)
	default:
		db.SetMaxOpenConns(2048)
		db.SetMaxIdleConns(2048)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping %s: %w", d.driver, err)
	}
	d.db = db
	return nil
}

func (d *Sqldb) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// 构造 CREATE TABLE IF NOT EXISTS 语句并执行
func (d *Sqldb) CreateTable(t TableData) error {
	if len(t.ColumnNames) == 0 {
		return ErrEmptyColumn
	}
	cols := make([]string, 0, len(t.ColumnNames)+1)
	if t.AutoKey {
		cols = append(cols, d.dialect.autoKey)
	}
	for _, c := range t.ColumnNames {
		typ := c.Type
		if typ == "" {
			typ = d.dialect.textType
		}
		cols = append(cols, quote(c.Title)+" "+typ)
	}
	query := "CREATE TABLE IF NOT EXISTS " + quote(t.TableName) + " (" + strings.Join(cols, ",") + ")" + d.dialect.suffix

	d.logger.Debug("create table", zap.String("sql", query))

	_, err := d.db.Exec(query)
	return err
}

func (d *Sqldb) DropTable(t TableData) error {
	if t.TableName == "" {
		return errors.New("table name can not be empty")
	}
	query := "DROP TABLE IF EXISTS " + quote(t.TableName)

	d.logger.Debug("drop table", zap.String("sql", query))

	_, err := d.db.Exec(query)
	return err
}

/*
输入表数据，输出一个错误

一条语句插入多行，形如 INSERT INTO `t`(`a`,`b`) VALUES (?,?),(?,?)
*/
func (d *Sqldb) Insert(t TableData) error {
	if len(t.ColumnNames) == 0 {
		return ErrEmptyColumn
	}
	if t.DataCount <= 0 {
		return nil
	}
	if len(t.Args) != len(t.ColumnNames)*t.DataCount {
		return fmt.Errorf("insert %s: got %d args for %d rows of %d columns",
			t.TableName, len(t.Args), t.DataCount, len(t.ColumnNames))
	}

	titles := make([]string, 0, len(t.ColumnNames))
	for _, c := range t.ColumnNames {
		titles = append(titles, quote(c.Title))
	}
	row := "(" + strings.Repeat(",?", len(t.ColumnNames))[1:] + ")"
	query := "INSERT INTO " + quote(t.TableName) + "(" + strings.Join(titles, ",") + ") VALUES " +
		strings.Repeat(","+row, t.DataCount)[1:]

	d.logger.Debug("insert table", zap.String("sql", query), zap.Int("rows", t.DataCount))

	_, err := d.db.Exec(query, t.Args...)
	return err
}
